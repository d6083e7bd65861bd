package mailer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/showscout/outreach/internal/pkg/logger"
)

const defaultSendTimeout = 30 * time.Second

// SESMailer sends email through the SES v2 API.
type SESMailer struct {
	client  *sesv2.Client
	from    string
	timeout time.Duration
}

// NewSESMailer creates an SES v2 mailer with static credentials.
func NewSESMailer(ctx context.Context, cfg Config) (*SESMailer, error) {
	creds := credentials.NewStaticCredentialsProvider(
		cfg.AccessKey,
		cfg.SecretKey,
		"", // session token (empty for static creds)
	)

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(creds),
	)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	from := cfg.FromAddress
	if cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", cfg.FromName, cfg.FromAddress)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}

	return &SESMailer{
		client:  sesv2.NewFromConfig(awsCfg),
		from:    from,
		timeout: timeout,
	}, nil
}

// Send delivers one email. The threadID rides along as a message tag so
// inbound replies can be matched back to the conversation.
func (m *SESMailer) Send(ctx context.Context, to, subject, body, threadID string) (*SendResult, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(m.from),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(subject)},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(body)},
				},
			},
		},
	}
	if threadID != "" {
		input.EmailTags = []types.MessageTag{
			{Name: aws.String("thread_id"), Value: aws.String(threadID)},
		}
	}

	out, err := m.client.SendEmail(ctx, input)
	if err != nil {
		logger.Error("email send failed", "to", to, "error", err.Error())
		return nil, fmt.Errorf("%w: %v", ErrSendFailed, err)
	}

	messageID := aws.ToString(out.MessageId)
	if threadID == "" {
		threadID = messageID
	}
	logger.Info("email sent", "to", to, "message_id", messageID)
	return &SendResult{MessageID: messageID, ThreadID: threadID}, nil
}

// IsPermanentFailure reports whether an SES error indicates the address
// itself is bad rather than a transient transport problem.
func IsPermanentFailure(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "address is not verified") ||
		strings.Contains(msg, "account is paused") ||
		strings.Contains(msg, "messagerejected")
}
