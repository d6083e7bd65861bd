// Package scheduler runs the three recurring outreach jobs: lifecycle
// evaluation, due sends, and reply polling. Jobs are written to be safe
// under overlap and multi-instance deployment: each run takes a
// distributed lock, prospect writes go through optimistic versioning, and
// the daily send budget is claimed atomically per send.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/showscout/outreach/internal/counter"
	"github.com/showscout/outreach/internal/domain"
	"github.com/showscout/outreach/internal/drafter"
	"github.com/showscout/outreach/internal/lifecycle"
	"github.com/showscout/outreach/internal/mailer"
	"github.com/showscout/outreach/internal/pkg/logger"
	"github.com/showscout/outreach/internal/replyclass"
	"github.com/showscout/outreach/internal/repository/postgres"
	"github.com/showscout/outreach/internal/sendrules"
)

// ProspectStore is the prospect persistence surface the jobs need.
type ProspectStore interface {
	Get(ctx context.Context, id string) (*domain.Prospect, error)
	GetOpenProspects(ctx context.Context) ([]domain.Prospect, error)
	GetDueProspects(ctx context.Context, now time.Time) ([]domain.Prospect, error)
	UpdateLifecycle(ctx context.Context, id string, f postgres.LifecycleFields, expectedVersion int64) error
}

// TouchStore is the touch persistence surface the jobs need.
type TouchStore interface {
	Create(ctx context.Context, t *domain.Touch) (string, error)
	ListByProspect(ctx context.Context, prospectID string) ([]domain.Touch, error)
	GetLatestByThreadID(ctx context.Context, threadID string) (*domain.Touch, error)
	MarkReplied(ctx context.Context, id string, at time.Time) error
}

// InboundStore is the inbound-message queue surface the poll job reads.
type InboundStore interface {
	ListUnprocessed(ctx context.Context, limit int) ([]postgres.InboundMessage, error)
	MarkProcessed(ctx context.Context, id string, at time.Time) error
}

const inboundBatchSize = 50

// Service holds the job implementations and their collaborators.
type Service struct {
	prospects ProspectStore
	touches   TouchStore
	inbound   InboundStore
	engine    *lifecycle.Engine
	enforcer  *sendrules.Enforcer
	counter   counter.DailyCounter
	mailer    mailer.Mailer
	drafter   *drafter.Drafter

	sendWorkers int
	now         func() time.Time
}

// NewService wires a job service. sendWorkers <= 0 defaults to 4.
func NewService(
	prospects ProspectStore,
	touches TouchStore,
	inbound InboundStore,
	engine *lifecycle.Engine,
	enforcer *sendrules.Enforcer,
	dailyCounter counter.DailyCounter,
	m mailer.Mailer,
	d *drafter.Drafter,
	sendWorkers int,
) *Service {
	if sendWorkers <= 0 {
		sendWorkers = 4
	}
	return &Service{
		prospects:   prospects,
		touches:     touches,
		inbound:     inbound,
		engine:      engine,
		enforcer:    enforcer,
		counter:     dailyCounter,
		mailer:      m,
		drafter:     d,
		sendWorkers: sendWorkers,
		now:         time.Now,
	}
}

// EvaluateLifecycle recomputes the next-action tuple for every open
// prospect and persists the ones that changed. Version conflicts are
// skipped; the next run recomputes from fresh state.
func (s *Service) EvaluateLifecycle(ctx context.Context) error {
	now := s.now()
	prospects, err := s.prospects.GetOpenProspects(ctx)
	if err != nil {
		return fmt.Errorf("evaluate lifecycle: %w", err)
	}

	var updated, closed, conflicts, flagged int
	for i := range prospects {
		p := &prospects[i]
		touches, err := s.touches.ListByProspect(ctx, p.ID)
		if err != nil {
			logger.Error("list touches failed", "prospect_id", p.ID, "error", err.Error())
			continue
		}

		decision, ok, err := s.engine.Evaluate(p, touches, now)
		if err != nil {
			// Data-integrity violation: flag and move on, never guess.
			logger.Error("lifecycle evaluation flagged prospect", "prospect_id", p.ID, "error", err.Error())
			flagged++
			continue
		}
		if !ok || !decision.Differs(p) {
			continue
		}

		if decision.NextAction == domain.ActionClose && p.ReplyReceivedAt == nil {
			if err := s.closeNoResponse(ctx, p, now); err != nil {
				if errors.Is(err, postgres.ErrVersionConflict) {
					conflicts++
					continue
				}
				logger.Error("close prospect failed", "prospect_id", p.ID, "error", err.Error())
				continue
			}
			closed++
			continue
		}

		fields := postgres.LifecycleFields{
			Status:            &decision.Status,
			NextAction:        &decision.NextAction,
			NextActionDate:    decision.NextActionDate,
			SetNextActionDate: true,
			UseBackupEmail:    &decision.UseBackupEmail,
		}
		if err := s.prospects.UpdateLifecycle(ctx, p.ID, fields, p.Version); err != nil {
			if errors.Is(err, postgres.ErrVersionConflict) {
				conflicts++
				continue
			}
			logger.Error("persist decision failed", "prospect_id", p.ID, "error", err.Error())
			continue
		}
		updated++
	}

	logger.Info("lifecycle evaluation finished",
		"evaluated", len(prospects), "updated", updated, "closed", closed,
		"conflicts", conflicts, "flagged", flagged)
	return nil
}

func (s *Service) closeNoResponse(ctx context.Context, p *domain.Prospect, now time.Time) error {
	cmd := lifecycle.CloseNoResponse{}
	if err := cmd.Apply(p, now); err != nil {
		return err
	}
	fields := postgres.LifecycleFields{
		Status:            &p.Status,
		NextAction:        &p.NextAction,
		SetNextActionDate: true,
		Outcome:           &p.Outcome,
	}
	return s.prospects.UpdateLifecycle(ctx, p.ID, fields, p.Version)
}

// SendDue sends email for every prospect whose next action is due. Each
// send claims a daily-cap slot atomically before the SMTP call and refunds
// it if transport fails; prospect and touch writes happen only after a
// confirmed send.
func (s *Service) SendDue(ctx context.Context) error {
	now := s.now()
	due, err := s.prospects.GetDueProspects(ctx, now)
	if err != nil {
		return fmt.Errorf("send due: %w", err)
	}
	if len(due) == 0 {
		return nil
	}

	var sent, denied, failed int64
	var mu sync.Mutex
	work := make(chan domain.Prospect)
	var wg sync.WaitGroup

	for i := 0; i < s.sendWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range work {
				switch err := s.sendOne(ctx, &p, now); {
				case err == nil:
					mu.Lock()
					sent++
					mu.Unlock()
				case errors.Is(err, errSendDenied):
					mu.Lock()
					denied++
					mu.Unlock()
				default:
					mu.Lock()
					failed++
					mu.Unlock()
					logger.Error("send failed", "prospect_id", p.ID, "error", err.Error())
				}
			}
		}()
	}

	for i := range due {
		select {
		case work <- due[i]:
		case <-ctx.Done():
			close(work)
			wg.Wait()
			return ctx.Err()
		}
	}
	close(work)
	wg.Wait()

	logger.Info("send run finished", "due", len(due), "sent", sent, "denied", denied, "failed", failed)
	return nil
}

// errSendDenied marks a rules denial so the run counts it apart from
// transport failures.
var errSendDenied = errors.New("send denied by rules")

func (s *Service) sendOne(ctx context.Context, p *domain.Prospect, now time.Time) error {
	touches, err := s.touches.ListByProspect(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("list touches: %w", err)
	}

	requested := sendrules.DeriveTouchType(p, touches)
	if requested == domain.TouchBackup {
		// Route to the backup contact even if the stored flag is stale,
		// so the contact check below validates the route actually used.
		p.UseBackupEmail = true
	}
	current, err := s.counter.Current(ctx, now)
	if err != nil {
		return fmt.Errorf("read daily count: %w", err)
	}
	auth := s.enforcer.Authorize(p, touches, requested, current)
	if !auth.Allowed {
		logger.Info("send denied", "prospect_id", p.ID, "reason", string(auth.Reason))
		return errSendDenied
	}

	contact := p.TargetEmail()
	draft, err := s.drafter.DraftForTouch(ctx, p, auth.TouchType)
	if err != nil {
		return fmt.Errorf("draft message: %w", err)
	}

	// Claim the cap slot before transport. The Lua-side check closes the
	// read-check-increment race between concurrent workers.
	res, err := s.counter.Reserve(ctx, now)
	if err != nil {
		return fmt.Errorf("reserve cap slot: %w", err)
	}
	if !res.Granted {
		logger.Info("send denied", "prospect_id", p.ID, "reason", string(sendrules.DenyDailyCapReached))
		return errSendDenied
	}

	threadID := ""
	if last := domain.LatestTouch(touches); last != nil {
		threadID = last.ThreadID
	}
	result, err := s.mailer.Send(ctx, contact.Email, draft.Subject, draft.Body, threadID)
	if err != nil {
		// The claimed slot goes back: nothing left the building.
		if relErr := s.counter.Release(ctx, now); relErr != nil {
			logger.Error("cap slot refund failed", "error", relErr.Error())
		}
		return fmt.Errorf("transport: %w", err)
	}

	touch := &domain.Touch{
		ProspectID:   p.ID,
		Type:         auth.TouchType,
		ContactUsed:  contact.Email,
		SentAt:       now,
		EmailSubject: draft.Subject,
		EmailBody:    draft.Body,
		ThreadID:     result.ThreadID,
		MessageID:    result.MessageID,
	}
	if _, err := s.touches.Create(ctx, touch); err != nil {
		// The mail is out; the touch write failed. The next lifecycle pass
		// repairs prospect state from whatever history survives, so log
		// loudly and keep the prospect update going.
		logger.Error("touch write failed after send", "prospect_id", p.ID, "error", err.Error())
	}

	cmd := lifecycle.RecordSend{Type: auth.TouchType, SentAt: now}
	if err := cmd.Apply(p, now); err != nil {
		return fmt.Errorf("record send: %w", err)
	}
	fields := postgres.LifecycleFields{
		Status:            &p.Status,
		NextAction:        &p.NextAction,
		SetNextActionDate: true,
		UseBackupEmail:    &p.UseBackupEmail,
	}
	switch auth.TouchType {
	case domain.TouchPrimary:
		fields.SentPrimaryAt = p.SentPrimaryAt
	case domain.TouchFollowUp:
		fields.FollowUpSentAt = p.FollowUpSentAt
	case domain.TouchBackup:
		fields.SentBackupAt = p.SentBackupAt
	}
	if err := s.prospects.UpdateLifecycle(ctx, p.ID, fields, p.Version); err != nil {
		// Same story: the send is real, the prospect row is stale. The
		// evaluation job rebuilds the tuple from touch history.
		logger.Error("prospect update failed after send", "prospect_id", p.ID, "error", err.Error())
	}
	return nil
}

// PollReplies drains the inbound queue, classifies each message, and
// records the reply on the owning prospect. Unmatchable messages are
// marked processed so they don't wedge the queue.
func (s *Service) PollReplies(ctx context.Context) error {
	now := s.now()
	msgs, err := s.inbound.ListUnprocessed(ctx, inboundBatchSize)
	if err != nil {
		return fmt.Errorf("poll replies: %w", err)
	}

	var recorded, unmatched int
	for i := range msgs {
		m := &msgs[i]
		if err := s.processInbound(ctx, m, now); err != nil {
			if errors.Is(err, postgres.ErrNotFound) {
				logger.Warn("inbound message matched no thread", "inbound_id", m.ID, "from", m.FromAddress)
				unmatched++
			} else {
				logger.Error("process inbound failed", "inbound_id", m.ID, "error", err.Error())
				continue
			}
		} else {
			recorded++
		}
		if err := s.inbound.MarkProcessed(ctx, m.ID, now); err != nil {
			logger.Error("mark inbound processed failed", "inbound_id", m.ID, "error", err.Error())
		}
	}

	if len(msgs) > 0 {
		logger.Info("reply poll finished", "messages", len(msgs), "recorded", recorded, "unmatched", unmatched)
	}
	return nil
}

func (s *Service) processInbound(ctx context.Context, m *postgres.InboundMessage, now time.Time) error {
	touch, err := s.touches.GetLatestByThreadID(ctx, m.ThreadID)
	if err != nil {
		return err
	}
	p, err := s.prospects.Get(ctx, touch.ProspectID)
	if err != nil {
		return err
	}
	if p.ReplyReceivedAt != nil {
		// Reply already recorded; a second message changes nothing.
		return nil
	}

	replyType := replyclass.Classify(m.Subject + "\n" + m.Body)
	cmd := lifecycle.RecordReply{Type: replyType, ReceivedAt: m.ReceivedAt}
	if err := cmd.Apply(p, now); err != nil {
		return fmt.Errorf("record reply: %w", err)
	}

	fields := postgres.LifecycleFields{
		Status:            &p.Status,
		NextAction:        &p.NextAction,
		SetNextActionDate: true,
		Outcome:           &p.Outcome,
		ReplyReceivedAt:   p.ReplyReceivedAt,
		ReplyType:         p.ReplyType,
		Suppressed:        &p.Suppressed,
		SuppressedAt:      p.SuppressedAt,
	}
	if err := s.prospects.UpdateLifecycle(ctx, p.ID, fields, p.Version); err != nil {
		return err
	}
	if err := s.touches.MarkReplied(ctx, touch.ID, m.ReceivedAt); err != nil {
		logger.Error("mark touch replied failed", "touch_id", touch.ID, "error", err.Error())
	}

	logger.Info("reply recorded",
		"prospect_id", p.ID, "reply_type", string(replyType), "outcome", string(p.Outcome))
	return nil
}
