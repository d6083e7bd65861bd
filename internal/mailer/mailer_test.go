package mailer

import (
	"errors"
	"testing"
)

func TestIsPermanentFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"unverified identity", errors.New("operation error SESv2: SendEmail, Email address is not verified"), true},
		{"rejected", errors.New("MessageRejected: sending paused"), true},
		{"throttled", errors.New("operation error SESv2: SendEmail, too many requests"), false},
		{"timeout", errors.New("context deadline exceeded"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsPermanentFailure(tt.err); got != tt.want {
				t.Errorf("IsPermanentFailure(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestErrSendFailedWraps(t *testing.T) {
	err := errors.New("dial tcp: i/o timeout")
	wrapped := errors.Join(ErrSendFailed, err)
	if !errors.Is(wrapped, ErrSendFailed) {
		t.Error("wrapped error should match ErrSendFailed")
	}
}
