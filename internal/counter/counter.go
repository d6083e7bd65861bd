// Package counter implements the shared daily-send counter. The cap check
// and the increment happen in one atomic step so two concurrent send
// attempts can never both claim the last slot; a plain read-then-write
// pattern is exactly the race this package exists to prevent.
package counter

import (
	"context"
	"time"
)

// Reservation is the result of one atomic slot claim.
type Reservation struct {
	// Granted is true when a slot below the cap was claimed.
	Granted bool
	// Count is the counter value after the operation (or the current
	// value when denied).
	Count int
}

// DailyCounter atomically reserves send slots against a per-day cap.
type DailyCounter interface {
	// Reserve claims one slot for the given calendar date.
	Reserve(ctx context.Context, day time.Time) (Reservation, error)
	// Release returns a previously granted slot, used when a send fails
	// in transport after the slot was claimed.
	Release(ctx context.Context, day time.Time) error
	// Current returns today's count without claiming a slot.
	Current(ctx context.Context, day time.Time) (int, error)
}

func dayKey(day time.Time) string {
	return day.UTC().Format("2006-01-02")
}
