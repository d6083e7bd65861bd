// Package discovery pulls podcast candidates from external directories and
// RSS feeds and normalizes them at the boundary into a single candidate
// shape for dedupe and merge.
package discovery

import (
	"context"

	"github.com/showscout/outreach/internal/dedupe"
)

// Provider is one candidate source. Search returns raw candidates for a
// query, at most limit of them when limit > 0; the caller owns dedupe and
// merge.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string, limit int) ([]dedupe.Candidate, error)
}
