package discovery

import (
	"context"
	"errors"
	"fmt"

	"github.com/showscout/outreach/internal/dedupe"
	"github.com/showscout/outreach/internal/domain"
	"github.com/showscout/outreach/internal/pkg/logger"
	"github.com/showscout/outreach/internal/repository/postgres"
)

// ProspectStore is the persistence surface ingestion writes through.
type ProspectStore interface {
	GetByDedupeKey(ctx context.Context, key string) (*domain.Prospect, error)
	Create(ctx context.Context, p *domain.Prospect) (string, error)
	StrengthenDedupeKey(ctx context.Context, id, newKey string, strengthOld, strengthNew int) error
}

// IngestResult summarizes one discovery run.
type IngestResult struct {
	Found        int `json:"found"`
	Merged       int `json:"merged"`
	Created      int `json:"created"`
	Existing     int `json:"existing"`
	Strengthened int `json:"strengthened"`
}

// Ingestor runs providers for a query, merges the results, and upserts
// the survivors as prospects awaiting tiering.
type Ingestor struct {
	providers []Provider
	prospects ProspectStore
}

// NewIngestor wires an ingestor over the given providers.
func NewIngestor(providers []Provider, prospects ProspectStore) *Ingestor {
	return &Ingestor{providers: providers, prospects: prospects}
}

// Run searches every provider, dedupes and merges the combined result
// set, and writes each canonical candidate to the prospect store. A
// failing provider is logged and skipped; its shows surface on a later
// run. Per-candidate write failures are logged and counted against no
// bucket so one bad row cannot sink the batch.
func (in *Ingestor) Run(ctx context.Context, query string, limit int) (IngestResult, error) {
	var res IngestResult
	if len(in.providers) == 0 {
		return res, errors.New("no discovery providers configured")
	}

	var all []dedupe.Candidate
	for _, p := range in.providers {
		cands, err := p.Search(ctx, query, limit)
		if err != nil {
			logger.Warn("provider search failed", "provider", p.Name(), "error", err.Error())
			continue
		}
		all = append(all, cands...)
	}
	res.Found = len(all)

	merged := dedupe.Merge(all)
	res.Merged = len(merged)

	for i := range merged {
		if err := in.upsert(ctx, merged[i], &res); err != nil {
			logger.Error("candidate upsert failed", "show", merged[i].Name, "error", err.Error())
		}
	}

	logger.Info("discovery run finished", "query", query,
		"found", res.Found, "merged", res.Merged, "created", res.Created,
		"existing", res.Existing, "strengthened", res.Strengthened)
	return res, nil
}

// upsert writes one canonical candidate. A show already stored under any
// of the candidate's derivable keys is matched rather than re-created;
// when the candidate now carries a stronger identifier than the stored
// key, the key is strengthened in place.
func (in *Ingestor) upsert(ctx context.Context, c dedupe.Candidate, res *IngestResult) error {
	keys := dedupe.Keys(c)
	best := keys[0]

	for _, key := range keys {
		existing, err := in.prospects.GetByDedupeKey(ctx, key)
		if errors.Is(err, postgres.ErrNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("lookup key %s: %w", key, err)
		}
		if dedupe.Stronger(existing.DedupeKey, best) {
			if err := in.prospects.StrengthenDedupeKey(ctx, existing.ID, best,
				dedupe.Strength(existing.DedupeKey), dedupe.Strength(best)); err != nil {
				return fmt.Errorf("strengthen key: %w", err)
			}
			res.Strengthened++
			return nil
		}
		res.Existing++
		return nil
	}

	p := prospectFromCandidate(c, best)
	if _, err := in.prospects.Create(ctx, p); err != nil {
		// A concurrent run won the insert race; the show exists either way.
		if errors.Is(err, postgres.ErrDuplicateKey) {
			res.Existing++
			return nil
		}
		return fmt.Errorf("create prospect: %w", err)
	}
	res.Created++
	return nil
}

func prospectFromCandidate(c dedupe.Candidate, key string) *domain.Prospect {
	p := &domain.Prospect{
		DedupeKey: key,
		Name:      c.Name,
		Tier:      domain.TierPending,
	}
	if c.Email != "" {
		source := "discovery"
		if len(c.DiscoverySources) > 0 {
			source = c.DiscoverySources[0]
		}
		p.PrimaryEmail = &domain.ContactRef{Email: c.Email, Source: source}
	}
	return p
}
