package dedupe

import (
	"sort"
	"strings"
)

// Candidate is a partially-populated show record pulled from one discovery
// source, normalized at the provider boundary.
type Candidate struct {
	PodcastIndexID int64  `json:"podcastindex_id"`
	ListenNotesID  string `json:"listennotes_id"`

	Name        string `json:"name"`
	HostName    string `json:"host_name"`
	Description string `json:"description"`

	WebsiteURL string `json:"website_url"`
	FeedURL    string `json:"feed_url"`
	ArtworkURL string `json:"artwork_url"`

	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	EpisodeCount  int    `json:"episode_count"`

	// DiscoverySources lists every provider that surfaced this show;
	// merging concatenates, never replaces, so provenance is preserved.
	DiscoverySources []string `json:"discovery_sources"`

	// RiskSignals are screening flags (explicit content, politics, paid
	// guest language). Merging unions them.
	RiskSignals []string `json:"risk_signals"`
}

func (c Candidate) primaryURL() string {
	if c.WebsiteURL != "" {
		return c.WebsiteURL
	}
	return c.FeedURL
}

// QualityScore ranks a candidate's field completeness. Verified email
// dominates because a deliverable contact is worth more than metadata.
func QualityScore(c Candidate) int {
	score := 0
	if c.ArtworkURL != "" {
		score++
	}
	if c.Email != "" && c.EmailVerified {
		score += 2
	}
	if c.Description != "" {
		score++
	}
	if c.EpisodeCount > 0 {
		score++
	}
	return score
}

// Merge collapses candidates that normalize to the same fuzzy name key into
// one record each, preserving first-seen group order. Merging is a fixed
// point: feeding the output back in yields the same set.
func Merge(candidates []Candidate) []Candidate {
	groups := make(map[string][]Candidate)
	var order []string
	for _, c := range candidates {
		k := NormalizeName(c.Name)
		if _, seen := groups[k]; !seen {
			order = append(order, k)
		}
		groups[k] = append(groups[k], c)
	}

	out := make([]Candidate, 0, len(order))
	for _, k := range order {
		out = append(out, mergeGroup(groups[k]))
	}
	return out
}

// mergeGroup resolves one fuzzy-key collision group. The highest-scored
// candidate's core fields win; URL-valued fields fill first-non-empty in
// input order regardless of who won; source labels concatenate; risk
// signals union.
func mergeGroup(group []Candidate) Candidate {
	if len(group) == 1 {
		return group[0]
	}

	winner := group[0]
	for _, c := range group[1:] {
		if QualityScore(c) > QualityScore(winner) {
			winner = c
		}
	}
	merged := winner

	// Identity fields also fill upward: a group member carrying a platform
	// ID the winner lacks strengthens the merged identity.
	for _, c := range group {
		if merged.PodcastIndexID == 0 && c.PodcastIndexID != 0 {
			merged.PodcastIndexID = c.PodcastIndexID
		}
		if merged.ListenNotesID == "" && c.ListenNotesID != "" {
			merged.ListenNotesID = c.ListenNotesID
		}
		if merged.WebsiteURL == "" && c.WebsiteURL != "" {
			merged.WebsiteURL = c.WebsiteURL
		}
		if merged.FeedURL == "" && c.FeedURL != "" {
			merged.FeedURL = c.FeedURL
		}
		if merged.ArtworkURL == "" && c.ArtworkURL != "" {
			merged.ArtworkURL = c.ArtworkURL
		}
	}

	merged.DiscoverySources = concatSources(group)
	merged.RiskSignals = unionSignals(group)
	return merged
}

func concatSources(group []Candidate) []string {
	seen := make(map[string]bool)
	var out []string
	for _, c := range group {
		for _, s := range c.DiscoverySources {
			if s == "" || seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func unionSignals(group []Candidate) []string {
	seen := make(map[string]bool)
	for _, c := range group {
		for _, s := range c.RiskSignals {
			if s != "" {
				seen[strings.ToLower(s)] = true
			}
		}
	}
	if len(seen) == 0 {
		return nil
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
