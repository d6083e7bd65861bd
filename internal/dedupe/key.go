// Package dedupe collapses discovery results from multiple sources into
// canonical prospect candidates before they enter the outreach lifecycle.
// Identity comes from a derived dedupe key; merging resolves conflicting
// fields between candidates that describe the same show.
package dedupe

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
)

// Key prefixes, strongest first. A persisted key is never recomputed
// downward in strength; Stronger gates replacement.
const (
	prefixPodcastIndex = "podcastindex:"
	prefixListenNotes  = "listennotes:"
	prefixSite         = "site:"
	prefixHash         = "hash:"
)

func keyStrength(key string) int {
	switch {
	case strings.HasPrefix(key, prefixPodcastIndex):
		return 4
	case strings.HasPrefix(key, prefixListenNotes):
		return 3
	case strings.HasPrefix(key, prefixSite):
		return 2
	case strings.HasPrefix(key, prefixHash):
		return 1
	default:
		return 0
	}
}

// Key derives the stable identity key for a candidate, in priority order:
// authoritative numeric platform ID, secondary opaque platform ID,
// normalized (website host, show name) pair, content hash as last resort.
func Key(c Candidate) string {
	if c.PodcastIndexID != 0 {
		return fmt.Sprintf("%s%d", prefixPodcastIndex, c.PodcastIndexID)
	}
	if c.ListenNotesID != "" {
		return prefixListenNotes + c.ListenNotesID
	}
	if host := hostOf(c.WebsiteURL); host != "" {
		return prefixSite + host + "|" + NormalizeName(c.Name)
	}
	sum := sha1.Sum([]byte(c.primaryURL() + c.Name))
	return prefixHash + hex.EncodeToString(sum[:])
}

// Key derives this candidate's dedupe key.
func (c Candidate) Key() string { return Key(c) }

// Keys returns every key derivable from the candidate's identifiers,
// strongest first. Ingestion matches a re-discovered show against its
// weaker historical keys before concluding it is new.
func Keys(c Candidate) []string {
	var keys []string
	if c.PodcastIndexID != 0 {
		keys = append(keys, fmt.Sprintf("%s%d", prefixPodcastIndex, c.PodcastIndexID))
	}
	if c.ListenNotesID != "" {
		keys = append(keys, prefixListenNotes+c.ListenNotesID)
	}
	if host := hostOf(c.WebsiteURL); host != "" {
		keys = append(keys, prefixSite+host+"|"+NormalizeName(c.Name))
	}
	sum := sha1.Sum([]byte(c.primaryURL() + c.Name))
	keys = append(keys, prefixHash+hex.EncodeToString(sum[:]))
	return keys
}

// Strength ranks a key by the quality of the identifier behind it; a
// higher-strength key replaces a lower one, never the reverse.
func Strength(key string) int { return keyStrength(key) }

// Stronger reports whether candidate key b should replace persisted key a.
// Keys only ever strengthen; equal-strength keys never churn.
func Stronger(a, b string) bool {
	return keyStrength(b) > keyStrength(a)
}

// NormalizeName reduces a show name to its fuzzy-match form: lowercase,
// alphanumeric only. Two genuinely distinct shows with colliding normalized
// names will false-merge; that is an accepted approximation of this
// heuristic, not a defect to patch around.
func NormalizeName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func hostOf(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Host), "www.")
}
