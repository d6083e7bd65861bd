package discovery

import (
	"context"
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/showscout/outreach/internal/dedupe"
	"github.com/showscout/outreach/internal/pkg/httpretry"
)

const podcastIndexBaseURL = "https://api.podcastindex.org/api/1.0"

// PodcastIndexProvider searches the Podcast Index directory. Its numeric
// feed ID is the strongest identity a candidate can carry.
type PodcastIndexProvider struct {
	client  *httpretry.Client
	baseURL string
	key     string
	secret  string
	now     func() time.Time
}

// NewPodcastIndexProvider creates a Podcast Index search provider.
func NewPodcastIndexProvider(client *httpretry.Client, key, secret string) *PodcastIndexProvider {
	if client == nil {
		client = httpretry.New(nil, 3)
	}
	return &PodcastIndexProvider{
		client:  client,
		baseURL: podcastIndexBaseURL,
		key:     key,
		secret:  secret,
		now:     time.Now,
	}
}

// Name identifies this provider in discovery-source lists.
func (p *PodcastIndexProvider) Name() string { return "podcastindex" }

// podcastIndexFeed is the directory's wire shape for one feed.
type podcastIndexFeed struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	URL          string `json:"url"`
	Link         string `json:"link"`
	Description  string `json:"description"`
	Author       string `json:"author"`
	OwnerName    string `json:"ownerName"`
	Image        string `json:"image"`
	EpisodeCount int    `json:"episodeCount"`
	Explicit     bool   `json:"explicit"`
}

type podcastIndexSearchResponse struct {
	Status string             `json:"status"`
	Feeds  []podcastIndexFeed `json:"feeds"`
	Count  int                `json:"count"`
}

// Search searches the directory by term.
func (p *PodcastIndexProvider) Search(ctx context.Context, query string, limit int) ([]dedupe.Candidate, error) {
	u := fmt.Sprintf("%s/search/byterm?q=%s", p.baseURL, url.QueryEscape(query))
	if limit > 0 {
		u += fmt.Sprintf("&max=%d", limit)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	p.sign(req)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("podcastindex search: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("podcastindex search: status %d", resp.StatusCode)
	}

	var out podcastIndexSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode podcastindex response: %w", err)
	}

	candidates := make([]dedupe.Candidate, 0, len(out.Feeds))
	for _, f := range out.Feeds {
		candidates = append(candidates, p.normalize(f))
	}
	return candidates, nil
}

// normalize maps the directory's wire shape onto the common candidate.
func (p *PodcastIndexProvider) normalize(f podcastIndexFeed) dedupe.Candidate {
	c := dedupe.Candidate{
		PodcastIndexID:   f.ID,
		Name:             f.Title,
		Description:      f.Description,
		WebsiteURL:       f.Link,
		FeedURL:          f.URL,
		ArtworkURL:       f.Image,
		EpisodeCount:     f.EpisodeCount,
		DiscoverySources: []string{p.Name()},
	}
	c.HostName = f.Author
	if c.HostName == "" {
		c.HostName = f.OwnerName
	}
	if f.Explicit {
		c.RiskSignals = append(c.RiskSignals, "explicit_content")
	}
	return c
}

// sign adds the directory's per-request auth headers: the API key, a unix
// timestamp, and sha1(key + secret + timestamp).
func (p *PodcastIndexProvider) sign(req *http.Request) {
	ts := strconv.FormatInt(p.now().Unix(), 10)
	h := sha1.Sum([]byte(p.key + p.secret + ts))
	req.Header.Set("X-Auth-Key", p.key)
	req.Header.Set("X-Auth-Date", ts)
	req.Header.Set("Authorization", fmt.Sprintf("%x", h))
	req.Header.Set("User-Agent", "showscout-outreach/1.0")
}
