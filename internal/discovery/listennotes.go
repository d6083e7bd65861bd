package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/showscout/outreach/internal/dedupe"
	"github.com/showscout/outreach/internal/pkg/httpretry"
)

const listenNotesBaseURL = "https://listen-api.listennotes.com/api/v2"

// ListenNotesProvider searches the Listen Notes directory. Its opaque show
// ID ranks below the Podcast Index numeric ID for identity purposes.
type ListenNotesProvider struct {
	client  *httpretry.Client
	baseURL string
	apiKey  string
}

// NewListenNotesProvider creates a Listen Notes search provider.
func NewListenNotesProvider(client *httpretry.Client, apiKey string) *ListenNotesProvider {
	if client == nil {
		client = httpretry.New(nil, 3)
	}
	return &ListenNotesProvider{
		client:  client,
		baseURL: listenNotesBaseURL,
		apiKey:  apiKey,
	}
}

// Name identifies this provider in discovery-source lists.
func (p *ListenNotesProvider) Name() string { return "listennotes" }

// listenNotesResult is the directory's wire shape for one show.
type listenNotesResult struct {
	ID              string `json:"id"`
	Title           string `json:"title_original"`
	Publisher       string `json:"publisher_original"`
	Description     string `json:"description_original"`
	Website         string `json:"website"`
	RSS             string `json:"rss"`
	Image           string `json:"image"`
	TotalEpisodes   int    `json:"total_episodes"`
	Email           string `json:"email"`
	ExplicitContent bool   `json:"explicit_content"`
}

type listenNotesSearchResponse struct {
	Results []listenNotesResult `json:"results"`
	Total   int                 `json:"total"`
}

// Search searches the directory by term. The API pages at its own size;
// limit is applied to the returned batch.
func (p *ListenNotesProvider) Search(ctx context.Context, query string, limit int) ([]dedupe.Candidate, error) {
	u := fmt.Sprintf("%s/search?q=%s&type=podcast", p.baseURL, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("X-ListenAPI-Key", p.apiKey)
	req.Header.Set("User-Agent", "showscout-outreach/1.0")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("listennotes search: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("listennotes search: status %d", resp.StatusCode)
	}

	var out listenNotesSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode listennotes response: %w", err)
	}

	results := out.Results
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	candidates := make([]dedupe.Candidate, 0, len(results))
	for _, r := range results {
		candidates = append(candidates, p.normalize(r))
	}
	return candidates, nil
}

// normalize maps the directory's wire shape onto the common candidate.
func (p *ListenNotesProvider) normalize(r listenNotesResult) dedupe.Candidate {
	c := dedupe.Candidate{
		ListenNotesID:    r.ID,
		Name:             r.Title,
		HostName:         r.Publisher,
		Description:      r.Description,
		WebsiteURL:       r.Website,
		FeedURL:          r.RSS,
		ArtworkURL:       r.Image,
		Email:            r.Email,
		EpisodeCount:     r.TotalEpisodes,
		DiscoverySources: []string{p.Name()},
	}
	if r.ExplicitContent {
		c.RiskSignals = append(c.RiskSignals, "explicit_content")
	}
	return c
}
