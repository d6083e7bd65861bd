package discovery

import (
	"context"
	"fmt"
	"net/http"

	"github.com/mmcdole/gofeed"

	"github.com/showscout/outreach/internal/dedupe"
	"github.com/showscout/outreach/internal/pkg/httpretry"
)

// RSSProvider resolves individual feed URLs into candidates. It is not a
// search source; directory providers hand it feed URLs to enrich, and
// operator-supplied feed lists enter through it directly.
type RSSProvider struct {
	client *httpretry.Client
	parser *gofeed.Parser
}

// NewRSSProvider creates a feed-fetching provider.
func NewRSSProvider(client *httpretry.Client) *RSSProvider {
	if client == nil {
		client = httpretry.New(nil, 3)
	}
	return &RSSProvider{
		client: client,
		parser: gofeed.NewParser(),
	}
}

// Name identifies this provider in discovery-source lists.
func (p *RSSProvider) Name() string { return "rss_feed" }

// Search treats the query as a feed URL and fetches one candidate.
func (p *RSSProvider) Search(ctx context.Context, query string, _ int) ([]dedupe.Candidate, error) {
	c, err := p.Fetch(ctx, query)
	if err != nil {
		return nil, err
	}
	return []dedupe.Candidate{*c}, nil
}

// Fetch downloads and parses one feed into a candidate. The owner email,
// when present, carries this provider's name as its source.
func (p *RSSProvider) Fetch(ctx context.Context, feedURL string) (*dedupe.Candidate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build feed request: %w", err)
	}
	req.Header.Set("User-Agent", "showscout-outreach/1.0")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed %s: %w", feedURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch feed %s: status %d", feedURL, resp.StatusCode)
	}

	feed, err := p.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", feedURL, err)
	}

	c := &dedupe.Candidate{
		Name:             feed.Title,
		Description:      feed.Description,
		WebsiteURL:       feed.Link,
		FeedURL:          feedURL,
		EpisodeCount:     len(feed.Items),
		DiscoverySources: []string{p.Name()},
	}
	if feed.Image != nil {
		c.ArtworkURL = feed.Image.URL
	}
	if feed.ITunesExt != nil {
		if feed.ITunesExt.Author != "" {
			c.HostName = feed.ITunesExt.Author
		}
		if feed.ITunesExt.Owner != nil {
			c.Email = feed.ITunesExt.Owner.Email
			if c.HostName == "" {
				c.HostName = feed.ITunesExt.Owner.Name
			}
		}
		if feed.ITunesExt.Explicit == "true" || feed.ITunesExt.Explicit == "yes" {
			c.RiskSignals = append(c.RiskSignals, "explicit_content")
		}
	}
	return c, nil
}
