package parser

import (
	"bytes"
	"context"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"NewsAutopilot/internal/domain"
	"NewsAutopilot/internal/scanner"
)

// FeedScanner reads RSS, Atom and JSON Feed origins.
type FeedScanner struct {
	client *http.Client
}

var _ scanner.Scanner = (*FeedScanner)(nil)

// NewFeedScanner wires an HTTP client; nil uses a client with a 30s timeout.
func NewFeedScanner(client *http.Client) *FeedScanner {
	return &FeedScanner{client: defaultClient(client)}
}

// Type identifies the strategy inside the registry.
func (f *FeedScanner) Type() domain.SourceType {
	return domain.SourceFeed
}

// Scan downloads the feed, orders items by publish date and returns the
// requested page. When the URL serves an HTML page that advertises a feed,
// the advertised feed is read instead.
func (f *FeedScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.Candidate, error) {
	body, contentType, err := fetchBody(ctx, f.client, req.URL)
	if err != nil {
		return nil, err
	}

	if !looksLikeFeed(contentType, body) {
		if alt := alternateFeedLink(req.URL, body); alt != "" && alt != req.URL {
			body, _, err = fetchBody(ctx, f.client, alt)
			if err != nil {
				return nil, err
			}
		}
	}

	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, domain.NewError(domain.KindMalformedFeed, "parse feed "+req.URL, err)
	}

	items := make([]domain.Candidate, 0, len(feed.Items))
	for _, it := range feed.Items {
		if it == nil {
			continue
		}
		items = append(items, toCandidate(it))
	}
	sortByPublished(items, req.Newest)

	return page(items, req.Offset, req.Limit), nil
}

func toCandidate(it *gofeed.Item) domain.Candidate {
	content := strings.TrimSpace(it.Content)
	if content == "" {
		content = strings.TrimSpace(it.Description)
	}
	return domain.Candidate{
		GUID:        strings.TrimSpace(it.GUID),
		Title:       strings.TrimSpace(it.Title),
		URL:         strings.TrimSpace(it.Link),
		Content:     content,
		Author:      authorName(it),
		PublishedAt: pickTime(it.PublishedParsed, it.UpdatedParsed),
	}
}

// sortByPublished keeps the feed order for items with equal dates.
func sortByPublished(items []domain.Candidate, newest bool) {
	sort.SliceStable(items, func(i, j int) bool {
		if newest {
			return items[i].PublishedAt.After(items[j].PublishedAt)
		}
		return items[i].PublishedAt.Before(items[j].PublishedAt)
	})
}

func pickTime(a, b *time.Time) time.Time {
	if a != nil {
		return a.UTC()
	}
	if b != nil {
		return b.UTC()
	}
	return time.Time{}
}

func authorName(it *gofeed.Item) string {
	if it.Author != nil {
		if it.Author.Name != "" {
			return it.Author.Name
		}
		return it.Author.Email
	}
	if len(it.Authors) > 0 && it.Authors[0] != nil {
		return it.Authors[0].Name
	}
	return ""
}
