package parser

import (
	"bytes"
	"context"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"NewsAutopilot/internal/domain"
	"NewsAutopilot/internal/scanner"
)

var dateExpr = regexp.MustCompile(`\d{4}-\d{2}-\d{2}|\d{1,2} [A-Za-z]{3} \d{4}`)

// WebsiteScanner extracts article listings from regular HTML pages.
type WebsiteScanner struct {
	client *http.Client
}

var _ scanner.Scanner = (*WebsiteScanner)(nil)

// NewWebsiteScanner wires an HTTP client; nil uses a client with a 30s
// timeout.
func NewWebsiteScanner(client *http.Client) *WebsiteScanner {
	return &WebsiteScanner{client: defaultClient(client)}
}

// Type identifies the strategy inside the registry.
func (w *WebsiteScanner) Type() domain.SourceType {
	return domain.SourceWebsite
}

// Scan reads the listing page and returns the requested page of entries.
func (w *WebsiteScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.Candidate, error) {
	doc, err := w.fetchDocument(ctx, req.URL)
	if err != nil {
		return nil, err
	}

	entries := extractEntries(doc, req.URL)
	sortByPublished(entries, req.Newest)
	return page(entries, req.Offset, req.Limit), nil
}

func (w *WebsiteScanner) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	body, _, err := fetchBody(ctx, w.client, pageURL)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, domain.NewError(domain.KindMalformedFeed, "parse document "+pageURL, err)
	}
	return doc, nil
}

// extractEntries collects <article> blocks; pages without them fall back to
// headline links. Duplicate URLs are dropped.
func extractEntries(doc *goquery.Document, base string) []domain.Candidate {
	seen := map[string]struct{}{}
	var entries []domain.Candidate
	add := func(c domain.Candidate, ok bool) {
		if !ok {
			return
		}
		if _, dup := seen[c.URL]; dup {
			return
		}
		seen[c.URL] = struct{}{}
		entries = append(entries, c)
	}

	doc.Find("article").Each(func(_ int, s *goquery.Selection) {
		add(parseEntry(s, base))
	})
	if len(entries) > 0 {
		return entries
	}

	doc.Find("h1 a[href], h2 a[href], h3 a[href]").Each(func(_ int, s *goquery.Selection) {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		title := strings.TrimSpace(s.Text())
		if href == "" || title == "" || strings.HasPrefix(href, "#") {
			return
		}
		add(domain.Candidate{Title: title, URL: resolveURL(base, href)}, true)
	})
	return entries
}

func parseEntry(s *goquery.Selection, base string) (domain.Candidate, bool) {
	link := s.Find("h1 a[href], h2 a[href], h3 a[href]").First()
	if link.Length() == 0 {
		link = s.Find("a[href]").First()
	}
	href := strings.TrimSpace(link.AttrOr("href", ""))
	if href == "" {
		return domain.Candidate{}, false
	}

	title := strings.TrimSpace(s.Find("h1, h2, h3").First().Text())
	if title == "" {
		title = strings.TrimSpace(link.Text())
	}

	summary := strings.TrimSpace(s.Find("p").First().Text())

	return domain.Candidate{
		Title:       title,
		URL:         resolveURL(base, href),
		Content:     summary,
		Author:      strings.TrimSpace(s.Find("[rel=author], .author").First().Text()),
		PublishedAt: entryDate(s),
	}, true
}

func entryDate(s *goquery.Selection) time.Time {
	if ts, ok := s.Find("time[datetime]").First().Attr("datetime"); ok {
		if parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(ts)); err == nil {
			return parsed.UTC()
		}
		if parsed, err := time.Parse("2006-01-02", strings.TrimSpace(ts)); err == nil {
			return parsed
		}
	}

	match := dateExpr.FindString(s.Text())
	for _, layout := range []string{"2006-01-02", "2 Jan 2006"} {
		if parsed, err := time.Parse(layout, match); err == nil {
			return parsed
		}
	}
	return time.Time{}
}
