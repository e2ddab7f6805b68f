package parser

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"NewsAutopilot/internal/domain"
	"NewsAutopilot/internal/ports"
)

// Detector classifies unknown origins as feeds or websites.
type Detector struct {
	client *http.Client
}

var _ ports.TypeDetector = (*Detector)(nil)

// NewDetector wires an HTTP client; nil uses a client with a 30s timeout.
func NewDetector(client *http.Client) *Detector {
	return &Detector{client: defaultClient(client)}
}

// Detect reports feed when the URL serves feed markup or an HTML page that
// advertises one, website for any other HTML page.
func (d *Detector) Detect(ctx context.Context, rawURL string) (domain.SourceType, error) {
	body, contentType, err := fetchBody(ctx, d.client, rawURL)
	if err != nil {
		return domain.SourceUnknown, err
	}
	if looksLikeFeed(contentType, body) {
		return domain.SourceFeed, nil
	}
	if alternateFeedLink(rawURL, body) != "" {
		return domain.SourceFeed, nil
	}
	return domain.SourceWebsite, nil
}

// looksLikeFeed sniffs the content type first, then the leading markup.
func looksLikeFeed(contentType string, body []byte) bool {
	ct := strings.ToLower(contentType)
	if strings.Contains(ct, "rss") || strings.Contains(ct, "atom") || strings.Contains(ct, "feed+json") {
		return true
	}

	head := body
	if len(head) > 2048 {
		head = head[:2048]
	}
	lower := bytes.ToLower(head)
	if bytes.Contains(lower, []byte("<html")) {
		return false
	}
	if bytes.Contains(lower, []byte("<rss")) || bytes.Contains(lower, []byte("<feed")) || bytes.Contains(lower, []byte("<rdf")) {
		return true
	}
	return bytes.Contains(lower, []byte("jsonfeed.org/version"))
}

// alternateFeedLink returns the absolute URL of the first feed advertised
// through <link rel="alternate">, or "".
func alternateFeedLink(base string, body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}

	var found string
	doc.Find("link[rel]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		rel := strings.ToLower(s.AttrOr("rel", ""))
		kind := strings.ToLower(s.AttrOr("type", ""))
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if href == "" || !strings.Contains(rel, "alternate") {
			return true
		}
		if strings.Contains(kind, "rss") || strings.Contains(kind, "atom") || strings.Contains(kind, "json") {
			found = resolveURL(base, href)
			return false
		}
		return true
	})
	return found
}

func resolveURL(base, ref string) string {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	u, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return u.ResolveReference(r).String()
}
