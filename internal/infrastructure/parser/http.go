package parser

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"NewsAutopilot/internal/domain"
)

const (
	userAgent       = "NewsAutopilot/1.0 (+https://github.com/newsautopilot)"
	maxDocumentSize = 8 << 20
	defaultTimeout  = 30 * time.Second
)

func defaultClient(client *http.Client) *http.Client {
	if client == nil {
		return &http.Client{Timeout: defaultTimeout}
	}
	return client
}

// fetchBody performs a GET and returns the body (size-limited) and content
// type. Non-2xx statuses are origin-unreachable; transport errors are
// returned as is for the caller to classify.
func fetchBody(ctx context.Context, client *http.Client, rawURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", domain.NewError(domain.KindValidation, "build request for "+rawURL, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/feed+json, text/html;q=0.9, */*;q=0.5")

	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("request %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", domain.NewError(domain.KindOriginUnreachable,
			fmt.Sprintf("%s returned %s", rawURL, resp.Status), nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", rawURL, err)
	}
	return body, resp.Header.Get("Content-Type"), nil
}

// page applies offset/limit to an ordered slice.
func page(items []domain.Candidate, offset, limit int) []domain.Candidate {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
