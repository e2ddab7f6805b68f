package rewrite

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"NewsAutopilot/internal/domain"
	"NewsAutopilot/internal/ports"
)

// DefaultTimeout bounds one rewrite call.
const DefaultTimeout = 90 * time.Second

// Client talks to the AI rewrite service. The service charges the article
// credit itself when the rewrite succeeds.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

var _ ports.Rewriter = (*Client)(nil)

// NewClient creates a reusable HTTP client.
func NewClient(endpoint, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   apiKey,
		http:     &http.Client{Timeout: timeout},
	}
}

type rewriteRequest struct {
	ArticleID string `json:"article_id"`
	UserID    string `json:"user_id"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	URL       string `json:"url,omitempty"`
	Tone      string `json:"tone,omitempty"`
	Style     string `json:"style,omitempty"`
	Language  string `json:"language,omitempty"`
	Length    string `json:"length,omitempty"`
}

type rewriteResponse struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Rewrite sends the article for rewriting and returns it with the new body.
func (c *Client) Rewrite(ctx context.Context, article domain.Article, opts ports.RewriteOptions) (domain.Article, error) {
	payload := rewriteRequest{
		ArticleID: article.ID,
		UserID:    opts.UserID,
		Title:     article.Title,
		Content:   article.Content,
		URL:       article.URL,
		Tone:      opts.Tone,
		Style:     opts.Style,
		Language:  opts.Language,
		Length:    opts.Length,
	}

	var resp rewriteResponse
	if err := c.post(ctx, "/rewrite", payload, &resp); err != nil {
		return domain.Article{}, err
	}
	if strings.TrimSpace(resp.Content) == "" {
		return domain.Article{}, domain.NewError(domain.KindServerError, "rewrite returned empty content", nil)
	}

	if resp.Title != "" {
		article.Title = resp.Title
	}
	article.RewrittenContent = resp.Content
	return article, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, v any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return classifyTransport(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		err := domain.NewError(kindForStatus(resp.StatusCode),
			fmt.Sprintf("rewrite service: %s: %s", resp.Status, strings.TrimSpace(string(snippet))), nil)
		if rejectedBeforeCharge(resp.StatusCode) {
			return domain.NotCharged(err)
		}
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return domain.NewError(domain.KindServerError, "decode rewrite response", err)
	}
	return nil
}

func classifyTransport(err error) error {
	var netErr interface{ Timeout() bool }
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return domain.NewError(domain.KindTimeout, "rewrite service", err)
	}
	return domain.NewError(domain.KindServerError, "rewrite service", err)
}

// rejectedBeforeCharge reports client errors the service answers without
// doing the rewrite. Request timeouts may have been cut off mid-work.
func rejectedBeforeCharge(code int) bool {
	return code >= 400 && code < 500 && code != http.StatusRequestTimeout
}

func kindForStatus(code int) domain.Kind {
	switch code {
	case http.StatusPaymentRequired:
		return domain.KindInsufficientCredits
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return domain.KindValidation
	case http.StatusUnauthorized:
		return domain.KindUnauthorized
	case http.StatusForbidden:
		return domain.KindForbidden
	case http.StatusNotFound:
		return domain.KindNotFound
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return domain.KindTimeout
	default:
		return domain.KindServerError
	}
}
