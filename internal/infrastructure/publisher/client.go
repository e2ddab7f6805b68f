package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"NewsAutopilot/internal/domain"
	"NewsAutopilot/internal/ports"
)

const (
	// DefaultTimeout bounds a single publish attempt.
	DefaultTimeout    = 45 * time.Second
	defaultMaxRetries = 3
	defaultBaseDelay  = 500 * time.Millisecond
	defaultMaxDelay   = 10 * time.Second
)

// Options tune the publish client.
type Options struct {
	Endpoint   string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client posts articles to the publishing service that forwards them to
// the destination sites. Only answers that prove the post was not created
// are retried: 429, and 503 carrying Retry-After. Every request carries an
// Idempotency-Key derived from the article so the service can collapse
// duplicates.
type Client struct {
	endpoint   string
	apiKey     string
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	http       *http.Client
	logger     *slog.Logger
}

var _ ports.Publisher = (*Client)(nil)

// NewClient applies defaults to opts.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	c := &Client{
		endpoint:   strings.TrimRight(opts.Endpoint, "/"),
		apiKey:     opts.APIKey,
		maxRetries: opts.MaxRetries,
		baseDelay:  opts.BaseDelay,
		maxDelay:   opts.MaxDelay,
		http:       httpClient,
		logger:     opts.Logger,
	}
	if c.maxRetries < 0 {
		c.maxRetries = 0
	} else if opts.MaxRetries == 0 {
		c.maxRetries = defaultMaxRetries
	}
	if c.baseDelay <= 0 {
		c.baseDelay = defaultBaseDelay
	}
	if c.maxDelay <= 0 {
		c.maxDelay = defaultMaxDelay
	}
	if c.logger == nil {
		c.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return c
}

type sitePayload struct {
	URL      string `json:"url"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type publishPayload struct {
	ArticleID  string      `json:"article_id"`
	Site       sitePayload `json:"site"`
	Title      string      `json:"title"`
	Content    string      `json:"content"`
	AuthorID   string      `json:"author_id,omitempty"`
	Categories []string    `json:"categories,omitempty"`
	Tags       []string    `json:"tags,omitempty"`
	PublishAt  string      `json:"publish_at,omitempty"`
}

func newPayload(req ports.PublishRequest) publishPayload {
	return publishPayload{
		ArticleID:  req.ArticleID,
		Site:       sitePayload{URL: req.Site.URL, Username: req.Site.Username, Password: req.Site.Secret},
		Title:      req.Title,
		Content:    req.Content,
		AuthorID:   req.Metadata.AuthorID,
		Categories: req.Metadata.Categories,
		Tags:       req.Metadata.Tags,
	}
}

// Publish posts the article immediately.
func (c *Client) Publish(ctx context.Context, req ports.PublishRequest) (ports.PublishResponse, error) {
	var resp struct {
		PostURL string `json:"post_url"`
		PostID  any    `json:"post_id"`
	}
	if err := c.do(ctx, "/publish", req.ArticleID, newPayload(req), &resp); err != nil {
		return ports.PublishResponse{}, err
	}
	return ports.PublishResponse{PostURL: resp.PostURL, PostID: postID(resp.PostID)}, nil
}

// Schedule asks the service to publish at req.When.
func (c *Client) Schedule(ctx context.Context, req ports.ScheduleRequest) error {
	payload := newPayload(req.PublishRequest)
	payload.PublishAt = req.When.UTC().Format(time.RFC3339)
	return c.do(ctx, "/schedule", req.ArticleID+"@"+payload.PublishAt, payload, nil)
}

func (c *Client) do(ctx context.Context, path, idempotencyKey string, payload any, v any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	url := c.endpoint + path

	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("new request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}
		if idempotencyKey != "" {
			req.Header.Set("Idempotency-Key", idempotencyKey)
		}

		// A transport error may hide a post that was already created.
		resp, err := c.http.Do(req)
		if err != nil {
			if isTimeout(err) {
				return domain.NewError(domain.KindTimeout, "publish "+path, err)
			}
			return domain.NewError(domain.KindServerError, "publish "+path, err)
		}

		respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		_ = resp.Body.Close()
		if readErr != nil {
			return domain.NewError(domain.KindServerError, "read publish response", readErr)
		}
		if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
			if v == nil || len(respBody) == 0 {
				return nil
			}
			if err := json.Unmarshal(respBody, v); err != nil {
				return domain.NewError(domain.KindServerError, "decode publish response", err)
			}
			return nil
		}

		if retryable(resp) && attempt < c.maxRetries {
			delay := c.retryDelay(attempt+1, resp.Header.Get("Retry-After"))
			c.logger.Warn("publish retry", "path", path, "status", resp.StatusCode, "attempt", attempt+1, "delay", delay)
			if waitErr := sleepContext(ctx, delay); waitErr != nil {
				return domain.NewError(domain.KindTimeout, "publish "+path, waitErr)
			}
			continue
		}

		return domain.NewError(kindForStatus(resp.StatusCode),
			fmt.Sprintf("publish %s: status=%d message=%s", path, resp.StatusCode, errorMessage(respBody)), nil)
	}
}

// retryable reports answers where the service refused the request before
// acting on it.
func retryable(resp *http.Response) bool {
	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		return true
	case http.StatusServiceUnavailable:
		return resp.Header.Get("Retry-After") != ""
	}
	return false
}

func kindForStatus(code int) domain.Kind {
	switch {
	case code == http.StatusUnauthorized:
		return domain.KindUnauthorized
	case code == http.StatusForbidden:
		return domain.KindForbidden
	case code == http.StatusNotFound:
		return domain.KindNotFound
	case code == http.StatusRequestTimeout, code == http.StatusGatewayTimeout:
		return domain.KindTimeout
	case code == http.StatusBadRequest, code == http.StatusUnprocessableEntity:
		return domain.KindValidation
	default:
		return domain.KindServerError
	}
}

func errorMessage(body []byte) string {
	var parsed struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(body, &parsed) == nil {
		if parsed.Message != "" {
			return parsed.Message
		}
		if parsed.Error != "" {
			return parsed.Error
		}
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}

// postID accepts numeric and string ids.
func postID(raw any) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatInt(int64(v), 10)
	default:
		return fmt.Sprint(v)
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}

func (c *Client) retryDelay(attempt int, retryAfterHeader string) time.Duration {
	if retryAfter := parseRetryAfterSeconds(retryAfterHeader); retryAfter > 0 {
		if retryAfter > c.maxDelay {
			return c.maxDelay
		}
		return retryAfter
	}
	delay := c.baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= c.maxDelay {
			return c.maxDelay
		}
	}
	return delay
}

func parseRetryAfterSeconds(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

func sleepContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
