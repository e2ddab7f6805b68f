package ledger

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

const defaultTimeout = 10 * time.Second

// Client talks to the remote credit ledger service.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

var _ ports.CreditLedger = (*Client)(nil)

// NewClient creates a reusable ledger client. A nil httpClient gets a
// client with a short timeout.
func NewClient(endpoint, apiKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   apiKey,
		http:     httpClient,
	}
}

type creditRequest struct {
	UserID   string `json:"user_id"`
	Resource string `json:"resource_type"`
	Quantity int    `json:"quantity"`
}

// Check asks whether qty credits are available.
func (c *Client) Check(ctx context.Context, userID string, resource domain.ResourceType, qty int) (domain.CreditCheck, error) {
	var resp struct {
		HasCredits     bool `json:"has_credits"`
		CurrentCredits int  `json:"current_credits"`
	}
	if err := c.post(ctx, "/credits/check", creditRequest{UserID: userID, Resource: string(resource), Quantity: qty}, &resp); err != nil {
		return domain.CreditCheck{}, err
	}
	return domain.CreditCheck{HasCredits: resp.HasCredits, CurrentCredits: resp.CurrentCredits}, nil
}

// Consume takes qty credits and returns the remaining balance.
func (c *Client) Consume(ctx context.Context, userID string, resource domain.ResourceType, qty int) (int, error) {
	var resp struct {
		RemainingCredits int `json:"remaining_credits"`
	}
	if err := c.post(ctx, "/credits/consume", creditRequest{UserID: userID, Resource: string(resource), Quantity: qty}, &resp); err != nil {
		return 0, err
	}
	return resp.RemainingCredits, nil
}

// Restore gives qty credits back.
func (c *Client) Restore(ctx context.Context, userID string, resource domain.ResourceType, qty int) error {
	return c.post(ctx, "/credits/restore", creditRequest{UserID: userID, Resource: string(resource), Quantity: qty}, nil)
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
		if errors.Is(err, context.DeadlineExceeded) {
			return domain.NewError(domain.KindTimeout, "ledger "+path, err)
		}
		return domain.NewError(domain.KindServerError, "ledger "+path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return domain.NewError(kindForStatus(resp.StatusCode),
			fmt.Sprintf("ledger %s: %s: %s", path, resp.Status, strings.TrimSpace(string(snippet))), nil)
	}

	if v == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode ledger response: %w", err)
	}
	return nil
}

func kindForStatus(code int) domain.Kind {
	switch {
	case code == http.StatusPaymentRequired, code == http.StatusConflict:
		return domain.KindInsufficientCredits
	case code == http.StatusUnauthorized:
		return domain.KindUnauthorized
	case code == http.StatusForbidden:
		return domain.KindForbidden
	case code == http.StatusNotFound:
		return domain.KindNotFound
	case code == http.StatusBadRequest, code == http.StatusUnprocessableEntity:
		return domain.KindValidation
	case code == http.StatusGatewayTimeout, code == http.StatusRequestTimeout:
		return domain.KindTimeout
	default:
		return domain.KindServerError
	}
}
