package llm

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

	"NewsAutopilot/internal/config"
	"NewsAutopilot/internal/domain"
	"NewsAutopilot/internal/ports"
)

// ChatRewriter implements ports.Rewriter on top of OpenAI-compatible chat
// completion APIs. It charges one article credit before calling the model,
// so it stays the authority on consumption the way the remote rewrite
// service is.
type ChatRewriter struct {
	endpoint     string
	model        string
	apiKey       string
	systemPrompt string
	ledger       ports.CreditLedger
	httpClient   *http.Client
}

var _ ports.Rewriter = (*ChatRewriter)(nil)

// NewChatRewriter builds a rewriter from configuration.
func NewChatRewriter(cfg config.ChatGPTConfig, ledger ports.CreditLedger) *ChatRewriter {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &ChatRewriter{
		endpoint:     cfg.Endpoint,
		model:        cfg.Model,
		apiKey:       cfg.APIKey,
		systemPrompt: cfg.SystemPrompt,
		ledger:       ledger,
		httpClient:   &http.Client{Timeout: timeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Rewrite charges the credit and asks the model for a new version of the
// article body.
func (c *ChatRewriter) Rewrite(ctx context.Context, article domain.Article, opts ports.RewriteOptions) (domain.Article, error) {
	if c == nil {
		return domain.Article{}, fmt.Errorf("chat rewriter is nil")
	}
	if c.apiKey == "" || c.endpoint == "" || c.model == "" {
		return domain.Article{}, domain.NotCharged(domain.NewError(domain.KindValidation, "chatgpt rewriter misconfigured", nil))
	}
	if c.ledger != nil {
		if _, err := c.ledger.Consume(ctx, opts.UserID, domain.ResourceArticles, 1); err != nil {
			return domain.Article{}, domain.NotCharged(err)
		}
	}

	body, err := json.Marshal(map[string]any{
		"model": c.model,
		"messages": []chatMessage{
			{Role: "system", Content: safePrompt(c.systemPrompt)},
			{Role: "user", Content: userPrompt(article, opts)},
		},
	})
	if err != nil {
		return domain.Article{}, fmt.Errorf("marshal chatgpt payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.Article{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		var netErr interface{ Timeout() bool }
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			return domain.Article{}, domain.NewError(domain.KindTimeout, "chatgpt", err)
		}
		return domain.Article{}, domain.NewError(domain.KindServerError, "chatgpt", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return domain.Article{}, domain.NewError(kindForStatus(resp.StatusCode),
			fmt.Sprintf("chatgpt error %s: %s", resp.Status, strings.TrimSpace(string(payload))), nil)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return domain.Article{}, domain.NewError(domain.KindServerError, "decode chatgpt response", err)
	}
	if len(parsed.Choices) == 0 || strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
		return domain.Article{}, domain.NewError(domain.KindServerError, "chatgpt returned no content", nil)
	}

	article.RewrittenContent = strings.TrimSpace(parsed.Choices[0].Message.Content)
	return article, nil
}

func userPrompt(article domain.Article, opts ports.RewriteOptions) string {
	var b strings.Builder
	b.WriteString("Rewrite the following article")
	for _, hint := range []struct{ label, value string }{
		{"tone", opts.Tone},
		{"style", opts.Style},
		{"language", opts.Language},
		{"length", opts.Length},
	} {
		if hint.value != "" {
			fmt.Fprintf(&b, "; %s: %s", hint.label, hint.value)
		}
	}
	b.WriteString(".\n\nTitle: ")
	b.WriteString(article.Title)
	b.WriteString("\n\n")
	b.WriteString(article.Content)
	return b.String()
}

func safePrompt(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "You rewrite news articles into original copy, keeping every fact."
	}
	return prompt
}

func kindForStatus(code int) domain.Kind {
	switch code {
	case http.StatusUnauthorized:
		return domain.KindUnauthorized
	case http.StatusForbidden:
		return domain.KindForbidden
	case http.StatusNotFound:
		return domain.KindNotFound
	default:
		return domain.KindServerError
	}
}
