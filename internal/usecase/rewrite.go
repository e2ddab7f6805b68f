package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"NewsAutopilot/internal/domain"
	"NewsAutopilot/internal/ports"
)

const defaultRewriteTimeout = 90 * time.Second

// RewriteFailure records why one article of a batch was not rewritten.
type RewriteFailure struct {
	Article domain.Article
	Err     error
}

// BatchResult is the outcome of a sequential rewrite batch.
type BatchResult struct {
	Rewritten []domain.Article
	Failures  []RewriteFailure
}

// Summary renders the "N succeeded, M failed" line shown to users.
func (r BatchResult) Summary() string {
	return fmt.Sprintf("%d succeeded, %d failed", len(r.Rewritten), len(r.Failures))
}

// RewriteDeps wires the rewrite orchestrator.
type RewriteDeps struct {
	Ledger   ports.CreditLedger
	Rewriter ports.Rewriter
	Articles ports.ArticleStore
	Defaults ports.RewriteOptions
	Timeout  time.Duration
	Observer ports.Observer
	Logger   *slog.Logger
	Now      func() time.Time
}

// RewriteOrchestrator requests AI rewrites one article at a time, guarding
// each call with a credit check and compensating failed calls.
type RewriteOrchestrator struct {
	ledger   ports.CreditLedger
	rewriter ports.Rewriter
	articles ports.ArticleStore
	defaults ports.RewriteOptions
	timeout  time.Duration
	observer ports.Observer
	logger   *slog.Logger
	now      func() time.Time
}

// NewRewriteOrchestrator constructs the orchestrator.
func NewRewriteOrchestrator(deps RewriteDeps) *RewriteOrchestrator {
	timeout := deps.Timeout
	if timeout <= 0 {
		timeout = defaultRewriteTimeout
	}
	return &RewriteOrchestrator{
		ledger:   deps.Ledger,
		rewriter: deps.Rewriter,
		articles: deps.Articles,
		defaults: deps.Defaults,
		timeout:  timeout,
		observer: observerOrNop(deps.Observer),
		logger:   loggerOrDiscard(deps.Logger),
		now:      clockOrNow(deps.Now),
	}
}

// RewriteBatch rewrites articles strictly in input order. A failing item is
// recorded and the batch moves on.
func (o *RewriteOrchestrator) RewriteBatch(ctx context.Context, articles []domain.Article, userID string) BatchResult {
	var result BatchResult
	for _, article := range articles {
		if err := ctx.Err(); err != nil {
			result.Failures = append(result.Failures, RewriteFailure{Article: article, Err: err})
			continue
		}
		rewritten, err := o.RewriteOne(ctx, article, userID, o.defaults)
		if err != nil {
			result.Failures = append(result.Failures, RewriteFailure{Article: article, Err: err})
			continue
		}
		result.Rewritten = append(result.Rewritten, rewritten)
	}

	o.logger.Info("rewrite batch finished", "user_id", userID, "summary", result.Summary())
	return result
}

// RewriteOne rewrites a single article. Rewriting an already rewritten
// article is allowed and overwrites the previous content.
func (o *RewriteOrchestrator) RewriteOne(ctx context.Context, article domain.Article, userID string, opts ports.RewriteOptions) (domain.Article, error) {
	if o.rewriter == nil {
		return article, fmt.Errorf("rewriter is not configured")
	}

	check, err := o.ledger.Check(ctx, userID, domain.ResourceArticles, 1)
	if err != nil {
		return article, fmt.Errorf("check credits for %s: %w", userID, err)
	}
	if !check.HasCredits {
		o.observer.RewriteFinished(domain.ErrInsufficientCredits)
		return article, domain.NewError(domain.KindInsufficientCredits,
			fmt.Sprintf("article %s needs 1 credit, %d available", article.ID, check.CurrentCredits), nil)
	}

	opts.UserID = userID
	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	result, err := o.rewriter.Rewrite(callCtx, article, opts)
	cancel()
	if err != nil {
		err = classifyCollaboratorError(callCtx, "rewrite article "+article.ID, err)
		if mayHaveCharged(err) {
			o.compensate(ctx, article, userID, err)
		}
		o.observer.RewriteFinished(err)
		return article, err
	}

	updated := mergeRewrite(article, result)
	updated.UpdatedAt = o.now()
	if updated.Status == domain.StatusPending || updated.Status == domain.StatusFailed {
		updated.Status = domain.StatusProcessed
	}
	if o.articles != nil {
		if err := o.articles.UpdateArticle(ctx, updated); err != nil {
			o.observer.RewriteFinished(err)
			return article, fmt.Errorf("store rewritten article %s: %w", article.ID, err)
		}
	}

	o.observer.RewriteFinished(nil)
	o.logger.Debug("article rewritten", "article_id", article.ID, "user_id", userID)
	return updated, nil
}

// mayHaveCharged reports whether a failed rewrite could have taken a credit.
// Rejections for missing credits or invalid input never charge.
func mayHaveCharged(err error) bool {
	if errors.Is(err, domain.ErrNotCharged) {
		return false
	}
	switch domain.KindOf(err) {
	case domain.KindInsufficientCredits, domain.KindValidation:
		return false
	}
	return true
}

// compensate refunds the credit held for a failed rewrite. The refund uses a
// context detached from cancellation so a timed-out call is still refunded.
func (o *RewriteOrchestrator) compensate(ctx context.Context, article domain.Article, userID string, cause error) {
	restoreCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.timeout)
	defer cancel()

	if err := o.ledger.Restore(restoreCtx, userID, domain.ResourceArticles, 1); err != nil {
		o.logger.Error("credit restore failed",
			"article_id", article.ID,
			"user_id", userID,
			"cause", cause,
			"error", err)
		return
	}
	o.observer.CreditRestored(domain.ResourceArticles)
	o.logger.Warn("rewrite failed, credit restored", "article_id", article.ID, "user_id", userID, "error", cause)
}

func mergeRewrite(original, result domain.Article) domain.Article {
	merged := original
	merged.RewrittenContent = result.RewrittenContent
	if merged.RewrittenContent == "" {
		merged.RewrittenContent = result.Content
	}
	if result.Title != "" {
		merged.Title = result.Title
	}
	return merged
}

func classifyCollaboratorError(ctx context.Context, op string, err error) error {
	var classified *domain.Error
	if errors.As(err, &classified) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return domain.NewError(domain.KindTimeout, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
