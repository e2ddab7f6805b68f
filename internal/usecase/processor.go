package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"NewsAutopilot/internal/domain"
	"NewsAutopilot/internal/ports"
)

const (
	defaultHealthyThreshold = 3
	defaultEmptyRunLimit    = 2
	defaultFetchTimeout     = 2 * time.Minute
)

// ProcessOptions bounds one processing run.
type ProcessOptions struct {
	BatchSize          int
	Offset             int
	SortOrder          string
	MonitoringConfigID string
}

// ProcessResult summarizes one processing run.
type ProcessResult struct {
	Created    int
	Existing   int
	Processed  int
	Failed     int
	Validation domain.Validation
	// Articles holds the records created by this run, in origin order.
	Articles []domain.Article
}

// ProcessorDeps wires the source processor.
type ProcessorDeps struct {
	Sources  ports.SourceRegistry
	Articles ports.ArticleStore
	Origin   ports.Origin
	Detector ports.TypeDetector
	Counter  *ExecutionCounter
	Cache    *ArticleCache
	Observer ports.Observer
	Logger   *slog.Logger
	Now      func() time.Time

	HealthyThreshold int
	EmptyRunLimit    int
	FetchTimeout     time.Duration
}

// SourceProcessor fetches a bounded page from a source's origin, dedups it
// against stored articles and persists the new ones.
type SourceProcessor struct {
	sources  ports.SourceRegistry
	articles ports.ArticleStore
	origin   ports.Origin
	detector ports.TypeDetector
	counter  *ExecutionCounter
	cache    *ArticleCache
	observer ports.Observer
	logger   *slog.Logger
	now      func() time.Time

	healthyThreshold int
	emptyRunLimit    int
	fetchTimeout     time.Duration
}

// NewSourceProcessor constructs the processor with defaults for unset limits.
func NewSourceProcessor(deps ProcessorDeps) *SourceProcessor {
	p := &SourceProcessor{
		sources:          deps.Sources,
		articles:         deps.Articles,
		origin:           deps.Origin,
		detector:         deps.Detector,
		counter:          deps.Counter,
		cache:            deps.Cache,
		observer:         observerOrNop(deps.Observer),
		logger:           loggerOrDiscard(deps.Logger),
		now:              clockOrNow(deps.Now),
		healthyThreshold: deps.HealthyThreshold,
		emptyRunLimit:    deps.EmptyRunLimit,
		fetchTimeout:     deps.FetchTimeout,
	}
	if p.healthyThreshold <= 0 {
		p.healthyThreshold = defaultHealthyThreshold
	}
	if p.emptyRunLimit <= 0 {
		p.emptyRunLimit = defaultEmptyRunLimit
	}
	if p.fetchTimeout <= 0 {
		p.fetchTimeout = defaultFetchTimeout
	}
	return p
}

// ProcessSource runs one fetch-dedup-store pass. Articles inserted before a
// failure stay stored; reprocessing is idempotent thanks to dedup.
func (p *SourceProcessor) ProcessSource(ctx context.Context, sourceID string, opts ProcessOptions) (ProcessResult, error) {
	if opts.BatchSize <= 0 {
		return ProcessResult{}, domain.NewError(domain.KindValidation, "batch size must be positive", nil)
	}
	if opts.Offset < 0 {
		return ProcessResult{}, domain.NewError(domain.KindValidation, "offset must not be negative", nil)
	}

	source, err := p.sources.GetSource(ctx, sourceID)
	if err != nil {
		return ProcessResult{}, fmt.Errorf("load source %s: %w", sourceID, err)
	}

	if source.Type == "" || source.Type == domain.SourceUnknown {
		source, err = p.detectType(ctx, source)
		if err != nil {
			return ProcessResult{}, err
		}
	}

	p.logger.Debug("process source", "source_id", source.ID, "type", source.Type, "limit", opts.BatchSize, "offset", opts.Offset)

	candidates, err := p.fetch(ctx, source, opts)
	if err != nil {
		if errors.Is(err, domain.ErrMalformedFeed) {
			return p.markMalformed(ctx, source, err)
		}
		p.logger.Error("origin fetch failed", "source_id", source.ID, "kind", domain.KindOf(err), "error", err)
		return ProcessResult{}, err
	}
	if len(candidates) > opts.BatchSize {
		candidates = candidates[:opts.BatchSize]
	}

	result := ProcessResult{}
	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return result, classifyRemoteError(ctx, "store articles", err)
		}
		result.Processed++

		identity := candidate.Identity()
		if identity == "" {
			result.Failed++
			p.logger.Warn("candidate without identity skipped", "source_id", source.ID, "title", candidate.Title)
			continue
		}

		existing, found, err := p.articles.FindByIdentity(ctx, source.ID, identity)
		if err != nil {
			result.Failed++
			p.logger.Warn("dedup lookup failed", "source_id", source.ID, "identity", identity, "error", err)
			continue
		}
		if found {
			result.Existing++
			p.reassociate(ctx, existing, source, opts.MonitoringConfigID)
			continue
		}

		created, err := p.articles.CreateArticle(ctx, p.newArticle(source, candidate, opts.MonitoringConfigID))
		if err != nil {
			result.Failed++
			p.logger.Warn("store article failed", "source_id", source.ID, "identity", identity, "error", err)
			continue
		}
		result.Created++
		result.Articles = append(result.Articles, created)
	}

	result.Validation = p.validate(&source, result.Created+result.Existing)
	p.observer.SourceProcessed(result.Created, result.Existing, result.Validation.Status)

	if err := p.saveCheck(ctx, source, result.Validation); err != nil {
		return result, err
	}
	p.refreshCache(ctx, source.ID)

	p.logger.Info("source processed",
		"source_id", source.ID,
		"created", result.Created,
		"existing", result.Existing,
		"failed", result.Failed,
		"validation", result.Validation.Status)
	return result, nil
}

// FetchMore processes the next page of a source using its execution count.
// The counter only advances when processing succeeds.
func (p *SourceProcessor) FetchMore(ctx context.Context, sourceID string) (ProcessResult, error) {
	if p.counter == nil {
		return ProcessResult{}, fmt.Errorf("execution counter is not configured")
	}
	offset, err := p.counter.NextOffset(ctx, sourceID)
	if err != nil {
		return ProcessResult{}, err
	}

	result, err := p.ProcessSource(ctx, sourceID, ProcessOptions{
		BatchSize: p.counter.BatchSize(),
		Offset:    offset,
		SortOrder: "desc",
	})
	if err != nil {
		return result, err
	}

	if err := p.counter.RecordExecution(ctx, sourceID); err != nil {
		return result, err
	}
	return result, nil
}

func (p *SourceProcessor) detectType(ctx context.Context, source domain.Source) (domain.Source, error) {
	if p.detector == nil {
		source.Type = domain.SourceFeed
		return source, nil
	}
	fetchCtx, cancel := context.WithTimeout(ctx, p.fetchTimeout)
	defer cancel()

	kind, err := p.detector.Detect(fetchCtx, source.URL)
	if err != nil {
		return source, classifyRemoteError(fetchCtx, "detect source type", err)
	}
	source.Type = kind
	if err := p.sources.UpdateSource(ctx, source); err != nil {
		p.logger.Warn("persist detected type failed", "source_id", source.ID, "error", err)
	}
	p.logger.Info("source type detected", "source_id", source.ID, "type", kind)
	return source, nil
}

func (p *SourceProcessor) fetch(ctx context.Context, source domain.Source, opts ProcessOptions) ([]domain.Candidate, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, p.fetchTimeout)
	defer cancel()

	order := opts.SortOrder
	if order == "" {
		order = "desc"
	}
	candidates, err := p.origin.Fetch(fetchCtx, source, ports.FetchRequest{
		Limit:  opts.BatchSize,
		Offset: opts.Offset,
		Order:  order,
		SortBy: "published_at",
	})
	if err != nil {
		return nil, classifyRemoteError(fetchCtx, "fetch origin", err)
	}
	return candidates, nil
}

func (p *SourceProcessor) newArticle(source domain.Source, c domain.Candidate, monitoringID string) domain.Article {
	now := p.now()
	return domain.Article{
		UserID:             source.UserID,
		SourceID:           source.ID,
		MonitoringConfigID: monitoringID,
		GUID:               c.Identity(),
		Title:              c.Title,
		URL:                c.URL,
		Content:            c.Content,
		Status:             domain.StatusPending,
		OriginPublishedAt:  c.PublishedAt,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

func (p *SourceProcessor) reassociate(ctx context.Context, article domain.Article, source domain.Source, monitoringID string) {
	changed := false
	if article.SourceID == "" {
		article.SourceID = source.ID
		changed = true
	}
	if monitoringID != "" && article.MonitoringConfigID == "" {
		article.MonitoringConfigID = monitoringID
		changed = true
	}
	if !changed {
		return
	}
	article.UpdatedAt = p.now()
	if err := p.articles.UpdateArticle(ctx, article); err != nil {
		p.logger.Warn("reassociate article failed", "article_id", article.ID, "error", err)
	}
}

func (p *SourceProcessor) validate(source *domain.Source, usable int) domain.Validation {
	if usable == 0 {
		source.EmptyRuns++
		if source.EmptyRuns >= p.emptyRunLimit {
			return domain.Validation{
				Status:  domain.ValidationInvalid,
				Message: fmt.Sprintf("no usable items in %d consecutive runs", source.EmptyRuns),
				Suggestions: []string{
					"check that the URL still points to a feed or article listing",
					"open the URL in a browser to confirm it is reachable",
					"try the site's /feed or /rss.xml endpoint",
				},
			}
		}
		return domain.Validation{
			Status:      domain.ValidationWarning,
			Message:     "origin returned no usable items",
			Suggestions: []string{"verify that the source publishes new content regularly"},
		}
	}

	source.EmptyRuns = 0
	if usable < p.healthyThreshold {
		return domain.Validation{
			Status:      domain.ValidationWarning,
			Message:     fmt.Sprintf("only %d items found, expected at least %d", usable, p.healthyThreshold),
			Suggestions: []string{"consider a source with more frequent updates"},
		}
	}
	return domain.Validation{Status: domain.ValidationValid, Message: fmt.Sprintf("%d items found", usable)}
}

func (p *SourceProcessor) markMalformed(ctx context.Context, source domain.Source, cause error) (ProcessResult, error) {
	validation := domain.Validation{
		Status:  domain.ValidationInvalid,
		Message: "origin content failed structural checks",
		Suggestions: []string{
			"confirm the URL serves RSS, Atom or JSON Feed",
			"switch the source to website mode if it is a regular page",
		},
	}
	source.ValidationStatus = validation.Status
	source.ValidationMessage = validation.Message
	source.UpdatedAt = p.now()
	if err := p.sources.UpdateSource(ctx, source); err != nil {
		p.logger.Warn("persist validation failed", "source_id", source.ID, "error", err)
	}
	p.observer.SourceProcessed(0, 0, validation.Status)
	p.logger.Error("malformed origin", "source_id", source.ID, "error", cause)
	return ProcessResult{Validation: validation}, cause
}

func (p *SourceProcessor) saveCheck(ctx context.Context, source domain.Source, validation domain.Validation) error {
	now := p.now()
	source.LastCheck = &now
	source.ValidationStatus = validation.Status
	source.ValidationMessage = validation.Message
	source.UpdatedAt = now
	if err := p.sources.UpdateSource(ctx, source); err != nil {
		return fmt.Errorf("update source %s after check: %w", source.ID, err)
	}
	return nil
}

func (p *SourceProcessor) refreshCache(ctx context.Context, sourceID string) {
	if p.cache == nil {
		return
	}
	articles, err := p.articles.ListBySource(ctx, sourceID)
	if err != nil {
		p.logger.Warn("refresh article cache failed", "source_id", sourceID, "error", err)
		return
	}
	p.cache.Put(sourceID, articles)
}

// classifyRemoteError maps transport failures onto the error taxonomy,
// keeping kinds that adapters already assigned.
func classifyRemoteError(ctx context.Context, op string, err error) error {
	var classified *domain.Error
	if errors.As(err, &classified) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return domain.NewError(domain.KindTimeout, op, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.NewError(domain.KindTimeout, op, err)
	}
	return domain.NewError(domain.KindOriginUnreachable, op, err)
}
