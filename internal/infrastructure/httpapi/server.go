package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"NewsAutopilot/internal/domain"
	"NewsAutopilot/internal/ports"
	"NewsAutopilot/internal/usecase"
)

// Processor runs source fetches.
type Processor interface {
	ProcessSource(ctx context.Context, sourceID string, opts usecase.ProcessOptions) (usecase.ProcessResult, error)
	FetchMore(ctx context.Context, sourceID string) (usecase.ProcessResult, error)
}

// CounterResetter rewinds manual pagination of a source.
type CounterResetter interface {
	Reset(ctx context.Context, sourceID string) error
}

// Runner executes monitoring configs.
type Runner interface {
	Execute(ctx context.Context, configID string, force bool) (usecase.RunReport, error)
	ExecuteDue(ctx context.Context) ([]usecase.RunReport, error)
}

// BatchRewriter rewrites a list of articles for one user.
type BatchRewriter interface {
	RewriteBatch(ctx context.Context, articles []domain.Article, userID string) usecase.BatchResult
}

// ArticlePublisher publishes or schedules one article.
type ArticlePublisher interface {
	Publish(ctx context.Context, article domain.Article, opts usecase.PublishOptions) (usecase.PublishResult, error)
	SchedulePublish(ctx context.Context, article domain.Article, whenUTC time.Time, siteID string) (domain.Article, error)
}

// IntegrityChecker validates the stored snapshot against the cache.
type IntegrityChecker interface {
	ValidateStore(ctx context.Context) (usecase.Report, error)
}

// Deps wires the handlers. Metrics is optional.
type Deps struct {
	Processor  Processor
	Counter    CounterResetter
	Runner     Runner
	Rewriter   BatchRewriter
	Publisher  ArticlePublisher
	Integrity  IntegrityChecker
	Monitoring ports.MonitoringRegistry
	Articles   ports.ArticleStore
	Metrics    http.Handler
	Logger     *slog.Logger
	Now        func() time.Time
}

// Server exposes the pipeline triggers over HTTP.
type Server struct {
	deps   Deps
	logger *slog.Logger
	now    func() time.Time
	router chi.Router
}

// NewServer builds the router.
func NewServer(deps Deps) *Server {
	s := &Server{deps: deps, logger: deps.Logger, now: deps.Now}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	s.router = s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	mux := chi.NewRouter()

	mux.Use(middleware.Recoverer)
	mux.Use(middleware.RequestID)
	mux.Use(middleware.RealIP)
	mux.Use(s.requestLogger)

	mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.deps.Metrics != nil {
		mux.Method(http.MethodGet, "/metrics", s.deps.Metrics)
	}

	mux.Route("/sources/{id}", func(r chi.Router) {
		r.Post("/process", s.processSource)
		r.Post("/fetch-more", s.fetchMore)
		r.Post("/reset", s.resetSource)
	})

	mux.Route("/monitoring", func(r chi.Router) {
		r.Post("/execute-due", s.executeDue)
		r.Post("/{id}/execute", s.executeMonitoring)
		r.Get("/{id}/next-run", s.nextRun)
	})

	mux.Route("/articles", func(r chi.Router) {
		r.Post("/rewrite", s.rewriteArticles)
		r.Post("/{id}/publish", s.publishArticle)
		r.Post("/{id}/schedule", s.scheduleArticle)
	})

	mux.Post("/integrity/validate", s.validateIntegrity)

	return mux
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
