package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"NewsAutopilot/internal/domain"
	"NewsAutopilot/internal/usecase"
)

type processRequest struct {
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
	Order  string `json:"order"`
}

type articleView struct {
	ID           string     `json:"id"`
	SourceID     string     `json:"source_id"`
	Title        string     `json:"title"`
	URL          string     `json:"url"`
	Status       string     `json:"status"`
	Rewritten    bool       `json:"rewritten"`
	PublishedURL string     `json:"published_url,omitempty"`
	ScheduledFor *time.Time `json:"scheduled_for,omitempty"`
}

func newArticleView(a domain.Article) articleView {
	return articleView{
		ID:           a.ID,
		SourceID:     a.SourceID,
		Title:        a.Title,
		URL:          a.URL,
		Status:       string(a.Status),
		Rewritten:    a.Rewritten(),
		PublishedURL: a.PublishedURL,
		ScheduledFor: a.ScheduledFor,
	}
}

type processView struct {
	Created     int           `json:"created"`
	Existing    int           `json:"existing"`
	Processed   int           `json:"processed"`
	Failed      int           `json:"failed"`
	Validation  string        `json:"validation_status"`
	Message     string        `json:"validation_message,omitempty"`
	Suggestions []string      `json:"suggestions,omitempty"`
	Articles    []articleView `json:"articles"`
}

func newProcessView(res usecase.ProcessResult) processView {
	view := processView{
		Created:     res.Created,
		Existing:    res.Existing,
		Processed:   res.Processed,
		Failed:      res.Failed,
		Validation:  string(res.Validation.Status),
		Message:     res.Validation.Message,
		Suggestions: res.Validation.Suggestions,
		Articles:    make([]articleView, 0, len(res.Articles)),
	}
	for _, a := range res.Articles {
		view.Articles = append(view.Articles, newArticleView(a))
	}
	return view
}

type failureView struct {
	ArticleID string `json:"article_id"`
	Title     string `json:"title"`
	Kind      string `json:"kind"`
	Error     string `json:"error"`
}

func newFailureViews(failures []usecase.RewriteFailure) []failureView {
	out := make([]failureView, 0, len(failures))
	for _, f := range failures {
		out = append(out, failureView{
			ArticleID: f.Article.ID,
			Title:     f.Article.Title,
			Kind:      string(domain.KindOf(f.Err)),
			Error:     f.Err.Error(),
		})
	}
	return out
}

type batchView struct {
	Summary   string        `json:"summary"`
	Rewritten []articleView `json:"rewritten"`
	Failures  []failureView `json:"failures"`
}

func newBatchView(res usecase.BatchResult) batchView {
	view := batchView{
		Summary:   res.Summary(),
		Rewritten: make([]articleView, 0, len(res.Rewritten)),
		Failures:  newFailureViews(res.Failures),
	}
	for _, a := range res.Rewritten {
		view.Rewritten = append(view.Rewritten, newArticleView(a))
	}
	return view
}

type publishView struct {
	Article      articleView `json:"article"`
	SiteID       string      `json:"site_id"`
	PublishedURL string      `json:"published_url"`
	RemotePostID string      `json:"remote_post_id,omitempty"`
	Fallback     bool        `json:"fallback"`
}

func newPublishView(res usecase.PublishResult) publishView {
	return publishView{
		Article:      newArticleView(res.Article),
		SiteID:       res.SiteID,
		PublishedURL: res.PublishedURL,
		RemotePostID: res.RemotePostID,
		Fallback:     res.Fallback,
	}
}

type runView struct {
	ConfigID        string        `json:"config_id"`
	SourceID        string        `json:"source_id,omitempty"`
	Skipped         bool          `json:"skipped"`
	State           string        `json:"state"`
	Summary         string        `json:"summary"`
	Process         processView   `json:"process"`
	Rewrite         batchView     `json:"rewrite"`
	Published       []publishView `json:"published"`
	PublishFailures []failureView `json:"publish_failures"`
	Error           string        `json:"error,omitempty"`
	Kind            string        `json:"kind,omitempty"`
}

func newRunView(report usecase.RunReport) runView {
	view := runView{
		ConfigID:        report.ConfigID,
		SourceID:        report.SourceID,
		Skipped:         report.Skipped,
		State:           string(report.State),
		Summary:         report.Summary(),
		Process:         newProcessView(report.Process),
		Rewrite:         newBatchView(report.Rewrite),
		Published:       make([]publishView, 0, len(report.Published)),
		PublishFailures: newFailureViews(report.PublishFailures),
	}
	for _, p := range report.Published {
		view.Published = append(view.Published, newPublishView(p))
	}
	if report.Err != nil {
		view.Error = report.Err.Error()
		view.Kind = string(domain.KindOf(report.Err))
	}
	return view
}

func (s *Server) processSource(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if err := decodeOptional(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Limit == 0 {
		req.Limit = usecase.DefaultBatchSize
	}
	res, err := s.deps.Processor.ProcessSource(r.Context(), chi.URLParam(r, "id"), usecase.ProcessOptions{
		BatchSize: req.Limit,
		Offset:    req.Offset,
		SortOrder: req.Order,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newProcessView(res))
}

func (s *Server) fetchMore(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.Processor.FetchMore(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newProcessView(res))
}

func (s *Server) resetSource(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Counter.Reset(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) executeMonitoring(w http.ResponseWriter, r *http.Request) {
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))
	report, err := s.deps.Runner.Execute(r.Context(), chi.URLParam(r, "id"), force)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newRunView(report))
}

func (s *Server) executeDue(w http.ResponseWriter, r *http.Request) {
	reports, err := s.deps.Runner.ExecuteDue(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	views := make([]runView, 0, len(reports))
	for _, report := range reports {
		views = append(views, newRunView(report))
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": views})
}

func (s *Server) nextRun(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.deps.Monitoring.GetMonitoring(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	status := usecase.NextRun(cfg, s.now())
	resp := map[string]any{"state": status.State}
	if status.State == domain.RunScheduled {
		resp["at"] = status.At.UTC().Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}

type rewriteRequest struct {
	UserID     string   `json:"user_id"`
	ArticleIDs []string `json:"article_ids"`
}

func (s *Server) rewriteArticles(w http.ResponseWriter, r *http.Request) {
	var req rewriteRequest
	if err := decodeRequired(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.UserID == "" || len(req.ArticleIDs) == 0 {
		s.writeError(w, r, domain.NewError(domain.KindValidation, "user_id and article_ids are required", nil))
		return
	}

	articles := make([]domain.Article, 0, len(req.ArticleIDs))
	for _, id := range req.ArticleIDs {
		article, err := s.deps.Articles.GetArticle(r.Context(), id)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		articles = append(articles, article)
	}

	res := s.deps.Rewriter.RewriteBatch(r.Context(), articles, req.UserID)
	writeJSON(w, http.StatusOK, newBatchView(res))
}

type publishRequest struct {
	SiteID     string   `json:"site_id"`
	AuthorID   string   `json:"author_id"`
	Categories []string `json:"categories"`
	Tags       []string `json:"tags"`
}

func (s *Server) publishArticle(w http.ResponseWriter, r *http.Request) {
	var req publishRequest
	if err := decodeOptional(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	article, err := s.deps.Articles.GetArticle(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.deps.Publisher.Publish(r.Context(), article, usecase.PublishOptions{
		SiteID:   req.SiteID,
		Metadata: domain.PublishDefaults{AuthorID: req.AuthorID, Categories: req.Categories, Tags: req.Tags},
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPublishView(res))
}

type scheduleRequest struct {
	SiteID    string `json:"site_id"`
	PublishAt string `json:"publish_at"`
}

func (s *Server) scheduleArticle(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if err := decodeRequired(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	when, err := time.Parse(time.RFC3339, req.PublishAt)
	if err != nil {
		s.writeError(w, r, domain.NewError(domain.KindInvalidScheduleTime, "publish_at must be RFC3339", err))
		return
	}
	article, err := s.deps.Articles.GetArticle(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	scheduled, err := s.deps.Publisher.SchedulePublish(r.Context(), article, when.UTC(), req.SiteID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, newArticleView(scheduled))
}

type issueView struct {
	Kind      string `json:"kind"`
	Entity    string `json:"entity"`
	ID        string `json:"id"`
	Reference string `json:"reference"`
	Message   string `json:"message"`
}

func (s *Server) validateIntegrity(w http.ResponseWriter, r *http.Request) {
	report, err := s.deps.Integrity.ValidateStore(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	issues := make([]issueView, 0, len(report.Issues))
	for _, is := range report.Issues {
		issues = append(issues, issueView{
			Kind:      string(is.Kind),
			Entity:    is.Entity,
			ID:        is.ID,
			Reference: is.Reference,
			Message:   is.Message,
		})
	}
	healed := report.HealedGroups
	if healed == nil {
		healed = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"issues": issues, "healed_groups": healed})
}

func decodeRequired(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return domain.NewError(domain.KindValidation, "invalid request body", err)
	}
	return nil
}

// decodeOptional accepts an empty body.
func decodeOptional(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return domain.NewError(domain.KindValidation, "invalid request body", err)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	kind := domain.KindOf(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "kind", kind, "error", err)
	} else {
		s.logger.Warn("request rejected", "path", r.URL.Path, "kind", kind, "error", err)
	}
	writeJSON(w, status, map[string]string{"kind": string(kind), "error": err.Error()})
}

// StatusFor maps an error kind to an HTTP status code.
func StatusFor(err error) int {
	switch domain.KindOf(err) {
	case domain.KindValidation, domain.KindInvalidScheduleTime:
		return http.StatusBadRequest
	case domain.KindRecordNotFound:
		return http.StatusNotFound
	case domain.KindInsufficientCredits:
		return http.StatusPaymentRequired
	case domain.KindDestinationUnresolved, domain.KindIncompleteDestinationConfig, domain.KindMalformedFeed:
		return http.StatusUnprocessableEntity
	case domain.KindIntegrityOrphan:
		return http.StatusConflict
	case domain.KindOriginUnreachable, domain.KindUnauthorized, domain.KindForbidden,
		domain.KindNotFound, domain.KindServerError:
		return http.StatusBadGateway
	case domain.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
