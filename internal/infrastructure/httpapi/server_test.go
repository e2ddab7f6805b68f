package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsAutopilot/internal/domain"
	"NewsAutopilot/internal/ports"
	"NewsAutopilot/internal/usecase"
)

var now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type stubProcessor struct {
	opts usecase.ProcessOptions
	err  error
}

func (p *stubProcessor) ProcessSource(_ context.Context, sourceID string, opts usecase.ProcessOptions) (usecase.ProcessResult, error) {
	p.opts = opts
	if p.err != nil {
		return usecase.ProcessResult{}, p.err
	}
	return usecase.ProcessResult{
		Created:    1,
		Processed:  1,
		Validation: domain.Validation{Status: domain.ValidationValid},
		Articles:   []domain.Article{{ID: "a-1", SourceID: sourceID, Status: domain.StatusPending}},
	}, nil
}

func (p *stubProcessor) FetchMore(_ context.Context, sourceID string) (usecase.ProcessResult, error) {
	return usecase.ProcessResult{Existing: 2, Validation: domain.Validation{Status: domain.ValidationWarning}}, nil
}

type stubCounter struct{ reset []string }

func (c *stubCounter) Reset(_ context.Context, sourceID string) error {
	c.reset = append(c.reset, sourceID)
	return nil
}

type stubRunner struct{ force bool }

func (r *stubRunner) Execute(_ context.Context, configID string, force bool) (usecase.RunReport, error) {
	r.force = force
	if configID == "missing" {
		return usecase.RunReport{}, domain.NewError(domain.KindRecordNotFound, "monitoring missing", nil)
	}
	return usecase.RunReport{ConfigID: configID, State: domain.RunReady}, nil
}

func (r *stubRunner) ExecuteDue(context.Context) ([]usecase.RunReport, error) {
	return []usecase.RunReport{
		{ConfigID: "m-1", State: domain.RunReady},
		{ConfigID: "m-2", Err: domain.NewError(domain.KindOriginUnreachable, "down", nil)},
	}, nil
}

type stubRewriter struct{ got []domain.Article }

func (s *stubRewriter) RewriteBatch(_ context.Context, articles []domain.Article, _ string) usecase.BatchResult {
	s.got = articles
	res := usecase.BatchResult{}
	for _, a := range articles {
		a.RewrittenContent = "new"
		res.Rewritten = append(res.Rewritten, a)
	}
	return res
}

type stubPublisher struct {
	opts usecase.PublishOptions
	when time.Time
	err  error
}

func (p *stubPublisher) Publish(_ context.Context, a domain.Article, opts usecase.PublishOptions) (usecase.PublishResult, error) {
	p.opts = opts
	if p.err != nil {
		return usecase.PublishResult{}, p.err
	}
	a.Status = domain.StatusPublished
	return usecase.PublishResult{Article: a, SiteID: "site-1", PublishedURL: "https://blog.example.com/?p=1"}, nil
}

func (p *stubPublisher) SchedulePublish(_ context.Context, a domain.Article, when time.Time, _ string) (domain.Article, error) {
	p.when = when
	a.Status = domain.StatusScheduled
	a.ScheduledFor = &when
	return a, nil
}

type stubIntegrity struct{}

func (stubIntegrity) ValidateStore(context.Context) (usecase.Report, error) {
	return usecase.Report{Issues: []usecase.Issue{{Kind: domain.KindIntegrityOrphan, Entity: "monitoring", ID: "m-1", Reference: "src-x"}}}, nil
}

type stubStore struct {
	ports.ArticleStore
	ports.MonitoringRegistry
}

func (stubStore) GetArticle(_ context.Context, id string) (domain.Article, error) {
	if id == "missing" {
		return domain.Article{}, domain.NewError(domain.KindRecordNotFound, "article missing", nil)
	}
	return domain.Article{ID: id, Title: "T", Status: domain.StatusPending}, nil
}

func (stubStore) GetMonitoring(_ context.Context, id string) (domain.MonitoringConfig, error) {
	last := now.Add(-10 * time.Minute)
	return domain.MonitoringConfig{ID: id, Active: true, IntervalMinutes: 60, LastCheck: &last}, nil
}

type fixture struct {
	srv       *httptest.Server
	processor *stubProcessor
	counter   *stubCounter
	runner    *stubRunner
	rewriter  *stubRewriter
	publisher *stubPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		processor: &stubProcessor{},
		counter:   &stubCounter{},
		runner:    &stubRunner{},
		rewriter:  &stubRewriter{},
		publisher: &stubPublisher{},
	}
	server := NewServer(Deps{
		Processor:  f.processor,
		Counter:    f.counter,
		Runner:     f.runner,
		Rewriter:   f.rewriter,
		Publisher:  f.publisher,
		Integrity:  stubIntegrity{},
		Monitoring: stubStore{},
		Articles:   stubStore{},
		Metrics:    http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("metrics")) }),
		Now:        func() time.Time { return now },
	})
	f.srv = httptest.NewServer(server.Handler())
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, f.srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := f.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	if resp.StatusCode != http.StatusNoContent && resp.Header.Get("Content-Type") == "application/json" {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp.StatusCode, out
}

func TestSourceRoutes(t *testing.T) {
	f := newFixture(t)

	status, body := f.do(t, http.MethodPost, "/sources/src-1/process", `{"limit":5,"offset":10,"order":"asc"}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), body["created"])
	assert.Equal(t, usecase.ProcessOptions{BatchSize: 5, Offset: 10, SortOrder: "asc"}, f.processor.opts)

	status, _ = f.do(t, http.MethodPost, "/sources/src-1/process", "")
	assert.Equal(t, http.StatusOK, status)

	status, body = f.do(t, http.MethodPost, "/sources/src-1/fetch-more", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "warning", body["validation_status"])

	status, _ = f.do(t, http.MethodPost, "/sources/src-1/reset", "")
	assert.Equal(t, http.StatusNoContent, status)
	assert.Equal(t, []string{"src-1"}, f.counter.reset)

	f.processor.err = domain.NewError(domain.KindMalformedFeed, "not xml", nil)
	status, body = f.do(t, http.MethodPost, "/sources/src-1/process", "")
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "malformed-feed", body["kind"])
}

func TestMonitoringRoutes(t *testing.T) {
	f := newFixture(t)

	status, body := f.do(t, http.MethodPost, "/monitoring/m-1/execute?force=true", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "m-1", body["config_id"])
	assert.True(t, f.runner.force)

	status, _ = f.do(t, http.MethodPost, "/monitoring/missing/execute", "")
	assert.Equal(t, http.StatusNotFound, status)

	status, body = f.do(t, http.MethodPost, "/monitoring/execute-due", "")
	assert.Equal(t, http.StatusOK, status)
	runs := body["runs"].([]any)
	require.Len(t, runs, 2)
	assert.Equal(t, "origin-unreachable", runs[1].(map[string]any)["kind"])

	status, body = f.do(t, http.MethodGet, "/monitoring/m-1/next-run", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "scheduled", body["state"])
	assert.Equal(t, "2026-03-10T12:50:00Z", body["at"])
}

func TestArticleRoutes(t *testing.T) {
	f := newFixture(t)

	status, body := f.do(t, http.MethodPost, "/articles/rewrite", `{"user_id":"u-1","article_ids":["a-1","a-2"]}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "2 succeeded, 0 failed", body["summary"])
	assert.Len(t, f.rewriter.got, 2)

	status, _ = f.do(t, http.MethodPost, "/articles/rewrite", `{"user_id":"u-1","article_ids":["missing"]}`)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = f.do(t, http.MethodPost, "/articles/rewrite", `{"article_ids":["a-1"]}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = f.do(t, http.MethodPost, "/articles/a-1/publish", `{"site_id":"site-1","tags":["go"]}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "https://blog.example.com/?p=1", body["published_url"])
	assert.Equal(t, "site-1", f.publisher.opts.SiteID)
	assert.Equal(t, []string{"go"}, f.publisher.opts.Metadata.Tags)

	f.publisher.err = domain.NewError(domain.KindDestinationUnresolved, "no site", nil)
	status, _ = f.do(t, http.MethodPost, "/articles/a-1/publish", "")
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	status, body = f.do(t, http.MethodPost, "/articles/a-1/schedule", `{"publish_at":"2026-03-11T12:00:00+03:00"}`)
	assert.Equal(t, http.StatusAccepted, status)
	assert.Equal(t, "scheduled", body["status"])
	assert.Equal(t, time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC), f.publisher.when)

	status, body = f.do(t, http.MethodPost, "/articles/a-1/schedule", `{"publish_at":"tomorrow"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid-schedule-time", body["kind"])
}

func TestOperationalRoutes(t *testing.T) {
	f := newFixture(t)

	status, body := f.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])

	status, body = f.do(t, http.MethodPost, "/integrity/validate", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Len(t, body["issues"], 1)
	assert.Empty(t, body["healed_groups"])

	resp, err := f.srv.Client().Get(f.srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusPaymentRequired, StatusFor(domain.ErrInsufficientCredits))
	assert.Equal(t, http.StatusGatewayTimeout, StatusFor(domain.ErrTimeout))
	assert.Equal(t, http.StatusBadGateway, StatusFor(domain.ErrUnauthorized))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(assert.AnError))
}
