package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"NewsAutopilot/internal/domain"
	"NewsAutopilot/internal/ports"
)

var fixedNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

type memoryStore struct {
	mu         sync.Mutex
	seq        int
	sources    map[string]domain.Source
	sites      map[string]domain.Site
	monitoring map[string]domain.MonitoringConfig
	articles   map[string]domain.Article
	counts     map[string]int
	failCreate map[string]bool
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		sources:    map[string]domain.Source{},
		sites:      map[string]domain.Site{},
		monitoring: map[string]domain.MonitoringConfig{},
		articles:   map[string]domain.Article{},
		counts:     map[string]int{},
		failCreate: map[string]bool{},
	}
}

var (
	_ ports.SourceRegistry     = (*memoryStore)(nil)
	_ ports.SiteRegistry       = (*memoryStore)(nil)
	_ ports.MonitoringRegistry = (*memoryStore)(nil)
	_ ports.ArticleStore       = (*memoryStore)(nil)
	_ ports.CounterStore       = (*memoryStore)(nil)
)

func (m *memoryStore) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq)
}

func notFound(entity, id string) error {
	return domain.NewError(domain.KindRecordNotFound, entity+" "+id, nil)
}

func (m *memoryStore) CreateSource(_ context.Context, s domain.Source) (domain.Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == "" {
		s.ID = m.nextID("src")
	}
	m.sources[s.ID] = s
	return s, nil
}

func (m *memoryStore) GetSource(_ context.Context, id string) (domain.Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sources[id]
	if !ok {
		return domain.Source{}, notFound("source", id)
	}
	return s, nil
}

func (m *memoryStore) ListSources(_ context.Context, userID string) ([]domain.Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Source
	for _, s := range m.sources {
		if userID == "" || s.UserID == userID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memoryStore) UpdateSource(_ context.Context, s domain.Source) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sources[s.ID]; !ok {
		return notFound("source", s.ID)
	}
	m.sources[s.ID] = s
	return nil
}

func (m *memoryStore) DeleteSource(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sources, id)
	return nil
}

func (m *memoryStore) CreateSite(_ context.Context, s domain.Site) (domain.Site, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == "" {
		s.ID = m.nextID("site")
	}
	m.sites[s.ID] = s
	return s, nil
}

func (m *memoryStore) GetSite(_ context.Context, id string) (domain.Site, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sites[id]
	if !ok {
		return domain.Site{}, notFound("site", id)
	}
	return s, nil
}

func (m *memoryStore) ListSites(_ context.Context, userID string) ([]domain.Site, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Site
	for _, s := range m.sites {
		if userID == "" || s.UserID == userID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memoryStore) DeleteSite(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sites, id)
	return nil
}

func (m *memoryStore) CreateMonitoring(_ context.Context, c domain.MonitoringConfig) (domain.MonitoringConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == "" {
		c.ID = m.nextID("mon")
	}
	m.monitoring[c.ID] = c
	return c, nil
}

func (m *memoryStore) GetMonitoring(_ context.Context, id string) (domain.MonitoringConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.monitoring[id]
	if !ok {
		return domain.MonitoringConfig{}, notFound("monitoring", id)
	}
	return c, nil
}

func (m *memoryStore) ListMonitoring(_ context.Context, userID string) ([]domain.MonitoringConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.MonitoringConfig
	for _, c := range m.monitoring {
		if userID == "" || c.UserID == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memoryStore) UpdateMonitoring(_ context.Context, c domain.MonitoringConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.monitoring[c.ID] = c
	return nil
}

func (m *memoryStore) DeleteMonitoring(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.monitoring, id)
	return nil
}

func (m *memoryStore) CreateArticle(_ context.Context, a domain.Article) (domain.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreate[a.Identity()] {
		return domain.Article{}, errors.New("disk full")
	}
	if a.ID == "" {
		a.ID = m.nextID("art")
	}
	m.articles[a.ID] = a
	return a, nil
}

func (m *memoryStore) GetArticle(_ context.Context, id string) (domain.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.articles[id]
	if !ok {
		return domain.Article{}, notFound("article", id)
	}
	return a, nil
}

func (m *memoryStore) FindByIdentity(_ context.Context, sourceID, identity string) (domain.Article, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.articles {
		if a.SourceID == sourceID && a.Identity() == identity {
			return a, true, nil
		}
	}
	return domain.Article{}, false, nil
}

func (m *memoryStore) ListBySource(_ context.Context, sourceID string) ([]domain.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Article
	for _, a := range m.articles {
		if a.SourceID == sourceID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memoryStore) UpdateArticle(_ context.Context, a domain.Article) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.articles[a.ID]; !ok {
		return notFound("article", a.ID)
	}
	m.articles[a.ID] = a
	return nil
}

func (m *memoryStore) SetStatus(_ context.Context, id string, status domain.ArticleStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.articles[id]
	if !ok {
		return notFound("article", id)
	}
	a.Status = status
	m.articles[id] = a
	return nil
}

func (m *memoryStore) Count(_ context.Context, sourceID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[sourceID], nil
}

func (m *memoryStore) Increment(_ context.Context, sourceID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[sourceID]++
	return m.counts[sourceID], nil
}

func (m *memoryStore) Reset(_ context.Context, sourceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.counts, sourceID)
	return nil
}

// fakeOrigin serves a fixed newest-first item list and records requests.
type fakeOrigin struct {
	items    []domain.Candidate
	err      error
	requests []ports.FetchRequest
}

func (f *fakeOrigin) Fetch(_ context.Context, _ domain.Source, req ports.FetchRequest) ([]domain.Candidate, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	if req.Offset >= len(f.items) {
		return nil, nil
	}
	end := req.Offset + req.Limit
	if end > len(f.items) {
		end = len(f.items)
	}
	return append([]domain.Candidate(nil), f.items[req.Offset:end]...), nil
}

func candidates(n int) []domain.Candidate {
	out := make([]domain.Candidate, n)
	for i := range out {
		out[i] = domain.Candidate{
			GUID:        fmt.Sprintf("guid-%02d", i),
			Title:       fmt.Sprintf("Item %d", i),
			URL:         fmt.Sprintf("https://news.example.com/%d", i),
			Content:     "body",
			PublishedAt: fixedNow.Add(-time.Duration(i) * time.Hour),
		}
	}
	return out
}

// fakeLedger is an in-memory ledger honouring the never-negative rule.
type fakeLedger struct {
	mu       sync.Mutex
	balances map[string]*domain.CreditBalance
	restores int
}

func newFakeLedger(userID string, quota int) *fakeLedger {
	return &fakeLedger{balances: map[string]*domain.CreditBalance{
		userID: {UserID: userID, Resource: domain.ResourceArticles, Quota: quota},
	}}
}

func (l *fakeLedger) balance(userID string) *domain.CreditBalance {
	b, ok := l.balances[userID]
	if !ok {
		b = &domain.CreditBalance{UserID: userID, Resource: domain.ResourceArticles}
		l.balances[userID] = b
	}
	return b
}

func (l *fakeLedger) Available(userID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balance(userID).Available()
}

func (l *fakeLedger) Check(_ context.Context, userID string, _ domain.ResourceType, qty int) (domain.CreditCheck, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	available := l.balance(userID).Available()
	return domain.CreditCheck{HasCredits: available >= qty, CurrentCredits: available}, nil
}

func (l *fakeLedger) Consume(_ context.Context, userID string, _ domain.ResourceType, qty int) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	b := l.balance(userID)
	if qty > b.Available() {
		return b.Available(), domain.ErrInsufficientCredits
	}
	b.Consumed += qty
	return b.Available(), nil
}

func (l *fakeLedger) Restore(_ context.Context, userID string, _ domain.ResourceType, qty int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	b := l.balance(userID)
	l.restores++
	b.Consumed -= qty
	if b.Consumed < 0 {
		b.Consumed = 0
	}
	return nil
}

// fakeRewriter consumes a credit like the real collaborator, then fails for
// the titles listed in failOn.
type fakeRewriter struct {
	ledger *fakeLedger
	failOn map[string]error
	calls  []string
}

func (r *fakeRewriter) Rewrite(ctx context.Context, article domain.Article, opts ports.RewriteOptions) (domain.Article, error) {
	r.calls = append(r.calls, article.ID)
	if _, err := r.ledger.Consume(ctx, opts.UserID, domain.ResourceArticles, 1); err != nil {
		return domain.Article{}, err
	}
	if err := r.failOn[article.Title]; err != nil {
		return domain.Article{}, err
	}
	out := article
	out.RewrittenContent = "rewritten: " + article.Content
	return out, nil
}

type fakePublisher struct {
	err       error
	published []ports.PublishRequest
	scheduled []ports.ScheduleRequest
}

func (p *fakePublisher) Publish(_ context.Context, req ports.PublishRequest) (ports.PublishResponse, error) {
	if p.err != nil {
		return ports.PublishResponse{}, p.err
	}
	p.published = append(p.published, req)
	return ports.PublishResponse{
		PostURL: req.Site.URL + "/?p=" + req.ArticleID,
		PostID:  "post-" + req.ArticleID,
	}, nil
}

func (p *fakePublisher) Schedule(_ context.Context, req ports.ScheduleRequest) error {
	if p.err != nil {
		return p.err
	}
	p.scheduled = append(p.scheduled, req)
	return nil
}

type recordingNotifier struct {
	messages []string
}

func (n *recordingNotifier) PublishDigest(_ context.Context, digest string) error {
	n.messages = append(n.messages, digest)
	return nil
}

func completeSite(id, userID string) domain.Site {
	return domain.Site{
		ID:       id,
		UserID:   userID,
		Name:     "Blog " + id,
		URL:      "https://" + id + ".example.com",
		Username: "editor",
		Secret:   "app-password",
	}
}
