package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"NewsAutopilot/internal/domain"
	"NewsAutopilot/internal/ports"
)

const namespace = "newsautopilot"

// Collector records pipeline outcomes as Prometheus metrics.
type Collector struct {
	registry *prometheus.Registry

	articles        *prometheus.CounterVec
	sourceRuns      *prometheus.CounterVec
	rewrites        *prometheus.CounterVec
	creditsRestored *prometheus.CounterVec
	publishes       *prometheus.CounterVec
	integrityIssues prometheus.Counter
	integrityHealed prometheus.Counter
}

var _ ports.Observer = (*Collector)(nil)

// New registers the pipeline collectors plus Go runtime collectors on a
// private registry.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		articles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "articles_total",
			Help:      "Articles seen while processing sources, by outcome.",
		}, []string{"outcome"}),
		sourceRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_runs_total",
			Help:      "Source processing runs, by resulting validation status.",
		}, []string{"status"}),
		rewrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rewrites_total",
			Help:      "AI rewrite attempts, by result kind.",
		}, []string{"result"}),
		creditsRestored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credits_restored_total",
			Help:      "Compensating credit restores, by resource.",
		}, []string{"resource"}),
		publishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publishes_total",
			Help:      "Publish attempts, by result kind.",
		}, []string{"result"}),
		integrityIssues: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "integrity_issues_total",
			Help:      "Issues reported by integrity validation.",
		}),
		integrityHealed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "integrity_healed_total",
			Help:      "Orphaned cache groups dropped by integrity validation.",
		}),
	}
	c.registry.MustRegister(
		c.articles, c.sourceRuns, c.rewrites, c.creditsRestored, c.publishes,
		c.integrityIssues, c.integrityHealed,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

func (c *Collector) SourceProcessed(created, existing int, status domain.ValidationStatus) {
	c.articles.WithLabelValues("created").Add(float64(created))
	c.articles.WithLabelValues("existing").Add(float64(existing))
	c.sourceRuns.WithLabelValues(string(status)).Inc()
}

func (c *Collector) RewriteFinished(err error) {
	c.rewrites.WithLabelValues(resultLabel(err)).Inc()
}

func (c *Collector) CreditRestored(resource domain.ResourceType) {
	c.creditsRestored.WithLabelValues(string(resource)).Inc()
}

func (c *Collector) PublishFinished(err error) {
	c.publishes.WithLabelValues(resultLabel(err)).Inc()
}

func (c *Collector) IntegrityChecked(issues, healed int) {
	c.integrityIssues.Add(float64(issues))
	c.integrityHealed.Add(float64(healed))
}

func resultLabel(err error) string {
	if err == nil {
		return "success"
	}
	return string(domain.KindOf(err))
}
