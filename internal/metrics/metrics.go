// Package metrics exports run statistics to Prometheus.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/copyleftdev/dotbind/internal/dot"
)

const namespace = "dot"

// Collector observes runs and records Prometheus metrics about them. All
// series are labelled with the method name.
type Collector struct {
	runsStarted  *prometheus.CounterVec
	runsFinished *prometheus.CounterVec
	evaluations  *prometheus.CounterVec
	objective    *prometheus.GaugeVec
	workspace    *prometheus.GaugeVec
	perRun       *prometheus.HistogramVec
	active       prometheus.Gauge

	mu     sync.Mutex
	method string
}

var _ dot.Observer = (*Collector)(nil)

// NewCollector creates the collectors and registers them with reg.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		runsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_started_total",
			Help:      "Runs that passed workspace sizing.",
		}, []string{"method"}),
		runsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_finished_total",
			Help:      "Runs that reached the DONE state.",
		}, []string{"method"}),
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "Evaluator calls requested by DOT.",
		}, []string{"method"}),
		objective: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "final_objective",
			Help:      "Objective of the most recent finished run.",
		}, []string{"method"}),
		workspace: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "workspace_entries",
			Help:      "Workspace entries allocated for the most recent run.",
		}, []string{"method", "kind"}),
		perRun: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "evaluations_per_run",
			Help:      "Evaluator calls per finished run.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}, []string{"method"}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "runs_active",
			Help:      "Runs currently holding a workspace.",
		}),
	}

	for _, col := range []prometheus.Collector{
		c.runsStarted, c.runsFinished, c.evaluations, c.objective, c.workspace, c.perRun, c.active,
	} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// RunStarted implements dot.Observer.
func (c *Collector) RunStarted(info dot.RunInfo) {
	method := info.Method.String()
	c.mu.Lock()
	c.method = method
	c.mu.Unlock()

	c.runsStarted.WithLabelValues(method).Inc()
	c.workspace.WithLabelValues(method, "real").Set(float64(info.Sizing.NRWKMX))
	c.workspace.WithLabelValues(method, "int").Set(float64(info.Sizing.NRIWK))
	c.active.Inc()
}

// Evaluated implements dot.Observer.
func (c *Collector) Evaluated(dot.Evaluation) {
	c.mu.Lock()
	method := c.method
	c.mu.Unlock()
	c.evaluations.WithLabelValues(method).Inc()
}

// RunFinished implements dot.Observer.
func (c *Collector) RunFinished(res *dot.Result) {
	method := res.Method.String()
	c.runsFinished.WithLabelValues(method).Inc()
	c.objective.WithLabelValues(method).Set(res.Objective)
	c.perRun.WithLabelValues(method).Observe(float64(res.Evaluations))
	c.active.Dec()
}

// RunAborted releases the active slot of a run that stopped without
// finishing, for example when a DOT call failed.
func (c *Collector) RunAborted() {
	c.active.Dec()
}
