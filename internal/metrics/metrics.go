// Package metrics exposes the monitor's quota, cost and alert state for
// Prometheus scraping. All methods are safe on a nil *Recorder.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "claude_monitor"

type Recorder struct {
	registry *prometheus.Registry

	sessionsUsed        prometheus.Gauge
	sessionsLeft        prometheus.Gauge
	costUSD             prometheus.Gauge
	tokenCeiling        prometheus.Gauge
	activeSessionTokens prometheus.Gauge

	fetchFailures   prometheus.Counter
	alerts          *prometheus.CounterVec
	reconciliations *prometheus.CounterVec
}

// New registers every collector on a private registry so tests and
// multiple recorders never collide on the default one.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),

		sessionsUsed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_used",
			Help:      "Usage blocks counted in the current billing period",
		}),
		sessionsLeft: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_left",
			Help:      "Remaining session quota in the current billing period",
		}),
		costUSD: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cost_usd",
			Help:      "Cost of completed sessions in the current billing period",
		}),
		tokenCeiling: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "token_ceiling",
			Help:      "Highest token count observed in a single session",
		}),
		activeSessionTokens: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_session_tokens",
			Help:      "Tokens used by the active session, 0 when idle",
		}),

		fetchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_failures_total",
			Help:      "Failed ccusage invocations",
		}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_total",
			Help:      "Alerts raised for the active session",
		}, []string{"kind"}),
		reconciliations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconciliations_total",
			Help:      "Completed reconciliation runs",
		}, []string{"strategy"}),
	}

	r.registry.MustRegister(
		r.sessionsUsed, r.sessionsLeft,
		r.costUSD, r.tokenCeiling, r.activeSessionTokens,
		r.fetchFailures, r.alerts, r.reconciliations,
	)
	return r
}

func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

func (r *Recorder) SetPeriod(used, left int, costUSD float64) {
	if r == nil {
		return
	}
	r.sessionsUsed.Set(float64(used))
	r.sessionsLeft.Set(float64(left))
	r.costUSD.Set(costUSD)
}

func (r *Recorder) SetTokenCeiling(tokens int64) {
	if r == nil {
		return
	}
	r.tokenCeiling.Set(float64(tokens))
}

func (r *Recorder) SetActiveTokens(tokens int64) {
	if r == nil {
		return
	}
	r.activeSessionTokens.Set(float64(tokens))
}

func (r *Recorder) FetchFailed() {
	if r == nil {
		return
	}
	r.fetchFailures.Inc()
}

func (r *Recorder) Alert(kind string) {
	if r == nil {
		return
	}
	r.alerts.WithLabelValues(kind).Inc()
}

func (r *Recorder) Reconciled(strategy string) {
	if r == nil {
		return
	}
	r.reconciliations.WithLabelValues(strategy).Inc()
}
