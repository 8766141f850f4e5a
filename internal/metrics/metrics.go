// Package metrics exposes assignment counters in Prometheus format.
//
// A Collector owns its registry so several instances (one per test, or one
// per server) never collide on registration. All Record methods are safe on
// a nil *Collector, which lets callers run without metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"medannotate/internal/workitem"
)

const namespace = "medannotate"

// Collector holds the assignment metrics.
type Collector struct {
	registry *prometheus.Registry

	claims         *prometheus.CounterVec
	resumptions    *prometheus.CounterVec
	noWork         *prometheus.CounterVec
	conflicts      *prometheus.CounterVec
	finalizations  *prometheus.CounterVec
	sessionsEnded  *prometheus.CounterVec
	keywordActions *prometheus.CounterVec
	reclaimed      prometheus.Counter
	requestLatency *prometheus.HistogramVec
}

// NewCollector creates a collector backed by a fresh registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		claims: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "claims_total",
			Help:      "Items newly claimed, by track.",
		}, []string{"track"}),
		resumptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resumptions_total",
			Help:      "Work requests answered with the annotator's existing claim, by track.",
		}, []string{"track"}),
		noWork: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "no_work_total",
			Help:      "Work requests that found no eligible item, by track.",
		}, []string{"track"}),
		conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "claim_conflicts_total",
			Help:      "Claims abandoned after losing every compare-and-set attempt, by track.",
		}, []string{"track"}),
		finalizations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "finalizations_total",
			Help:      "Items finalized, by track.",
		}, []string{"track"}),
		sessionsEnded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_ended_total",
			Help:      "Sessions ended, by track and outcome (kept or released).",
		}, []string{"track", "outcome"}),
		keywordActions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "keyword_actions_total",
			Help:      "Expert keyword transitions applied, by action.",
		}, []string{"action"}),
		reclaimed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "leases_reclaimed_total",
			Help:      "Claims released because their lease expired.",
		}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_work_seconds",
			Help:      "Latency of work requests, by track.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"track"}),
	}

	c.registry.MustRegister(
		c.claims,
		c.resumptions,
		c.noWork,
		c.conflicts,
		c.finalizations,
		c.sessionsEnded,
		c.keywordActions,
		c.reclaimed,
		c.requestLatency,
	)
	return c
}

// Registry returns the registry backing the collector.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler serves the collector's metrics.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// RecordClaim counts a new claim.
func (c *Collector) RecordClaim(track workitem.Track) {
	if c == nil {
		return
	}
	c.claims.WithLabelValues(string(track)).Inc()
}

// RecordResumption counts a request answered with an existing claim.
func (c *Collector) RecordResumption(track workitem.Track) {
	if c == nil {
		return
	}
	c.resumptions.WithLabelValues(string(track)).Inc()
}

// RecordNoWork counts a request that found nothing to claim.
func (c *Collector) RecordNoWork(track workitem.Track) {
	if c == nil {
		return
	}
	c.noWork.WithLabelValues(string(track)).Inc()
}

// RecordConflict counts a claim that lost every race.
func (c *Collector) RecordConflict(track workitem.Track) {
	if c == nil {
		return
	}
	c.conflicts.WithLabelValues(string(track)).Inc()
}

// RecordFinalize counts a finalized item.
func (c *Collector) RecordFinalize(track workitem.Track) {
	if c == nil {
		return
	}
	c.finalizations.WithLabelValues(string(track)).Inc()
}

// RecordSessionEnd counts an ended session. kept is true when the claim
// survives the session.
func (c *Collector) RecordSessionEnd(track workitem.Track, kept bool) {
	if c == nil {
		return
	}
	outcome := "released"
	if kept {
		outcome = "kept"
	}
	c.sessionsEnded.WithLabelValues(string(track), outcome).Inc()
}

// RecordKeywordAction counts an applied keyword transition.
func (c *Collector) RecordKeywordAction(action string) {
	if c == nil {
		return
	}
	c.keywordActions.WithLabelValues(action).Inc()
}

// RecordReclaimed counts claims released by lease expiry.
func (c *Collector) RecordReclaimed(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.reclaimed.Add(float64(n))
}

// ObserveRequest records the latency of a work request.
func (c *Collector) ObserveRequest(track workitem.Track, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.requestLatency.WithLabelValues(string(track)).Observe(elapsed.Seconds())
}
