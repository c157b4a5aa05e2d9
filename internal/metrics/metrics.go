package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Action outcomes.
const (
	OutcomeUpdated = "updated"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

var (
	ActionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "enricher",
			Name:      "actions_total",
			Help:      "Action executions by outcome",
		},
		[]string{"action", "outcome"},
	)

	ActionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "enricher",
			Name:      "action_duration_seconds",
			Help:      "Action execution duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"action"},
	)

	PollIterationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "enricher",
			Name:      "poll_iterations_total",
			Help:      "Search pages fetched by the batch poller",
		},
		[]string{"action"},
	)

	EventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "enricher",
			Name:      "events_total",
			Help:      "Repository events handled by registration and outcome",
		},
		[]string{"registration", "outcome"},
	)

	GenAIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "enricher",
			Name:      "genai_requests_total",
			Help:      "Requests sent to the AI service",
		},
		[]string{"endpoint", "status"},
	)

	GenAIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "enricher",
			Name:      "genai_request_duration_seconds",
			Help:      "AI service request duration in seconds",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"endpoint"},
	)

	RenditionWaitAttempts = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "enricher",
			Name:      "rendition_wait_attempts",
			Help:      "Status polls needed before a rendition became available",
			Buckets:   prometheus.LinearBuckets(1, 1, 10),
		},
	)
)

var registerOnce sync.Once

// Register registers every collector with the default registry. Call once from main.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			ActionsTotal,
			ActionDuration,
			PollIterationsTotal,
			EventsTotal,
			GenAIRequestsTotal,
			GenAIRequestDuration,
			RenditionWaitAttempts,
		)
	})
}

// Outcome maps an action result onto a metric label.
func Outcome(updated bool, err error) string {
	switch {
	case err != nil:
		return OutcomeFailed
	case updated:
		return OutcomeUpdated
	default:
		return OutcomeSkipped
	}
}
