package statemachine

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metric outcome constants.
const (
	outcomeSuccess = "success"
	outcomeError   = "error"
	outcomePartial = "partial"
)

// Metric definitions with appropriate labels.
var (
	// transitionsTotal counts completed transitions, OnError routes included.
	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fsm_transitions_total",
		Help: "Total number of completed transitions by entity, operation, source and target state",
	}, []string{"entity", "operation", "source", "target"})

	// transitionFailuresTotal counts invocations that ended with an error.
	transitionFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fsm_transition_failures_total",
		Help: "Total number of failed transition attempts by entity, operation and failure kind",
	}, []string{"entity", "operation", "kind"})

	// transitionDuration tracks end-to-end invocation time, body included.
	transitionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fsm_transition_duration_seconds",
		Help:    "Duration of transition invocations by entity, operation and outcome",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"entity", "operation", "outcome"})

	// observerCallsTotal counts observer deliveries by outcome.
	observerCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fsm_observer_calls_total",
		Help: "Total number of observer invocations by entity, channel and outcome",
	}, []string{"entity", "channel", "outcome"})
)

// failureKind maps an invocation error to the kind label.
func failureKind(err error) string {
	var te *TransitionError
	if errors.As(err, &te) {
		return te.Kind.String()
	}

	var oe *ObserverError
	if errors.As(err, &oe) {
		return "observer_error"
	}

	var be *BodyError
	if errors.As(err, &be) {
		return "body_error"
	}

	switch {
	case errors.Is(err, ErrNotKeyed):
		return "not_keyed"
	case errors.Is(err, ErrNilEntity):
		return "nil_entity"
	default:
		return "lock_error"
	}
}

func recordObserverCall(entityType string, channel Channel, err error) {
	outcome := outcomeSuccess
	if err != nil {
		outcome = outcomeError
	}

	observerCallsTotal.WithLabelValues(sanitizeEntity(entityType), channel.String(), outcome).Inc()
}

// Helper functions for label sanitization.
func sanitizeEntity(entityType string) string {
	if entityType == "" {
		return "unknown"
	}

	return entityType
}

func sanitizeState(state State) string {
	if state == "" {
		return "none"
	}

	return string(state)
}
