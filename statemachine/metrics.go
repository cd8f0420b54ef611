package statemachine

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// dispatchTotal counts finished dispatches by machine type, outcome kind and reject reason.
	dispatchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "statemachine_dispatch_total",
		Help: "Total number of dispatched events by machine, outcome kind and reject reason",
	}, []string{"machine", "kind", "reason"})

	// transitionTotal counts committed transitions.
	transitionTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "statemachine_transitions_total",
		Help: "Total number of committed transitions by machine, from_state, to_state and event",
	}, []string{"machine", "from_state", "to_state", "event"})

	dispatchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "statemachine_dispatch_duration_seconds",
		Help:    "Duration of a dispatch by machine and outcome kind",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
	}, []string{"machine", "kind"})

	guardDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "statemachine_guard_duration_seconds",
		Help:    "Duration of guard evaluation by machine, guard and result",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 1},
	}, []string{"machine", "guard", "result"})

	actionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "statemachine_action_duration_seconds",
		Help:    "Duration of action execution by machine, action and outcome",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
	}, []string{"machine", "action", "outcome"})

	// mailboxDepth tracks queued, not yet started jobs per coordinator.
	mailboxDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "statemachine_mailbox_depth",
		Help: "Number of queued dispatch jobs by coordinator",
	}, []string{"coordinator"})

	// listenerQueueDepth tracks outcomes waiting to be delivered to listeners.
	listenerQueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "statemachine_listener_queue_depth",
		Help: "Number of outcomes waiting for listener delivery by coordinator",
	}, []string{"coordinator"})
)

func sanitizeLabel(value string) string {
	if value == "" {
		return "none"
	}

	return value
}

func successLabel(err error) string {
	if err != nil {
		return "error"
	}

	return "success"
}

// guardResultLabel reports "pass", "fail" or "error" for a guard evaluation.
func guardResultLabel(pass bool, err error) string {
	switch {
	case err != nil:
		return "error"
	case pass:
		return "pass"
	default:
		return "fail"
	}
}

// MetricsListener records each outcome in the package's prometheus collectors.
// Machines and coordinators already record durations; add this listener to
// also count outcomes and committed transitions.
type MetricsListener struct{}

func (MetricsListener) Observe(_ context.Context, o Outcome) {
	recordOutcome(o)
}

func recordOutcome(o Outcome) {
	reason := ""
	if o.Kind == Rejected {
		reason = o.Reason.String()
	}

	machine := sanitizeLabel(o.Machine)

	dispatchTotal.WithLabelValues(machine, o.Kind.String(), sanitizeLabel(reason)).Inc()

	if o.Kind == Committed {
		transitionTotal.WithLabelValues(
			machine,
			string(o.Transition.From),
			string(o.Transition.To),
			string(o.Transition.Event),
		).Inc()
	}
}
