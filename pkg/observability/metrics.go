package observability

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aretw0/turnstile/pkg/domain"
)

// Outcome label values.
const (
	OutcomeOK                 = "ok"
	OutcomeGenerationFailed   = "generation_failed"
	OutcomeCanceled           = "canceled"
	OutcomeInvariantViolation = "invariant_violation"
	OutcomeError              = "error"
)

// Metrics holds the collectors of one engine.
type Metrics struct {
	Cycles             *prometheus.CounterVec
	ModeInvocations    *prometheus.CounterVec
	GenerationDuration *prometheus.HistogramVec
	TurnsCommitted     *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg.
// A nil registerer leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Cycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "turnstile_cycles_total",
				Help: "Submit cycles by outcome",
			},
			[]string{"outcome"},
		),
		ModeInvocations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "turnstile_mode_invocations_total",
				Help: "Mode handler invocations by mode and outcome",
			},
			[]string{"mode", "outcome"},
		),
		GenerationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "turnstile_generation_duration_seconds",
				Help:    "Duration of mode handler invocations",
				Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"mode"},
		),
		TurnsCommitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "turnstile_turns_committed_total",
				Help: "Turns made durable, by role",
			},
			[]string{"role"},
		),
	}

	if reg != nil {
		reg.MustRegister(m.Cycles, m.ModeInvocations, m.GenerationDuration, m.TurnsCommitted)
	}
	return m
}

// Hooks returns lifecycle hooks that record into m.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnCycleEnd: func(_ context.Context, e *domain.CycleEvent) {
			m.Cycles.WithLabelValues(Outcome(e.Err)).Inc()
		},
		OnModeLeave: func(_ context.Context, e *domain.ModeEvent) {
			mode := string(e.Mode)
			m.ModeInvocations.WithLabelValues(mode, Outcome(e.Err)).Inc()
			m.GenerationDuration.WithLabelValues(mode).Observe(e.Duration.Seconds())
		},
		OnTurnCommitted: func(_ context.Context, e *domain.TurnEvent) {
			m.TurnsCommitted.WithLabelValues(string(e.Turn.Role)).Inc()
		},
	}
}

// Outcome classifies err into a label value.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, context.Canceled):
		return OutcomeCanceled
	case errors.Is(err, domain.ErrGenerationFailed):
		// includes generation timeouts
		return OutcomeGenerationFailed
	case errors.Is(err, context.DeadlineExceeded):
		return OutcomeCanceled
	case errors.Is(err, domain.ErrInvariantViolation):
		return OutcomeInvariantViolation
	}
	return OutcomeError
}
