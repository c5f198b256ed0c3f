package observability_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/turnstile/pkg/domain"
	"github.com/aretw0/turnstile/pkg/observability"
)

func TestMetrics_Hooks(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := observability.NewMetrics(reg)
	hooks := m.Hooks()
	ctx := context.Background()

	hooks.OnModeLeave(ctx, &domain.ModeEvent{Mode: domain.ModeGathering, Duration: 2 * time.Second})
	hooks.OnModeLeave(ctx, &domain.ModeEvent{
		Mode: domain.ModeGenerating,
		Err:  domain.NewGenerationFailed(domain.ModeGenerating, errors.New("quota")),
	})
	hooks.OnTurnCommitted(ctx, &domain.TurnEvent{Turn: domain.NewHumanTurn("hi")})
	hooks.OnTurnCommitted(ctx, &domain.TurnEvent{Turn: domain.NewAssistantTurn("hello")})
	hooks.OnCycleEnd(ctx, &domain.CycleEvent{})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Cycles.WithLabelValues(observability.OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ModeInvocations.WithLabelValues("gathering", observability.OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ModeInvocations.WithLabelValues("generating", observability.OutcomeGenerationFailed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TurnsCommitted.WithLabelValues("human")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TurnsCommitted.WithLabelValues("assistant")))

	count, err := testutil.GatherAndCount(reg, "turnstile_generation_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestNewMetrics_NilRegisterer(t *testing.T) {
	m := observability.NewMetrics(nil)
	m.Hooks().OnCycleEnd(context.Background(), &domain.CycleEvent{Err: context.Canceled})
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Cycles.WithLabelValues(observability.OutcomeCanceled)))
}

func TestOutcome(t *testing.T) {
	timeout := domain.NewGenerationFailed(domain.ModeGathering, context.DeadlineExceeded)

	assert.Equal(t, observability.OutcomeOK, observability.Outcome(nil))
	assert.Equal(t, observability.OutcomeCanceled, observability.Outcome(fmt.Errorf("wrapped: %w", context.Canceled)))
	assert.Equal(t, observability.OutcomeGenerationFailed, observability.Outcome(timeout))
	assert.Equal(t, observability.OutcomeInvariantViolation, observability.Outcome(fmt.Errorf("%w: loop", domain.ErrInvariantViolation)))
	assert.Equal(t, observability.OutcomeError, observability.Outcome(errors.New("disk full")))
}
