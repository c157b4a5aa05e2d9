package metrics_test

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/DeafMist/doc-enricher/internal/metrics"
)

func TestOutcome(t *testing.T) {
	require.Equal(t, metrics.OutcomeFailed, metrics.Outcome(true, errors.New("boom")))
	require.Equal(t, metrics.OutcomeUpdated, metrics.Outcome(true, nil))
	require.Equal(t, metrics.OutcomeSkipped, metrics.Outcome(false, nil))
}

func TestRegisterIsIdempotent(t *testing.T) {
	require.NotPanics(t, metrics.Register)
	require.NotPanics(t, metrics.Register)

	before := testutil.ToFloat64(metrics.ActionsTotal.WithLabelValues("summary", metrics.OutcomeUpdated))
	metrics.ActionsTotal.WithLabelValues("summary", metrics.OutcomeUpdated).Inc()
	require.InDelta(t, before+1, testutil.ToFloat64(metrics.ActionsTotal.WithLabelValues("summary", metrics.OutcomeUpdated)), 0.001)
}
