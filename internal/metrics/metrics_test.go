package metrics

import (
	"errors"
	"testing"

	"crowdfund/internal/model"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestOutcome(t *testing.T) {
	assert.Equal(t, "ok", Outcome(nil))
	assert.Equal(t, "validation", Outcome(model.ErrContributionZero))
	assert.Equal(t, "not_found", Outcome(model.ErrCampaignNotFound.For(3)))
	assert.Equal(t, "authorization", Outcome(model.ErrNotCampaignOwner.For(3)))
	assert.Equal(t, "state_conflict", Outcome(model.ErrGoalNotReached.For(3)))
	assert.Equal(t, "internal", Outcome(errors.New("boom")))
}

func TestObserveOperation(t *testing.T) {
	before := testutil.ToFloat64(OperationsTotal.WithLabelValues("metrics_test", "ok"))
	ObserveOperation("metrics_test", nil)
	ObserveOperation("metrics_test", nil)
	assert.Equal(t, before+2, testutil.ToFloat64(OperationsTotal.WithLabelValues("metrics_test", "ok")))

	ObserveOperation("metrics_test", model.ErrNoContribution)
	assert.Equal(t, float64(1), testutil.ToFloat64(OperationsTotal.WithLabelValues("metrics_test", "state_conflict")))
}
