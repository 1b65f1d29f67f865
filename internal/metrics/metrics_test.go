package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	// Register should be safe to call multiple times
	Register()
	Register()

	assert.NotPanics(t, func() {
		IncHTTP("test_endpoint", "200")
		IncBookingUpdate("ok")
		IncGate("committed")
		SetPreviewSessions(2)
	})
}

func TestIncPropagationStep(t *testing.T) {
	before := testutil.ToFloat64(propagationSteps.WithLabelValues("job_sync", "failed"))
	IncPropagationStep("job_sync", "failed")
	after := testutil.ToFloat64(propagationSteps.WithLabelValues("job_sync", "failed"))
	assert.Equal(t, before+1, after)
}
