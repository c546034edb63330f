package monitoring

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordLogin(t *testing.T) {
	before := testutil.ToFloat64(loginsTotal.WithLabelValues(LoginTypeRegistration, UserTypeUser))
	RecordLogin(LoginTypeRegistration, UserTypeUser)
	after := testutil.ToFloat64(loginsTotal.WithLabelValues(LoginTypeRegistration, UserTypeUser))
	assert.Equal(t, before+1, after)
}

func TestRecordFailedLogin(t *testing.T) {
	before := testutil.ToFloat64(failedLoginsTotal.WithLabelValues(UserTypeAdmin))
	RecordFailedLogin(UserTypeAdmin)
	RecordFailedLogin(UserTypeAdmin)
	assert.Equal(t, before+2, testutil.ToFloat64(failedLoginsTotal.WithLabelValues(UserTypeAdmin)))
}

func TestRecordStep(t *testing.T) {
	before := testutil.ToFloat64(provisioningStepsTotal.WithLabelValues("gcp", "namespace", StepFailed))
	RecordStep("gcp", "namespace", StepFailed)
	assert.Equal(t, before+1, testutil.ToFloat64(provisioningStepsTotal.WithLabelValues("gcp", "namespace", StepFailed)))
}

func TestSetInstances(t *testing.T) {
	SetInstances(7)
	assert.Equal(t, float64(7), testutil.ToFloat64(instancesGauge))
}

func TestObservers_NoPanic(t *testing.T) {
	ObservePipeline("k8s", true, 1.5)
	ObservePipeline("k8s", false, 0.2)
	ObserveReadinessWait(ReadinessTimeout, 720)
	RecordTeamDeleted(DeleteReasonInactive)
}

func TestRecordSpanError_NoPanic(t *testing.T) {
	_, span := StartTeamSpan(context.Background(), "test", "alpha", "t-alpha")
	defer span.End()

	RecordSpanError(span, nil)
	RecordSpanError(span, errors.New("boom"))
}
