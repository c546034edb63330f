// Package monitoring holds the balancer's prometheus metrics and OpenTelemetry helpers.
package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"sigs.k8s.io/controller-runtime/pkg/metrics"
)

const metricsNamespace = "wrongsecrets_balancer"

// Login types and user types used as label values on the login counters.
const (
	LoginTypeLogin        = "login"
	LoginTypeRegistration = "registration"

	UserTypeUser  = "user"
	UserTypeAdmin = "admin"
)

// Step outcomes.
const (
	StepSucceeded = "succeeded"
	StepFailed    = "failed"
	StepSkipped   = "skipped"
)

// Team deletion reasons.
const (
	DeleteReasonAdmin    = "admin"
	DeleteReasonCLI      = "cli"
	DeleteReasonInactive = "inactive"
)

// Readiness wait results.
const (
	ReadinessReady     = "ready"
	ReadinessTimeout   = "timeout"
	ReadinessError     = "error"
	ReadinessCancelled = "cancelled"
)

var (
	// The login counter names predate this service and are kept so existing dashboards work.
	loginsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "multijuicer_logins",
			Help: `Number of logins (including registrations, see label "type").`,
		},
		[]string{"type", "userType"},
	)

	failedLoginsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "multijuicer_failed_logins",
			Help: "Number of failed logins, bad password (including admin logins, see label \"userType\").",
		},
		[]string{"userType"},
	)

	provisioningStepsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "provisioning_steps_total",
			Help:      "Total number of provisioning steps executed, by strategy, step and outcome",
		},
		[]string{"strategy", "step", "outcome"},
	)

	provisioningDurationHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "provisioning_duration_seconds",
			Help:      "Duration of team provisioning pipelines in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"strategy", "complete"},
	)

	readinessWaitHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "readiness_wait_seconds",
			Help:      "Time spent waiting for a team workload to become ready",
			Buckets:   []float64{5, 15, 30, 60, 120, 240, 480, 720},
		},
		[]string{"result"},
	)

	teamsDeletedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "teams_deleted_total",
			Help:      "Total number of team namespaces deleted, by reason",
		},
		[]string{"reason"},
	)

	instancesGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "instances",
			Help:      "Number of team workload deployments observed at the last listing",
		},
	)
)

func init() {
	metrics.Registry.MustRegister(
		loginsTotal,
		failedLoginsTotal,
		provisioningStepsTotal,
		provisioningDurationHistogram,
		readinessWaitHistogram,
		teamsDeletedTotal,
		instancesGauge,
	)
}

// RecordLogin counts a successful login or registration.
func RecordLogin(loginType, userType string) {
	loginsTotal.WithLabelValues(loginType, userType).Inc()
}

// RecordFailedLogin counts a rejected passcode.
func RecordFailedLogin(userType string) {
	failedLoginsTotal.WithLabelValues(userType).Inc()
}

// RecordStep counts the outcome of one provisioning step.
func RecordStep(strategy, step, outcome string) {
	provisioningStepsTotal.WithLabelValues(strategy, step, outcome).Inc()
}

// ObservePipeline records the duration of a provisioning pipeline.
func ObservePipeline(strategy string, complete bool, seconds float64) {
	label := "false"
	if complete {
		label = "true"
	}
	provisioningDurationHistogram.WithLabelValues(strategy, label).Observe(seconds)
}

// ObserveReadinessWait records how long a readiness wait took and how it ended.
func ObserveReadinessWait(result string, seconds float64) {
	readinessWaitHistogram.WithLabelValues(result).Observe(seconds)
}

// RecordTeamDeleted counts a team teardown by one of the DeleteReason values.
func RecordTeamDeleted(reason string) {
	teamsDeletedTotal.WithLabelValues(reason).Inc()
}

// SetInstances records the number of workload deployments seen at the last listing.
func SetInstances(n int) {
	instancesGauge.Set(float64(n))
}
