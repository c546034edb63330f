package errors

import (
	"errors"
	"fmt"
	"net"
	"strings"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
)

// Control-plane errors. Every error returned by the cluster gateway wraps exactly one of
// these so callers can branch with errors.Is without inspecting API machinery types.

// ErrNotFound indicates the requested object does not exist. For team lookups this is
// usually a valid outcome ("no instance yet") rather than a failure.
var ErrNotFound = errors.New("not found")

// ErrAlreadyExists indicates a create collided with an existing object. Benign when a
// provisioning step is retried.
var ErrAlreadyExists = errors.New("already exists")

// ErrForbidden indicates the control plane refused the request (RBAC, admission).
var ErrForbidden = errors.New("forbidden")

// ErrConflict indicates an optimistic concurrency conflict.
var ErrConflict = errors.New("conflict")

// ErrUnavailable indicates the control plane could not be reached or answered with a
// transient server side failure.
var ErrUnavailable = errors.New("control plane unavailable")

// ErrUnknown is used for every control-plane failure that does not fit another class.
var ErrUnknown = errors.New("unknown control plane error")

// Team lifecycle and admission errors.

// ErrInvalidTeamName indicates a team name that cannot be used for a namespace.
var ErrInvalidTeamName = errors.New("invalid team name")

// ErrUnauthorized indicates a bad passcode or admin credential.
var ErrUnauthorized = errors.New("unauthorized")

// ErrCapacityExceeded indicates the configured maximum instance count has been reached.
var ErrCapacityExceeded = errors.New("maximum instance count reached")

// ErrInvalidAccessPassword indicates the shared access password did not match.
var ErrInvalidAccessPassword = errors.New("invalid access password")

// ErrInvalidHMAC indicates the anti-automation HMAC did not match the team name.
var ErrInvalidHMAC = errors.New("invalid hmac")

// ErrUnexpectedPodCount indicates a selector expected to match a single pod matched zero
// or several.
var ErrUnexpectedPodCount = errors.New("unexpected number of pods")

// ErrTimeout indicates the readiness poll exhausted its attempt budget.
var ErrTimeout = errors.New("timed out waiting for readiness")

// ErrNoInstance indicates the team has no workload deployment.
var ErrNoInstance = errors.New("team has no instance")

// ErrAlreadyProvisioned indicates the team namespace already exists, so a create request
// raced with (or repeated) an earlier one.
var ErrAlreadyProvisioned = errors.New("team already provisioned")

// ErrProvisioningIncomplete indicates at least one provisioning step failed. The team may
// be partially provisioned.
var ErrProvisioningIncomplete = errors.New("failed to create instance")

// controlPlaneClasses lists the gateway classes in the order Class reports them.
var controlPlaneClasses = []error{
	ErrNotFound,
	ErrAlreadyExists,
	ErrForbidden,
	ErrConflict,
	ErrUnavailable,
	ErrUnknown,
}

// Classify maps an error returned by the Kubernetes client into the control-plane
// taxonomy. The returned error wraps both the class and the original error. Errors that
// already carry a class are returned unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}

	if Class(err) != nil {
		return err
	}

	return fmt.Errorf("%w: %w", classFor(err), err)
}

// Class returns the control-plane sentinel carried by err, or nil.
func Class(err error) error {
	if err == nil {
		return nil
	}
	for _, class := range controlPlaneClasses {
		if errors.Is(err, class) {
			return class
		}
	}
	return nil
}

func classFor(err error) error {
	switch {
	case apierrors.IsNotFound(err):
		return ErrNotFound
	case apierrors.IsAlreadyExists(err):
		return ErrAlreadyExists
	case apierrors.IsForbidden(err), apierrors.IsUnauthorized(err):
		return ErrForbidden
	case apierrors.IsConflict(err):
		return ErrConflict
	case apierrors.IsServerTimeout(err),
		apierrors.IsTimeout(err),
		apierrors.IsTooManyRequests(err),
		apierrors.IsServiceUnavailable(err),
		apierrors.IsInternalError(err):
		return ErrUnavailable
	case IsTransientConnection(err), IsTransientKubernetesAPI(err):
		return ErrUnavailable
	default:
		return ErrUnknown
	}
}

// IsTransientConnection checks if an error is a transient connection error.
// This includes network timeouts, connection refused, DNS failures, and similar issues.
func IsTransientConnection(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrUnavailable) {
		return true
	}

	errStr := strings.ToLower(err.Error())

	transientPatterns := []string{
		"connection refused",
		"connection reset",
		"connection timeout",
		"context deadline exceeded",
		"i/o timeout",
		"no such host",
		"network is unreachable",
		"temporary failure",
		"dial tcp",
		"connection closed",
		"broken pipe",
		"eof",
	}

	for _, pattern := range transientPatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

// IsTransientKubernetesAPI checks if an error looks like a transient Kubernetes API
// error that is not reported through a typed status.
func IsTransientKubernetesAPI(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())

	transientPatterns := []string{
		"rate limit",
		"too many requests",
		"service unavailable",
		"internal server error",
		"the server is currently unable to handle the request",
	}

	for _, pattern := range transientPatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

// IsCRDMissingError checks if an error indicates that a CRD is not installed.
func IsCRDMissingError(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "no matches for kind") ||
		strings.Contains(errStr, "no kind is registered for the type") ||
		strings.Contains(errStr, "could not find the requested resource")
}
