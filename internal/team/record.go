package team

import (
	"fmt"
	"strconv"
	"time"

	appsv1 "k8s.io/api/apps/v1"

	"github.com/dc-tec/wrongsecrets-balancer/internal/constants"
)

// ReadableLayout renders lastRequestReadable the way the admin UI has always shown it.
const ReadableLayout = "Mon Jan 02 2006 15:04:05 GMT-0700 (MST)"

// Initial values of the progress annotations.
const (
	InitialChallengesSolved = "0"
	InitialChallenges       = "[]"
)

// InstanceRecord is the typed view of a team deployment. The cluster object is the only
// persisted state, so every field is derived from metadata, annotations or status.
type InstanceRecord struct {
	Team              string
	Name              string
	AvailableReplicas int32
	CreatedAt         time.Time
	// LastRequest is zero when the annotation is missing or malformed.
	LastRequest      time.Time
	PasscodeHash     string
	ChallengesSolved string
	Challenges       string
}

// Ready reports whether the deployment has exactly one available replica.
func (r InstanceRecord) Ready() bool {
	return r.AvailableReplicas == 1
}

// LastActivity returns LastRequest, falling back to the creation time.
func (r InstanceRecord) LastActivity() time.Time {
	if r.LastRequest.IsZero() {
		return r.CreatedAt
	}
	return r.LastRequest
}

// RecordFromDeployment projects a deployment into an InstanceRecord. Deployments with an
// empty team label are reported under constants.IgnoredTeamName.
func RecordFromDeployment(deployment *appsv1.Deployment) InstanceRecord {
	annotations := deployment.GetAnnotations()

	teamName := deployment.GetLabels()[constants.LabelTeam]
	if teamName == "" {
		teamName = constants.IgnoredTeamName
	}

	record := InstanceRecord{
		Team:              teamName,
		Name:              deployment.GetName(),
		AvailableReplicas: deployment.Status.AvailableReplicas,
		CreatedAt:         deployment.GetCreationTimestamp().Time,
		PasscodeHash:      annotations[constants.AnnotationPasscode],
		ChallengesSolved:  annotations[constants.AnnotationChallengesSolved],
		Challenges:        annotations[constants.AnnotationChallenges],
	}
	if lastRequest, err := ParseLastRequest(annotations[constants.AnnotationLastRequest]); err == nil {
		record.LastRequest = lastRequest
	}
	return record
}

// FormatLastRequest encodes t as epoch milliseconds.
func FormatLastRequest(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

// ParseLastRequest decodes an epoch milliseconds annotation value.
func ParseLastRequest(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("empty lastRequest annotation")
	}
	millis, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse lastRequest annotation %q: %w", value, err)
	}
	return time.UnixMilli(millis), nil
}

// FormatReadable renders t for the lastRequestReadable annotation.
func FormatReadable(t time.Time) string {
	return t.Format(ReadableLayout)
}

// ActivityAnnotations returns the annotations written by an activity touch.
func ActivityAnnotations(now time.Time) map[string]string {
	return map[string]string{
		constants.AnnotationLastRequest:         FormatLastRequest(now),
		constants.AnnotationLastRequestReadable: FormatReadable(now),
	}
}

// PasscodeAnnotations returns the annotation written by a passcode reset.
func PasscodeAnnotations(passcodeHash string) map[string]string {
	return map[string]string{
		constants.AnnotationPasscode: passcodeHash,
	}
}

// InitialAnnotations returns the full annotation set of a freshly created deployment.
func InitialAnnotations(now time.Time, passcodeHash string) map[string]string {
	annotations := ActivityAnnotations(now)
	annotations[constants.AnnotationPasscode] = passcodeHash
	annotations[constants.AnnotationChallengesSolved] = InitialChallengesSolved
	annotations[constants.AnnotationChallenges] = InitialChallenges
	return annotations
}
