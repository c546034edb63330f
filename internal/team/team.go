// Package team holds the identity of a team and the instance record projected from
// the annotations on its deployments.
package team

import (
	"fmt"
	"regexp"
	"strings"

	"k8s.io/apimachinery/pkg/util/validation"

	"github.com/dc-tec/wrongsecrets-balancer/internal/constants"
)

const (
	// MinNameLength and MaxNameLength bound a team name.
	MinNameLength = 3
	MaxNameLength = 16
)

var namePattern = regexp.MustCompile(`^[a-z0-9]([-a-z0-9])+[a-z0-9]$`)

// ValidateName checks that name is usable as a team name. Valid names are lowercase
// alphanumerics and hyphens, between 3 and 16 characters, and neither start nor end
// with a hyphen, so every derived object name is a valid DNS-1123 label.
func ValidateName(name string) error {
	if len(name) < MinNameLength || len(name) > MaxNameLength {
		return fmt.Errorf("team name %q must be between %d and %d characters", name, MinNameLength, MaxNameLength)
	}
	if !namePattern.MatchString(name) {
		return fmt.Errorf("team name %q must consist of lowercase alphanumerics and '-', starting and ending with an alphanumeric", name)
	}
	if errs := validation.IsDNS1123Label(Namespace(name)); len(errs) > 0 {
		return fmt.Errorf("team name %q is not a valid namespace: %s", name, strings.Join(errs, "; "))
	}
	return nil
}

// Namespace returns the namespace that holds every object of the team.
func Namespace(team string) string {
	return constants.NamespacePrefix + team
}

// FromNamespace returns the team owning namespace, or false if namespace is not a team
// namespace.
func FromNamespace(namespace string) (string, bool) {
	team, ok := strings.CutPrefix(namespace, constants.NamespacePrefix)
	if !ok || team == "" {
		return "", false
	}
	return team, true
}

// WorkloadName returns the name of the challenge deployment and its service.
func WorkloadName(team string) string {
	return Namespace(team) + constants.SuffixWorkload
}

// DesktopName returns the name of the desktop deployment and its service.
func DesktopName(team string) string {
	return Namespace(team) + constants.SuffixDesktop
}

// Labels returns the selector labels shared by a team's deployment, its pods and its
// service.
func Labels(app, team, deploymentContext string) map[string]string {
	return map[string]string{
		constants.LabelApp:               app,
		constants.LabelTeam:              team,
		constants.LabelDeploymentContext: deploymentContext,
	}
}
