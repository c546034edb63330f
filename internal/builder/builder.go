// Package builder constructs the Kubernetes objects of a team instance.
//
// Every function here is pure: the same inputs always yield the same objects and
// nothing talks to the API server.
package builder

import (
	"time"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/utils/ptr"

	"github.com/dc-tec/wrongsecrets-balancer/internal/config"
	"github.com/dc-tec/wrongsecrets-balancer/internal/team"
)

// Instance carries the per-team inputs of the deployment builders.
type Instance struct {
	Team         string
	PasscodeHash string
	// Now stamps the lastRequest annotations.
	Now time.Time
}

// Builder renders team objects for one balancer configuration.
type Builder struct {
	cfg config.Config
}

// New returns a Builder for cfg.
func New(cfg config.Config) *Builder {
	return &Builder{cfg: cfg}
}

// Environment returns the environment the builder renders for.
func (b *Builder) Environment() config.Environment {
	return b.cfg.Environment
}

func (b *Builder) labels(app, teamName string) map[string]string {
	return team.Labels(app, teamName, b.cfg.DeploymentContext)
}

// restrictedContainerSecurityContext is the hardened context of the challenge container.
func restrictedContainerSecurityContext() *corev1.SecurityContext {
	return &corev1.SecurityContext{
		AllowPrivilegeEscalation: ptr.To(false),
		ReadOnlyRootFilesystem:   ptr.To(true),
		RunAsNonRoot:             ptr.To(true),
		Capabilities: &corev1.Capabilities{
			Drop: []corev1.Capability{"ALL"},
		},
		SeccompProfile: &corev1.SeccompProfile{
			Type: corev1.SeccompProfileTypeRuntimeDefault,
		},
	}
}

func runtimeClassName(name string) *string {
	if name == "" {
		return nil
	}
	return ptr.To(name)
}

func copyMap(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
