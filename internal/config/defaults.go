package config

import (
	corev1 "k8s.io/api/core/v1"

	"github.com/dc-tec/wrongsecrets-balancer/internal/constants"
)

// Default images of the team workloads.
const (
	DefaultWrongSecretsImage   = "jeroenwillemsen/wrongsecrets"
	DefaultVirtualDesktopImage = "jeroenwillemsen/wrongsecrets-desktop-k8s"
	DefaultImageTag            = "latest-no-vault"
	DefaultDesktopTag          = "latest"
)

// Default returns the configuration used when nothing else is set.
func Default() Config {
	return Config{
		DeploymentContext: "wrongsecrets",
		Environment:       EnvironmentK8s,
		MaxInstances:      100,
		HMACKey:           "hardcodedkey",
		Admin: Admin{
			Username: "admin",
		},
		Cookie: Cookie{
			Name:   "balancer",
			Secure: false,
		},
		WrongSecrets: Workload{
			Image:           DefaultWrongSecretsImage,
			Tag:             DefaultImageTag,
			ImagePullPolicy: corev1.PullIfNotPresent,
		},
		VirtualDesktop: Workload{
			Image:           DefaultVirtualDesktopImage,
			Tag:             DefaultDesktopTag,
			ImagePullPolicy: corev1.PullIfNotPresent,
		},
		AWS: AWS{
			SecretIDs: []string{"wrongsecret", "wrongsecret-2"},
		},
		Azure: Azure{
			SecretIDs: []string{"wrongsecret-1", "wrongsecret-2"},
		},
		GCP: GCP{
			SecretIDs: []string{"wrongsecret-1", "wrongsecret-2"},
		},
		Readiness: Readiness{
			Attempts: constants.DefaultReadinessAttempts,
			Interval: constants.DefaultReadinessInterval,
		},
		Cleanup: Cleanup{
			Enabled:     false,
			Schedule:    constants.DefaultCleanupSchedule,
			MaxInactive: constants.DefaultCleanupMaxInactive,
		},
		HTTP: HTTP{
			Address:       ":3000",
			JoinRateLimit: 1,
			JoinBurst:     5,
		},
	}
}
