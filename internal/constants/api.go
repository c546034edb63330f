package constants

// Container ports.
const (
	PortWorkload       = 8080
	PortDesktop        = 3000
	PortDesktopService = 8080
)

// Health endpoints served by the workload container.
const (
	PathReadiness = "/actuator/health/readiness"
	PathLiveness  = "/actuator/health/liveness"
)

// Secrets Store CSI driver identifiers.
const (
	SecretsStoreCSIDriver   = "secrets-store.csi.k8s.io"
	SecretsStoreGroup       = "secrets-store.csi.x-k8s.io"
	SecretsStoreVersion     = "v1"
	SecretProviderClassKind = "SecretProviderClass"

	// SecretProviderClassCRD is the CRD that must be installed for cloud strategies.
	SecretProviderClassCRD = "secretproviderclasses.secrets-store.csi.x-k8s.io"
)
