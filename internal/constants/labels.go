package constants

// Label keys shared with the out-of-process tooling (admin UI, cleaner, dashboards).
// The values must stay bit-for-bit identical across releases.
const (
	LabelApp               = "app"
	LabelTeam              = "team"
	LabelDeploymentContext = "deployment-context"
	LabelNamespace         = "namespace"

	// LabelAADPodIDBinding selects the Azure pod identity for the workload.
	LabelAADPodIDBinding = "aadpodidbinding"

	LabelNamespaceName = "kubernetes.io/metadata.name"
	LabelAppName       = "app.kubernetes.io/name"
)

// Label values.
const (
	LabelValueWrongSecrets   = "wrongsecrets"
	LabelValueVirtualDesktop = "virtualdesktop"
	LabelValueAADPodID       = "wrongsecrets-pod-id"

	// LabelValueBalancer is the app.kubernetes.io/name of the balancer pods that
	// proxy traffic into team namespaces.
	LabelValueBalancer = "wrongsecrets-ctf-party"
)

// Pod Security admission labels applied to every team namespace.
const (
	LabelPodSecurityAudit   = "pod-security.kubernetes.io/audit"
	LabelPodSecurityEnforce = "pod-security.kubernetes.io/enforce"

	PodSecurityLevelRestricted = "restricted"
	PodSecurityLevelBaseline   = "baseline"
)
