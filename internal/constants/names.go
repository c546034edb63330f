package constants

// Team namespace and per-team resource naming.
const (
	NamespacePrefix = "t-"

	SuffixWorkload = "-wrongsecrets"
	SuffixDesktop  = "-virtualdesktop"
)

// Fixed object names created inside every team namespace.
const (
	ConfigMapSecretsFile = "secrets-file"
	ConfigMapSecretsKey  = "funny.entry"

	SecretFunnyStuff    = "funnystuff"
	SecretFunnyStuffKey = "funnier"

	SecretChallenge33    = "challenge33"
	SecretChallenge33Key = "answer"

	DefaultServiceAccountName = "default"
	DesktopServiceAccountName = "webtop-sa"
	DesktopRoleName           = "virtualdesktop-team-role"
	DesktopRoleBindingName    = "virtualdesktop-team-rolebinding"
)

// SecretProviderClass names per cloud provider.
const (
	SecretProviderClassAWS   = "wrongsecrets-aws-secretsmanager"
	SecretProviderClassAzure = "azure-wrongsecrets-vault"
	SecretProviderClassGCP   = "wrongsecrets-gcp-secretsmanager"
)

// Container and volume names.
const (
	ContainerNameWrongSecrets   = "wrongsecrets"
	ContainerNameVirtualDesktop = "virtualdesktop"

	VolumeEphemeral    = "ephemeral"
	VolumeSecretsStore = "secrets-store-inline"
	VolumeDesktopFS    = "config-fs"

	MountPathEphemeral    = "/tmp"
	MountPathSecretsStore = "/mnt/secrets-store"
	MountPathDesktopFS    = "/config"
)

// Well-known cluster namespaces referenced by the network policies.
const (
	NamespaceDefault    = "default"
	NamespaceKubeSystem = "kube-system"
)

// IgnoredTeamName is reported by the admin listing for deployments without a team label.
const IgnoredTeamName = "kubelet-ignore-this"

// NetworkPolicy names created in every team namespace.
const (
	NetworkPolicyDefaultDeny        = "default-deny-all"
	NetworkPolicyDNSOnly            = "deny-all-egress-except-dns"
	NetworkPolicyBalancerAccess     = "balancer-access-to-namespace"
	NetworkPolicyWrongSecretsAccess = "allow-wrongsecrets-access"
	NetworkPolicyDesktopAccess      = "allow-virtualdesktop-access"
	NetworkPolicyDesktopKubeSystem  = "allow-webtop-kubesystem"
	NetworkPolicyDesktopAPIServer   = "access-kubectl-from-virtualdesktop"
)
