// Package config loads and validates the balancer configuration.
//
// Values are layered: built-in defaults, then an optional YAML file, then the
// environment variables understood by the Helm chart.
package config

import (
	"time"

	corev1 "k8s.io/api/core/v1"
)

// Environment selects the provisioning strategy.
type Environment string

// Supported environments.
const (
	EnvironmentK8s   Environment = "k8s"
	EnvironmentAWS   Environment = "aws"
	EnvironmentAzure Environment = "azure"
	EnvironmentGCP   Environment = "gcp"
)

// Environments lists every supported environment.
var Environments = []Environment{EnvironmentK8s, EnvironmentAWS, EnvironmentAzure, EnvironmentGCP}

// Cloud reports whether the environment delivers secrets through a cloud secret manager.
func (e Environment) Cloud() bool {
	return e == EnvironmentAWS || e == EnvironmentAzure || e == EnvironmentGCP
}

// Config is the complete balancer configuration.
type Config struct {
	// DeploymentContext is stamped on every team object as the deployment-context label.
	DeploymentContext string      `yaml:"deploymentContext"`
	Environment       Environment `yaml:"environment"`
	// MaxInstances caps the number of team instances. Negative means uncapped.
	MaxInstances int `yaml:"maxInstances"`
	// Production selects the full bcrypt cost.
	Production bool `yaml:"production"`

	Admin          Admin  `yaml:"admin"`
	Cookie         Cookie `yaml:"cookie"`
	AccessPassword string `yaml:"accessPassword"`
	HMACKey        string `yaml:"hmacKey"`

	Challenge33Value string `yaml:"challenge33Value"`
	CTFServerAddress string `yaml:"ctfServerAddress"`

	WrongSecrets   Workload `yaml:"wrongsecrets"`
	VirtualDesktop Workload `yaml:"virtualdesktop"`

	AWS   AWS   `yaml:"aws"`
	Azure Azure `yaml:"azure"`
	GCP   GCP   `yaml:"gcp"`

	Readiness Readiness `yaml:"readiness"`
	Cleanup   Cleanup   `yaml:"cleanup"`
	HTTP      HTTP      `yaml:"http"`
}

// Admin holds the credentials of the admin pseudo team.
type Admin struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Cookie configures the session cookie.
type Cookie struct {
	Name   string `yaml:"name"`
	Secret string `yaml:"secret"`
	Secure bool   `yaml:"secure"`
}

// Workload configures the container of a team deployment. Env, Tolerations and
// Affinity use the Kubernetes field names.
type Workload struct {
	Image            string              `yaml:"image"`
	Tag              string              `yaml:"tag"`
	ImagePullPolicy  corev1.PullPolicy   `yaml:"imagePullPolicy"`
	RuntimeClassName string              `yaml:"runtimeClassName"`
	Env              []corev1.EnvVar     `yaml:"-"`
	Tolerations      []corev1.Toleration `yaml:"-"`
	Affinity         *corev1.Affinity    `yaml:"-"`
}

// ImageRef returns the full image reference.
func (w Workload) ImageRef() string {
	if w.Tag == "" {
		return w.Image
	}
	return w.Image + ":" + w.Tag
}

// AWS configures the Secrets Manager strategy.
type AWS struct {
	// RoleARN is the IRSA role annotated on the team's default service account.
	RoleARN   string   `yaml:"roleArn"`
	SecretIDs []string `yaml:"secretIds"`
}

// Azure configures the Key Vault strategy.
type Azure struct {
	TenantID     string   `yaml:"tenantId"`
	KeyVaultName string   `yaml:"keyVaultName"`
	VaultURI     string   `yaml:"vaultUri"`
	PodClientID  string   `yaml:"podClientId"`
	SecretIDs    []string `yaml:"secretIds"`
}

// GCP configures the Secret Manager strategy.
type GCP struct {
	ProjectID string   `yaml:"projectId"`
	SecretIDs []string `yaml:"secretIds"`
	// WorkloadIdentityPool defaults to <projectId>.svc.id.goog.
	WorkloadIdentityPool string `yaml:"workloadIdentityPool"`
	// Endpoint overrides the Google API endpoint. Used by tests.
	Endpoint string `yaml:"endpoint"`
}

// IdentityPool returns the workload identity pool of the project.
func (g GCP) IdentityPool() string {
	if g.WorkloadIdentityPool != "" {
		return g.WorkloadIdentityPool
	}
	return g.ProjectID + ".svc.id.goog"
}

// Readiness bounds the readiness poll.
type Readiness struct {
	Attempts int           `yaml:"attempts"`
	Interval time.Duration `yaml:"interval"`
}

// Cleanup configures the inactivity reaper.
type Cleanup struct {
	Enabled     bool          `yaml:"enabled"`
	Schedule    string        `yaml:"schedule"`
	MaxInactive time.Duration `yaml:"maxInactive"`
}

// HTTP configures the HTTP surface.
type HTTP struct {
	Address string `yaml:"address"`
	// JoinRateLimit is the sustained number of join requests per second per client.
	JoinRateLimit float64 `yaml:"joinRateLimit"`
	JoinBurst     int     `yaml:"joinBurst"`
}
