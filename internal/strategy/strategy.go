// Package strategy selects the provisioning steps of a team for the configured
// environment.
//
// A Strategy is chosen once at startup. All strategies share the same first and last
// steps and differ only in how secrets reach the challenge workload. Steps that create
// the secret delivery binding always run before the workload deployment that mounts it.
package strategy

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/dc-tec/wrongsecrets-balancer/internal/builder"
	"github.com/dc-tec/wrongsecrets-balancer/internal/cloud"
	"github.com/dc-tec/wrongsecrets-balancer/internal/config"
	"github.com/dc-tec/wrongsecrets-balancer/internal/interfaces"
)

// Step names, in the order they appear in a pipeline.
const (
	StepNamespace             = "namespace"
	StepSecretsConfigMap      = "secrets-configmap"
	StepFunnyStuffSecret      = "funnystuff-secret"
	StepChallenge33Secret     = "challenge33-secret"
	StepSecretProviderClass   = "secret-provider-class"
	StepAWSRoleAnnotation     = "aws-role-annotation"
	StepGCPServiceAccount     = "gcp-service-account"
	StepGCPWorkloadIdentity   = "gcp-workload-identity"
	StepGCPAccountAnnotation  = "gcp-account-annotation"
	StepWorkloadDeployment    = "workload-deployment"
	StepWorkloadService       = "workload-service"
	StepDesktopServiceAccount = "desktop-service-account"
	StepDesktopRole           = "desktop-role"
	StepDesktopRoleBinding    = "desktop-role-binding"
	StepDesktopDeployment     = "desktop-deployment"
	StepDesktopService        = "desktop-service"
	StepNetworkPolicies       = "network-policies"
)

// Step is one independently fallible provisioning action.
type Step struct {
	Name string
	Run  func(ctx context.Context, in builder.Instance) error
}

// Strategy is the ordered provisioning pipeline of one environment.
type Strategy struct {
	environment config.Environment
	steps       []Step
}

// Dependencies are the collaborators the steps call into.
type Dependencies struct {
	Gateway interfaces.ClusterGateway
	Builder *builder.Builder
	// Binder is required by the gcp strategy only.
	Binder interfaces.IdentityBinder
	Logger logr.Logger
}

// New selects the strategy for cfg.Environment.
func New(cfg config.Config, deps Dependencies) (*Strategy, error) {
	if deps.Gateway == nil {
		return nil, errors.New("cluster gateway is required")
	}
	if deps.Builder == nil {
		return nil, errors.New("resource builder is required")
	}

	s := &steps{
		gateway: deps.Gateway,
		builder: deps.Builder,
		binder:  deps.Binder,
		logger:  deps.Logger.WithName("strategy"),
	}

	var middle []Step
	switch cfg.Environment {
	case config.EnvironmentK8s:
	case config.EnvironmentAWS:
		if _, err := cloud.ValidateRoleARN(cfg.AWS.RoleARN); err != nil {
			return nil, err
		}
		middle = []Step{
			{Name: StepSecretProviderClass, Run: s.secretProviderClass},
			{Name: StepAWSRoleAnnotation, Run: s.awsRoleAnnotation},
		}
	case config.EnvironmentAzure:
		middle = []Step{
			{Name: StepSecretProviderClass, Run: s.secretProviderClass},
		}
	case config.EnvironmentGCP:
		if deps.Binder == nil {
			return nil, errors.New("identity binder is required for the gcp environment")
		}
		middle = []Step{
			{Name: StepSecretProviderClass, Run: s.secretProviderClass},
			{Name: StepGCPServiceAccount, Run: s.gcpServiceAccount},
			{Name: StepGCPWorkloadIdentity, Run: s.gcpWorkloadIdentity},
			{Name: StepGCPAccountAnnotation, Run: s.gcpAccountAnnotation},
		}
	default:
		return nil, fmt.Errorf("unsupported environment %q", cfg.Environment)
	}

	pipeline := []Step{
		{Name: StepNamespace, Run: s.namespace},
		{Name: StepSecretsConfigMap, Run: s.secretsConfigMap},
		{Name: StepFunnyStuffSecret, Run: s.funnyStuffSecret},
		{Name: StepChallenge33Secret, Run: s.challenge33Secret},
	}
	pipeline = append(pipeline, middle...)
	pipeline = append(pipeline,
		Step{Name: StepWorkloadDeployment, Run: s.workloadDeployment},
		Step{Name: StepWorkloadService, Run: s.workloadService},
		Step{Name: StepDesktopServiceAccount, Run: s.desktopServiceAccount},
		Step{Name: StepDesktopRole, Run: s.desktopRole},
		Step{Name: StepDesktopRoleBinding, Run: s.desktopRoleBinding},
		Step{Name: StepDesktopDeployment, Run: s.desktopDeployment},
		Step{Name: StepDesktopService, Run: s.desktopService},
		Step{Name: StepNetworkPolicies, Run: s.networkPolicies},
	)

	return &Strategy{environment: cfg.Environment, steps: pipeline}, nil
}

// Name returns the environment the strategy provisions for.
func (s *Strategy) Name() string {
	return string(s.environment)
}

// Steps returns the pipeline in execution order.
func (s *Strategy) Steps() []Step {
	return append([]Step(nil), s.steps...)
}

// StepNames returns the names of the pipeline steps in execution order.
func (s *Strategy) StepNames() []string {
	names := make([]string, 0, len(s.steps))
	for _, step := range s.steps {
		names = append(names, step.Name)
	}
	return names
}
