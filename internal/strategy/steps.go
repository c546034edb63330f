package strategy

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-logr/logr"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/dc-tec/wrongsecrets-balancer/internal/builder"
	"github.com/dc-tec/wrongsecrets-balancer/internal/constants"
	operatorerrors "github.com/dc-tec/wrongsecrets-balancer/internal/errors"
	"github.com/dc-tec/wrongsecrets-balancer/internal/interfaces"
	"github.com/dc-tec/wrongsecrets-balancer/internal/logging"
	"github.com/dc-tec/wrongsecrets-balancer/internal/team"
)

type steps struct {
	gateway interfaces.ClusterGateway
	builder *builder.Builder
	binder  interfaces.IdentityBinder
	logger  logr.Logger
}

func (s *steps) namespace(ctx context.Context, in builder.Instance) error {
	return s.gateway.CreateNamespace(ctx, s.builder.Namespace(in.Team))
}

func (s *steps) secretsConfigMap(ctx context.Context, in builder.Instance) error {
	return s.gateway.CreateConfigMap(ctx, s.builder.SecretsConfigMap(in.Team))
}

func (s *steps) funnyStuffSecret(ctx context.Context, in builder.Instance) error {
	return s.gateway.CreateSecret(ctx, s.builder.FunnyStuffSecret(in.Team))
}

func (s *steps) challenge33Secret(ctx context.Context, in builder.Instance) error {
	return s.gateway.CreateSecret(ctx, s.builder.Challenge33Secret(in.Team))
}

func (s *steps) secretProviderClass(ctx context.Context, in builder.Instance) error {
	spc, err := s.builder.SecretProviderClass(in.Team)
	if err != nil {
		return err
	}
	return s.gateway.CreateSecretProviderClass(ctx, spc)
}

func (s *steps) awsRoleAnnotation(ctx context.Context, in builder.Instance) error {
	return s.annotateDefaultServiceAccount(ctx, in.Team, s.builder.AWSServiceAccountAnnotations())
}

func (s *steps) gcpServiceAccount(ctx context.Context, in builder.Instance) error {
	email, err := s.binder.EnsureServiceAccount(ctx, in.Team)
	if err != nil {
		return err
	}
	return s.binder.GrantSecretAccess(ctx, in.Team, email)
}

func (s *steps) gcpWorkloadIdentity(ctx context.Context, in builder.Instance) error {
	email := s.builder.GCPServiceAccountAnnotations(in.Team)[constants.AnnotationGCPServiceAccount]
	if err := s.binder.BindWorkloadIdentity(ctx, in.Team, email); err != nil {
		return err
	}
	logging.LogAuditEvent(s.logger, logging.EventCloudIdentityBound, map[string]string{
		"team":            in.Team,
		"service_account": email,
	})
	return nil
}

func (s *steps) gcpAccountAnnotation(ctx context.Context, in builder.Instance) error {
	return s.annotateDefaultServiceAccount(ctx, in.Team, s.builder.GCPServiceAccountAnnotations(in.Team))
}

// annotateDefaultServiceAccount patches the namespace's default service account. The
// account is created by the control plane shortly after the namespace; if it is not there
// yet it is created with the annotations already set.
func (s *steps) annotateDefaultServiceAccount(ctx context.Context, teamName string, annotations map[string]string) error {
	namespace := team.Namespace(teamName)
	err := s.gateway.PatchServiceAccountAnnotations(ctx, namespace, constants.DefaultServiceAccountName, annotations)
	if !errors.Is(err, operatorerrors.ErrNotFound) {
		return err
	}

	s.logger.V(1).Info("Default service account not created yet, creating it", "namespace", namespace)
	err = s.gateway.CreateServiceAccount(ctx, &corev1.ServiceAccount{
		ObjectMeta: metav1.ObjectMeta{
			Name:        constants.DefaultServiceAccountName,
			Namespace:   namespace,
			Annotations: annotations,
		},
	})
	if errors.Is(err, operatorerrors.ErrAlreadyExists) {
		return s.gateway.PatchServiceAccountAnnotations(ctx, namespace, constants.DefaultServiceAccountName, annotations)
	}
	return err
}

func (s *steps) workloadDeployment(ctx context.Context, in builder.Instance) error {
	return s.gateway.CreateDeployment(ctx, s.builder.WorkloadDeployment(in))
}

func (s *steps) workloadService(ctx context.Context, in builder.Instance) error {
	return s.gateway.CreateService(ctx, s.builder.WorkloadService(in.Team))
}

func (s *steps) desktopServiceAccount(ctx context.Context, in builder.Instance) error {
	return s.gateway.CreateServiceAccount(ctx, s.builder.DesktopServiceAccount(in.Team))
}

func (s *steps) desktopRole(ctx context.Context, in builder.Instance) error {
	return s.gateway.CreateRole(ctx, s.builder.DesktopRole(in.Team))
}

func (s *steps) desktopRoleBinding(ctx context.Context, in builder.Instance) error {
	return s.gateway.CreateRoleBinding(ctx, s.builder.DesktopRoleBinding(in.Team))
}

func (s *steps) desktopDeployment(ctx context.Context, in builder.Instance) error {
	return s.gateway.CreateDeployment(ctx, s.builder.DesktopDeployment(in))
}

func (s *steps) desktopService(ctx context.Context, in builder.Instance) error {
	return s.gateway.CreateService(ctx, s.builder.DesktopService(in.Team))
}

// networkPolicies creates every isolation policy, skipping the ones that already exist.
// When the API server cannot be located the API server egress policy is left out, since
// a policy without destinations would allow egress anywhere on its ports.
func (s *steps) networkPolicies(ctx context.Context, in builder.Instance) error {
	var errs []error

	apiServerIPs, err := s.gateway.APIServerAddresses(ctx, s.logger)
	if err != nil {
		errs = append(errs, err)
	}

	for _, policy := range s.builder.NetworkPolicies(in.Team, apiServerIPs) {
		if len(apiServerIPs) == 0 && policy.Name == constants.NetworkPolicyDesktopAPIServer {
			continue
		}
		err := s.gateway.CreateNetworkPolicy(ctx, policy)
		if err != nil && !errors.Is(err, operatorerrors.ErrAlreadyExists) {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("network policies for team %s incomplete: %w", in.Team, errors.Join(errs...))
	}
	return nil
}
