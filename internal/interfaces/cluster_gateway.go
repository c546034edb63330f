// Package interfaces defines service interfaces for dependency injection.
// This package enables loose coupling between components and facilitates testing.
package interfaces

import (
	"context"

	"github.com/go-logr/logr"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	networkingv1 "k8s.io/api/networking/v1"
	rbacv1 "k8s.io/api/rbac/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/labels"
)

// ClusterGateway is the typed control plane surface used to provision and inspect teams.
// Every returned error wraps exactly one control plane class from internal/errors.
// It carries only the per-kind operations the provisioning steps and the orchestrator
// call; namespace-scoped kinds are removed by DeleteNamespace.
type ClusterGateway interface {
	CreateNamespace(ctx context.Context, ns *corev1.Namespace) error
	GetNamespace(ctx context.Context, name string) (*corev1.Namespace, error)
	// DeleteNamespace deletes a namespace; the control plane cascades to its contents.
	DeleteNamespace(ctx context.Context, name string) error

	CreateConfigMap(ctx context.Context, cm *corev1.ConfigMap) error
	CreateSecret(ctx context.Context, secret *corev1.Secret) error
	CreateServiceAccount(ctx context.Context, sa *corev1.ServiceAccount) error
	PatchServiceAccountAnnotations(ctx context.Context, namespace, name string, annotations map[string]string) error

	CreateDeployment(ctx context.Context, deployment *appsv1.Deployment) error
	GetDeployment(ctx context.Context, namespace, name string) (*appsv1.Deployment, error)
	// ListDeployments lists deployments across all namespaces.
	ListDeployments(ctx context.Context, selector labels.Selector) ([]appsv1.Deployment, error)
	// PatchDeploymentAnnotations merge-patches annotations; other annotations are kept.
	PatchDeploymentAnnotations(ctx context.Context, namespace, name string, annotations map[string]string) error

	CreateService(ctx context.Context, svc *corev1.Service) error
	CreateRole(ctx context.Context, role *rbacv1.Role) error
	CreateRoleBinding(ctx context.Context, binding *rbacv1.RoleBinding) error
	CreateNetworkPolicy(ctx context.Context, policy *networkingv1.NetworkPolicy) error
	CreateSecretProviderClass(ctx context.Context, spc *unstructured.Unstructured) error

	ListPods(ctx context.Context, namespace string, selector labels.Selector) ([]corev1.Pod, error)
	DeletePod(ctx context.Context, namespace, name string) error

	// APIServerAddresses returns the IPs of the Kubernetes API server as seen from pods.
	APIServerAddresses(ctx context.Context, logger logr.Logger) ([]string, error)
}
