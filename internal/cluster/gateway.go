// Package cluster is the typed gateway to the Kubernetes API used by the balancer.
//
// Every error returned from this package wraps exactly one control plane class from
// internal/errors (NotFound, AlreadyExists, Forbidden, Conflict, Unavailable, Unknown).
package cluster

import (
	"context"
	"encoding/json"
	"fmt"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	networkingv1 "k8s.io/api/networking/v1"
	rbacv1 "k8s.io/api/rbac/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"

	operatorerrors "github.com/dc-tec/wrongsecrets-balancer/internal/errors"
	"github.com/dc-tec/wrongsecrets-balancer/internal/interfaces"
)

var _ interfaces.ClusterGateway = (*Gateway)(nil)

// Gateway performs typed operations against the control plane.
type Gateway struct {
	client client.Client
}

// NewGateway returns a Gateway backed by c.
func NewGateway(c client.Client) *Gateway {
	return &Gateway{client: c}
}

func (g *Gateway) create(ctx context.Context, kind string, obj client.Object) error {
	if err := g.client.Create(ctx, obj); err != nil {
		return fmt.Errorf("failed to create %s %s: %w", kind, describe(obj), operatorerrors.Classify(err))
	}
	return nil
}

func (g *Gateway) get(ctx context.Context, kind string, key types.NamespacedName, obj client.Object) error {
	if err := g.client.Get(ctx, key, obj); err != nil {
		return fmt.Errorf("failed to get %s %s: %w", kind, key, operatorerrors.Classify(err))
	}
	return nil
}

func (g *Gateway) delete(ctx context.Context, kind string, obj client.Object, opts ...client.DeleteOption) error {
	if err := g.client.Delete(ctx, obj, opts...); err != nil {
		return fmt.Errorf("failed to delete %s %s: %w", kind, describe(obj), operatorerrors.Classify(err))
	}
	return nil
}

// patchAnnotations merge-patches annotations onto obj, which must carry its name and
// namespace.
func (g *Gateway) patchAnnotations(ctx context.Context, kind string, obj client.Object, annotations map[string]string) error {
	payload, err := json.Marshal(map[string]any{
		"metadata": map[string]any{
			"annotations": annotations,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to encode %s patch: %w", kind, err)
	}
	if err := g.client.Patch(ctx, obj, client.RawPatch(types.MergePatchType, payload)); err != nil {
		return fmt.Errorf("failed to patch %s %s: %w", kind, describe(obj), operatorerrors.Classify(err))
	}
	return nil
}

func describe(obj client.Object) string {
	if obj.GetNamespace() == "" {
		return obj.GetName()
	}
	return obj.GetNamespace() + "/" + obj.GetName()
}

// CreateNamespace creates a namespace.
func (g *Gateway) CreateNamespace(ctx context.Context, ns *corev1.Namespace) error {
	return g.create(ctx, "Namespace", ns)
}

// GetNamespace fetches a namespace by name.
func (g *Gateway) GetNamespace(ctx context.Context, name string) (*corev1.Namespace, error) {
	ns := &corev1.Namespace{}
	if err := g.get(ctx, "Namespace", types.NamespacedName{Name: name}, ns); err != nil {
		return nil, err
	}
	return ns, nil
}

// DeleteNamespace deletes a namespace and, through cascading deletion, everything in it.
func (g *Gateway) DeleteNamespace(ctx context.Context, name string) error {
	ns := &corev1.Namespace{}
	ns.Name = name
	return g.delete(ctx, "Namespace", ns, client.PropagationPolicy(metav1.DeletePropagationBackground))
}

// CreateConfigMap creates a config map.
func (g *Gateway) CreateConfigMap(ctx context.Context, cm *corev1.ConfigMap) error {
	return g.create(ctx, "ConfigMap", cm)
}

// CreateSecret creates a secret.
func (g *Gateway) CreateSecret(ctx context.Context, secret *corev1.Secret) error {
	return g.create(ctx, "Secret", secret)
}

// CreateServiceAccount creates a service account.
func (g *Gateway) CreateServiceAccount(ctx context.Context, sa *corev1.ServiceAccount) error {
	return g.create(ctx, "ServiceAccount", sa)
}

// PatchServiceAccountAnnotations merge-patches annotations onto a service account.
func (g *Gateway) PatchServiceAccountAnnotations(ctx context.Context, namespace, name string, annotations map[string]string) error {
	sa := &corev1.ServiceAccount{}
	sa.Namespace, sa.Name = namespace, name
	return g.patchAnnotations(ctx, "ServiceAccount", sa, annotations)
}

// CreateDeployment creates a deployment.
func (g *Gateway) CreateDeployment(ctx context.Context, deployment *appsv1.Deployment) error {
	return g.create(ctx, "Deployment", deployment)
}

// GetDeployment fetches a deployment.
func (g *Gateway) GetDeployment(ctx context.Context, namespace, name string) (*appsv1.Deployment, error) {
	deployment := &appsv1.Deployment{}
	if err := g.get(ctx, "Deployment", types.NamespacedName{Namespace: namespace, Name: name}, deployment); err != nil {
		return nil, err
	}
	return deployment, nil
}

// ListDeployments lists deployments in every namespace matching selector.
func (g *Gateway) ListDeployments(ctx context.Context, selector labels.Selector) ([]appsv1.Deployment, error) {
	list := &appsv1.DeploymentList{}
	if err := g.client.List(ctx, list, client.MatchingLabelsSelector{Selector: selector}); err != nil {
		return nil, fmt.Errorf("failed to list Deployments matching %q: %w", selector, operatorerrors.Classify(err))
	}
	return list.Items, nil
}

// PatchDeploymentAnnotations merge-patches annotations onto a deployment.
func (g *Gateway) PatchDeploymentAnnotations(ctx context.Context, namespace, name string, annotations map[string]string) error {
	deployment := &appsv1.Deployment{}
	deployment.Namespace, deployment.Name = namespace, name
	return g.patchAnnotations(ctx, "Deployment", deployment, annotations)
}

// CreateService creates a service.
func (g *Gateway) CreateService(ctx context.Context, svc *corev1.Service) error {
	return g.create(ctx, "Service", svc)
}

// CreateRole creates a role.
func (g *Gateway) CreateRole(ctx context.Context, role *rbacv1.Role) error {
	return g.create(ctx, "Role", role)
}

// CreateRoleBinding creates a role binding.
func (g *Gateway) CreateRoleBinding(ctx context.Context, binding *rbacv1.RoleBinding) error {
	return g.create(ctx, "RoleBinding", binding)
}

// CreateNetworkPolicy creates a network policy.
func (g *Gateway) CreateNetworkPolicy(ctx context.Context, policy *networkingv1.NetworkPolicy) error {
	return g.create(ctx, "NetworkPolicy", policy)
}

// CreateSecretProviderClass creates a Secrets Store CSI SecretProviderClass.
func (g *Gateway) CreateSecretProviderClass(ctx context.Context, spc *unstructured.Unstructured) error {
	return g.create(ctx, "SecretProviderClass", spc)
}

// ListPods lists pods in namespace matching selector.
func (g *Gateway) ListPods(ctx context.Context, namespace string, selector labels.Selector) ([]corev1.Pod, error) {
	list := &corev1.PodList{}
	if err := g.client.List(ctx, list, client.InNamespace(namespace), client.MatchingLabelsSelector{Selector: selector}); err != nil {
		return nil, fmt.Errorf("failed to list Pods in %s matching %q: %w", namespace, selector, operatorerrors.Classify(err))
	}
	return list.Items, nil
}

// DeletePod deletes a pod.
func (g *Gateway) DeletePod(ctx context.Context, namespace, name string) error {
	pod := &corev1.Pod{}
	pod.Namespace, pod.Name = namespace, name
	return g.delete(ctx, "Pod", pod)
}
