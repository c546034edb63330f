package cluster

import (
	"context"
	"errors"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	discoveryv1 "k8s.io/api/discovery/v1"
	apiextensionsv1 "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/utils/ptr"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/interceptor"

	"github.com/dc-tec/wrongsecrets-balancer/internal/builder"
	"github.com/dc-tec/wrongsecrets-balancer/internal/cluster/clustertest"
	operatorerrors "github.com/dc-tec/wrongsecrets-balancer/internal/errors"
)

func newGateway(t *testing.T, funcs *interceptor.Funcs, objs ...client.Object) (*Gateway, client.Client) {
	t.Helper()
	c := clustertest.NewClient(funcs, objs...)
	return NewGateway(c), c
}

func deployment(namespace, name, app string) *appsv1.Deployment {
	return &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{
			Namespace: namespace,
			Name:      name,
			Labels:    map[string]string{"app": app},
		},
	}
}

func TestGateway_CreateNamespace_AlreadyExists(t *testing.T) {
	ns := &corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: "t-alpha"}}
	gw, _ := newGateway(t, nil, ns.DeepCopy())

	err := gw.CreateNamespace(context.Background(), ns)
	require.Error(t, err)
	assert.ErrorIs(t, err, operatorerrors.ErrAlreadyExists)
	assert.Contains(t, err.Error(), "failed to create Namespace t-alpha")
}

func TestGateway_GetDeployment_NotFound(t *testing.T) {
	gw, _ := newGateway(t, nil)

	_, err := gw.GetDeployment(context.Background(), "t-alpha", "t-alpha-wrongsecrets")
	require.Error(t, err)
	assert.ErrorIs(t, err, operatorerrors.ErrNotFound)
}

func TestGateway_ErrorsAreClassified(t *testing.T) {
	tests := []struct {
		name   string
		getErr error
		want   error
	}{
		{
			name:   "forbidden",
			getErr: apierrors.NewForbidden(schema.GroupResource{Resource: "namespaces"}, "t-alpha", errors.New("rbac")),
			want:   operatorerrors.ErrForbidden,
		},
		{
			name:   "connection refused",
			getErr: errors.New("dial tcp 10.96.0.1:443: connect: connection refused"),
			want:   operatorerrors.ErrUnavailable,
		},
		{
			name:   "anything else",
			getErr: errors.New("boom"),
			want:   operatorerrors.ErrUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw, _ := newGateway(t, &interceptor.Funcs{
				Get: func(ctx context.Context, c client.WithWatch, key client.ObjectKey, obj client.Object, opts ...client.GetOption) error {
					return tt.getErr
				},
			})

			_, err := gw.GetNamespace(context.Background(), "t-alpha")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, tt.getErr)
		})
	}
}

func TestGateway_ListDeployments_Selector(t *testing.T) {
	gw, _ := newGateway(t, nil,
		deployment("t-alpha", "t-alpha-wrongsecrets", "wrongsecrets"),
		deployment("t-alpha", "t-alpha-virtualdesktop", "virtualdesktop"),
		deployment("kube-system", "coredns", "coredns"),
	)

	selector, err := labels.Parse("app in (wrongsecrets, virtualdesktop)")
	require.NoError(t, err)

	items, err := gw.ListDeployments(context.Background(), selector)
	require.NoError(t, err)
	assert.Len(t, items, 2)

	items, err = gw.ListDeployments(context.Background(), labels.SelectorFromSet(labels.Set{"app": "wrongsecrets"}))
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "t-alpha-wrongsecrets", items[0].Name)
}

func TestGateway_PatchDeploymentAnnotations_Merges(t *testing.T) {
	existing := deployment("t-alpha", "t-alpha-wrongsecrets", "wrongsecrets")
	existing.Annotations = map[string]string{"keep": "me", "lastRequest": "1"}
	gw, c := newGateway(t, nil, existing)

	err := gw.PatchDeploymentAnnotations(context.Background(), "t-alpha", "t-alpha-wrongsecrets", map[string]string{
		"lastRequest": "2",
	})
	require.NoError(t, err)

	got := &appsv1.Deployment{}
	require.NoError(t, c.Get(context.Background(), client.ObjectKeyFromObject(existing), got))
	assert.Equal(t, map[string]string{"keep": "me", "lastRequest": "2"}, got.Annotations)
}

func TestGateway_PatchServiceAccountAnnotations_NotFound(t *testing.T) {
	gw, _ := newGateway(t, nil)

	err := gw.PatchServiceAccountAnnotations(context.Background(), "t-alpha", "default", map[string]string{"a": "b"})
	require.Error(t, err)
	assert.ErrorIs(t, err, operatorerrors.ErrNotFound)
}

func TestGateway_ListAndDeletePods(t *testing.T) {
	pod := &corev1.Pod{ObjectMeta: metav1.ObjectMeta{
		Namespace: "t-alpha",
		Name:      "t-alpha-wrongsecrets-abc",
		Labels:    map[string]string{"app": "wrongsecrets", "team": "alpha"},
	}}
	other := &corev1.Pod{ObjectMeta: metav1.ObjectMeta{
		Namespace: "t-alpha",
		Name:      "t-alpha-virtualdesktop-abc",
		Labels:    map[string]string{"app": "virtualdesktop", "team": "alpha"},
	}}
	gw, _ := newGateway(t, nil, pod, other)
	ctx := context.Background()

	pods, err := gw.ListPods(ctx, "t-alpha", labels.SelectorFromSet(labels.Set{"app": "wrongsecrets"}))
	require.NoError(t, err)
	require.Len(t, pods, 1)

	require.NoError(t, gw.DeletePod(ctx, "t-alpha", pods[0].Name))
	pods, err = gw.ListPods(ctx, "t-alpha", labels.SelectorFromSet(labels.Set{"app": "wrongsecrets"}))
	require.NoError(t, err)
	assert.Empty(t, pods)

	err = gw.DeletePod(ctx, "t-alpha", "missing")
	assert.ErrorIs(t, err, operatorerrors.ErrNotFound)
}

func TestGateway_CreateSecretProviderClass(t *testing.T) {
	gw, c := newGateway(t, nil)

	spc := &unstructured.Unstructured{}
	spc.SetGroupVersionKind(builder.SecretProviderClassGVK)
	spc.SetNamespace("t-alpha")
	spc.SetName("wrongsecrets-aws-secretsmanager")
	require.NoError(t, unstructured.SetNestedField(spc.Object, "aws", "spec", "provider"))

	require.NoError(t, gw.CreateSecretProviderClass(context.Background(), spc))

	got := &unstructured.Unstructured{}
	got.SetGroupVersionKind(builder.SecretProviderClassGVK)
	require.NoError(t, c.Get(context.Background(), client.ObjectKeyFromObject(spc), got))
	provider, _, err := unstructured.NestedString(got.Object, "spec", "provider")
	require.NoError(t, err)
	assert.Equal(t, "aws", provider)
}

func TestGateway_DeleteNamespace(t *testing.T) {
	gw, c := newGateway(t, nil, &corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: "t-alpha"}})

	require.NoError(t, gw.DeleteNamespace(context.Background(), "t-alpha"))
	err := c.Get(context.Background(), client.ObjectKey{Name: "t-alpha"}, &corev1.Namespace{})
	assert.True(t, apierrors.IsNotFound(err))

	assert.ErrorIs(t, gw.DeleteNamespace(context.Background(), "t-alpha"), operatorerrors.ErrNotFound)
}

func TestGateway_APIServerAddresses_ReadyEndpointsOnly(t *testing.T) {
	slice := &discoveryv1.EndpointSlice{
		ObjectMeta: metav1.ObjectMeta{
			Namespace: kubernetesServiceNamespace,
			Name:      "kubernetes",
			Labels:    map[string]string{discoveryv1.LabelServiceName: kubernetesServiceName},
		},
		AddressType: discoveryv1.AddressTypeIPv4,
		Endpoints: []discoveryv1.Endpoint{
			{Addresses: []string{"172.18.0.2"}, Conditions: discoveryv1.EndpointConditions{Ready: ptr.To(true)}},
			{Addresses: []string{"172.18.0.3"}, Conditions: discoveryv1.EndpointConditions{Ready: ptr.To(false)}},
			{Addresses: []string{"172.18.0.4"}},
		},
	}
	gw, _ := newGateway(t, nil, slice)

	got, err := gw.APIServerAddresses(context.Background(), logr.Discard())
	require.NoError(t, err)
	assert.Equal(t, []string{"172.18.0.2"}, got)
}

func TestGateway_APIServerAddresses_FallsBackToClusterIP(t *testing.T) {
	svc := &corev1.Service{
		ObjectMeta: metav1.ObjectMeta{Namespace: kubernetesServiceNamespace, Name: kubernetesServiceName},
		Spec:       corev1.ServiceSpec{ClusterIP: "10.96.0.1"},
	}
	gw, _ := newGateway(t, &interceptor.Funcs{
		List: func(ctx context.Context, c client.WithWatch, list client.ObjectList, opts ...client.ListOption) error {
			if _, ok := list.(*discoveryv1.EndpointSliceList); ok {
				return apierrors.NewForbidden(schema.GroupResource{Group: "discovery.k8s.io", Resource: "endpointslices"}, "", errors.New("rbac"))
			}
			return c.List(ctx, list, opts...)
		},
	}, svc)

	got, err := gw.APIServerAddresses(context.Background(), logr.Discard())
	require.NoError(t, err)
	assert.Equal(t, []string{"10.96.0.1"}, got)
}

func TestGateway_APIServerAddresses_NothingFound(t *testing.T) {
	gw, _ := newGateway(t, nil)

	_, err := gw.APIServerAddresses(context.Background(), logr.Discard())
	assert.ErrorIs(t, err, operatorerrors.ErrNotFound)
}

func TestGateway_PreflightSecretProviderClass(t *testing.T) {
	crd := func(served bool) *apiextensionsv1.CustomResourceDefinition {
		return &apiextensionsv1.CustomResourceDefinition{
			ObjectMeta: metav1.ObjectMeta{Name: SecretProviderClassCRDName},
			Spec: apiextensionsv1.CustomResourceDefinitionSpec{
				Versions: []apiextensionsv1.CustomResourceDefinitionVersion{{Name: "v1", Served: served}},
			},
		}
	}

	t.Run("installed", func(t *testing.T) {
		gw, _ := newGateway(t, nil, crd(true))
		assert.NoError(t, gw.PreflightSecretProviderClass(context.Background()))
	})

	t.Run("missing", func(t *testing.T) {
		gw, _ := newGateway(t, nil)
		assert.ErrorIs(t, gw.PreflightSecretProviderClass(context.Background()), ErrSecretProviderClassCRDMissing)
	})

	t.Run("v1 not served", func(t *testing.T) {
		gw, _ := newGateway(t, nil, crd(false))
		assert.ErrorIs(t, gw.PreflightSecretProviderClass(context.Background()), ErrSecretProviderClassCRDMissing)
	})

	t.Run("forbidden", func(t *testing.T) {
		gw, _ := newGateway(t, &interceptor.Funcs{
			Get: func(ctx context.Context, c client.WithWatch, key client.ObjectKey, obj client.Object, opts ...client.GetOption) error {
				return apierrors.NewForbidden(schema.GroupResource{Group: "apiextensions.k8s.io", Resource: "customresourcedefinitions"}, key.Name, errors.New("rbac"))
			},
		})
		err := gw.PreflightSecretProviderClass(context.Background())
		assert.ErrorIs(t, err, operatorerrors.ErrForbidden)
		assert.NotErrorIs(t, err, ErrSecretProviderClassCRDMissing)
	})
}
