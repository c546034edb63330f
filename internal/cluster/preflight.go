package cluster

import (
	"context"
	"errors"
	"fmt"

	apiextensionsv1 "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/types"

	operatorerrors "github.com/dc-tec/wrongsecrets-balancer/internal/errors"
)

// SecretProviderClassCRDName is the CRD installed by the Secrets Store CSI driver.
const SecretProviderClassCRDName = "secretproviderclasses.secrets-store.csi.x-k8s.io"

// ErrSecretProviderClassCRDMissing indicates the Secrets Store CSI driver is not installed.
var ErrSecretProviderClassCRDMissing = errors.New("secrets store csi driver CRD not installed")

// PreflightSecretProviderClass verifies that SecretProviderClass objects can be created.
func (g *Gateway) PreflightSecretProviderClass(ctx context.Context) error {
	crd := &apiextensionsv1.CustomResourceDefinition{}
	err := g.client.Get(ctx, types.NamespacedName{Name: SecretProviderClassCRDName}, crd)
	switch {
	case err == nil:
	case apierrors.IsNotFound(err), operatorerrors.IsCRDMissingError(err):
		return fmt.Errorf("%w: %s", ErrSecretProviderClassCRDMissing, SecretProviderClassCRDName)
	default:
		return fmt.Errorf("failed to look up CRD %s: %w", SecretProviderClassCRDName, operatorerrors.Classify(err))
	}

	for _, version := range crd.Spec.Versions {
		if version.Name == "v1" && version.Served {
			return nil
		}
	}
	return fmt.Errorf("%w: %s does not serve v1", ErrSecretProviderClassCRDMissing, SecretProviderClassCRDName)
}
