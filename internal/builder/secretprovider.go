package builder

import (
	"fmt"

	"gopkg.in/yaml.v3"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"

	"github.com/dc-tec/wrongsecrets-balancer/internal/config"
	"github.com/dc-tec/wrongsecrets-balancer/internal/constants"
	"github.com/dc-tec/wrongsecrets-balancer/internal/team"
)

// SecretProviderClassGVK identifies the Secrets Store CSI driver custom resource.
var SecretProviderClassGVK = schema.GroupVersionKind{
	Group:   constants.SecretsStoreGroup,
	Version: constants.SecretsStoreVersion,
	Kind:    constants.SecretProviderClassKind,
}

type secretObject struct {
	ObjectName string `yaml:"objectName"`
	ObjectType string `yaml:"objectType"`
}

type gcpSecret struct {
	ResourceName string `yaml:"resourceName"`
	FileName     string `yaml:"fileName"`
}

// SecretProviderClass builds the SecretProviderClass mounted by the cloud workload
// variants. The bare cluster environment has none.
func (b *Builder) SecretProviderClass(teamName string) (*unstructured.Unstructured, error) {
	var (
		name       string
		provider   string
		parameters map[string]any
		err        error
	)

	switch b.cfg.Environment {
	case config.EnvironmentAWS:
		name, provider = constants.SecretProviderClassAWS, "aws"
		parameters, err = b.awsParameters()
	case config.EnvironmentAzure:
		name, provider = constants.SecretProviderClassAzure, "azure"
		parameters, err = b.azureParameters()
	case config.EnvironmentGCP:
		name, provider = constants.SecretProviderClassGCP, "gcp"
		parameters, err = b.gcpParameters()
	default:
		return nil, fmt.Errorf("environment %q has no secret provider class", b.cfg.Environment)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to render %s parameters: %w", name, err)
	}

	spc := &unstructured.Unstructured{}
	spc.SetGroupVersionKind(SecretProviderClassGVK)
	spc.SetName(name)
	spc.SetNamespace(team.Namespace(teamName))
	spc.Object["spec"] = map[string]any{
		"provider":   provider,
		"parameters": parameters,
	}
	return spc, nil
}

func (b *Builder) awsParameters() (map[string]any, error) {
	objects := make([]secretObject, 0, len(b.cfg.AWS.SecretIDs))
	for _, id := range b.cfg.AWS.SecretIDs {
		objects = append(objects, secretObject{ObjectName: id, ObjectType: "secretsmanager"})
	}
	rendered, err := yaml.Marshal(objects)
	if err != nil {
		return nil, err
	}
	return map[string]any{"objects": string(rendered)}, nil
}

func (b *Builder) azureParameters() (map[string]any, error) {
	array := make([]string, 0, len(b.cfg.Azure.SecretIDs))
	for _, id := range b.cfg.Azure.SecretIDs {
		object, err := yaml.Marshal(secretObject{ObjectName: id, ObjectType: "secret"})
		if err != nil {
			return nil, err
		}
		array = append(array, string(object))
	}
	rendered, err := yaml.Marshal(map[string][]string{"array": array})
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"usePodIdentity": "true",
		"tenantId":       b.cfg.Azure.TenantID,
		"keyvaultName":   b.cfg.Azure.KeyVaultName,
		"objects":        string(rendered),
	}, nil
}

func (b *Builder) gcpParameters() (map[string]any, error) {
	secrets := make([]gcpSecret, 0, len(b.cfg.GCP.SecretIDs))
	for i, fileName := range b.cfg.GCP.SecretIDs {
		secrets = append(secrets, gcpSecret{
			ResourceName: fmt.Sprintf("projects/%s/secrets/%s/versions/latest", b.cfg.GCP.ProjectID, GCPSecretName(i+1)),
			FileName:     fileName,
		})
	}
	rendered, err := yaml.Marshal(secrets)
	if err != nil {
		return nil, err
	}
	return map[string]any{"secrets": string(rendered)}, nil
}

// GCPSecretName returns the name of the n-th Secret Manager secret, counting from 1.
func GCPSecretName(n int) string {
	return fmt.Sprintf("wrongsecret-%d", n)
}
