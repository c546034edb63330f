package builder

import (
	"encoding/base64"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/dc-tec/wrongsecrets-balancer/internal/constants"
	"github.com/dc-tec/wrongsecrets-balancer/internal/team"
)

// Static challenge material seeded into every team namespace.
const (
	secretsFileValue = "helloCTF-configmap"
	// funnyStuffValue is the plain value; the API server stores it base64 encoded.
	funnyStuffValue = "Flag: are you having fun yet?"
)

// Namespace builds the team namespace with Pod Security admission labels.
func (b *Builder) Namespace(teamName string) *corev1.Namespace {
	return &corev1.Namespace{
		ObjectMeta: metav1.ObjectMeta{
			Name: team.Namespace(teamName),
			Labels: map[string]string{
				"name":                            team.Namespace(teamName),
				constants.LabelPodSecurityAudit:   constants.PodSecurityLevelRestricted,
				constants.LabelPodSecurityEnforce: constants.PodSecurityLevelBaseline,
			},
		},
	}
}

// SecretsConfigMap builds the config map read by the challenge through SPECIAL_K8S_SECRET.
func (b *Builder) SecretsConfigMap(teamName string) *corev1.ConfigMap {
	return &corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{
			Name:      constants.ConfigMapSecretsFile,
			Namespace: team.Namespace(teamName),
		},
		Data: map[string]string{
			constants.ConfigMapSecretsKey: secretsFileValue,
		},
	}
}

// FunnyStuffSecret builds the secret read by the challenge through SPECIAL_SPECIAL_K8S_SECRET.
func (b *Builder) FunnyStuffSecret(teamName string) *corev1.Secret {
	return &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{
			Name:      constants.SecretFunnyStuff,
			Namespace: team.Namespace(teamName),
		},
		Type: corev1.SecretTypeOpaque,
		Data: map[string][]byte{
			constants.SecretFunnyStuffKey: []byte(funnyStuffValue),
		},
	}
}

// Challenge33Secret builds the secret holding the answer of challenge 33. The configured
// value is the base64 form used by the Helm chart; a value that is not valid base64 is
// stored verbatim.
func (b *Builder) Challenge33Secret(teamName string) *corev1.Secret {
	return &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{
			Name:      constants.SecretChallenge33,
			Namespace: team.Namespace(teamName),
		},
		Type: corev1.SecretTypeOpaque,
		Data: map[string][]byte{
			constants.SecretChallenge33Key: decodeSecretValue(b.cfg.Challenge33Value),
		},
	}
}

func decodeSecretValue(value string) []byte {
	decoded, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return []byte(value)
	}
	return decoded
}
