package builder

import (
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"
	"k8s.io/utils/ptr"

	"github.com/dc-tec/wrongsecrets-balancer/internal/config"
	"github.com/dc-tec/wrongsecrets-balancer/internal/constants"
	"github.com/dc-tec/wrongsecrets-balancer/internal/team"
)

const (
	workloadUserID = 2000

	ctfKey                 = "notarealkeyyouknowbutyoumightgetflags"
	challengeAchtHostKey   = "provideThisKeyToHostThankyouAlllGoodDoYouLikeRandomLogging?"
	challengeThirtyHostKey = "provideThisKeyToHostWhenYouRealizeLSIsOK?"

	vaultURI = "http://vault.vault.svc.cluster.local:8200"
	jwtPath  = "/var/run/secrets/kubernetes.io/serviceaccount/token"

	azureKeyVaultPropertySource = "wrongsecrets-3"
)

// workloadVariant captures what differs between the per-environment challenge deployments.
type workloadVariant struct {
	readinessDelay      int32
	livenessDelay       int32
	extraLabels         map[string]string
	secretProviderClass string
	serviceAccountName  string
	secretIDs           []string
	providerEnv         []corev1.EnvVar
}

func (b *Builder) workloadVariant() workloadVariant {
	switch b.cfg.Environment {
	case config.EnvironmentAWS:
		return workloadVariant{
			readinessDelay:      90,
			livenessDelay:       70,
			secretProviderClass: constants.SecretProviderClassAWS,
			secretIDs:           b.cfg.AWS.SecretIDs,
		}
	case config.EnvironmentAzure:
		return workloadVariant{
			readinessDelay:      90,
			livenessDelay:       70,
			extraLabels:         map[string]string{constants.LabelAADPodIDBinding: constants.LabelValueAADPodID},
			secretProviderClass: constants.SecretProviderClassAzure,
			secretIDs:           b.cfg.Azure.SecretIDs,
			providerEnv: []corev1.EnvVar{
				{Name: "SPRING_CLOUD_AZURE_KEYVAULT_SECRET_PROPERTYSOURCEENABLED", Value: "true"},
				{Name: "SPRING_CLOUD_AZURE_KEYVAULT_SECRET_PROPERTYSOURCES_0_NAME", Value: azureKeyVaultPropertySource},
				{Name: "SPRING_CLOUD_AZURE_KEYVAULT_SECRET_PROPERTYSOURCES_0_ENDPOINT", Value: b.cfg.Azure.VaultURI},
				{Name: "SPRING_CLOUD_AZURE_KEYVAULT_SECRET_PROPERTYSOURCES_0_CREDENTIAL_CLIENTID", Value: b.cfg.Azure.PodClientID},
				{Name: "SPRING_CLOUD_AZURE_KEYVAULT_SECRET_PROPERTYSOURCES_0_CREDENTIAL_MANAGEDIDENTITYENABLED", Value: "true"},
				{Name: "SPRING_CLOUD_VAULT_URI", Value: vaultURI},
				{Name: "JWT_PATH", Value: jwtPath},
			},
		}
	case config.EnvironmentGCP:
		return workloadVariant{
			readinessDelay:      90,
			livenessDelay:       70,
			secretProviderClass: constants.SecretProviderClassGCP,
			serviceAccountName:  constants.DefaultServiceAccountName,
			secretIDs:           b.cfg.GCP.SecretIDs,
			providerEnv: []corev1.EnvVar{
				{Name: "SPRING_CLOUD_VAULT_URI", Value: vaultURI},
				{Name: "JWT_PATH", Value: jwtPath},
			},
		}
	default:
		return workloadVariant{
			readinessDelay: 70,
			livenessDelay:  50,
		}
	}
}

// WorkloadDeployment builds the challenge deployment for the configured environment.
func (b *Builder) WorkloadDeployment(in Instance) *appsv1.Deployment {
	variant := b.workloadVariant()

	selector := b.labels(constants.LabelValueWrongSecrets, in.Team)
	for k, v := range variant.extraLabels {
		selector[k] = v
	}

	volumes := []corev1.Volume{}
	mounts := []corev1.VolumeMount{}
	if variant.secretProviderClass != "" {
		volumes = append(volumes, corev1.Volume{
			Name: constants.VolumeSecretsStore,
			VolumeSource: corev1.VolumeSource{
				CSI: &corev1.CSIVolumeSource{
					Driver:   constants.SecretsStoreCSIDriver,
					ReadOnly: ptr.To(true),
					VolumeAttributes: map[string]string{
						"secretProviderClass": variant.secretProviderClass,
					},
				},
			},
		})
	}
	volumes = append(volumes, corev1.Volume{
		Name:         constants.VolumeEphemeral,
		VolumeSource: corev1.VolumeSource{EmptyDir: &corev1.EmptyDirVolumeSource{}},
	})
	mounts = append(mounts, corev1.VolumeMount{
		Name:      constants.VolumeEphemeral,
		MountPath: constants.MountPathEphemeral,
	})
	if variant.secretProviderClass != "" {
		mounts = append(mounts, corev1.VolumeMount{
			Name:      constants.VolumeSecretsStore,
			MountPath: constants.MountPathSecretsStore,
			ReadOnly:  true,
		})
	}

	workload := b.cfg.WrongSecrets

	return &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{
			Name:        team.WorkloadName(in.Team),
			Namespace:   team.Namespace(in.Team),
			Labels:      copyMap(selector),
			Annotations: team.InitialAnnotations(in.Now, in.PasscodeHash),
		},
		Spec: appsv1.DeploymentSpec{
			Replicas: ptr.To(int32(1)),
			Selector: &metav1.LabelSelector{MatchLabels: copyMap(selector)},
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: copyMap(selector)},
				Spec: corev1.PodSpec{
					AutomountServiceAccountToken: ptr.To(false),
					ServiceAccountName:           variant.serviceAccountName,
					SecurityContext: &corev1.PodSecurityContext{
						RunAsUser:  ptr.To(int64(workloadUserID)),
						RunAsGroup: ptr.To(int64(workloadUserID)),
						FSGroup:    ptr.To(int64(workloadUserID)),
					},
					Containers: []corev1.Container{
						{
							Name:            constants.ContainerNameWrongSecrets,
							Image:           workload.ImageRef(),
							ImagePullPolicy: workload.ImagePullPolicy,
							SecurityContext: restrictedContainerSecurityContext(),
							Env:             b.workloadEnv(variant),
							Ports: []corev1.ContainerPort{
								{ContainerPort: constants.PortWorkload},
							},
							ReadinessProbe: &corev1.Probe{
								ProbeHandler:        httpGet(constants.PathReadiness, constants.PortWorkload),
								InitialDelaySeconds: variant.readinessDelay,
								TimeoutSeconds:      30,
								PeriodSeconds:       10,
								FailureThreshold:    10,
							},
							LivenessProbe: &corev1.Probe{
								ProbeHandler:        httpGet(constants.PathLiveness, constants.PortWorkload),
								InitialDelaySeconds: variant.livenessDelay,
								TimeoutSeconds:      30,
								PeriodSeconds:       30,
							},
							Resources: corev1.ResourceRequirements{
								Requests: corev1.ResourceList{
									corev1.ResourceMemory:           resource.MustParse("512Mi"),
									corev1.ResourceCPU:              resource.MustParse("200m"),
									corev1.ResourceEphemeralStorage: resource.MustParse("1Gi"),
								},
								Limits: corev1.ResourceList{
									corev1.ResourceMemory:           resource.MustParse("512Mi"),
									corev1.ResourceCPU:              resource.MustParse("500m"),
									corev1.ResourceEphemeralStorage: resource.MustParse("2Gi"),
								},
							},
							VolumeMounts: mounts,
						},
					},
					Volumes:          volumes,
					Tolerations:      workload.Tolerations,
					Affinity:         workload.Affinity,
					RuntimeClassName: runtimeClassName(workload.RuntimeClassName),
				},
			},
		},
	}
}

func (b *Builder) workloadEnv(variant workloadVariant) []corev1.EnvVar {
	env := []corev1.EnvVar{
		{Name: "hints_enabled", Value: "false"},
		{Name: "ctf_enabled", Value: "true"},
		{Name: "ctf_key", Value: ctfKey},
		{Name: "K8S_ENV", Value: string(b.cfg.Environment)},
	}
	if b.cfg.Environment.Cloud() {
		env = append(env, corev1.EnvVar{Name: "APP_VERSION", Value: b.cfg.WrongSecrets.Tag + "-ctf"})
	}
	env = append(env, corev1.EnvVar{Name: "CTF_SERVER_ADDRESS", Value: b.cfg.CTFServerAddress})
	if len(variant.secretIDs) >= 2 {
		env = append(env,
			corev1.EnvVar{Name: "FILENAME_CHALLENGE9", Value: variant.secretIDs[0]},
			corev1.EnvVar{Name: "FILENAME_CHALLENGE10", Value: variant.secretIDs[1]},
		)
	}
	env = append(env,
		corev1.EnvVar{Name: "challenge_acht_ctf_to_provide_to_host_value", Value: challengeAchtHostKey},
		corev1.EnvVar{Name: "challenge_thirty_ctf_to_provide_to_host_value", Value: challengeThirtyHostKey},
		corev1.EnvVar{
			Name: "SPECIAL_K8S_SECRET",
			ValueFrom: &corev1.EnvVarSource{
				ConfigMapKeyRef: &corev1.ConfigMapKeySelector{
					LocalObjectReference: corev1.LocalObjectReference{Name: constants.ConfigMapSecretsFile},
					Key:                  constants.ConfigMapSecretsKey,
				},
			},
		},
		secretEnv("SPECIAL_SPECIAL_K8S_SECRET", constants.SecretFunnyStuff, constants.SecretFunnyStuffKey),
		secretEnv("CHALLENGE33", constants.SecretChallenge33, constants.SecretChallenge33Key),
	)
	env = append(env, variant.providerEnv...)
	env = append(env, b.cfg.WrongSecrets.Env...)
	return env
}

func secretEnv(name, secret, key string) corev1.EnvVar {
	return corev1.EnvVar{
		Name: name,
		ValueFrom: &corev1.EnvVarSource{
			SecretKeyRef: &corev1.SecretKeySelector{
				LocalObjectReference: corev1.LocalObjectReference{Name: secret},
				Key:                  key,
			},
		},
	}
}

func httpGet(path string, port int) corev1.ProbeHandler {
	return corev1.ProbeHandler{
		HTTPGet: &corev1.HTTPGetAction{
			Path: path,
			Port: intstr.FromInt32(int32(port)),
		},
	}
}
