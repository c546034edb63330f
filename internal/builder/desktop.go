package builder

import (
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/utils/ptr"

	"github.com/dc-tec/wrongsecrets-balancer/internal/constants"
	"github.com/dc-tec/wrongsecrets-balancer/internal/team"
)

const desktopUserID = "1000"

// DesktopDeployment builds the virtual desktop deployment. The desktop container runs
// as root under s6 with a writable root filesystem.
func (b *Builder) DesktopDeployment(in Instance) *appsv1.Deployment {
	selector := b.labels(constants.LabelValueVirtualDesktop, in.Team)

	podLabels := copyMap(selector)
	podLabels[constants.LabelNamespace] = team.Namespace(in.Team)

	desktop := b.cfg.VirtualDesktop

	env := []corev1.EnvVar{
		{Name: "PUID", Value: desktopUserID},
		{Name: "PGID", Value: desktopUserID},
	}
	env = append(env, desktop.Env...)

	return &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{
			Name:      team.DesktopName(in.Team),
			Namespace: team.Namespace(in.Team),
			Labels:    copyMap(selector),
			Annotations: map[string]string{
				constants.AnnotationLastRequest:         team.FormatLastRequest(in.Now),
				constants.AnnotationLastRequestReadable: team.FormatReadable(in.Now),
				constants.AnnotationPasscode:            in.PasscodeHash,
			},
		},
		Spec: appsv1.DeploymentSpec{
			Replicas: ptr.To(int32(1)),
			Selector: &metav1.LabelSelector{MatchLabels: copyMap(selector)},
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: podLabels},
				Spec: corev1.PodSpec{
					ServiceAccountName: constants.DesktopServiceAccountName,
					Containers: []corev1.Container{
						{
							Name:            constants.ContainerNameVirtualDesktop,
							Image:           desktop.ImageRef(),
							ImagePullPolicy: desktop.ImagePullPolicy,
							Resources: corev1.ResourceRequirements{
								Requests: corev1.ResourceList{
									corev1.ResourceMemory:           resource.MustParse("2.5G"),
									corev1.ResourceCPU:              resource.MustParse("600m"),
									corev1.ResourceEphemeralStorage: resource.MustParse("4Gi"),
								},
								Limits: corev1.ResourceList{
									corev1.ResourceMemory:           resource.MustParse("4.0G"),
									corev1.ResourceCPU:              resource.MustParse("2000m"),
									corev1.ResourceEphemeralStorage: resource.MustParse("8Gi"),
								},
							},
							SecurityContext: &corev1.SecurityContext{
								AllowPrivilegeEscalation: ptr.To(true),
								ReadOnlyRootFilesystem:   ptr.To(false),
								RunAsNonRoot:             ptr.To(false),
							},
							Env: env,
							Ports: []corev1.ContainerPort{
								{ContainerPort: constants.PortDesktop},
							},
							VolumeMounts: []corev1.VolumeMount{
								{Name: constants.VolumeDesktopFS, MountPath: constants.MountPathDesktopFS},
							},
							ReadinessProbe: &corev1.Probe{
								ProbeHandler:        httpGet("/", constants.PortDesktop),
								InitialDelaySeconds: 24,
								PeriodSeconds:       2,
								FailureThreshold:    10,
							},
							LivenessProbe: &corev1.Probe{
								ProbeHandler:        httpGet("/", constants.PortDesktop),
								InitialDelaySeconds: 30,
								PeriodSeconds:       15,
							},
						},
					},
					Volumes: []corev1.Volume{
						{
							Name: constants.VolumeDesktopFS,
							VolumeSource: corev1.VolumeSource{
								EmptyDir: &corev1.EmptyDirVolumeSource{
									Medium:    corev1.StorageMediumMemory,
									SizeLimit: ptr.To(resource.MustParse("160Mi")),
								},
							},
						},
					},
					Tolerations:      desktop.Tolerations,
					Affinity:         desktop.Affinity,
					RuntimeClassName: runtimeClassName(desktop.RuntimeClassName),
				},
			},
		},
	}
}
