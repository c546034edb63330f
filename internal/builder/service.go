package builder

import (
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"

	"github.com/dc-tec/wrongsecrets-balancer/internal/constants"
	"github.com/dc-tec/wrongsecrets-balancer/internal/team"
)

// WorkloadService exposes the challenge container inside the cluster.
func (b *Builder) WorkloadService(teamName string) *corev1.Service {
	selector := b.labels(constants.LabelValueWrongSecrets, teamName)
	return b.service(team.WorkloadName(teamName), teamName, selector, corev1.ServicePort{
		Port:       constants.PortWorkload,
		TargetPort: intstr.FromInt32(constants.PortWorkload),
	})
}

// DesktopService exposes the desktop on the same port as the challenge.
func (b *Builder) DesktopService(teamName string) *corev1.Service {
	selector := b.labels(constants.LabelValueVirtualDesktop, teamName)
	return b.service(team.DesktopName(teamName), teamName, selector, corev1.ServicePort{
		Port:       constants.PortDesktopService,
		TargetPort: intstr.FromInt32(constants.PortDesktop),
	})
}

func (b *Builder) service(name, teamName string, selector map[string]string, port corev1.ServicePort) *corev1.Service {
	return &corev1.Service{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: team.Namespace(teamName),
			Labels:    copyMap(selector),
		},
		Spec: corev1.ServiceSpec{
			Selector: selector,
			Ports:    []corev1.ServicePort{port},
		},
	}
}
