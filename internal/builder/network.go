package builder

import (
	"strings"

	corev1 "k8s.io/api/core/v1"
	networkingv1 "k8s.io/api/networking/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"
	"k8s.io/utils/ptr"

	"github.com/dc-tec/wrongsecrets-balancer/internal/constants"
	"github.com/dc-tec/wrongsecrets-balancer/internal/team"
)

// APIServerPorts are the ports the desktop may use to reach the API server endpoints.
var APIServerPorts = []networkingv1.NetworkPolicyPort{
	policyPort(corev1.ProtocolTCP, 443),
	policyPort(corev1.ProtocolTCP, 8443),
	policyPort(corev1.ProtocolTCP, 80),
	policyPort(corev1.ProtocolTCP, 10250),
	policyPort(corev1.ProtocolUDP, 53),
}

// NetworkPolicies builds the isolation policy set of a team namespace in creation order:
// deny everything, then allow DNS, the balancer, challenge and desktop to each other,
// the desktop to kube-system and the desktop to the API server endpoints in
// apiServerIPs.
func (b *Builder) NetworkPolicies(teamName string, apiServerIPs []string) []*networkingv1.NetworkPolicy {
	return []*networkingv1.NetworkPolicy{
		b.defaultDenyPolicy(teamName),
		b.dnsOnlyEgressPolicy(teamName),
		b.balancerAccessPolicy(teamName),
		b.peerAccessPolicy(teamName, constants.NetworkPolicyWrongSecretsAccess,
			constants.LabelValueWrongSecrets, constants.LabelValueVirtualDesktop),
		b.peerAccessPolicy(teamName, constants.NetworkPolicyDesktopAccess,
			constants.LabelValueVirtualDesktop, constants.LabelValueWrongSecrets),
		b.desktopKubeSystemPolicy(teamName),
		b.desktopAPIServerPolicy(teamName, apiServerIPs),
	}
}

func (b *Builder) networkPolicy(teamName, name string, spec networkingv1.NetworkPolicySpec) *networkingv1.NetworkPolicy {
	return &networkingv1.NetworkPolicy{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: team.Namespace(teamName),
		},
		Spec: spec,
	}
}

func (b *Builder) defaultDenyPolicy(teamName string) *networkingv1.NetworkPolicy {
	return b.networkPolicy(teamName, constants.NetworkPolicyDefaultDeny, networkingv1.NetworkPolicySpec{
		PodSelector: metav1.LabelSelector{},
		PolicyTypes: []networkingv1.PolicyType{
			networkingv1.PolicyTypeIngress,
			networkingv1.PolicyTypeEgress,
		},
	})
}

func (b *Builder) dnsOnlyEgressPolicy(teamName string) *networkingv1.NetworkPolicy {
	return b.networkPolicy(teamName, constants.NetworkPolicyDNSOnly, networkingv1.NetworkPolicySpec{
		PodSelector: metav1.LabelSelector{},
		PolicyTypes: []networkingv1.PolicyType{networkingv1.PolicyTypeEgress},
		Egress: []networkingv1.NetworkPolicyEgressRule{
			{
				Ports: []networkingv1.NetworkPolicyPort{
					policyPort(corev1.ProtocolUDP, 53),
					policyPort(corev1.ProtocolTCP, 53),
				},
			},
		},
	})
}

func (b *Builder) balancerAccessPolicy(teamName string) *networkingv1.NetworkPolicy {
	peers := []networkingv1.NetworkPolicyPeer{
		namespacePeer(constants.NamespaceDefault),
		{
			PodSelector: &metav1.LabelSelector{
				MatchLabels: map[string]string{constants.LabelAppName: constants.LabelValueBalancer},
			},
		},
	}
	return b.networkPolicy(teamName, constants.NetworkPolicyBalancerAccess, networkingv1.NetworkPolicySpec{
		PodSelector: metav1.LabelSelector{},
		PolicyTypes: []networkingv1.PolicyType{
			networkingv1.PolicyTypeIngress,
			networkingv1.PolicyTypeEgress,
		},
		Ingress: []networkingv1.NetworkPolicyIngressRule{{From: peers}},
		Egress:  []networkingv1.NetworkPolicyEgressRule{{To: peers}},
	})
}

// peerAccessPolicy lets pods of app exchange traffic with pods of peer.
func (b *Builder) peerAccessPolicy(teamName, name, app, peer string) *networkingv1.NetworkPolicy {
	peers := []networkingv1.NetworkPolicyPeer{
		{
			PodSelector: &metav1.LabelSelector{
				MatchLabels: map[string]string{constants.LabelApp: peer},
			},
		},
	}
	return b.networkPolicy(teamName, name, networkingv1.NetworkPolicySpec{
		PodSelector: metav1.LabelSelector{
			MatchLabels: map[string]string{constants.LabelApp: app},
		},
		PolicyTypes: []networkingv1.PolicyType{
			networkingv1.PolicyTypeIngress,
			networkingv1.PolicyTypeEgress,
		},
		Ingress: []networkingv1.NetworkPolicyIngressRule{{From: peers}},
		Egress:  []networkingv1.NetworkPolicyEgressRule{{To: peers}},
	})
}

func (b *Builder) desktopKubeSystemPolicy(teamName string) *networkingv1.NetworkPolicy {
	ports := []networkingv1.NetworkPolicyPort{
		policyPort(corev1.ProtocolTCP, 8443),
		policyPort(corev1.ProtocolUDP, 8443),
		policyPort(corev1.ProtocolTCP, 443),
		policyPort(corev1.ProtocolUDP, 443),
	}
	peers := []networkingv1.NetworkPolicyPeer{namespacePeer(constants.NamespaceKubeSystem)}
	return b.networkPolicy(teamName, constants.NetworkPolicyDesktopKubeSystem, networkingv1.NetworkPolicySpec{
		PodSelector: desktopSelector(),
		PolicyTypes: []networkingv1.PolicyType{
			networkingv1.PolicyTypeIngress,
			networkingv1.PolicyTypeEgress,
		},
		Ingress: []networkingv1.NetworkPolicyIngressRule{{From: peers, Ports: ports}},
		Egress:  []networkingv1.NetworkPolicyEgressRule{{To: peers, Ports: ports}},
	})
}

func (b *Builder) desktopAPIServerPolicy(teamName string, apiServerIPs []string) *networkingv1.NetworkPolicy {
	peers := make([]networkingv1.NetworkPolicyPeer, 0, len(apiServerIPs))
	for _, ip := range apiServerIPs {
		peers = append(peers, networkingv1.NetworkPolicyPeer{
			IPBlock: &networkingv1.IPBlock{CIDR: hostCIDR(ip)},
		})
	}
	return b.networkPolicy(teamName, constants.NetworkPolicyDesktopAPIServer, networkingv1.NetworkPolicySpec{
		PodSelector: desktopSelector(),
		PolicyTypes: []networkingv1.PolicyType{networkingv1.PolicyTypeEgress},
		Egress: []networkingv1.NetworkPolicyEgressRule{
			{
				To:    peers,
				Ports: append([]networkingv1.NetworkPolicyPort(nil), APIServerPorts...),
			},
		},
	})
}

func desktopSelector() metav1.LabelSelector {
	return metav1.LabelSelector{
		MatchLabels: map[string]string{constants.LabelApp: constants.LabelValueVirtualDesktop},
	}
}

func namespacePeer(namespace string) networkingv1.NetworkPolicyPeer {
	return networkingv1.NetworkPolicyPeer{
		NamespaceSelector: &metav1.LabelSelector{
			MatchLabels: map[string]string{constants.LabelNamespaceName: namespace},
		},
	}
}

func policyPort(protocol corev1.Protocol, port int32) networkingv1.NetworkPolicyPort {
	return networkingv1.NetworkPolicyPort{
		Protocol: ptr.To(protocol),
		Port:     ptr.To(intstr.FromInt32(port)),
	}
}

// hostCIDR returns the single-host CIDR of an IPv4 or IPv6 address.
func hostCIDR(ip string) string {
	if strings.Contains(ip, ":") {
		return ip + "/128"
	}
	return ip + "/32"
}
