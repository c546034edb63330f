package cluster

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/go-logr/logr"
	corev1 "k8s.io/api/core/v1"
	discoveryv1 "k8s.io/api/discovery/v1"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"

	operatorerrors "github.com/dc-tec/wrongsecrets-balancer/internal/errors"
)

const (
	kubernetesServiceNamespace = "default"
	kubernetesServiceName      = "kubernetes"
)

// APIServerAddresses returns the addresses the desktop must reach to talk to the API server.
// Ready endpoints of the default/kubernetes EndpointSlices are preferred; when none are
// found the kubernetes Service ClusterIP is used instead.
func (g *Gateway) APIServerAddresses(ctx context.Context, logger logr.Logger) ([]string, error) {
	endpointSlices := &discoveryv1.EndpointSliceList{}
	err := g.client.List(ctx, endpointSlices,
		client.InNamespace(kubernetesServiceNamespace),
		client.MatchingLabels{discoveryv1.LabelServiceName: kubernetesServiceName},
	)
	if err != nil {
		logger.V(1).Info("Failed to list kubernetes EndpointSlices, falling back to service ClusterIP", "error", err)
	} else if ips := readyAddresses(endpointSlices.Items); len(ips) > 0 {
		return ips, nil
	}

	svc := &corev1.Service{}
	if err := g.client.Get(ctx, types.NamespacedName{
		Namespace: kubernetesServiceNamespace,
		Name:      kubernetesServiceName,
	}, svc); err != nil {
		return nil, fmt.Errorf("failed to discover API server addresses: %w", operatorerrors.Classify(err))
	}

	clusterIP := strings.TrimSpace(svc.Spec.ClusterIP)
	if clusterIP == "" || clusterIP == corev1.ClusterIPNone || net.ParseIP(clusterIP) == nil {
		return nil, fmt.Errorf("failed to discover API server addresses: kubernetes service has no usable ClusterIP: %w", operatorerrors.ErrNotFound)
	}
	return []string{clusterIP}, nil
}

func readyAddresses(slices []discoveryv1.EndpointSlice) []string {
	var ips []string
	seen := make(map[string]struct{})
	for _, slice := range slices {
		for _, endpoint := range slice.Endpoints {
			if endpoint.Conditions.Ready == nil || !*endpoint.Conditions.Ready {
				continue
			}
			for _, address := range endpoint.Addresses {
				if address == "" {
					continue
				}
				if _, dup := seen[address]; dup {
					continue
				}
				seen[address] = struct{}{}
				ips = append(ips, address)
			}
		}
	}
	return ips
}
