// Package orchestrator runs the lifecycle of team instances: provisioning, teardown,
// restarts, passcode resets, activity tracking and readiness waits.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/apimachinery/pkg/selection"

	"github.com/dc-tec/wrongsecrets-balancer/internal/config"
	"github.com/dc-tec/wrongsecrets-balancer/internal/constants"
	operatorerrors "github.com/dc-tec/wrongsecrets-balancer/internal/errors"
	"github.com/dc-tec/wrongsecrets-balancer/internal/interfaces"
	"github.com/dc-tec/wrongsecrets-balancer/internal/monitoring"
	"github.com/dc-tec/wrongsecrets-balancer/internal/strategy"
	"github.com/dc-tec/wrongsecrets-balancer/internal/team"
)

// Options tune an Orchestrator.
type Options struct {
	// DeploymentContext is the deployment-context label of the pods this balancer owns.
	DeploymentContext string
	// Readiness bounds AwaitReadiness.
	Readiness config.Readiness
	// Now defaults to time.Now.
	Now func() time.Time
}

// Orchestrator drives team instances through the cluster gateway.
type Orchestrator struct {
	gateway           interfaces.ClusterGateway
	strategy          *strategy.Strategy
	logger            logr.Logger
	deploymentContext string
	readiness         config.Readiness
	now               func() time.Time
}

// New returns an Orchestrator that provisions teams with s.
func New(gateway interfaces.ClusterGateway, s *strategy.Strategy, logger logr.Logger, opts Options) *Orchestrator {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Orchestrator{
		gateway:           gateway,
		strategy:          s,
		logger:            logger.WithName("orchestrator"),
		deploymentContext: opts.DeploymentContext,
		readiness:         opts.Readiness,
		now:               now,
	}
}

// Strategy returns the provisioning strategy in use.
func (o *Orchestrator) Strategy() *strategy.Strategy {
	return o.strategy
}

// Get returns the instance record of a team. A team without a workload deployment yields
// an error wrapping operatorerrors.ErrNotFound.
func (o *Orchestrator) Get(ctx context.Context, teamName string) (team.InstanceRecord, error) {
	deployment, err := o.gateway.GetDeployment(ctx, team.Namespace(teamName), team.WorkloadName(teamName))
	if err != nil {
		return team.InstanceRecord{}, err
	}
	return team.RecordFromDeployment(deployment), nil
}

// List returns the records of every workload and desktop deployment in the cluster.
func (o *Orchestrator) List(ctx context.Context) ([]team.InstanceRecord, error) {
	deployments, err := o.gateway.ListDeployments(ctx, instanceSelector(constants.LabelValueWrongSecrets, constants.LabelValueVirtualDesktop))
	if err != nil {
		return nil, err
	}

	records := make([]team.InstanceRecord, 0, len(deployments))
	for i := range deployments {
		records = append(records, team.RecordFromDeployment(&deployments[i]))
	}
	return records, nil
}

// CountInstances returns the number of challenge workloads across all namespaces.
func (o *Orchestrator) CountInstances(ctx context.Context) (int, error) {
	deployments, err := o.gateway.ListDeployments(ctx, instanceSelector(constants.LabelValueWrongSecrets))
	if err != nil {
		return 0, err
	}
	monitoring.SetInstances(len(deployments))
	return len(deployments), nil
}

func instanceSelector(apps ...string) labels.Selector {
	req, err := labels.NewRequirement(constants.LabelApp, selection.In, apps)
	if err != nil {
		// apps are compile time label values.
		panic(fmt.Sprintf("invalid instance selector: %v", err))
	}
	return labels.NewSelector().Add(*req)
}

// noInstance rewrites a NotFound lookup into ErrNoInstance.
func noInstance(teamName string, err error) error {
	if errors.Is(err, operatorerrors.ErrNotFound) {
		return fmt.Errorf("team %s: %w: %w", teamName, operatorerrors.ErrNoInstance, err)
	}
	return err
}
