package orchestrator

import (
	"context"
	"fmt"

	"k8s.io/apimachinery/pkg/labels"

	"github.com/dc-tec/wrongsecrets-balancer/internal/constants"
	operatorerrors "github.com/dc-tec/wrongsecrets-balancer/internal/errors"
	"github.com/dc-tec/wrongsecrets-balancer/internal/logging"
	"github.com/dc-tec/wrongsecrets-balancer/internal/monitoring"
	"github.com/dc-tec/wrongsecrets-balancer/internal/team"
)

// Delete removes the team namespace. Everything inside it is reclaimed by cascading
// deletion; cloud identities created outside the cluster are left in place.
func (o *Orchestrator) Delete(ctx context.Context, teamName string) error {
	ctx, span := monitoring.StartTeamSpan(ctx, "orchestrator.Delete", teamName, team.Namespace(teamName))
	defer span.End()

	if err := o.gateway.DeleteNamespace(ctx, team.Namespace(teamName)); err != nil {
		monitoring.RecordSpanError(span, err)
		return noInstance(teamName, err)
	}

	logger := logging.ForTeam(o.logger, teamName)
	logger.Info("Deleted team namespace")
	logging.LogAuditEvent(logger, logging.EventTeamDeleted, map[string]string{"team": teamName})
	return nil
}

// RestartWorkload deletes the single challenge pod of a team and leaves recreating it to
// the deployment controller.
func (o *Orchestrator) RestartWorkload(ctx context.Context, teamName string) error {
	return o.restart(ctx, teamName, constants.LabelValueWrongSecrets, logging.EventWorkloadRestarted)
}

// RestartDesktop deletes the single desktop pod of a team.
func (o *Orchestrator) RestartDesktop(ctx context.Context, teamName string) error {
	return o.restart(ctx, teamName, constants.LabelValueVirtualDesktop, logging.EventDesktopRestarted)
}

func (o *Orchestrator) restart(ctx context.Context, teamName, app, event string) error {
	namespace := team.Namespace(teamName)
	ctx, span := monitoring.StartTeamSpan(ctx, "orchestrator.Restart", teamName, namespace)
	defer span.End()

	selector := labels.SelectorFromSet(team.Labels(app, teamName, o.deploymentContext))
	pods, err := o.gateway.ListPods(ctx, namespace, selector)
	if err != nil {
		monitoring.RecordSpanError(span, err)
		return err
	}
	if len(pods) != 1 {
		err := fmt.Errorf("%w: found %d %s pods for team %s", operatorerrors.ErrUnexpectedPodCount, len(pods), app, teamName)
		monitoring.RecordSpanError(span, err)
		return err
	}

	if err := o.gateway.DeletePod(ctx, namespace, pods[0].Name); err != nil {
		monitoring.RecordSpanError(span, err)
		return err
	}

	logger := logging.ForTeam(o.logger, teamName)
	logger.Info("Deleted pod for restart", "pod", pods[0].Name, "app", app)
	logging.LogAuditEvent(logger, event, map[string]string{"team": teamName, "pod": pods[0].Name})
	return nil
}

// ResetPasscode replaces the stored passcode hash of a team.
func (o *Orchestrator) ResetPasscode(ctx context.Context, teamName, passcodeHash string) error {
	err := o.gateway.PatchDeploymentAnnotations(ctx, team.Namespace(teamName), team.WorkloadName(teamName),
		team.PasscodeAnnotations(passcodeHash))
	if err != nil {
		return noInstance(teamName, err)
	}

	logging.LogAuditEvent(logging.ForTeam(o.logger, teamName), logging.EventPasscodeReset, map[string]string{"team": teamName})
	return nil
}

// TouchLastRequest stamps the current time on the team's workload. Callers treat it as
// best effort: the error is returned for logging only.
func (o *Orchestrator) TouchLastRequest(ctx context.Context, teamName string) error {
	return o.gateway.PatchDeploymentAnnotations(ctx, team.Namespace(teamName), team.WorkloadName(teamName),
		team.ActivityAnnotations(o.now()))
}
