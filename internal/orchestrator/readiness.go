package orchestrator

import (
	"context"
	"fmt"
	"time"

	operatorerrors "github.com/dc-tec/wrongsecrets-balancer/internal/errors"
	"github.com/dc-tec/wrongsecrets-balancer/internal/monitoring"
	"github.com/dc-tec/wrongsecrets-balancer/internal/team"
)

// AwaitReadiness polls the team's workload until it reports exactly one ready replica.
//
// At most Readiness.Attempts lookups are made, Readiness.Interval apart. A failed lookup
// ends the wait immediately; exhausting the attempts yields operatorerrors.ErrTimeout.
// Cancelling ctx stops the wait between attempts.
func (o *Orchestrator) AwaitReadiness(ctx context.Context, teamName string) error {
	namespace := team.Namespace(teamName)
	ctx, span := monitoring.StartTeamSpan(ctx, "orchestrator.AwaitReadiness", teamName, namespace)
	defer span.End()

	start := time.Now()
	result, err := o.awaitReadiness(ctx, teamName)
	monitoring.ObserveReadinessWait(result, time.Since(start).Seconds())
	monitoring.RecordSpanError(span, err)
	return err
}

func (o *Orchestrator) awaitReadiness(ctx context.Context, teamName string) (string, error) {
	namespace, name := team.Namespace(teamName), team.WorkloadName(teamName)
	attempts := o.readiness.Attempts

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return monitoring.ReadinessCancelled, fmt.Errorf("stopped waiting for team %s: %w", teamName, err)
		}

		deployment, err := o.gateway.GetDeployment(ctx, namespace, name)
		if err != nil {
			return monitoring.ReadinessError, fmt.Errorf("failed to look up instance of team %s: %w", teamName, err)
		}
		if deployment.Status.ReadyReplicas == 1 {
			o.logger.V(1).Info("Team instance ready", "team", teamName, "attempts", attempt)
			return monitoring.ReadinessReady, nil
		}
		if attempt == attempts {
			break
		}

		timer := time.NewTimer(o.readiness.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return monitoring.ReadinessCancelled, fmt.Errorf("stopped waiting for team %s: %w", teamName, ctx.Err())
		case <-timer.C:
		}
	}

	return monitoring.ReadinessTimeout, fmt.Errorf("team %s not ready after %d attempts: %w", teamName, attempts, operatorerrors.ErrTimeout)
}
