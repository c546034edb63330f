package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dc-tec/wrongsecrets-balancer/internal/builder"
	operatorerrors "github.com/dc-tec/wrongsecrets-balancer/internal/errors"
	"github.com/dc-tec/wrongsecrets-balancer/internal/logging"
	"github.com/dc-tec/wrongsecrets-balancer/internal/monitoring"
	"github.com/dc-tec/wrongsecrets-balancer/internal/strategy"
	"github.com/dc-tec/wrongsecrets-balancer/internal/team"
)

// StepStatus is the outcome of a single provisioning step.
type StepStatus string

const (
	// StepSucceeded means the step created its objects.
	StepSucceeded StepStatus = StepStatus(monitoring.StepSucceeded)
	// StepExisted means the objects of the step already existed.
	StepExisted StepStatus = StepStatus(monitoring.StepSkipped)
	// StepFailed means the step failed; later steps still ran.
	StepFailed StepStatus = StepStatus(monitoring.StepFailed)
)

// StepOutcome records what happened to one step.
type StepOutcome struct {
	Name   string
	Status StepStatus
	Err    error
}

// PipelineResult aggregates the step outcomes of one Create call.
type PipelineResult struct {
	Team     string
	Strategy string
	Steps    []StepOutcome
	Duration time.Duration
}

// Complete reports whether no step failed.
func (r *PipelineResult) Complete() bool {
	return len(r.FailedSteps()) == 0
}

// FailedSteps returns the names of the failed steps in execution order.
func (r *PipelineResult) FailedSteps() []string {
	var failed []string
	for _, step := range r.Steps {
		if step.Status == StepFailed {
			failed = append(failed, step.Name)
		}
	}
	return failed
}

// Err returns nil for a complete pipeline, otherwise an error wrapping
// operatorerrors.ErrProvisioningIncomplete and every step error.
func (r *PipelineResult) Err() error {
	var errs []error
	for _, step := range r.Steps {
		if step.Status == StepFailed {
			errs = append(errs, fmt.Errorf("step %s: %w", step.Name, step.Err))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w for team %s (failed steps: %s): %w",
		operatorerrors.ErrProvisioningIncomplete, r.Team, strings.Join(r.FailedSteps(), ", "), errors.Join(errs...))
}

// Create provisions a team by running every step of the strategy in order. A failing step
// does not stop later steps and nothing is rolled back; the returned result lists which
// steps failed. AlreadyExists is benign for every step except the namespace, where it
// means the team is already provisioned and nothing else is attempted.
func (o *Orchestrator) Create(ctx context.Context, teamName, passcodeHash string) (*PipelineResult, error) {
	if err := team.ValidateName(teamName); err != nil {
		return nil, fmt.Errorf("%w: %w", operatorerrors.ErrInvalidTeamName, err)
	}

	logger := logging.ForTeam(o.logger, teamName)
	ctx, span := monitoring.StartTeamSpan(ctx, "orchestrator.Create", teamName, team.Namespace(teamName))
	defer span.End()

	start := time.Now()
	in := builder.Instance{Team: teamName, PasscodeHash: passcodeHash, Now: o.now()}
	result := &PipelineResult{Team: teamName, Strategy: o.strategy.Name()}

	for _, step := range o.strategy.Steps() {
		outcome := o.runStep(ctx, step, in)
		monitoring.RecordStep(result.Strategy, step.Name, string(outcome.Status))
		result.Steps = append(result.Steps, outcome)

		if step.Name == strategy.StepNamespace && outcome.Status == StepExisted {
			logger.Info("Team namespace already exists, not provisioning again")
			return result, fmt.Errorf("team %s: %w", teamName, operatorerrors.ErrAlreadyProvisioned)
		}
	}

	result.Duration = time.Since(start)
	monitoring.ObservePipeline(result.Strategy, result.Complete(), result.Duration.Seconds())

	if err := result.Err(); err != nil {
		monitoring.RecordSpanError(span, err)
		logger.Error(err, "Team provisioned partially", "failedSteps", result.FailedSteps())
		logging.LogAuditEvent(logger, logging.EventTeamCreateFailed, map[string]string{
			"team":         teamName,
			"strategy":     result.Strategy,
			"failed_steps": strings.Join(result.FailedSteps(), ","),
		})
		return result, err
	}

	logger.Info("Team provisioned", "strategy", result.Strategy, "duration", result.Duration)
	logging.LogAuditEvent(logger, logging.EventTeamCreated, map[string]string{
		"team":     teamName,
		"strategy": result.Strategy,
	})
	return result, nil
}

func (o *Orchestrator) runStep(ctx context.Context, step strategy.Step, in builder.Instance) StepOutcome {
	ctx, span := monitoring.StartChildSpan(ctx, "step."+step.Name)
	defer span.End()

	logger := logging.ForTeam(o.logger, in.Team).WithValues("step", step.Name)
	logger.V(1).Info("Running provisioning step")

	err := step.Run(ctx, in)
	switch {
	case err == nil:
		return StepOutcome{Name: step.Name, Status: StepSucceeded}
	case errors.Is(err, operatorerrors.ErrAlreadyExists):
		logger.V(1).Info("Provisioning step objects already exist")
		return StepOutcome{Name: step.Name, Status: StepExisted}
	default:
		monitoring.RecordSpanError(span, err)
		logger.Error(err, "Provisioning step failed")
		return StepOutcome{Name: step.Name, Status: StepFailed, Err: err}
	}
}
