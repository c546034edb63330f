// Package reaper deletes teams that have been inactive for too long.
package reaper

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/go-logr/logr"
	"github.com/robfig/cron/v3"
	"sigs.k8s.io/controller-runtime/pkg/manager"

	"github.com/dc-tec/wrongsecrets-balancer/internal/constants"
	operatorerrors "github.com/dc-tec/wrongsecrets-balancer/internal/errors"
	"github.com/dc-tec/wrongsecrets-balancer/internal/logging"
	"github.com/dc-tec/wrongsecrets-balancer/internal/monitoring"
	"github.com/dc-tec/wrongsecrets-balancer/internal/team"
)

// Instances lists and deletes team instances.
type Instances interface {
	List(ctx context.Context) ([]team.InstanceRecord, error)
	Delete(ctx context.Context, teamName string) error
}

// Options configure a Reaper.
type Options struct {
	// Schedule is a 5-field cron expression.
	Schedule string
	// MaxInactive is how long a team may go without a request.
	MaxInactive time.Duration
	// Protected teams are never deleted.
	Protected []string
	// Now defaults to time.Now.
	Now func() time.Time
}

// Result summarizes one sweep.
type Result struct {
	Checked int
	Deleted []string
}

// Reaper periodically deletes inactive teams.
type Reaper struct {
	instances   Instances
	logger      logr.Logger
	schedule    cron.Schedule
	maxInactive time.Duration
	protected   []string
	now         func() time.Time
}

var _ manager.LeaderElectionRunnable = (*Reaper)(nil)

// New returns a Reaper for the given schedule.
func New(instances Instances, logger logr.Logger, opts Options) (*Reaper, error) {
	schedule, err := ParseSchedule(opts.Schedule)
	if err != nil {
		return nil, err
	}
	if opts.MaxInactive <= 0 {
		return nil, fmt.Errorf("max inactivity must be positive, got %s", opts.MaxInactive)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Reaper{
		instances:   instances,
		logger:      logger.WithName("reaper"),
		schedule:    schedule,
		maxInactive: opts.MaxInactive,
		protected:   append([]string{constants.IgnoredTeamName}, opts.Protected...),
		now:         now,
	}, nil
}

// Start sweeps on every scheduled tick until ctx is cancelled. A failed sweep is logged
// and retried on the next tick.
func (r *Reaper) Start(ctx context.Context) error {
	r.logger.Info("Starting inactivity reaper", "maxInactive", r.maxInactive)
	for {
		next := r.NextSweep()
		r.logger.V(1).Info("Next inactivity sweep scheduled", "at", next)
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}

		if _, err := r.RunOnce(ctx); err != nil {
			r.logger.Error(err, "Inactivity sweep failed")
		}
	}
}

// NextSweep returns the next scheduled sweep after the current time.
func (r *Reaper) NextSweep() time.Time {
	return r.schedule.Next(r.now())
}

// NeedLeaderElection returns true so only one replica deletes teams.
func (r *Reaper) NeedLeaderElection() bool {
	return true
}

// RunOnce deletes every team whose most recent activity is older than MaxInactive.
func (r *Reaper) RunOnce(ctx context.Context) (Result, error) {
	records, err := r.instances.List(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("failed to list instances: %w", err)
	}

	lastActivity := map[string]time.Time{}
	for _, record := range records {
		if slices.Contains(r.protected, record.Team) {
			continue
		}
		if seen, ok := lastActivity[record.Team]; !ok || record.LastActivity().After(seen) {
			lastActivity[record.Team] = record.LastActivity()
		}
	}

	teams := make([]string, 0, len(lastActivity))
	for teamName := range lastActivity {
		teams = append(teams, teamName)
	}
	slices.Sort(teams)

	result := Result{Checked: len(teams)}
	cutoff := r.now().Add(-r.maxInactive)
	var errs []error
	for _, teamName := range teams {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if !lastActivity[teamName].Before(cutoff) {
			continue
		}

		logger := logging.ForTeam(r.logger, teamName)
		err := r.instances.Delete(ctx, teamName)
		if errors.Is(err, operatorerrors.ErrNoInstance) {
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("team %s: %w", teamName, err))
			continue
		}

		result.Deleted = append(result.Deleted, teamName)
		monitoring.RecordTeamDeleted(monitoring.DeleteReasonInactive)
		logging.LogAuditEvent(logger, logging.EventTeamReaped, map[string]string{
			"team":          teamName,
			"last_activity": lastActivity[teamName].UTC().Format(time.RFC3339),
		})
	}

	if len(result.Deleted) > 0 {
		r.logger.Info("Deleted inactive teams", "teams", result.Deleted)
	}
	return result, errors.Join(errs...)
}
