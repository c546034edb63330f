// Package admission decides whether a join request logs a caller into an existing team,
// creates a new team, or is rejected.
package admission

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"

	"github.com/go-logr/logr"

	"github.com/dc-tec/wrongsecrets-balancer/internal/config"
	operatorerrors "github.com/dc-tec/wrongsecrets-balancer/internal/errors"
	"github.com/dc-tec/wrongsecrets-balancer/internal/logging"
	"github.com/dc-tec/wrongsecrets-balancer/internal/monitoring"
	"github.com/dc-tec/wrongsecrets-balancer/internal/orchestrator"
	"github.com/dc-tec/wrongsecrets-balancer/internal/team"
)

// InstanceManager is the part of the orchestrator admission needs.
type InstanceManager interface {
	Get(ctx context.Context, teamName string) (team.InstanceRecord, error)
	CountInstances(ctx context.Context) (int, error)
	Create(ctx context.Context, teamName, passcodeHash string) (*orchestrator.PipelineResult, error)
	ResetPasscode(ctx context.Context, teamName, passcodeHash string) error
}

// Outcome tells the caller what a successful Join did.
type Outcome string

const (
	OutcomeAdmin   Outcome = "admin"
	OutcomeJoined  Outcome = "joined"
	OutcomeCreated Outcome = "created"
)

// JoinRequest carries the credentials a caller presents for a team.
type JoinRequest struct {
	Team     string
	Passcode string
	// Password is the shared access password.
	Password string
	// HMAC is the hex HMAC-SHA256 of Team.
	HMAC string
}

// JoinResult is returned by a successful Join.
type JoinResult struct {
	Outcome Outcome
	Team    string
	// Passcode is the plaintext passcode of a newly created team. It is never stored.
	Passcode string
	Pipeline *orchestrator.PipelineResult
}

// Options configure a Controller.
type Options struct {
	Admin          config.Admin
	AccessPassword string
	HMACKey        string
	// MaxInstances caps new teams. Negative disables the cap.
	MaxInstances int
	// Cost is the bcrypt cost for new passcodes.
	Cost int
	// Random defaults to crypto/rand.
	Random io.Reader
}

// OptionsFromConfig derives Options from the balancer configuration.
func OptionsFromConfig(cfg config.Config) Options {
	cost := DevelopmentCost
	if cfg.Production {
		cost = ProductionCost
	}
	return Options{
		Admin:          cfg.Admin,
		AccessPassword: cfg.AccessPassword,
		HMACKey:        cfg.HMACKey,
		MaxInstances:   cfg.MaxInstances,
		Cost:           cost,
	}
}

// Controller runs the admission state machine.
type Controller struct {
	instances InstanceManager
	logger    logr.Logger
	opts      Options
}

// New returns a Controller backed by instances.
func New(instances InstanceManager, logger logr.Logger, opts Options) *Controller {
	if opts.Random == nil {
		opts.Random = rand.Reader
	}
	if opts.Cost == 0 {
		opts.Cost = DevelopmentCost
	}
	return &Controller{
		instances: instances,
		logger:    logger.WithName("admission"),
		opts:      opts,
	}
}

// IsAdmin reports whether teamName is the admin pseudo team.
func (c *Controller) IsAdmin(teamName string) bool {
	return c.opts.Admin.Username != "" && teamName == c.opts.Admin.Username
}

// Join authenticates req against an existing team or creates the team.
//
// The admin name never provisions anything. An existing team requires its passcode. Only
// a lookup that reports NotFound leads to creation, and creation additionally passes the
// capacity gate, the shared access password and the HMAC check, in that order.
func (c *Controller) Join(ctx context.Context, req JoinRequest) (JoinResult, error) {
	logger := logging.ForTeam(c.logger, req.Team)

	if c.IsAdmin(req.Team) {
		return c.joinAdmin(logger, req)
	}

	if err := team.ValidateName(req.Team); err != nil {
		return JoinResult{}, fmt.Errorf("%w: %w", operatorerrors.ErrInvalidTeamName, err)
	}

	record, err := c.instances.Get(ctx, req.Team)
	switch {
	case err == nil:
		return c.joinExisting(logger, req, record)
	case errors.Is(err, operatorerrors.ErrNotFound):
	default:
		logger.Error(err, "Failed to look up team instance")
		return JoinResult{}, fmt.Errorf("failed to look up team %s: %w", req.Team, err)
	}

	if err := c.checkCapacity(ctx, logger); err != nil {
		return JoinResult{}, err
	}
	if c.opts.AccessPassword != "" &&
		subtle.ConstantTimeCompare([]byte(req.Password), []byte(c.opts.AccessPassword)) != 1 {
		logger.Info("Rejected team creation with wrong access password")
		return JoinResult{}, operatorerrors.ErrInvalidAccessPassword
	}
	if !ValidHMAC(c.opts.HMACKey, req.Team, req.HMAC) {
		logger.Info("Rejected team creation with invalid hmac")
		return JoinResult{}, operatorerrors.ErrInvalidHMAC
	}

	return c.create(ctx, logger, req)
}

func (c *Controller) joinAdmin(logger logr.Logger, req JoinRequest) (JoinResult, error) {
	if c.opts.Admin.Password == "" ||
		subtle.ConstantTimeCompare([]byte(req.Passcode), []byte(c.opts.Admin.Password)) != 1 {
		monitoring.RecordFailedLogin(monitoring.UserTypeAdmin)
		logger.Info("Rejected admin login")
		return JoinResult{}, fmt.Errorf("admin login: %w", operatorerrors.ErrUnauthorized)
	}

	monitoring.RecordLogin(monitoring.LoginTypeLogin, monitoring.UserTypeAdmin)
	logging.LogAuditEvent(logger, logging.EventAdminSignedIn, map[string]string{"team": req.Team})
	return JoinResult{Outcome: OutcomeAdmin, Team: req.Team}, nil
}

func (c *Controller) joinExisting(logger logr.Logger, req JoinRequest, record team.InstanceRecord) (JoinResult, error) {
	if !VerifyPasscode(record.PasscodeHash, req.Passcode) {
		monitoring.RecordFailedLogin(monitoring.UserTypeUser)
		logging.LogAuditEvent(logger, logging.EventTeamJoinRejected, map[string]string{"team": req.Team})
		return JoinResult{}, fmt.Errorf("join team %s: %w", req.Team, operatorerrors.ErrUnauthorized)
	}

	monitoring.RecordLogin(monitoring.LoginTypeLogin, monitoring.UserTypeUser)
	logging.LogAuditEvent(logger, logging.EventTeamJoined, map[string]string{"team": req.Team})
	return JoinResult{Outcome: OutcomeJoined, Team: req.Team}, nil
}

// checkCapacity is advisory. Concurrent creates for different teams may both pass it.
func (c *Controller) checkCapacity(ctx context.Context, logger logr.Logger) error {
	if c.opts.MaxInstances < 0 {
		return nil
	}

	count, err := c.instances.CountInstances(ctx)
	if err != nil {
		logger.Error(err, "Failed to count instances, admitting anyway")
		return nil
	}
	if count >= c.opts.MaxInstances {
		logger.Info("Rejected team creation at capacity", "instances", count, "maxInstances", c.opts.MaxInstances)
		return fmt.Errorf("%d of %d instances in use: %w", count, c.opts.MaxInstances, operatorerrors.ErrCapacityExceeded)
	}
	return nil
}

func (c *Controller) create(ctx context.Context, logger logr.Logger, req JoinRequest) (JoinResult, error) {
	passcode, hash, err := GeneratePasscode(c.opts.Random, c.opts.Cost)
	if err != nil {
		return JoinResult{}, err
	}

	result, err := c.instances.Create(ctx, req.Team, hash)
	if errors.Is(err, operatorerrors.ErrAlreadyProvisioned) {
		logger.Info("Team was provisioned concurrently, joining instead")
		return c.joinAfterRace(ctx, logger, req)
	}
	if err != nil {
		return JoinResult{Pipeline: result}, err
	}

	monitoring.RecordLogin(monitoring.LoginTypeRegistration, monitoring.UserTypeUser)
	return JoinResult{Outcome: OutcomeCreated, Team: req.Team, Passcode: passcode, Pipeline: result}, nil
}

// joinAfterRace handles a create that lost the namespace race. The team exists, so the
// caller has to authenticate like any other joiner.
//
// A create that failed after the namespace step leaves a namespace without a workload.
// Every later join for that name ends here with ErrUnauthorized until an admin deletes
// the team; its desktop deployment keeps it visible in the admin listing.
func (c *Controller) joinAfterRace(ctx context.Context, logger logr.Logger, req JoinRequest) (JoinResult, error) {
	record, err := c.instances.Get(ctx, req.Team)
	switch {
	case err == nil:
		return c.joinExisting(logger, req, record)
	case errors.Is(err, operatorerrors.ErrNotFound):
		monitoring.RecordFailedLogin(monitoring.UserTypeUser)
		return JoinResult{}, fmt.Errorf("team %s is being provisioned: %w", req.Team, operatorerrors.ErrUnauthorized)
	default:
		return JoinResult{}, fmt.Errorf("failed to look up team %s: %w", req.Team, err)
	}
}

// ResetPasscode gives the team a new passcode and returns it in plaintext. The admin
// pseudo team has no passcode to reset.
func (c *Controller) ResetPasscode(ctx context.Context, teamName string) (string, error) {
	if c.IsAdmin(teamName) {
		return "", fmt.Errorf("reset passcode of the admin: %w", operatorerrors.ErrForbidden)
	}

	passcode, hash, err := GeneratePasscode(c.opts.Random, c.opts.Cost)
	if err != nil {
		return "", err
	}
	if err := c.instances.ResetPasscode(ctx, teamName, hash); err != nil {
		return "", err
	}
	return passcode, nil
}
