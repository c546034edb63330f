package logging

import (
	"sort"

	"github.com/go-logr/logr"
)

// Audit event types emitted by the balancer.
const (
	EventTeamCreated        = "team_created"
	EventTeamCreateFailed   = "team_create_failed"
	EventTeamJoined         = "team_joined"
	EventTeamJoinRejected   = "team_join_rejected"
	EventTeamDeleted        = "team_deleted"
	EventTeamReaped         = "team_reaped"
	EventWorkloadRestarted  = "workload_restarted"
	EventDesktopRestarted   = "desktop_restarted"
	EventPasscodeReset      = "passcode_reset"
	EventAdminSignedIn      = "admin_signed_in"
	EventCloudIdentityBound = "cloud_identity_bound"
)

// LogAuditEvent logs a structured audit event for a team lifecycle action.
// Audit events are distinct from regular debug/info logs and are tagged
// with "audit=true" for easy filtering in log aggregation systems.
// Fields are attached in key order so identical events render identically.
func LogAuditEvent(logger logr.Logger, eventType string, fields map[string]string) {
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	kvs := make([]any, 0, 4+2*len(keys))
	kvs = append(kvs, "audit", "true", "event_type", eventType)
	for _, key := range keys {
		kvs = append(kvs, key, fields[key])
	}
	logger.WithValues(kvs...).Info("Balancer audit event")
}

// ForTeam returns a logger scoped to a single team.
func ForTeam(logger logr.Logger, team string) logr.Logger {
	return logger.WithValues("team", team)
}
