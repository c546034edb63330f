package constants

import "time"

// Readiness polling defaults.
const (
	DefaultReadinessAttempts = 180
	DefaultReadinessInterval = 4 * time.Second
)

// Inactivity cleanup defaults.
const (
	DefaultCleanupSchedule    = "0 * * * *"
	DefaultCleanupMaxInactive = 24 * time.Hour
)
