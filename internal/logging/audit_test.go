package logging

import (
	"strings"
	"testing"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder returns a logger whose lines are appended to lines.
func recorder(lines *[]string) logr.Logger {
	return funcr.New(func(prefix, args string) {
		*lines = append(*lines, args)
	}, funcr.Options{})
}

func TestLogAuditEvent(t *testing.T) {
	var lines []string

	LogAuditEvent(recorder(&lines), EventTeamDeleted, map[string]string{
		"team":  "blue",
		"actor": "admin",
	})

	require.Len(t, lines, 1)
	line := lines[0]
	assert.Contains(t, line, `"msg"="Balancer audit event"`)
	assert.Contains(t, line, `"audit"="true"`)
	assert.Contains(t, line, `"event_type"="team_deleted"`)

	order := []string{`"audit"`, `"event_type"`, `"actor"="admin"`, `"team"="blue"`}
	last := -1
	for _, fragment := range order {
		idx := strings.Index(line, fragment)
		require.GreaterOrEqual(t, idx, 0, "missing %s in %s", fragment, line)
		assert.Greater(t, idx, last, "%s out of order in %s", fragment, line)
		last = idx
	}
}

func TestLogAuditEvent_Deterministic(t *testing.T) {
	var lines []string
	fields := map[string]string{"team": "red", "pod": "t-red-wrongsecrets-0", "reason": "admin"}

	for range 5 {
		LogAuditEvent(recorder(&lines), EventWorkloadRestarted, fields)
	}

	for _, line := range lines[1:] {
		assert.Equal(t, lines[0], line)
	}
}

func TestForTeam(t *testing.T) {
	var lines []string

	ForTeam(recorder(&lines), "blue").Info("provisioned")

	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], `"msg"="provisioned"`)
	assert.Contains(t, lines[0], `"team"="blue"`)
}
