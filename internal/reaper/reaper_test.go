package reaper

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dc-tec/wrongsecrets-balancer/internal/constants"
	operatorerrors "github.com/dc-tec/wrongsecrets-balancer/internal/errors"
	"github.com/dc-tec/wrongsecrets-balancer/internal/team"
)

var now = time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)

type fakeInstances struct {
	records   []team.InstanceRecord
	listErr   error
	deleteErr map[string]error
	deleted   []string
}

func (f *fakeInstances) List(context.Context) ([]team.InstanceRecord, error) {
	return f.records, f.listErr
}

func (f *fakeInstances) Delete(_ context.Context, teamName string) error {
	if err := f.deleteErr[teamName]; err != nil {
		return err
	}
	f.deleted = append(f.deleted, teamName)
	return nil
}

func newReaper(t *testing.T, instances Instances) *Reaper {
	t.Helper()
	r, err := New(instances, logr.Discard(), Options{
		Schedule:    "0 * * * *",
		MaxInactive: 24 * time.Hour,
		Protected:   []string{"admin"},
		Now:         func() time.Time { return now },
	})
	require.NoError(t, err)
	return r
}

func record(teamName, name string, created, lastRequest time.Time) team.InstanceRecord {
	return team.InstanceRecord{Team: teamName, Name: name, CreatedAt: created, LastRequest: lastRequest}
}

func TestRunOnce(t *testing.T) {
	old := now.Add(-48 * time.Hour)
	recent := now.Add(-time.Hour)

	instances := &fakeInstances{records: []team.InstanceRecord{
		record("stale", "t-stale-wrongsecrets", old, old),
		record("stale", "t-stale-virtualdesktop", old, time.Time{}),
		record("active", "t-active-wrongsecrets", old, recent),
		record("active", "t-active-virtualdesktop", old, time.Time{}),
		// No lastRequest annotation: the creation time counts.
		record("never-used", "t-never-used-wrongsecrets", old, time.Time{}),
		record("fresh", "t-fresh-wrongsecrets", recent, time.Time{}),
		record("admin", "t-admin-wrongsecrets", old, old),
		record(constants.IgnoredTeamName, "orphan", old, old),
	}}

	result, err := newReaper(t, instances).RunOnce(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 4, result.Checked)
	assert.Equal(t, []string{"never-used", "stale"}, result.Deleted)
	assert.Equal(t, []string{"never-used", "stale"}, instances.deleted)
}

func TestRunOnce_ExactlyAtCutoffIsKept(t *testing.T) {
	instances := &fakeInstances{records: []team.InstanceRecord{
		record("edge", "t-edge-wrongsecrets", now.Add(-48*time.Hour), now.Add(-24*time.Hour)),
	}}

	result, err := newReaper(t, instances).RunOnce(context.Background())

	require.NoError(t, err)
	assert.Empty(t, result.Deleted)
}

func TestRunOnce_ListFailure(t *testing.T) {
	instances := &fakeInstances{listErr: operatorerrors.ErrUnavailable}

	_, err := newReaper(t, instances).RunOnce(context.Background())

	assert.ErrorIs(t, err, operatorerrors.ErrUnavailable)
}

func TestRunOnce_ContinuesPastFailedDeletes(t *testing.T) {
	old := now.Add(-48 * time.Hour)
	instances := &fakeInstances{
		records: []team.InstanceRecord{
			record("alpha", "t-alpha-wrongsecrets", old, old),
			record("bravo", "t-bravo-wrongsecrets", old, old),
			record("charlie", "t-charlie-wrongsecrets", old, old),
		},
		deleteErr: map[string]error{
			"alpha": fmt.Errorf("delete namespace: %w", operatorerrors.ErrForbidden),
			"bravo": fmt.Errorf("team bravo: %w", operatorerrors.ErrNoInstance),
		},
	}

	result, err := newReaper(t, instances).RunOnce(context.Background())

	assert.ErrorIs(t, err, operatorerrors.ErrForbidden)
	assert.NotErrorIs(t, err, operatorerrors.ErrNoInstance)
	assert.Equal(t, []string{"charlie"}, result.Deleted)
}

func TestRunOnce_Cancelled(t *testing.T) {
	old := now.Add(-48 * time.Hour)
	instances := &fakeInstances{records: []team.InstanceRecord{record("alpha", "t-alpha-wrongsecrets", old, old)}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newReaper(t, instances).RunOnce(ctx)

	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, instances.deleted)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(&fakeInstances{}, logr.Discard(), Options{Schedule: "every hour", MaxInactive: time.Hour})
	assert.ErrorContains(t, err, "invalid cron expression")

	_, err = New(&fakeInstances{}, logr.Discard(), Options{Schedule: "0 * * * *"})
	assert.ErrorContains(t, err, "max inactivity")
}

func TestStart_StopsOnCancel(t *testing.T) {
	r, err := New(&fakeInstances{}, logr.Discard(), Options{Schedule: "0 * * * *", MaxInactive: time.Hour})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- r.Start(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("reaper did not stop")
	}
	assert.True(t, r.NeedLeaderElection())
}

func TestNextSweep(t *testing.T) {
	r := newReaper(t, &fakeInstances{})
	assert.Equal(t, time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC), r.NextSweep())

	_, err := ParseSchedule("60 * * * *")
	assert.Error(t, err)
}
