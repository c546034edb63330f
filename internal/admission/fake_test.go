package admission

import (
	"context"
	"fmt"
	"sync"

	operatorerrors "github.com/dc-tec/wrongsecrets-balancer/internal/errors"
	"github.com/dc-tec/wrongsecrets-balancer/internal/orchestrator"
	"github.com/dc-tec/wrongsecrets-balancer/internal/team"
)

// fakeInstances is an in-memory InstanceManager.
type fakeInstances struct {
	mu sync.Mutex

	records  map[string]team.InstanceRecord
	getErr   error
	count    int
	countErr error
	// createErr is returned by Create instead of storing a record.
	createErr error
	// onCreate runs under the lock when Create fails, to simulate a concurrent winner.
	onCreate func(records map[string]team.InstanceRecord)

	gets    int
	counts  int
	creates []string
	resets  map[string]string
}

func newFakeInstances() *fakeInstances {
	return &fakeInstances{
		records: map[string]team.InstanceRecord{},
		resets:  map[string]string{},
	}
}

func (f *fakeInstances) Get(_ context.Context, teamName string) (team.InstanceRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if f.getErr != nil {
		return team.InstanceRecord{}, f.getErr
	}
	record, ok := f.records[teamName]
	if !ok {
		return team.InstanceRecord{}, fmt.Errorf("get deployment t-%s/t-%s-wrongsecrets: %w", teamName, teamName, operatorerrors.ErrNotFound)
	}
	return record, nil
}

func (f *fakeInstances) CountInstances(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts++
	return f.count, f.countErr
}

func (f *fakeInstances) Create(_ context.Context, teamName, passcodeHash string) (*orchestrator.PipelineResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates = append(f.creates, teamName)
	result := &orchestrator.PipelineResult{Team: teamName, Strategy: "k8s"}
	if f.createErr != nil {
		if f.onCreate != nil {
			f.onCreate(f.records)
		}
		return result, f.createErr
	}
	f.records[teamName] = team.InstanceRecord{Team: teamName, Name: team.WorkloadName(teamName), PasscodeHash: passcodeHash}
	f.count++
	return result, nil
}

func (f *fakeInstances) ResetPasscode(_ context.Context, teamName, passcodeHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.records[teamName]
	if !ok {
		return fmt.Errorf("team %s: %w", teamName, operatorerrors.ErrNoInstance)
	}
	record.PasscodeHash = passcodeHash
	f.records[teamName] = record
	f.resets[teamName] = passcodeHash
	return nil
}

func (f *fakeInstances) createCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.creates...)
}
