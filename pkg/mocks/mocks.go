// Package mocks provides mock implementations of interfaces for testing.
package mocks

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/arewefastyet/jsbuild/pkg/process"
	"github.com/arewefastyet/jsbuild/pkg/types"
)

// RunFunc produces the result of one scripted command
type RunFunc func(c process.Command) (string, error)

type fakeRule struct {
	prefix string
	fn     RunFunc
	once   bool
	used   bool
}

// FakeRunner is a scripted process.Runner that records every command in order
// and never spawns a subprocess. Commands are matched by the prefix of their
// shell-quoted form; the most recently registered rule wins.
type FakeRunner struct {
	mu    sync.Mutex
	calls []process.Command
	rules []*fakeRule
}

// NewFakeRunner creates a runner where every command succeeds with no output
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{}
}

// Handle scripts fn for commands starting with prefix
func (f *FakeRunner) Handle(prefix string, fn RunFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = append(f.rules, &fakeRule{prefix: prefix, fn: fn})
}

// HandleOnce scripts fn for the next matching command only
func (f *FakeRunner) HandleOnce(prefix string, fn RunFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = append(f.rules, &fakeRule{prefix: prefix, fn: fn, once: true})
}

// Respond scripts a fixed output and error for commands starting with prefix
func (f *FakeRunner) Respond(prefix, output string, err error) {
	f.Handle(prefix, func(process.Command) (string, error) { return output, err })
}

// Run implements process.Runner
func (f *FakeRunner) Run(ctx context.Context, c process.Command) (string, error) {
	if len(c.Args) == 0 {
		return "", process.ErrEmptyCommand
	}

	f.mu.Lock()
	c.Args = append([]string(nil), c.Args...)
	c.Env = append([]string(nil), c.Env...)
	f.calls = append(f.calls, c)

	var fn RunFunc
	line := c.String()
	for i := len(f.rules) - 1; i >= 0; i-- {
		r := f.rules[i]
		if r.used || !strings.HasPrefix(line, r.prefix) {
			continue
		}
		if r.once {
			r.used = true
		}
		fn = r.fn
		break
	}
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if fn == nil {
		return "", nil
	}
	return fn(c)
}

// Calls returns the recorded commands in execution order
func (f *FakeRunner) Calls() []process.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]process.Command(nil), f.calls...)
}

// Commands returns the recorded commands rendered as shell lines
func (f *FakeRunner) Commands() []string {
	calls := f.Calls()
	lines := make([]string, len(calls))
	for i, c := range calls {
		lines[i] = c.String()
	}
	return lines
}

// CallCount returns the number of commands run so far
func (f *FakeRunner) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// Reset forgets recorded calls but keeps the script
func (f *FakeRunner) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

// MockNotifier records notifications instead of showing them
type MockNotifier struct {
	mu        sync.Mutex
	Started   []string
	Succeeded []string
	Failed    []string
}

// NotifyBuildStart records a start notification
func (m *MockNotifier) NotifyBuildStart(target string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Started = append(m.Started, target)
}

// NotifyBuildSuccess records a success notification
func (m *MockNotifier) NotifyBuildSuccess(target string, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Succeeded = append(m.Succeeded, target)
}

// NotifyBuildFailure records a failure notification
func (m *MockNotifier) NotifyBuildFailure(target string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Failed = append(m.Failed, target)
}

// MockRunRecorder is an in-memory run recorder
type MockRunRecorder struct {
	mu       sync.Mutex
	RunID    string
	Options  *types.Options
	Statuses []types.BuildStatus
	Revision string
	Binary   string
	Err      error
	locked   bool
	beginErr error
}

// NewMockRunRecorder creates a new mock recorder
func NewMockRunRecorder() *MockRunRecorder {
	return &MockRunRecorder{}
}

// SetRunID records the id of the next run
func (m *MockRunRecorder) SetRunID(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RunID = id
}

// Begin records the options of a new run
func (m *MockRunRecorder) Begin(opts types.Options) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.beginErr != nil {
		return m.beginErr
	}
	m.Options = &opts
	return nil
}

// UpdateStatus appends status to the history
func (m *MockRunRecorder) UpdateStatus(status types.BuildStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Statuses = append(m.Statuses, status)
	return nil
}

// Finish records the run outcome
func (m *MockRunRecorder) Finish(revision, binary string, runErr error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Revision = revision
	m.Binary = binary
	m.Err = runErr
	return nil
}

// IsLocked reports the value set with SetLocked
func (m *MockRunRecorder) IsLocked() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.locked, nil
}

// SetLocked makes IsLocked report another live owner
func (m *MockRunRecorder) SetLocked(locked bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locked = locked
}

// SetBeginError sets the error to return from Begin
func (m *MockRunRecorder) SetBeginError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.beginErr = err
}

// LastStatus returns the most recent status, or idle
func (m *MockRunRecorder) LastStatus() types.BuildStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Statuses) == 0 {
		return types.BuildStatusIdle
	}
	return m.Statuses[len(m.Statuses)-1]
}
