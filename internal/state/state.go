// Package state records the most recent orchestration run of an output folder
package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/google/renameio"

	"github.com/arewefastyet/jsbuild/pkg/logger"
	"github.com/arewefastyet/jsbuild/pkg/types"
)

const (
	// DirName is the hidden folder holding run state inside the output folder
	DirName = ".jsbuild"
	// FileName is the run state file inside DirName
	FileName = "state.json"

	// StaleAfter is how old a heartbeat may get before its owner is presumed dead
	StaleAfter = 30 * time.Second

	heartbeatInterval = 10 * time.Second
)

// RunState is the persisted record of a run
type RunState struct {
	RunID         string              `json:"runId,omitempty"`
	Repository    string              `json:"repository"`
	Requested     string              `json:"requestedRevision,omitempty"`
	Configuration types.Configuration `json:"configuration"`
	Force         bool                `json:"force,omitempty"`
	Status        types.BuildStatus   `json:"status"`
	ProcessID     int                 `json:"processId"`
	Heartbeat     time.Time           `json:"heartbeat"`
	StartedAt     time.Time           `json:"startedAt"`
	FinishedAt    time.Time           `json:"finishedAt,omitempty"`
	Duration      time.Duration       `json:"duration,omitempty"`
	Revision      string              `json:"revision,omitempty"`
	Binary        string              `json:"binary,omitempty"`
	LastError     string              `json:"lastError,omitempty"`
	BuildCount    int                 `json:"buildCount"`
	FailureCount  int                 `json:"failureCount"`
}

// Recorder persists run state to <output>/.jsbuild/state.json
type Recorder struct {
	path   string
	runID  string
	logger logger.Logger

	mu            sync.Mutex
	state         *RunState
	heartbeatStop chan struct{}
}

// NewRecorder creates a recorder for the output folder
func NewRecorder(outputDir string, log logger.Logger) *Recorder {
	if log == nil {
		log = logger.Discard()
	}
	return &Recorder{
		path:   filepath.Join(outputDir, DirName, FileName),
		logger: log.WithComponent("state"),
	}
}

// Path returns the state file location
func (r *Recorder) Path() string {
	return r.path
}

// SetRunID tags subsequent runs with id
func (r *Recorder) SetRunID(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runID = id
}

// Begin starts a new run record, keeping the counters of earlier runs
func (r *Recorder) Begin(opts types.Options) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	s := &RunState{
		RunID:         r.runID,
		Repository:    opts.Repository,
		Requested:     opts.Revision,
		Configuration: opts.Configuration,
		Force:         opts.Force,
		Status:        types.BuildStatusIdle,
		ProcessID:     os.Getpid(),
		Heartbeat:     now,
		StartedAt:     now,
	}

	if previous, err := Load(r.path); err == nil {
		s.BuildCount = previous.BuildCount
		s.FailureCount = previous.FailureCount
	} else if !errors.Is(err, os.ErrNotExist) {
		r.logger.Warn("Ignoring unreadable state file", logger.WithField("error", err))
	}

	r.state = s
	return r.save()
}

// UpdateStatus records the current phase of the run
func (r *Recorder) UpdateStatus(status types.BuildStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == nil {
		return errors.New("no run in progress")
	}
	r.state.Status = status
	r.state.Heartbeat = time.Now()
	return r.save()
}

// Finish records the outcome of the run and releases ownership
func (r *Recorder) Finish(revision, binary string, runErr error) error {
	r.stopHeartbeat()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == nil {
		return errors.New("no run in progress")
	}

	now := time.Now()
	s := r.state
	s.FinishedAt = now
	s.Duration = now.Sub(s.StartedAt)
	s.Heartbeat = now
	s.ProcessID = 0

	switch {
	case runErr == nil:
		s.Status = types.BuildStatusSucceeded
		s.Revision = revision
		s.Binary = binary
		s.LastError = ""
		s.BuildCount++
	case errors.Is(runErr, context.Canceled):
		s.Status = types.BuildStatusCancelled
		s.LastError = runErr.Error()
	default:
		s.Status = types.BuildStatusFailed
		s.LastError = runErr.Error()
		s.FailureCount++
	}
	return r.save()
}

// IsLocked reports whether another live process is running against the same folder
func (r *Recorder) IsLocked() (bool, error) {
	s, err := Load(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}

	if s.ProcessID == 0 || s.ProcessID == os.Getpid() {
		return false, nil
	}
	if time.Since(s.Heartbeat) > StaleAfter {
		return false, nil
	}
	return alive(s.ProcessID), nil
}

// StartHeartbeat refreshes the heartbeat until ctx ends or the run finishes
func (r *Recorder) StartHeartbeat(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.heartbeatStop != nil {
		return
	}
	stop := make(chan struct{})
	r.heartbeatStop = stop

	go func() {
		ticker := time.NewTicker(heartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-ticker.C:
				r.beat()
			}
		}
	}()
}

func (r *Recorder) stopHeartbeat() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.heartbeatStop != nil {
		close(r.heartbeatStop)
		r.heartbeatStop = nil
	}
}

func (r *Recorder) beat() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == nil {
		return
	}
	r.state.Heartbeat = time.Now()
	if err := r.save(); err != nil {
		r.logger.Debug("Failed to update heartbeat", logger.WithField("error", err))
	}
}

// Remove deletes the state file
func (r *Recorder) Remove() error {
	if err := os.Remove(r.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove state file: %w", err)
	}
	return nil
}

// Load reads a state file
func Load(path string) (*RunState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s RunState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse state file: %w", err)
	}
	return &s, nil
}

// save must be called with mu held
func (r *Recorder) save() error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(r.state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	if err := renameio.WriteFile(r.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	return nil
}

func alive(pid int) bool {
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return p.Signal(syscall.Signal(0)) == nil
}
