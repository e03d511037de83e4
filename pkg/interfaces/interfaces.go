// Package interfaces provides abstractions for dependency injection and testability
package interfaces

import (
	"context"
	"time"

	"github.com/arewefastyet/jsbuild/pkg/process"
	"github.com/arewefastyet/jsbuild/pkg/types"
)

//go:generate mockgen -destination=../mocks/mock_runner.go -package=mocks github.com/arewefastyet/jsbuild/pkg/process Runner
//go:generate mockgen -destination=../mocks/mock_puller.go -package=mocks github.com/arewefastyet/jsbuild/pkg/interfaces Puller

// Runner executes external tools
type Runner = process.Runner

// Puller brings a working copy to a requested revision of one repository
type Puller interface {
	// Ensure makes Path a working copy of the repository, recloning from
	// scratch when the recorded remote does not match.
	Ensure(ctx context.Context) error
	// Sync pulls new history and updates to rev, or to the tracked tip when rev is empty.
	Sync(ctx context.Context, rev string) error
	// Identify returns the canonical revision of the current checkout
	Identify(ctx context.Context) (string, error)
	Path() string
	Repository() string
}

// RevisionSource resolves the checked-out revision for the manifest
type RevisionSource interface {
	Identify(ctx context.Context) (string, error)
}

// ManifestWriter persists the build manifest beside the source tree
type ManifestWriter interface {
	Write(dir string, m *types.Manifest) (string, error)
}

// BuildNotifier handles build notifications
type BuildNotifier interface {
	NotifyBuildStart(target string)
	NotifyBuildSuccess(target string, duration time.Duration)
	NotifyBuildFailure(target string, err error)
}

// RunRecorder persists the outcome of orchestration runs
type RunRecorder interface {
	Begin(opts types.Options) error
	UpdateStatus(status types.BuildStatus) error
	Finish(revision, binary string, runErr error) error
	IsLocked() (bool, error)
}

// ProcessManager handles process lifecycle
type ProcessManager interface {
	RegisterShutdownHandler(handler func())
	Start(ctx context.Context) context.Context
	Stop()
	IsRunning() bool
}
