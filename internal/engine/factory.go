package engine

import (
	"github.com/arewefastyet/jsbuild/internal/state"
	"github.com/arewefastyet/jsbuild/pkg/archive"
	"github.com/arewefastyet/jsbuild/pkg/config"
	"github.com/arewefastyet/jsbuild/pkg/interfaces"
	"github.com/arewefastyet/jsbuild/pkg/logger"
	"github.com/arewefastyet/jsbuild/pkg/manifest"
	"github.com/arewefastyet/jsbuild/pkg/notifier"
	"github.com/arewefastyet/jsbuild/pkg/process"
	"github.com/arewefastyet/jsbuild/pkg/toolchain"
	"github.com/arewefastyet/jsbuild/pkg/vcs"
)

// DependencyFactory creates the default collaborators of a run
type DependencyFactory struct {
	outputDir string
	logger    logger.Logger
	settings  *config.Settings
}

// NewDependencyFactory creates a new dependency factory
func NewDependencyFactory(outputDir string, log logger.Logger, settings *config.Settings) *DependencyFactory {
	if log == nil {
		log = logger.Discard()
	}
	if settings == nil {
		settings = config.NewManager().GetDefaultConfig()
	}
	return &DependencyFactory{outputDir: outputDir, logger: log, settings: settings}
}

// CreateDefaults wires the host implementations
func (f *DependencyFactory) CreateDefaults() Dependencies {
	runner := f.createRunner()
	return Dependencies{
		Runner:    runner,
		Pullers:   f.createResolver(runner),
		Installer: toolchain.NewInstaller(archive.NewClient(), f.logger),
		Manifest:  manifest.NewWriter(f.logger),
		Notifier:  f.createNotifier(),
		Recorder:  f.CreateRecorder(),
	}
}

// CreateWithOverrides creates dependencies, replacing defaults with the non-nil overrides
func (f *DependencyFactory) CreateWithOverrides(overrides Dependencies) Dependencies {
	deps := f.CreateDefaults()

	if overrides.Runner != nil {
		deps.Runner = overrides.Runner
		if overrides.Pullers == nil {
			deps.Pullers = f.createResolver(overrides.Runner)
		}
	}
	if overrides.Pullers != nil {
		deps.Pullers = overrides.Pullers
	}
	if overrides.Installer != nil {
		deps.Installer = overrides.Installer
	}
	if overrides.Manifest != nil {
		deps.Manifest = overrides.Manifest
	}
	if overrides.Notifier != nil {
		deps.Notifier = overrides.Notifier
	}
	if overrides.Recorder != nil {
		deps.Recorder = overrides.Recorder
	}
	if overrides.Detect != nil {
		deps.Detect = overrides.Detect
	}
	if overrides.Environment != nil {
		deps.Environment = overrides.Environment
	}
	return deps
}

// CreateRecorder returns the run recorder of the output folder
func (f *DependencyFactory) CreateRecorder() *state.Recorder {
	return state.NewRecorder(f.outputDir, f.logger)
}

func (f *DependencyFactory) createRunner() process.Runner {
	return process.NewExecRunner(f.logger, process.WithIdleTimeout(f.settings.IdleTimeout.Std()))
}

func (f *DependencyFactory) createResolver(runner process.Runner) *vcs.Resolver {
	return vcs.NewResolver(runner, f.logger,
		vcs.WithRepositories(f.settings.Repositories),
		vcs.WithDepotBranch(f.settings.DepotBranch))
}

func (f *DependencyFactory) createNotifier() interfaces.BuildNotifier {
	return notifier.New(notifier.Config{Enabled: f.settings.Notifications}, f.logger)
}
