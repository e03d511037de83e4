// Package engine drives one orchestration run: validate the request, bring
// the working copy to the requested revision, detect the engine family,
// build it and describe the result in a manifest.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/arewefastyet/jsbuild/internal/builders"
	pkgbuilders "github.com/arewefastyet/jsbuild/pkg/builders"
	"github.com/arewefastyet/jsbuild/pkg/config"
	pcontext "github.com/arewefastyet/jsbuild/pkg/context"
	"github.com/arewefastyet/jsbuild/pkg/interfaces"
	"github.com/arewefastyet/jsbuild/pkg/logger"
	"github.com/arewefastyet/jsbuild/pkg/toolchain"
	"github.com/arewefastyet/jsbuild/pkg/types"
)

// PullerFactory resolves a repository name to a puller rooted at folder
type PullerFactory interface {
	NewPuller(name, folder string) (interfaces.Puller, error)
}

// DetectFunc picks the build strategy for a source tree
type DetectFunc func(folder string, opts pkgbuilders.Options) (pkgbuilders.Strategy, error)

// Dependencies are the collaborators of a run
type Dependencies struct {
	Runner    interfaces.Runner
	Pullers   PullerFactory
	Installer *toolchain.Installer
	Manifest  interfaces.ManifestWriter
	Notifier  interfaces.BuildNotifier
	Recorder  interfaces.RunRecorder
	Detect    DetectFunc
	// Environment returns a fresh environment builder for each run
	Environment func() *toolchain.Builder
}

// Result describes a successful run
type Result struct {
	RunID    string
	Family   string
	Manifest *types.Manifest
	Duration time.Duration
}

// Engine runs builds
type Engine struct {
	settings *config.Settings
	host     types.Host
	logger   logger.Logger
	deps     Dependencies
	validate *validator.Validate
}

// New creates an engine. Missing optional dependencies get inert defaults.
func New(settings *config.Settings, host types.Host, log logger.Logger, deps Dependencies) *Engine {
	if log == nil {
		log = logger.Discard()
	}
	if settings == nil {
		settings = config.NewManager().GetDefaultConfig()
	}
	if deps.Runner == nil {
		panic("Runner dependency is required")
	}
	if deps.Pullers == nil {
		panic("Pullers dependency is required")
	}
	if deps.Manifest == nil {
		panic("Manifest dependency is required")
	}
	if deps.Detect == nil {
		deps.Detect = builders.Detect
	}
	if deps.Environment == nil {
		deps.Environment = toolchain.NewBuilder
	}
	if deps.Notifier == nil {
		deps.Notifier = nopNotifier{}
	}
	if deps.Recorder == nil {
		deps.Recorder = nopRecorder{}
	}

	return &Engine{
		settings: settings,
		host:     host,
		logger:   log.WithComponent("engine"),
		deps:     deps,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Validate checks opts and resolves its configuration for the host.
// Nothing is synced or built unless this succeeds.
func (e *Engine) Validate(opts types.Options) (types.Configuration, error) {
	if err := e.validate.Struct(opts); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 && verrs[0].Field() == "Configuration" {
			return "", fmt.Errorf("%w: %q", types.ErrInvalidConfiguration, opts.Configuration)
		}
		return "", fmt.Errorf("invalid options: %w", err)
	}
	return opts.Configuration.Resolve(e.host)
}

// Run syncs and builds opts.Repository into opts.OutputDir
func (e *Engine) Run(ctx context.Context, opts types.Options) (res *Result, err error) {
	resolved, err := e.Validate(opts)
	if err != nil {
		return nil, err
	}

	ctx = pcontext.EnrichContext(ctx)
	ctx = pcontext.WithOperation(ctx, "build")
	log := logger.WithContext(ctx, e.logger)
	start := time.Now()

	if locked, lerr := e.deps.Recorder.IsLocked(); lerr != nil {
		log.Warn("Could not read previous run state", logger.WithField("error", lerr))
	} else if locked {
		log.Warn("Another jsbuild process is using this output folder; concurrent runs are not supported",
			logger.WithField("output", opts.OutputDir))
	}

	if tagger, ok := e.deps.Recorder.(interface{ SetRunID(string) }); ok {
		tagger.SetRunID(pcontext.GetRunID(ctx))
	}
	if rerr := e.deps.Recorder.Begin(opts); rerr != nil {
		log.Warn("Failed to record run start", logger.WithField("error", rerr))
	}
	if hb, ok := e.deps.Recorder.(interface{ StartHeartbeat(context.Context) }); ok {
		hb.StartHeartbeat(ctx)
	}

	e.deps.Notifier.NotifyBuildStart(opts.Repository)
	defer func() {
		revision, binary := "", ""
		if res != nil {
			revision, binary = res.Manifest.Revision, res.Manifest.Binary
			e.deps.Notifier.NotifyBuildSuccess(opts.Repository, res.Duration)
		} else {
			e.deps.Notifier.NotifyBuildFailure(opts.Repository, err)
		}
		if ferr := e.deps.Recorder.Finish(revision, binary, err); ferr != nil {
			log.Warn("Failed to record run outcome", logger.WithField("error", ferr))
		}
	}()

	log.Info("Starting run",
		logger.WithField("repository", opts.Repository),
		logger.WithField("revision", opts.Revision),
		logger.WithField("config", resolved),
		logger.WithField("output", opts.OutputDir))

	puller, err := e.sync(ctx, log, opts)
	if err != nil {
		return nil, err
	}

	e.setStatus(log, types.BuildStatusBuilding)
	strategy, err := e.deps.Detect(opts.OutputDir, e.builderOptions(resolved))
	if err != nil {
		return nil, err
	}
	log.Info("Detected engine", logger.WithField("family", strategy.Name()))

	if opts.Force {
		log.Info("Removing previous build output", logger.WithField("objdir", strategy.ObjDir()))
		if err := pkgbuilders.CleanObjDir(strategy); err != nil {
			return nil, fmt.Errorf("cleaning %s: %w", strategy.ObjDir(), err)
		}
	}

	m, err := pkgbuilders.Build(ctx, strategy, puller, e.deps.Manifest, log)
	if err != nil {
		return nil, err
	}

	return &Result{
		RunID:    pcontext.GetRunID(ctx),
		Family:   strategy.Name(),
		Manifest: m,
		Duration: time.Since(start),
	}, nil
}

func (e *Engine) sync(ctx context.Context, log logger.Logger, opts types.Options) (interfaces.Puller, error) {
	e.setStatus(log, types.BuildStatusSyncing)

	puller, err := e.deps.Pullers.NewPuller(opts.Repository, opts.OutputDir)
	if err != nil {
		return nil, err
	}
	if err := puller.Ensure(ctx); err != nil {
		return nil, fmt.Errorf("preparing working copy of %s: %w", puller.Repository(), err)
	}
	if err := puller.Sync(ctx, opts.Revision); err != nil {
		return nil, fmt.Errorf("syncing %s: %w", puller.Repository(), err)
	}
	return puller, nil
}

// Clean removes the build output of the engine checked out in folder and
// returns the directory it removed
func (e *Engine) Clean(folder string, c types.Configuration) (string, error) {
	resolved, err := c.Resolve(e.host)
	if err != nil {
		return "", err
	}
	strategy, err := e.deps.Detect(folder, e.builderOptions(resolved))
	if err != nil {
		return "", err
	}
	return strategy.ObjDir(), pkgbuilders.CleanObjDir(strategy)
}

func (e *Engine) builderOptions(c types.Configuration) pkgbuilders.Options {
	return pkgbuilders.Options{
		Config:         c,
		Host:           e.host,
		Runner:         e.deps.Runner,
		Logger:         e.logger,
		Installer:      e.deps.Installer,
		Env:            e.deps.Environment(),
		Jobs:           e.settings.Jobs,
		IdleTimeout:    e.settings.IdleTimeout.Std(),
		CommandTimeout: e.settings.CommandTimeout.Std(),
		ToolchainDir:   e.settings.ToolchainDir,
		ClangURL:       e.settings.ClangURL,
		NDKURL:         e.settings.NDKURL,
	}
}

func (e *Engine) setStatus(log logger.Logger, status types.BuildStatus) {
	if err := e.deps.Recorder.UpdateStatus(status); err != nil {
		log.Debug("Failed to record status", logger.WithField("status", status), logger.WithField("error", err))
	}
}

type nopNotifier struct{}

func (nopNotifier) NotifyBuildStart(string) {}

func (nopNotifier) NotifyBuildSuccess(string, time.Duration) {}

func (nopNotifier) NotifyBuildFailure(string, error) {}

type nopRecorder struct{}

func (nopRecorder) Begin(types.Options) error { return nil }

func (nopRecorder) UpdateStatus(types.BuildStatus) error { return nil }

func (nopRecorder) Finish(string, string, error) error { return nil }

func (nopRecorder) IsLocked() (bool, error) { return false, nil }
