// Package builders drives the native build of each JavaScript engine family
package builders

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/arewefastyet/jsbuild/pkg/interfaces"
	"github.com/arewefastyet/jsbuild/pkg/logger"
	"github.com/arewefastyet/jsbuild/pkg/process"
	"github.com/arewefastyet/jsbuild/pkg/toolchain"
	"github.com/arewefastyet/jsbuild/pkg/types"
	"github.com/arewefastyet/jsbuild/pkg/utils"
)

// DefaultJobs is the parallelism handed to make
const DefaultJobs = 6

var (
	// ErrUnknownBuilder indicates a source tree no engine family recognizes
	ErrUnknownBuilder = errors.New("unknown builder")

	// ErrBuildFailed indicates the build did not produce a binary after reconfiguring
	ErrBuildFailed = errors.New("build failed")

	// ErrUnsupportedConfiguration indicates a family cannot build the configuration on this host
	ErrUnsupportedConfiguration = errors.New("unsupported build configuration")
)

// Strategy is the build procedure of one engine family
type Strategy interface {
	Name() string
	Folder() string
	ObjDir() string
	Binary() string
	// Prepare adjusts the environment and installs host toolchains before any build step
	Prepare(ctx context.Context) error
	// Make runs the native incremental build
	Make(ctx context.Context) error
	// Reconfigure cleans and regenerates the native build configuration
	Reconfigure(ctx context.Context) error
	// Info returns the family-specific manifest fields
	Info() *types.Manifest
}

// Options configures a builder
type Options struct {
	Config         types.Configuration // resolved, never auto
	Host           types.Host
	Runner         process.Runner
	Logger         logger.Logger
	Installer      *toolchain.Installer
	Env            *toolchain.Builder // nil seeds from the host environment
	Jobs           int
	IdleTimeout    time.Duration
	// CommandTimeout bounds short helper commands such as patching and install_name_tool
	CommandTimeout time.Duration
	ToolchainDir   string
	ClangURL       string
	NDKURL         string
}

// BaseBuilder provides common functionality for all engine families
type BaseBuilder struct {
	name   string
	folder string

	Config    types.Configuration
	Host      types.Host
	Runner    process.Runner
	Logger    logger.Logger
	Env       *toolchain.Builder
	Installer *toolchain.Installer

	jobs           int
	idleTimeout    time.Duration
	commandTimeout time.Duration
	toolchainDir   string
	clangURL       string
	ndkURL         string
}

// NewBaseBuilder creates a new base builder
func NewBaseBuilder(name, folder string, opts Options) *BaseBuilder {
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}
	env := opts.Env
	if env == nil {
		env = toolchain.NewBuilder()
	}
	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = DefaultJobs
	}
	toolsDir := opts.ToolchainDir
	if toolsDir == "" {
		toolsDir = filepath.Join(folder, ".toolchains")
	}

	return &BaseBuilder{
		name:           name,
		folder:         folder,
		Config:         opts.Config,
		Host:           opts.Host,
		Runner:         opts.Runner,
		Logger:         log.WithComponent("builders." + name),
		Env:            env,
		Installer:      opts.Installer,
		jobs:           jobs,
		idleTimeout:    opts.IdleTimeout,
		commandTimeout: opts.CommandTimeout,
		toolchainDir:   toolsDir,
		clangURL:       opts.ClangURL,
		ndkURL:         opts.NDKURL,
	}
}

// Name returns the engine family name
func (b *BaseBuilder) Name() string {
	return b.name
}

// Folder returns the source-tree root
func (b *BaseBuilder) Folder() string {
	return b.folder
}

// Prepare applies the host compiler override
func (b *BaseBuilder) Prepare(ctx context.Context) error {
	return b.useHostCompiler(ctx)
}

// Reconfigure does nothing for families whose build driver configures itself
func (b *BaseBuilder) Reconfigure(ctx context.Context) error {
	b.Logger.Debug("No reconfiguration step")
	return nil
}

// useHostCompiler swaps in the pinned clang on macOS, whose system compiler is too old
func (b *BaseBuilder) useHostCompiler(ctx context.Context) error {
	if b.Host.OS != "darwin" {
		return nil
	}
	dir, err := b.install(ctx, toolchain.Clang(b.toolchainDir, b.clangURL))
	if err != nil {
		return err
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	b.Env.UseCompiler(toolchain.ClangCompiler(abs))
	return nil
}

func (b *BaseBuilder) install(ctx context.Context, p toolchain.Package) (string, error) {
	if b.Installer == nil {
		return "", fmt.Errorf("no installer configured for %s", p.Name)
	}
	return b.Installer.Ensure(ctx, p)
}

// run executes a long build step with live output and the per-line idle timeout
func (b *BaseBuilder) run(ctx context.Context, dir string, args ...string) error {
	_, err := b.Runner.Run(ctx, process.Command{
		Args:        args,
		Dir:         dir,
		Env:         b.Env.Environment().Environ(),
		Stream:      true,
		IdleTimeout: b.idleTimeout,
	})
	return err
}

// runQuiet executes a short helper command and captures its output
func (b *BaseBuilder) runQuiet(ctx context.Context, dir string, args ...string) (string, error) {
	return b.Runner.Run(ctx, process.Command{
		Args:    args,
		Dir:     dir,
		Env:     b.Env.Environment().Environ(),
		Timeout: b.commandTimeout,
	})
}

// Build drives s through the shared state machine: remove the old binary,
// try an incremental build, and only if that leaves no binary reconfigure
// and build once more. On success the manifest is written exactly once.
func Build(ctx context.Context, s Strategy, rev interfaces.RevisionSource, w interfaces.ManifestWriter, log logger.Logger) (*types.Manifest, error) {
	if log == nil {
		log = logger.Discard()
	}
	log = log.WithComponent("builders." + s.Name())
	start := time.Now()

	if err := s.Prepare(ctx); err != nil {
		return nil, fmt.Errorf("preparing %s build: %w", s.Name(), err)
	}

	if err := utils.RemoveIfExists(s.Binary()); err != nil {
		return nil, fmt.Errorf("removing previous binary: %w", err)
	}

	if err := s.Make(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		log.Warn("Incremental build failed, reconfiguring", logger.WithField("error", err))
	}

	if !utils.IsFile(s.Binary()) {
		log.Info("No binary after incremental build, reconfiguring", logger.WithField("objdir", s.ObjDir()))
		if err := s.Reconfigure(ctx); err != nil {
			return nil, fmt.Errorf("%w: reconfiguring %s: %w", ErrBuildFailed, s.Name(), err)
		}
		if err := s.Make(ctx); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrBuildFailed, s.Name(), err)
		}
	}

	if !utils.IsFile(s.Binary()) {
		return nil, fmt.Errorf("%w: %s produced no binary at %s", ErrBuildFailed, s.Name(), s.Binary())
	}

	info := s.Info()
	revision, err := rev.Identify(ctx)
	if err != nil {
		return nil, fmt.Errorf("identifying revision: %w", err)
	}
	info.Revision = revision
	if info.Shell == nil {
		info.Shell = types.Bool(true)
	}
	binary, err := filepath.Abs(s.Binary())
	if err != nil {
		return nil, err
	}
	info.Binary = binary

	if _, err := w.Write(s.Folder(), info); err != nil {
		return nil, err
	}

	log.Success("Build done",
		logger.WithField("binary", binary),
		logger.WithField("revision", revision),
		logger.WithField("duration", time.Since(start).Round(time.Second)))
	return info, nil
}

// CleanObjDir removes the build output of s
func CleanObjDir(s Strategy) error {
	return utils.RemoveIfExists(s.ObjDir())
}
