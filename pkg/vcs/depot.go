package vcs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/arewefastyet/jsbuild/pkg/logger"
	"github.com/arewefastyet/jsbuild/pkg/process"
	"github.com/arewefastyet/jsbuild/pkg/utils"
)

const (
	// DepotToolsURL is where the chromium dependency fetcher lives
	DepotToolsURL = "https://chromium.googlesource.com/chromium/tools/depot_tools.git"

	// DefaultDepotBranch is the branch a depot checkout tracks
	DefaultDepotBranch = "main"
)

// Depot syncs a checkout managed by depot_tools (fetch + gclient). The
// folder holds depot_tools next to the checkout; the source lives in folder/<project>.
type Depot struct {
	base
	project string
	branch  string
}

// NewDepot creates a depot_tools puller for project (e.g. "v8") under folder
func NewDepot(project, folder, branch string, runner process.Runner, log logger.Logger) *Depot {
	if branch == "" {
		branch = DefaultDepotBranch
	}
	return &Depot{
		base:    newBase(project, folder, runner, log, "vcs.depot"),
		project: project,
		branch:  branch,
	}
}

// Path returns the project checkout inside the depot folder
func (d *Depot) Path() string {
	return filepath.Join(d.folder, d.project)
}

// DepotToolsDir returns the depot_tools clone that must be on PATH
func (d *Depot) DepotToolsDir() string {
	return filepath.Join(d.folder, "depot_tools")
}

// Ensure fetches depot_tools and then the project through depot_tools' own fetch
func (d *Depot) Ensure(ctx context.Context) error {
	return d.ensure(ctx, d.folder, d.sameRepo, d.fetch)
}

func (d *Depot) sameRepo(context.Context) bool {
	return utils.Exists(filepath.Join(d.Path(), "LICENSE."+d.project))
}

func (d *Depot) fetch(ctx context.Context) error {
	if err := os.MkdirAll(d.folder, 0755); err != nil {
		return err
	}
	if _, err := d.run(ctx, d.folder, nil, "git", "clone", DepotToolsURL); err != nil {
		return fmt.Errorf("fetching depot_tools: %w", err)
	}
	env, err := d.environ()
	if err != nil {
		return err
	}
	_, err = d.runStreamed(ctx, d.folder, env, "fetch", d.project)
	return err
}

// Sync pulls the tracked branch and syncs dependencies. A specific revision is refused.
func (d *Depot) Sync(ctx context.Context, rev string) error {
	if rev != "" {
		return fmt.Errorf("%w: %s tracks %s, got %q", ErrRevisionNotSupported, d.project, d.branch, rev)
	}

	if _, err := d.run(ctx, d.Path(), nil, "git", "pull", "origin", d.branch); err != nil {
		return err
	}
	env, err := d.environ()
	if err != nil {
		return err
	}
	_, err = d.runStreamed(ctx, d.Path(), env, "gclient", "sync")
	return err
}

// Identify returns the commit hash of the project checkout
func (d *Depot) Identify(ctx context.Context) (string, error) {
	return gitHead(ctx, &d.base, d.Path(), nil)
}

func (d *Depot) runStreamed(ctx context.Context, dir string, env []string, args ...string) (string, error) {
	return d.runner.Run(ctx, process.Command{Args: args, Dir: dir, Env: env, Stream: true})
}

// environ is the host environment with depot_tools first on PATH
func (d *Depot) environ() ([]string, error) {
	tools, err := filepath.Abs(d.DepotToolsDir())
	if err != nil {
		return nil, err
	}

	env := os.Environ()
	for i, kv := range env {
		if path, ok := strings.CutPrefix(kv, "PATH="); ok {
			env[i] = "PATH=" + tools + string(os.PathListSeparator) + path
			return env, nil
		}
	}
	return append(env, "PATH="+tools), nil
}
