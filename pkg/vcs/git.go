package vcs

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"

	"gopkg.in/ini.v1"

	"github.com/arewefastyet/jsbuild/pkg/logger"
	"github.com/arewefastyet/jsbuild/pkg/process"
)

var gitHashPattern = regexp.MustCompile(`^([0-9a-f]{7,64})\s*$`)

// Git syncs a plain Git clone
type Git struct {
	base
}

// NewGit creates a Git puller for repo cloned at folder
func NewGit(repo, folder string, runner process.Runner, log logger.Logger) *Git {
	return &Git{base: newBase(repo, folder, runner, log, "vcs.git")}
}

// Ensure clones the repository unless .git/config records it as origin
func (g *Git) Ensure(ctx context.Context) error {
	return g.ensure(ctx, g.folder, g.sameRepo, g.clone)
}

func (g *Git) sameRepo(context.Context) bool {
	return gitOriginMatches(g.folder, g.repo)
}

func gitOriginMatches(dir, repo string) bool {
	cfg, err := ini.Load(filepath.Join(dir, ".git", "config"))
	if err != nil {
		return false
	}
	return sameURL(cfg.Section(`remote "origin"`).Key("url").String(), repo)
}

func (g *Git) clone(ctx context.Context) error {
	_, err := g.run(ctx, "", nil, "git", "clone", g.repo, g.folder)
	return err
}

// Sync fetches origin, then detaches at rev or at the fetched default branch tip.
// An unknown rev is detected from rev-parse's exit status.
func (g *Git) Sync(ctx context.Context, rev string) error {
	if _, err := g.run(ctx, g.folder, nil, "git", "fetch", "origin"); err != nil {
		return err
	}

	target := "origin/HEAD"
	if rev != "" {
		output, err := g.run(ctx, g.folder, nil, "git", "rev-parse", "--verify", "--quiet", rev+"^{commit}")
		if err != nil {
			var pe *process.ProcessError
			if errors.As(err, &pe) && pe.ExitCode > 0 {
				return &UnknownRevisionError{Revision: rev, Output: output + pe.Output}
			}
			return err
		}
		target = rev
	}

	_, err := g.run(ctx, g.folder, nil, "git", "checkout", "--quiet", "--detach", target)
	return err
}

// Identify returns the full commit hash of HEAD
func (g *Git) Identify(ctx context.Context) (string, error) {
	return gitHead(ctx, &g.base, g.folder, nil)
}

func gitHead(ctx context.Context, b *base, dir string, env []string) (string, error) {
	output, err := b.run(ctx, dir, env, "git", "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return parseRevision("git", gitHashPattern, output)
}
