// Package vcs brings local working copies to a requested revision, whatever the backend.
package vcs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/arewefastyet/jsbuild/pkg/logger"
	"github.com/arewefastyet/jsbuild/pkg/process"
	"github.com/arewefastyet/jsbuild/pkg/utils"
)

// base holds what every backend shares: the identifier, the checkout folder
// and the runner used for the VCS client.
type base struct {
	repo   string
	folder string
	runner process.Runner
	logger logger.Logger
}

func newBase(repo, folder string, runner process.Runner, log logger.Logger, component string) base {
	if log == nil {
		log = logger.Discard()
	}
	return base{
		repo:   repo,
		folder: folder,
		runner: runner,
		logger: log.WithComponent(component),
	}
}

// Path returns the working copy directory
func (b *base) Path() string {
	return b.folder
}

// Repository returns the remote the working copy is bound to
func (b *base) Repository() string {
	return b.repo
}

func (b *base) run(ctx context.Context, dir string, env []string, args ...string) (string, error) {
	return b.runner.Run(ctx, process.Command{Args: args, Dir: dir, Env: env})
}

// ensure is the shared idempotent clone: a matching working copy is left
// alone, anything else at root is removed and cloned afresh.
func (b *base) ensure(ctx context.Context, root string, same func(context.Context) bool, clone func(context.Context) error) error {
	if same(ctx) {
		b.logger.Debug("Working copy up to date", logger.WithField("path", b.folder))
		return nil
	}

	b.logger.Info("Cloning", logger.WithField("repo", b.repo), logger.WithField("path", root))
	if err := utils.RemoveIfExists(root); err != nil {
		return fmt.Errorf("removing stale working copy %s: %w", root, err)
	}
	if err := os.MkdirAll(filepath.Dir(root), 0755); err != nil {
		return fmt.Errorf("creating parent of %s: %w", root, err)
	}
	if err := clone(ctx); err != nil {
		return fmt.Errorf("cloning %s: %w", b.repo, err)
	}
	if !same(ctx) {
		return fmt.Errorf("%w: %s at %s", ErrRepositoryMismatch, b.repo, b.folder)
	}
	return nil
}

// checkRevision turns a backend's unknown-revision marker into UnknownRevisionError.
// The marker is searched in the output of both successful and failed runs.
func checkRevision(rev, marker, output string, err error) error {
	text := output
	if err != nil {
		if out := process.OutputOf(err); out != "" && out != output {
			text += out
		}
	}
	if strings.Contains(text, marker) {
		return &UnknownRevisionError{Revision: rev, Output: text}
	}
	return err
}

// parseRevision extracts the first submatch of re from output
func parseRevision(client string, re *regexp.Regexp, output string) (string, error) {
	m := re.FindStringSubmatch(output)
	if m == nil {
		return "", fmt.Errorf("%w from %s: %q", ErrUnparseableOutput, client, strings.TrimSpace(output))
	}
	return m[1], nil
}

func sameURL(a, b string) bool {
	return strings.TrimRight(strings.TrimSpace(a), "/") == strings.TrimRight(strings.TrimSpace(b), "/")
}
