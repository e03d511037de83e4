package vcs

import (
	"context"
	"path/filepath"
	"regexp"

	"gopkg.in/ini.v1"

	"github.com/arewefastyet/jsbuild/pkg/logger"
	"github.com/arewefastyet/jsbuild/pkg/process"
)

const hgUnknownRevision = "unknown revision"

var hgIDPattern = regexp.MustCompile(`^([0-9a-z]+)`)

// HG syncs a Mercurial working copy
type HG struct {
	base
}

// NewHG creates a Mercurial puller for repo checked out at folder
func NewHG(repo, folder string, runner process.Runner, log logger.Logger) *HG {
	return &HG{base: newBase(repo, folder, runner, log, "vcs.hg")}
}

// Ensure clones the repository unless .hg/hgrc already records it as the default path
func (h *HG) Ensure(ctx context.Context) error {
	return h.ensure(ctx, h.folder, h.sameRepo, h.clone)
}

func (h *HG) sameRepo(context.Context) bool {
	cfg, err := ini.Load(filepath.Join(h.folder, ".hg", "hgrc"))
	if err != nil {
		return false
	}
	return sameURL(cfg.Section("paths").Key("default").String(), h.repo)
}

func (h *HG) clone(ctx context.Context) error {
	_, err := h.run(ctx, "", nil, "hg", "clone", h.repo, h.folder)
	return err
}

// Sync pulls, then updates to rev or to the tip
func (h *HG) Sync(ctx context.Context, rev string) error {
	if _, err := h.run(ctx, "", nil, "hg", "pull", "--cwd", h.folder); err != nil {
		return err
	}
	return h.update(ctx, rev)
}

func (h *HG) update(ctx context.Context, rev string) error {
	if rev == "" {
		_, err := h.run(ctx, "", nil, "hg", "update", "--cwd", h.folder)
		return err
	}
	output, err := h.run(ctx, "", nil, "hg", "update", "-r", rev, "--cwd", h.folder)
	return checkRevision(rev, hgUnknownRevision, output, err)
}

// Identify returns the short changeset hash of the working directory
func (h *HG) Identify(ctx context.Context) (string, error) {
	output, err := h.run(ctx, "", nil, "hg", "id", "-i", "--cwd", h.folder)
	if err != nil {
		return "", err
	}
	return parseRevision("hg", hgIDPattern, output)
}
