package vcs

import (
	"context"

	"github.com/arewefastyet/jsbuild/pkg/logger"
	"github.com/arewefastyet/jsbuild/pkg/process"
)

const (
	// MozillaUnifiedURL is the stable remote a try working copy is cloned from
	MozillaUnifiedURL = "https://hg.mozilla.org/mozilla-unified"
	// MozillaTryURL is the staging remote try pushes live in
	MozillaTryURL = "https://hg.mozilla.org/try"
)

// MozillaTry syncs a Mercurial working copy to a push on the try server.
// It never fetches all of try: every sync pulls the unified remote, then only
// the requested revision from try.
type MozillaTry struct {
	HG
	tryURL string
}

// NewMozillaTry creates a try puller checked out at folder
func NewMozillaTry(folder string, runner process.Runner, log logger.Logger) *MozillaTry {
	return &MozillaTry{
		HG:     HG{base: newBase(MozillaUnifiedURL, folder, runner, log, "vcs.mozilla-try")},
		tryURL: MozillaTryURL,
	}
}

// Sync requires rev; there is no meaningful tip of try
func (m *MozillaTry) Sync(ctx context.Context, rev string) error {
	if rev == "" {
		return ErrRevisionRequired
	}

	steps := [][]string{
		{"hg", "up", "--check", "--cwd", m.folder},
		{"hg", "pull", "--cwd", m.folder},
		{"hg", "pull", "-r", rev, "--cwd", m.folder, m.tryURL},
	}
	for _, args := range steps {
		if _, err := m.run(ctx, "", nil, args...); err != nil {
			return checkRevision(rev, hgUnknownRevision, "", err)
		}
	}
	return m.update(ctx, rev)
}
