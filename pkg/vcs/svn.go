package vcs

import (
	"bufio"
	"context"
	"regexp"
	"strings"

	"github.com/arewefastyet/jsbuild/pkg/logger"
	"github.com/arewefastyet/jsbuild/pkg/process"
	"github.com/arewefastyet/jsbuild/pkg/utils"
)

const svnUnknownRevision = "No such revision"

var svnRevisionPattern = regexp.MustCompile(`Revision: ([0-9]+)`)

// SVN syncs a Subversion checkout
type SVN struct {
	base
}

// NewSVN creates a Subversion puller for repo checked out at folder
func NewSVN(repo, folder string, runner process.Runner, log logger.Logger) *SVN {
	return &SVN{base: newBase(repo, folder, runner, log, "vcs.svn")}
}

// Ensure checks out the repository unless `svn info` already reports its URL
func (s *SVN) Ensure(ctx context.Context) error {
	return s.ensure(ctx, s.folder, s.sameRepo, s.checkout)
}

func (s *SVN) sameRepo(ctx context.Context) bool {
	if !utils.IsDirectory(s.folder) {
		return false
	}
	output, err := s.run(ctx, s.folder, nil, "svn", "info")
	if err != nil {
		return false
	}

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		if url, ok := strings.CutPrefix(scanner.Text(), "URL: "); ok {
			return sameURL(url, s.repo)
		}
	}
	return false
}

func (s *SVN) checkout(ctx context.Context) error {
	_, err := s.run(ctx, "", nil, "svn", "co", s.repo, s.folder)
	return err
}

// Sync updates to rev, or to HEAD. svn has no separate fetch step.
func (s *SVN) Sync(ctx context.Context, rev string) error {
	if rev == "" {
		_, err := s.run(ctx, s.folder, nil, "svn", "update")
		return err
	}
	output, err := s.run(ctx, s.folder, nil, "svn", "update", "-r", rev)
	return checkRevision(rev, svnUnknownRevision, output, err)
}

// Identify returns the checked-out revision number
func (s *SVN) Identify(ctx context.Context) (string, error) {
	output, err := s.run(ctx, s.folder, nil, "svn", "info")
	if err != nil {
		return "", err
	}
	return parseRevision("svn", svnRevisionPattern, output)
}
