package toolchain

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"

	"github.com/arewefastyet/jsbuild/pkg/archive"
	"github.com/arewefastyet/jsbuild/pkg/logger"
	"github.com/arewefastyet/jsbuild/pkg/utils"
)

// CompleteMarker is written inside an install directory once extraction finished
const CompleteMarker = ".complete"

const (
	// DefaultClangURL is the pinned macOS compiler
	DefaultClangURL = "http://releases.llvm.org/3.9.0/clang+llvm-3.9.0-x86_64-apple-darwin.tar.xz"
	// DefaultNDKURL is the pinned Android NDK; r12 still ships gcc
	DefaultNDKURL = "https://dl.google.com/android/repository/android-ndk-r12-linux-x86_64.zip"

	// ClangDirName is the install directory name of the pinned clang
	ClangDirName = "clang-3.9.0"
	// NDKDirName is the install directory name of the pinned NDK
	NDKDirName = "android-ndk-r12"
)

// Fetcher downloads and unpacks archives
type Fetcher interface {
	Download(ctx context.Context, url, dest string) error
	Extract(archive, dir string) error
}

// Package is one pinned toolchain
type Package struct {
	Name string
	URL  string
	// Dir is the final install directory
	Dir string
	// ArchiveRoot is the top-level directory inside the archive that becomes Dir.
	// Empty means the archive contents themselves.
	ArchiveRoot string
	// Executables are paths relative to Dir that must end up runnable
	Executables []string
}

// Clang describes the pinned clang installed under toolsDir
func Clang(toolsDir, archiveURL string) Package {
	if archiveURL == "" {
		archiveURL = DefaultClangURL
	}
	return Package{
		Name:        ClangDirName,
		URL:         archiveURL,
		Dir:         filepath.Join(toolsDir, ClangDirName),
		ArchiveRoot: "clang+llvm-3.9.0-x86_64-apple-darwin",
		Executables: []string{"bin/clang", "bin/clang++"},
	}
}

// AndroidNDK describes the pinned NDK installed inside a source tree
func AndroidNDK(folder, archiveURL string) Package {
	if archiveURL == "" {
		archiveURL = DefaultNDKURL
	}
	return Package{
		Name:        NDKDirName,
		URL:         archiveURL,
		Dir:         filepath.Join(folder, NDKDirName),
		ArchiveRoot: NDKDirName,
	}
}

// Installer installs packages idempotently. An install counts as present
// only when its completion marker exists, so an interrupted extraction is
// discarded and redone rather than trusted.
type Installer struct {
	fetcher Fetcher
	logger  logger.Logger
}

// NewInstaller creates an installer
func NewInstaller(fetcher Fetcher, log logger.Logger) *Installer {
	if log == nil {
		log = logger.Discard()
	}
	return &Installer{fetcher: fetcher, logger: log.WithComponent("toolchain")}
}

// Installed reports whether p was completely installed
func (i *Installer) Installed(p Package) bool {
	return utils.IsFile(filepath.Join(p.Dir, CompleteMarker))
}

// Ensure installs p unless it is already complete and returns its directory.
// The presence check happens before any network access.
func (i *Installer) Ensure(ctx context.Context, p Package) (string, error) {
	if i.Installed(p) {
		i.logger.Debug("Already installed", logger.WithField("package", p.Name), logger.WithField("dir", p.Dir))
		return p.Dir, nil
	}

	if utils.Exists(p.Dir) {
		i.logger.Warn("Discarding incomplete install", logger.WithField("dir", p.Dir))
		if err := utils.RemoveIfExists(p.Dir); err != nil {
			return "", fmt.Errorf("removing incomplete %s: %w", p.Name, err)
		}
	}

	parent := filepath.Dir(p.Dir)
	if err := utils.EnsureDirectory(parent); err != nil {
		return "", err
	}
	staging, err := os.MkdirTemp(parent, "."+filepath.Base(p.Dir)+".partial-")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(staging)

	i.logger.Info("Installing", logger.WithField("package", p.Name), logger.WithField("url", p.URL))

	archivePath := filepath.Join(staging, archiveName(p))
	if err := i.fetcher.Download(ctx, p.URL, archivePath); err != nil {
		return "", fmt.Errorf("installing %s: %w", p.Name, err)
	}

	unpacked := filepath.Join(staging, "unpacked")
	if err := i.fetcher.Extract(archivePath, unpacked); err != nil {
		return "", fmt.Errorf("installing %s: %w", p.Name, err)
	}

	source := unpacked
	if p.ArchiveRoot != "" {
		source = filepath.Join(unpacked, p.ArchiveRoot)
	}
	if !utils.IsDirectory(source) {
		return "", fmt.Errorf("installing %s: archive has no %s directory", p.Name, p.ArchiveRoot)
	}
	for _, exe := range p.Executables {
		if err := archive.Chmodx(filepath.Join(source, filepath.FromSlash(exe))); err != nil {
			return "", fmt.Errorf("installing %s: %w", p.Name, err)
		}
	}
	if err := os.Rename(source, p.Dir); err != nil {
		return "", fmt.Errorf("installing %s: %w", p.Name, err)
	}
	if err := os.WriteFile(filepath.Join(p.Dir, CompleteMarker), []byte(p.URL+"\n"), 0644); err != nil {
		return "", fmt.Errorf("marking %s complete: %w", p.Name, err)
	}

	i.logger.Success("Installed", logger.WithField("package", p.Name), logger.WithField("dir", p.Dir))
	return p.Dir, nil
}

// archiveName keeps the URL's file name so the extractor can tell the format
func archiveName(p Package) string {
	if u, err := url.Parse(p.URL); err == nil {
		if name := path.Base(u.Path); name != "." && name != "/" {
			return name
		}
	}
	return p.Name + ".archive"
}
