// Package builders picks the engine family that can build a source tree
package builders

import (
	"fmt"
	"path/filepath"

	pkgbuilders "github.com/arewefastyet/jsbuild/pkg/builders"
	"github.com/arewefastyet/jsbuild/pkg/utils"
)

// Family names an engine family
type Family string

const (
	FamilyMozilla Family = "mozilla"
	FamilyWebKit  Family = "webkit"
	FamilyV8      Family = "v8"
	FamilyServo   Family = "servo"
)

// marker is a path whose presence identifies a family's source tree
type marker struct {
	family Family
	path   []string
	isDir  bool
}

// markers are probed in order; the first hit wins
var markers = []marker{
	{FamilyMozilla, []string{"js", "src"}, true},
	{FamilyWebKit, []string{"Source", "JavaScriptCore"}, true},
	{FamilyV8, []string{"v8", "LICENSE.v8"}, false},
	{FamilyServo, []string{"components", "servo"}, true},
}

// DetectFamily inspects folder and returns the family whose marker is found first
func DetectFamily(folder string) (Family, error) {
	for _, m := range markers {
		path := filepath.Join(append([]string{folder}, m.path...)...)
		if m.isDir && utils.IsDirectory(path) || !m.isDir && utils.IsFile(path) {
			return m.family, nil
		}
	}
	return "", fmt.Errorf("%w: no engine source tree found in %s", pkgbuilders.ErrUnknownBuilder, folder)
}

// Detect returns the build strategy for the source tree at folder
func Detect(folder string, opts pkgbuilders.Options) (pkgbuilders.Strategy, error) {
	family, err := DetectFamily(folder)
	if err != nil {
		return nil, err
	}
	return New(family, folder, opts)
}

// New creates the strategy for a known family
func New(family Family, folder string, opts pkgbuilders.Options) (pkgbuilders.Strategy, error) {
	switch family {
	case FamilyMozilla:
		return pkgbuilders.NewMozillaBuilder(folder, opts), nil
	case FamilyWebKit:
		return pkgbuilders.NewWebKitBuilder(folder, opts), nil
	case FamilyV8:
		return pkgbuilders.NewV8Builder(folder, opts), nil
	case FamilyServo:
		return pkgbuilders.NewServoBuilder(folder, opts), nil
	}
	return nil, fmt.Errorf("%w: %q", pkgbuilders.ErrUnknownBuilder, family)
}
