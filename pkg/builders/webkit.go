package builders

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/arewefastyet/jsbuild/pkg/logger"
	"github.com/arewefastyet/jsbuild/pkg/types"
	"github.com/arewefastyet/jsbuild/pkg/utils"
)

const (
	systemJSCFramework = "/System/Library/Frameworks/JavaScriptCore.framework/Versions/A/JavaScriptCore"
	weakVtablesCheck   = "Tools/Scripts/check-for-weak-vtables-and-externals"
)

// files whose warnings-as-errors setting is relaxed for the build
var xcconfigs = []string{
	"Source/JavaScriptCore/Configurations/Base.xcconfig",
	"Source/bmalloc/Configurations/Base.xcconfig",
	"Source/WTF/Configurations/Base.xcconfig",
}

const smallLine = "Source/bmalloc/bmalloc/SmallLine.h"

// WebKitBuilder builds JavaScriptCore's jsc with build-jsc
type WebKitBuilder struct {
	*BaseBuilder
}

// NewWebKitBuilder creates a builder for the WebKit tree at folder
func NewWebKitBuilder(folder string, opts Options) *WebKitBuilder {
	return &WebKitBuilder{BaseBuilder: NewBaseBuilder("webkit", folder, opts)}
}

// ObjDir returns WebKitBuild/Release
func (b *WebKitBuilder) ObjDir() string {
	return filepath.Join(b.folder, "WebKitBuild", "Release")
}

// Binary returns jsc inside the objdir
func (b *WebKitBuilder) Binary() string {
	return filepath.Join(b.ObjDir(), "jsc")
}

// Make builds jsc with the source tree patched, reverting the patches
// whatever the outcome. On macOS jsc is then pointed at the framework it was built with.
func (b *WebKitBuilder) Make(ctx context.Context) error {
	err := b.withPatches(ctx, func() error {
		args := []string{"/usr/bin/perl", "build-jsc"}
		if b.Config == types.Config32Bit {
			args = append(args, "--32-bit")
		}
		return b.run(ctx, filepath.Join(b.folder, "Tools", "Scripts"), args...)
	})
	if err != nil || b.Host.OS != "darwin" {
		return err
	}

	_, err = b.runQuiet(ctx, b.folder, "install_name_tool", "-change",
		systemJSCFramework,
		b.ObjDir()+"/JavaScriptCore.framework/JavaScriptCore",
		b.Binary())
	return err
}

// withPatches runs build between patch and unpatch; unpatch runs even when
// patching or build fails, and its errors are joined to theirs.
func (b *WebKitBuilder) withPatches(ctx context.Context, build func() error) (err error) {
	defer func() {
		if uerr := b.unpatch(context.WithoutCancel(ctx)); uerr != nil {
			err = errors.Join(err, uerr)
		}
	}()

	if err := b.patch(ctx); err != nil {
		return err
	}
	return build()
}

func (b *WebKitBuilder) patch(ctx context.Context) error {
	for _, file := range xcconfigs {
		if _, err := b.runQuiet(ctx, b.folder, "sed", "-i.bac",
			"s/GCC_TREAT_WARNINGS_AS_ERRORS = YES;/GCC_TREAT_WARNINGS_AS_ERRORS=NO;/", file); err != nil {
			return err
		}
	}
	if _, err := b.runQuiet(ctx, b.folder, "sed", "-i.bac",
		"s/std::numeric_limits<unsigned char>::max()/255/", smallLine); err != nil {
		return err
	}

	// this check currently fails on a clean tree
	return utils.RemoveIfExists(filepath.Join(b.folder, weakVtablesCheck))
}

func (b *WebKitBuilder) unpatch(ctx context.Context) error {
	files := append([]string{weakVtablesCheck}, xcconfigs...)
	files = append(files, smallLine)

	var errs []error
	for _, file := range files {
		if _, err := b.runQuiet(ctx, b.folder, "svn", "revert", file); err != nil {
			b.Logger.Error("Revert failed", logger.WithField("file", file), logger.WithField("error", err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Info describes jsc
func (b *WebKitBuilder) Info() *types.Manifest {
	return &types.Manifest{EngineType: types.EngineWebKit}
}
