package builders

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/arewefastyet/jsbuild/pkg/logger"
	"github.com/arewefastyet/jsbuild/pkg/types"
	"github.com/arewefastyet/jsbuild/pkg/utils"
)

const gclientAndroid = "target_os = ['android']"

// V8Builder builds d8 with gn and ninja from depot_tools
type V8Builder struct {
	*BaseBuilder
}

// NewV8Builder creates a builder for the depot folder holding v8/ and depot_tools/
func NewV8Builder(folder string, opts Options) *V8Builder {
	return &V8Builder{BaseBuilder: NewBaseBuilder("v8", folder, opts)}
}

func (b *V8Builder) sourceDir() string {
	return filepath.Join(b.folder, "v8")
}

func (b *V8Builder) outName() (string, error) {
	switch b.Config {
	case types.ConfigAndroid:
		return "android_arm.release", nil
	case types.ConfigAndroid64:
		return "android_arm64.release", nil
	case types.Config64Bit:
		return "x64.release", nil
	case types.Config32Bit:
		return "ia32.release", nil
	}
	return "", fmt.Errorf("%w: %q for v8", ErrUnsupportedConfiguration, b.Config)
}

func (b *V8Builder) targetCPU() (string, error) {
	switch b.Config {
	case types.ConfigAndroid:
		return "arm", nil
	case types.ConfigAndroid64:
		return "arm64", nil
	case types.Config32Bit:
		return "x86", nil
	case types.Config64Bit:
		return "x64", nil
	}
	return "", fmt.Errorf("%w: %q for v8", ErrUnsupportedConfiguration, b.Config)
}

// ObjDir returns v8/out/<config>.release
func (b *V8Builder) ObjDir() string {
	name, err := b.outName()
	if err != nil {
		name = string(b.Config) + ".release"
	}
	return filepath.Join(b.sourceDir(), "out", name)
}

// Binary returns d8 inside the objdir
func (b *V8Builder) Binary() string {
	return filepath.Join(b.ObjDir(), "d8")
}

// Prepare puts depot_tools first on PATH and leaves compiler choice to the
// v8 toolchain. Android builds register the android target with gclient.
func (b *V8Builder) Prepare(ctx context.Context) error {
	if _, err := b.outName(); err != nil {
		return err
	}

	tools := filepath.Join(b.folder, "depot_tools")
	if resolved, err := filepath.EvalSymlinks(tools); err == nil {
		tools = resolved
	} else if abs, err := filepath.Abs(tools); err == nil {
		tools = abs
	}
	b.Env.PrependPath(tools).Unset("CC", "CXX", "LINK")

	if b.Config.IsMobile() {
		changed, err := utils.AppendLineIfMissing(filepath.Join(b.folder, ".gclient"), gclientAndroid)
		if err != nil {
			return err
		}
		if changed {
			b.Logger.Info("Added android to .gclient target_os")
		}
	}
	return nil
}

// GNArgs returns the gn build arguments for the configuration
func (b *V8Builder) GNArgs() ([]string, error) {
	cpu, err := b.targetCPU()
	if err != nil {
		return nil, err
	}
	args := []string{
		"is_debug = false",
		fmt.Sprintf("target_cpu = %q", cpu),
	}
	if b.Config.IsMobile() {
		args = append(args,
			"symbol_level = 1",
			"v8_android_log_stdout = true",
			`target_os = "android"`)
	}
	return args, nil
}

// Make generates ninja files with gn and builds the d8 target
func (b *V8Builder) Make(ctx context.Context) error {
	gnArgs, err := b.GNArgs()
	if err != nil {
		return err
	}

	objdir, err := filepath.Abs(b.ObjDir())
	if err != nil {
		return err
	}
	if err := os.MkdirAll(objdir, 0755); err != nil {
		return err
	}

	b.Logger.Debug("gn args", logger.WithField("args", strings.Join(gnArgs, " ")))
	if err := b.run(ctx, b.sourceDir(), "gn", "gen", objdir, "--args="+strings.Join(gnArgs, " ")); err != nil {
		return err
	}
	return b.run(ctx, b.sourceDir(), "ninja", "-C", objdir, "d8")
}

// Info describes d8
func (b *V8Builder) Info() *types.Manifest {
	m := &types.Manifest{
		EngineType: types.EngineChrome,
		Args:       []string{"--expose-gc"},
	}
	if b.Config.IsMobile() {
		m.Platform = types.PlatformAndroid
	}
	return m
}
