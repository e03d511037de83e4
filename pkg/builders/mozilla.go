package builders

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/arewefastyet/jsbuild/pkg/toolchain"
	"github.com/arewefastyet/jsbuild/pkg/types"
	"github.com/arewefastyet/jsbuild/pkg/utils"
)

// MozillaBuilder builds SpiderMonkey's js shell with autoconf and make
type MozillaBuilder struct {
	*BaseBuilder
}

// NewMozillaBuilder creates a builder for the Mozilla tree at folder
func NewMozillaBuilder(folder string, opts Options) *MozillaBuilder {
	return &MozillaBuilder{BaseBuilder: NewBaseBuilder("mozilla", folder, opts)}
}

func (b *MozillaBuilder) srcDir() string {
	return filepath.Join(b.folder, "js", "src")
}

// ObjDir returns js/src/Opt
func (b *MozillaBuilder) ObjDir() string {
	return filepath.Join(b.srcDir(), "Opt")
}

// Binary returns the js shell inside the objdir
func (b *MozillaBuilder) Binary() string {
	return filepath.Join(b.ObjDir(), "dist", "bin", "js")
}

func (b *MozillaBuilder) cross32() bool {
	return b.Host.Is64Bit() && b.Config == types.Config32Bit
}

// Prepare selects the compiler. Android builds let the NDK pick it; 32bit
// builds on a 64bit host force a 32bit cross toolchain.
func (b *MozillaBuilder) Prepare(ctx context.Context) error {
	if b.Config.IsMobile() {
		if b.Host.OS != "linux" || !b.Host.Is64Bit() {
			return fmt.Errorf("%w: %s needs a 64bit linux host for the android NDK", ErrUnsupportedConfiguration, b.Config)
		}
		b.Env.Unset("CC", "CXX", "LINK")
		return nil
	}

	if err := b.useHostCompiler(ctx); err != nil {
		return err
	}
	if b.cross32() {
		b.Env.Set("AR", "ar").Set("CROSS_COMPILE", "1").AddCompilerFlag("-m32")
	}
	return nil
}

// Make runs make over the objdir, or does nothing when it was never configured
func (b *MozillaBuilder) Make(ctx context.Context) error {
	if !utils.IsDirectory(b.ObjDir()) {
		b.Logger.Info("No objdir yet, skipping make")
		return nil
	}
	return b.run(ctx, "", "make", "-j"+strconv.Itoa(b.jobs), "-C", b.ObjDir())
}

// Reconfigure regenerates configure with autoconf 2.13 and configures a fresh objdir
func (b *MozillaBuilder) Reconfigure(ctx context.Context) error {
	if b.Config.IsMobile() {
		if _, err := b.install(ctx, toolchain.AndroidNDK(b.folder, b.ndkURL)); err != nil {
			return err
		}
	}

	autoconf, err := autoconfFor(b.Host.OS)
	if err != nil {
		return err
	}
	if err := b.run(ctx, b.srcDir(), autoconf); err != nil {
		return err
	}

	if err := utils.RemoveIfExists(b.ObjDir()); err != nil {
		return err
	}
	if err := os.Mkdir(b.ObjDir(), 0755); err != nil {
		return err
	}

	args, err := b.configureArgs()
	if err != nil {
		return err
	}
	return b.run(ctx, b.ObjDir(), append([]string{"../configure"}, args...)...)
}

func (b *MozillaBuilder) configureArgs() ([]string, error) {
	args := []string{"--enable-optimize", "--disable-debug"}

	if b.Config.IsMobile() {
		folder, err := filepath.Abs(b.folder)
		if err != nil {
			return nil, err
		}
		target := "arm-linux-androideabi"
		if b.Config == types.ConfigAndroid64 {
			target = "aarch64-linux-androideabi"
		}
		args = append(args,
			"--target="+target,
			"--with-android-ndk="+folder+"/"+toolchain.NDKDirName+"/",
			"--with-android-version=24",
			"--enable-pie")
	}

	if b.cross32() {
		switch b.Host.OS {
		case "darwin":
			args = append(args, "--target=i686-apple-darwin10.0.0")
		case "linux":
			args = append(args, "--target=i686-pc-linux-gnu")
		default:
			return nil, fmt.Errorf("%w: 32bit cross build on %s", ErrUnsupportedConfiguration, b.Host.OS)
		}
	}
	return args, nil
}

func autoconfFor(goos string) (string, error) {
	switch goos {
	case "darwin":
		return "autoconf213", nil
	case "linux":
		return "autoconf2.13", nil
	case "windows":
		return "autoconf-2.13", nil
	}
	return "", fmt.Errorf("%w: no autoconf 2.13 known for %s", ErrUnsupportedConfiguration, goos)
}

// Info describes the js shell
func (b *MozillaBuilder) Info() *types.Manifest {
	m := &types.Manifest{
		EngineType: types.EngineFirefox,
		Args:       []string{"--no-async-stacks"},
	}
	if b.Config.IsMobile() {
		m.Platform = types.PlatformAndroid
	}
	return m
}
