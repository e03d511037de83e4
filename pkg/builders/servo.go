package builders

import (
	"context"
	"path/filepath"

	"github.com/arewefastyet/jsbuild/pkg/types"
)

// ServoBuilder builds servo with its mach driver
type ServoBuilder struct {
	*BaseBuilder
}

// NewServoBuilder creates a builder for the Servo tree at folder
func NewServoBuilder(folder string, opts Options) *ServoBuilder {
	return &ServoBuilder{BaseBuilder: NewBaseBuilder("servo", folder, opts)}
}

// ObjDir returns target
func (b *ServoBuilder) ObjDir() string {
	return filepath.Join(b.folder, "target")
}

// Binary returns target/release/servo
func (b *ServoBuilder) Binary() string {
	return filepath.Join(b.ObjDir(), "release", "servo")
}

// Make runs ./mach build --release
func (b *ServoBuilder) Make(ctx context.Context) error {
	return b.run(ctx, b.folder, "./mach", "build", "--release")
}

// Info describes servo, which is launched directly rather than through a shell
func (b *ServoBuilder) Info() *types.Manifest {
	return &types.Manifest{
		EngineType: types.EngineServo,
		Shell:      types.Bool(false),
	}
}
