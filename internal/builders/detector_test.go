package builders_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/arewefastyet/jsbuild/internal/builders"
	pkgbuilders "github.com/arewefastyet/jsbuild/pkg/builders"
	"github.com/arewefastyet/jsbuild/pkg/mocks"
	"github.com/arewefastyet/jsbuild/pkg/types"
)

func touch(t *testing.T, root string, dirs []string, files []string) {
	t.Helper()
	for _, d := range dirs {
		if err := os.MkdirAll(filepath.Join(root, d), 0755); err != nil {
			t.Fatal(err)
		}
	}
	for _, f := range files {
		path := filepath.Join(root, f)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, nil, 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestDetectFamily(t *testing.T) {
	tests := []struct {
		name  string
		dirs  []string
		files []string
		want  builders.Family
	}{
		{"mozilla", []string{"js/src"}, nil, builders.FamilyMozilla},
		{"webkit", []string{"Source/JavaScriptCore"}, nil, builders.FamilyWebKit},
		{"v8", nil, []string{"v8/LICENSE.v8"}, builders.FamilyV8},
		{"servo", []string{"components/servo"}, nil, builders.FamilyServo},
		{"mozilla beats webkit", []string{"js/src", "Source/JavaScriptCore"}, nil, builders.FamilyMozilla},
		{"webkit beats v8", []string{"Source/JavaScriptCore"}, []string{"v8/LICENSE.v8"}, builders.FamilyWebKit},
		{"v8 beats servo", []string{"components/servo"}, []string{"v8/LICENSE.v8"}, builders.FamilyV8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			touch(t, root, tt.dirs, tt.files)

			got, err := builders.DetectFamily(root)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestDetectFamily_MarkerKinds(t *testing.T) {
	root := t.TempDir()
	// a file named like a directory marker does not count, nor the reverse
	touch(t, root, []string{"v8/LICENSE.v8"}, []string{"js/src"})

	if _, err := builders.DetectFamily(root); !errors.Is(err, pkgbuilders.ErrUnknownBuilder) {
		t.Errorf("expected ErrUnknownBuilder, got %v", err)
	}
}

func TestDetect_Unknown(t *testing.T) {
	_, err := builders.Detect(t.TempDir(), pkgbuilders.Options{})
	if !errors.Is(err, pkgbuilders.ErrUnknownBuilder) {
		t.Fatalf("expected ErrUnknownBuilder, got %v", err)
	}
}

func TestDetect_ReturnsStrategy(t *testing.T) {
	root := t.TempDir()
	touch(t, root, []string{"components/servo"}, nil)

	s, err := builders.Detect(root, pkgbuilders.Options{
		Config: types.Config64Bit,
		Runner: mocks.NewFakeRunner(),
	})
	if err != nil {
		t.Fatal(err)
	}
	if s.Name() != "servo" || s.Folder() != root {
		t.Errorf("unexpected strategy %s at %s", s.Name(), s.Folder())
	}
	if _, ok := s.(*pkgbuilders.ServoBuilder); !ok {
		t.Errorf("expected *ServoBuilder, got %T", s)
	}
}

func TestNew_UnknownFamily(t *testing.T) {
	if _, err := builders.New("chakra", "/src", pkgbuilders.Options{}); !errors.Is(err, pkgbuilders.ErrUnknownBuilder) {
		t.Errorf("expected ErrUnknownBuilder, got %v", err)
	}
}
