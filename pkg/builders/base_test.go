package builders_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/arewefastyet/jsbuild/pkg/builders"
	"github.com/arewefastyet/jsbuild/pkg/manifest"
	"github.com/arewefastyet/jsbuild/pkg/types"
)

type staticRevision string

func (r staticRevision) Identify(ctx context.Context) (string, error) {
	return string(r), nil
}

// countingWriter counts manifest writes on top of the real writer
type countingWriter struct {
	writes int
	last   *types.Manifest
}

func (w *countingWriter) Write(dir string, m *types.Manifest) (string, error) {
	w.writes++
	w.last = m
	return manifest.NewWriter(nil).Write(dir, m)
}

// scriptedStrategy fails or produces its binary on the attempts it is told to
type scriptedStrategy struct {
	folder      string
	produce     []bool // per Make call: write the binary?
	fail        []bool // per Make call: return an error?
	makeCalls   int
	reconfigs   int
	shell       *bool
	reconfigErr error
}

func (s *scriptedStrategy) Name() string   { return "scripted" }
func (s *scriptedStrategy) Folder() string { return s.folder }
func (s *scriptedStrategy) ObjDir() string { return filepath.Join(s.folder, "out") }
func (s *scriptedStrategy) Binary() string { return filepath.Join(s.ObjDir(), "shell") }

func (s *scriptedStrategy) Prepare(ctx context.Context) error { return nil }

func (s *scriptedStrategy) Make(ctx context.Context) error {
	i := s.makeCalls
	s.makeCalls++
	if i < len(s.produce) && s.produce[i] {
		if err := os.MkdirAll(s.ObjDir(), 0755); err != nil {
			return err
		}
		if err := os.WriteFile(s.Binary(), []byte("bin"), 0755); err != nil {
			return err
		}
	}
	if i < len(s.fail) && s.fail[i] {
		return errors.New("make: *** [all] Error 2")
	}
	return nil
}

func (s *scriptedStrategy) Reconfigure(ctx context.Context) error {
	s.reconfigs++
	return s.reconfigErr
}

func (s *scriptedStrategy) Info() *types.Manifest {
	return &types.Manifest{EngineType: types.EngineFirefox, Shell: s.shell}
}

func TestBuild_FirstAttemptFailsSecondSucceeds(t *testing.T) {
	s := &scriptedStrategy{folder: t.TempDir(), fail: []bool{true, false}, produce: []bool{false, true}}
	w := &countingWriter{}

	m, err := builders.Build(context.Background(), s, staticRevision("abc123"), w, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	if s.makeCalls != 2 || s.reconfigs != 1 {
		t.Errorf("makes=%d reconfigs=%d, want 2 and 1", s.makeCalls, s.reconfigs)
	}
	if w.writes != 1 {
		t.Errorf("manifest written %d times, want 1", w.writes)
	}

	want, _ := filepath.Abs(s.Binary())
	if m.Binary != want || m.Revision != "abc123" {
		t.Errorf("got %+v", m)
	}
	if !m.UsesShell() {
		t.Error("shell should default to true")
	}

	read, err := manifest.Read(s.folder)
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	if read.Binary != want {
		t.Errorf("manifest binary = %q, want %q", read.Binary, want)
	}
}

func TestBuild_BothAttemptsFail(t *testing.T) {
	s := &scriptedStrategy{folder: t.TempDir(), fail: []bool{true, true}}
	w := &countingWriter{}

	_, err := builders.Build(context.Background(), s, staticRevision("abc123"), w, nil)
	if !errors.Is(err, builders.ErrBuildFailed) {
		t.Fatalf("expected ErrBuildFailed, got %v", err)
	}
	if s.makeCalls != 2 {
		t.Errorf("no third attempt allowed, got %d makes", s.makeCalls)
	}
	if w.writes != 0 {
		t.Error("no manifest may be written on failure")
	}
	if _, err := os.Stat(manifest.Path(s.folder)); !os.IsNotExist(err) {
		t.Error("info.json should not exist")
	}
}

func TestBuild_SecondAttemptLeavesNoBinary(t *testing.T) {
	s := &scriptedStrategy{folder: t.TempDir()}
	w := &countingWriter{}

	_, err := builders.Build(context.Background(), s, staticRevision("abc123"), w, nil)
	if !errors.Is(err, builders.ErrBuildFailed) {
		t.Fatalf("expected ErrBuildFailed, got %v", err)
	}
	if w.writes != 0 {
		t.Error("no manifest may be written without a binary")
	}
}

func TestBuild_IncrementalBuildIsEnough(t *testing.T) {
	s := &scriptedStrategy{folder: t.TempDir(), produce: []bool{true}}
	w := &countingWriter{}

	if _, err := builders.Build(context.Background(), s, staticRevision("r1"), w, nil); err != nil {
		t.Fatalf("build: %v", err)
	}
	if s.reconfigs != 0 || s.makeCalls != 1 {
		t.Errorf("makes=%d reconfigs=%d, want 1 and 0", s.makeCalls, s.reconfigs)
	}
}

func TestBuild_StaleBinaryIsRemovedFirst(t *testing.T) {
	s := &scriptedStrategy{folder: t.TempDir(), fail: []bool{true, false}, produce: []bool{false, true}}
	if err := os.MkdirAll(s.ObjDir(), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(s.Binary(), []byte("stale"), 0755); err != nil {
		t.Fatal(err)
	}

	if _, err := builders.Build(context.Background(), s, staticRevision("r1"), &countingWriter{}, nil); err != nil {
		t.Fatalf("build: %v", err)
	}
	if s.reconfigs != 1 {
		t.Error("a stale binary must not count as a successful incremental build")
	}
}

func TestBuild_ReconfigureFailureIsTerminal(t *testing.T) {
	s := &scriptedStrategy{folder: t.TempDir(), fail: []bool{true}, reconfigErr: errors.New("configure: error: no acceptable C compiler")}
	w := &countingWriter{}

	_, err := builders.Build(context.Background(), s, staticRevision("r1"), w, nil)
	if !errors.Is(err, builders.ErrBuildFailed) {
		t.Fatalf("expected ErrBuildFailed, got %v", err)
	}
	if s.makeCalls != 1 || w.writes != 0 {
		t.Errorf("makes=%d writes=%d", s.makeCalls, w.writes)
	}
}

func TestBuild_KeepsExplicitShellFlag(t *testing.T) {
	s := &scriptedStrategy{folder: t.TempDir(), produce: []bool{true}, shell: types.Bool(false)}

	m, err := builders.Build(context.Background(), s, staticRevision("r1"), &countingWriter{}, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if m.UsesShell() {
		t.Error("explicit shell=false must survive")
	}
}

func TestBuild_CancellationIsNotSwallowed(t *testing.T) {
	s := &scriptedStrategy{folder: t.TempDir(), fail: []bool{true}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := builders.Build(ctx, s, staticRevision("r1"), &countingWriter{}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if s.reconfigs != 0 {
		t.Error("a cancelled run must not reconfigure")
	}
}

func TestCleanObjDir(t *testing.T) {
	s := &scriptedStrategy{folder: t.TempDir()}
	if err := os.MkdirAll(filepath.Join(s.ObjDir(), "deep"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := builders.CleanObjDir(s); err != nil {
		t.Fatalf("clean: %v", err)
	}
	if _, err := os.Stat(s.ObjDir()); !os.IsNotExist(err) {
		t.Error("objdir should be gone")
	}
	if err := builders.CleanObjDir(s); err != nil {
		t.Errorf("cleaning twice should succeed: %v", err)
	}
}
