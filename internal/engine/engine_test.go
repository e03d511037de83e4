package engine_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/golang/mock/gomock"

	"github.com/arewefastyet/jsbuild/internal/engine"
	pkgbuilders "github.com/arewefastyet/jsbuild/pkg/builders"
	"github.com/arewefastyet/jsbuild/pkg/interfaces"
	"github.com/arewefastyet/jsbuild/pkg/manifest"
	"github.com/arewefastyet/jsbuild/pkg/mocks"
	"github.com/arewefastyet/jsbuild/pkg/process"
	"github.com/arewefastyet/jsbuild/pkg/toolchain"
	"github.com/arewefastyet/jsbuild/pkg/types"
	"github.com/arewefastyet/jsbuild/pkg/vcs"
)

var (
	host64 = types.Host{OS: "linux", WordSize: types.Config64Bit}
	host32 = types.Host{OS: "linux", WordSize: types.Config32Bit}
)

// pullerFactory hands out one puller and counts resolutions
type pullerFactory struct {
	puller interfaces.Puller
	err    error
	calls  int
}

func (f *pullerFactory) NewPuller(name, folder string) (interfaces.Puller, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.puller, nil
}

func fixedEnv() *toolchain.Builder {
	return toolchain.NewBuilderFrom([]string{"PATH=/usr/bin:/bin"})
}

// servoTree lays out a servo checkout and scripts mach to produce the binary
func servoTree(t *testing.T, runner *mocks.FakeRunner) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "components", "servo"), 0755); err != nil {
		t.Fatal(err)
	}
	binary := filepath.Join(dir, "target", "release", "servo")
	runner.Handle("./mach build", func(process.Command) (string, error) {
		if err := os.MkdirAll(filepath.Dir(binary), 0755); err != nil {
			return "", err
		}
		return "", os.WriteFile(binary, []byte("servo"), 0755)
	})
	return dir
}

func TestRun_RejectsBeforeAnyWork(t *testing.T) {
	tests := []struct {
		name    string
		host    types.Host
		opts    types.Options
		wantErr error
	}{
		{
			name:    "64bit on a 32bit host",
			host:    host32,
			opts:    types.Options{Repository: "mozilla", OutputDir: "out", Configuration: types.Config64Bit},
			wantErr: types.ErrIncompatibleHost,
		},
		{
			name:    "unknown configuration",
			host:    host64,
			opts:    types.Options{Repository: "mozilla", OutputDir: "out", Configuration: "128bit"},
			wantErr: types.ErrInvalidConfiguration,
		},
		{
			name: "missing repository",
			host: host64,
			opts: types.Options{OutputDir: "out", Configuration: types.ConfigAuto},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			// no expectations: any subprocess fails the test
			runner := mocks.NewMockRunner(ctrl)
			pullers := &pullerFactory{}
			recorder := mocks.NewMockRunRecorder()
			notifier := &mocks.MockNotifier{}

			e := engine.New(nil, tt.host, nil, engine.Dependencies{
				Runner:   runner,
				Pullers:  pullers,
				Manifest: manifest.NewWriter(nil),
				Recorder: recorder,
				Notifier: notifier,
			})

			_, err := e.Run(context.Background(), tt.opts)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
			if pullers.calls != 0 {
				t.Error("repository must not be resolved before validation")
			}
			if recorder.Options != nil || len(notifier.Started) != 0 {
				t.Error("a rejected request must not be recorded or announced")
			}
		})
	}
}

func TestRun_SyncsDetectsBuilds(t *testing.T) {
	ctrl := gomock.NewController(t)
	runner := mocks.NewFakeRunner()
	dir := servoTree(t, runner)

	puller := mocks.NewMockPuller(ctrl)
	puller.EXPECT().Repository().Return("https://github.com/servo/servo.git").AnyTimes()
	puller.EXPECT().Path().Return(dir).AnyTimes()
	gomock.InOrder(
		puller.EXPECT().Ensure(gomock.Any()).Return(nil),
		puller.EXPECT().Sync(gomock.Any(), "abc123").Return(nil),
		puller.EXPECT().Identify(gomock.Any()).Return("abc123def456", nil),
	)

	recorder := mocks.NewMockRunRecorder()
	notifier := &mocks.MockNotifier{}
	e := engine.New(nil, host64, nil, engine.Dependencies{
		Runner:      runner,
		Pullers:     &pullerFactory{puller: puller},
		Manifest:    manifest.NewWriter(nil),
		Recorder:    recorder,
		Notifier:    notifier,
		Environment: fixedEnv,
	})

	res, err := e.Run(context.Background(), types.Options{
		Repository:    "servo",
		Revision:      "abc123",
		OutputDir:     dir,
		Configuration: types.ConfigAuto,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if res.Family != "servo" || res.RunID == "" {
		t.Errorf("unexpected result %+v", res)
	}
	if recorder.RunID != res.RunID {
		t.Errorf("recorder tagged with run id %q, want %q", recorder.RunID, res.RunID)
	}

	m, err := manifest.Read(dir)
	if err != nil {
		t.Fatalf("manifest: %v", err)
	}
	if m.Revision != "abc123def456" || m.EngineType != types.EngineServo || m.UsesShell() {
		t.Errorf("unexpected manifest %+v", m)
	}

	if got := recorder.Statuses; len(got) != 2 || got[0] != types.BuildStatusSyncing || got[1] != types.BuildStatusBuilding {
		t.Errorf("unexpected statuses %v", got)
	}
	if recorder.Revision != "abc123def456" || recorder.Binary != m.Binary || recorder.Err != nil {
		t.Errorf("unexpected recorded outcome rev=%q bin=%q err=%v", recorder.Revision, recorder.Binary, recorder.Err)
	}
	if len(notifier.Started) != 1 || len(notifier.Succeeded) != 1 || len(notifier.Failed) != 0 {
		t.Errorf("unexpected notifications %+v", notifier)
	}
}

func TestRun_UnknownRevisionStopsBeforeBuild(t *testing.T) {
	ctrl := gomock.NewController(t)
	runner := mocks.NewFakeRunner()
	dir := servoTree(t, runner)

	puller := mocks.NewMockPuller(ctrl)
	puller.EXPECT().Repository().Return("https://github.com/servo/servo.git").AnyTimes()
	puller.EXPECT().Ensure(gomock.Any()).Return(nil)
	puller.EXPECT().Sync(gomock.Any(), "nope").Return(&vcs.UnknownRevisionError{Revision: "nope"})

	recorder := mocks.NewMockRunRecorder()
	notifier := &mocks.MockNotifier{}
	e := engine.New(nil, host64, nil, engine.Dependencies{
		Runner:   runner,
		Pullers:  &pullerFactory{puller: puller},
		Manifest: manifest.NewWriter(nil),
		Recorder: recorder,
		Notifier: notifier,
	})

	_, err := e.Run(context.Background(), types.Options{
		Repository: "servo", Revision: "nope", OutputDir: dir, Configuration: types.Config64Bit,
	})
	if !errors.Is(err, vcs.ErrUnknownRevision) {
		t.Fatalf("expected ErrUnknownRevision, got %v", err)
	}
	if runner.CallCount() != 0 {
		t.Errorf("nothing should be built, got %v", runner.Commands())
	}
	if _, err := os.Stat(manifest.Path(dir)); !os.IsNotExist(err) {
		t.Error("no manifest may be written")
	}
	if recorder.Err == nil || len(notifier.Failed) != 1 {
		t.Error("failure should be recorded and announced")
	}
}

func TestRun_UnknownRepository(t *testing.T) {
	e := engine.New(nil, host64, nil, engine.Dependencies{
		Runner:   mocks.NewFakeRunner(),
		Pullers:  vcs.NewResolver(mocks.NewFakeRunner(), nil),
		Manifest: manifest.NewWriter(nil),
	})

	_, err := e.Run(context.Background(), types.Options{
		Repository: "chakra", OutputDir: t.TempDir(), Configuration: types.Config64Bit,
	})
	if !errors.Is(err, vcs.ErrUnknownRepository) {
		t.Errorf("expected ErrUnknownRepository, got %v", err)
	}
}

func TestRun_UnknownSourceTree(t *testing.T) {
	ctrl := gomock.NewController(t)
	puller := mocks.NewMockPuller(ctrl)
	puller.EXPECT().Ensure(gomock.Any()).Return(nil)
	puller.EXPECT().Sync(gomock.Any(), "").Return(nil)

	e := engine.New(nil, host64, nil, engine.Dependencies{
		Runner:   mocks.NewFakeRunner(),
		Pullers:  &pullerFactory{puller: puller},
		Manifest: manifest.NewWriter(nil),
	})

	_, err := e.Run(context.Background(), types.Options{
		Repository: "servo", OutputDir: t.TempDir(), Configuration: types.Config64Bit,
	})
	if !errors.Is(err, pkgbuilders.ErrUnknownBuilder) {
		t.Errorf("expected ErrUnknownBuilder, got %v", err)
	}
}

func TestRun_ForceRemovesObjDir(t *testing.T) {
	ctrl := gomock.NewController(t)
	runner := mocks.NewFakeRunner()
	dir := servoTree(t, runner)

	stale := filepath.Join(dir, "target", "debug", "stale.o")
	if err := os.MkdirAll(filepath.Dir(stale), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(stale, nil, 0644); err != nil {
		t.Fatal(err)
	}

	puller := mocks.NewMockPuller(ctrl)
	puller.EXPECT().Ensure(gomock.Any()).Return(nil)
	puller.EXPECT().Sync(gomock.Any(), "").Return(nil)
	puller.EXPECT().Identify(gomock.Any()).Return("f00d", nil)

	recorder := mocks.NewMockRunRecorder()
	recorder.SetLocked(true)

	e := engine.New(nil, host64, nil, engine.Dependencies{
		Runner:      runner,
		Pullers:     &pullerFactory{puller: puller},
		Manifest:    manifest.NewWriter(nil),
		Recorder:    recorder,
		Environment: fixedEnv,
	})

	if _, err := e.Run(context.Background(), types.Options{
		Repository: "servo", OutputDir: dir, Configuration: types.Config64Bit, Force: true,
	}); err != nil {
		t.Fatalf("a locked record only warns, got %v", err)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("force should remove the previous build output")
	}
}

func TestClean(t *testing.T) {
	dir := t.TempDir()
	objdir := filepath.Join(dir, "js", "src", "Opt")
	if err := os.MkdirAll(objdir, 0755); err != nil {
		t.Fatal(err)
	}

	e := engine.New(nil, host64, nil, engine.Dependencies{
		Runner:   mocks.NewFakeRunner(),
		Pullers:  &pullerFactory{},
		Manifest: manifest.NewWriter(nil),
	})

	removed, err := e.Clean(dir, types.ConfigAuto)
	if err != nil {
		t.Fatal(err)
	}
	if removed != objdir {
		t.Errorf("expected %s, got %s", objdir, removed)
	}
	if _, err := os.Stat(objdir); !os.IsNotExist(err) {
		t.Error("objdir should be gone")
	}
}
