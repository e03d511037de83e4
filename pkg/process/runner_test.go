//go:build unix

package process_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/kballard/go-shellquote"

	"github.com/arewefastyet/jsbuild/pkg/logger"
	"github.com/arewefastyet/jsbuild/pkg/process"
)

func newRunner(out *bytes.Buffer) *process.ExecRunner {
	return process.NewExecRunner(logger.Discard(), process.WithOutput(out))
}

func TestExecRunner_Captured(t *testing.T) {
	var mirror bytes.Buffer
	r := newRunner(&mirror)

	out, err := r.Run(context.Background(), process.Command{
		Args: []string{"sh", "-c", "echo out; echo err 1>&2"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "out") || !strings.Contains(out, "err") {
		t.Errorf("expected combined output, got %q", out)
	}
	if mirror.Len() != 0 {
		t.Error("captured commands must not be mirrored")
	}
}

func TestExecRunner_Dir(t *testing.T) {
	dir := t.TempDir()
	r := newRunner(&bytes.Buffer{})

	out, err := r.Run(context.Background(), process.Command{Args: []string{"pwd"}, Dir: dir})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// macOS temp dirs live behind a /private symlink
	if !strings.HasSuffix(strings.TrimSpace(out), strings.TrimPrefix(dir, "/private")) {
		t.Errorf("expected %s, got %q", dir, out)
	}
}

func TestExecRunner_Env(t *testing.T) {
	r := newRunner(&bytes.Buffer{})

	out, err := r.Run(context.Background(), process.Command{
		Args: []string{"sh", "-c", "echo $JSBUILD_TEST_VAR"},
		Env:  append(os.Environ(), "JSBUILD_TEST_VAR=hello"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(out) != "hello" {
		t.Errorf("expected hello, got %q", out)
	}
}

func TestExecRunner_NonZeroExit(t *testing.T) {
	r := newRunner(&bytes.Buffer{})

	out, err := r.Run(context.Background(), process.Command{
		Args: []string{"sh", "-c", "echo boom; exit 3"},
	})

	var pe *process.ProcessError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ProcessError, got %v", err)
	}
	if pe.ExitCode != 3 {
		t.Errorf("expected exit code 3, got %d", pe.ExitCode)
	}
	if !strings.Contains(pe.Output, "boom") || !strings.Contains(out, "boom") {
		t.Errorf("expected output to be carried, got %q", pe.Output)
	}
	if process.OutputOf(err) != pe.Output {
		t.Error("OutputOf should return the error's output")
	}
}

func TestExecRunner_EmptyCommand(t *testing.T) {
	r := newRunner(&bytes.Buffer{})
	if _, err := r.Run(context.Background(), process.Command{}); !errors.Is(err, process.ErrEmptyCommand) {
		t.Errorf("expected ErrEmptyCommand, got %v", err)
	}
}

func TestExecRunner_WallClockTimeout(t *testing.T) {
	r := newRunner(&bytes.Buffer{})

	start := time.Now()
	_, err := r.Run(context.Background(), process.Command{
		Args:    []string{"sleep", "10"},
		Timeout: 200 * time.Millisecond,
	})
	if !errors.Is(err, process.ErrTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}

	var te *process.TimeoutError
	if !errors.As(err, &te) || te.Idle {
		t.Errorf("expected wall-clock timeout, got %#v", err)
	}
	if time.Since(start) > 8*time.Second {
		t.Error("child was not killed promptly")
	}
}

func TestExecRunner_StreamMirrorsLines(t *testing.T) {
	var mirror bytes.Buffer
	r := newRunner(&mirror)

	out, err := r.Run(context.Background(), process.Command{
		Args:   []string{"sh", "-c", "echo one; echo two 1>&2; echo three"},
		Stream: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []string{"one", "two", "three"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in collected output %q", want, out)
		}
		if !strings.Contains(mirror.String(), want) {
			t.Errorf("expected %q mirrored, got %q", want, mirror.String())
		}
	}
}

func TestExecRunner_StreamIdleTimeout(t *testing.T) {
	var mirror bytes.Buffer
	r := newRunner(&mirror)

	start := time.Now()
	out, err := r.Run(context.Background(), process.Command{
		Args:        []string{"sh", "-c", "echo started; sleep 10; echo never"},
		Stream:      true,
		IdleTimeout: 300 * time.Millisecond,
	})

	var te *process.TimeoutError
	if !errors.As(err, &te) {
		t.Fatalf("expected TimeoutError, got %v", err)
	}
	if !te.Idle {
		t.Error("expected an idle timeout")
	}
	if !strings.Contains(out, "started") || strings.Contains(out, "never") {
		t.Errorf("unexpected output %q", out)
	}
	if time.Since(start) > 8*time.Second {
		t.Error("child was not killed promptly")
	}
}

func TestExecRunner_StreamFailure(t *testing.T) {
	r := newRunner(&bytes.Buffer{})

	_, err := r.Run(context.Background(), process.Command{
		Args:   []string{"sh", "-c", "echo partial; exit 2"},
		Stream: true,
	})

	var pe *process.ProcessError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ProcessError, got %v", err)
	}
	if pe.ExitCode != 2 || !strings.Contains(pe.Output, "partial") {
		t.Errorf("unexpected error %#v", pe)
	}
}

func TestDiffEnv(t *testing.T) {
	t.Setenv("JSBUILD_SAME", "1")

	env := append(os.Environ(), "JSBUILD_NEW=x")
	diff := process.DiffEnv(env)

	if diff["JSBUILD_NEW"] != "x" {
		t.Errorf("expected new variable in diff, got %v", diff)
	}
	if _, ok := diff["JSBUILD_SAME"]; ok {
		t.Error("unchanged variables must not appear in the diff")
	}
	if process.DiffEnv(nil) != nil {
		t.Error("nil env means inherit; diff should be nil")
	}
}

func TestCommand_StringRoundTrips(t *testing.T) {
	c := process.Command{Args: []string{"gn", "gen", "out/x64.release", "--args=is_debug = false"}}

	words, err := shellquote.Split(c.String())
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if len(words) != len(c.Args) {
		t.Fatalf("expected %d words, got %d (%q)", len(c.Args), len(words), c.String())
	}
	for i := range words {
		if words[i] != c.Args[i] {
			t.Errorf("word %d: got %q, want %q", i, words[i], c.Args[i])
		}
	}
}
