// Package process runs external tools: VCS clients, configure scripts, compilers.
package process

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"
	"golang.org/x/sync/errgroup"

	"github.com/arewefastyet/jsbuild/pkg/logger"
)

// DefaultIdleTimeout is how long a streamed command may stay silent
const DefaultIdleTimeout = 60 * time.Second

// Command describes one subprocess invocation
type Command struct {
	Args []string
	Dir  string
	// Env is the complete child environment; nil inherits the host environment
	Env []string
	// Stream mirrors output line by line and enforces IdleTimeout per line
	Stream      bool
	IdleTimeout time.Duration
	// Timeout bounds the whole run of a captured (non-streamed) command
	Timeout time.Duration
	// Silent suppresses logging of captured output
	Silent bool
}

// String renders the argv the way a shell would accept it
func (c Command) String() string {
	return shellquote.Join(c.Args...)
}

// Runner executes commands, returning combined output and an error on nonzero exit
type Runner interface {
	Run(ctx context.Context, c Command) (string, error)
}

// ExecRunner runs commands on the host with os/exec
type ExecRunner struct {
	logger      logger.Logger
	idleTimeout time.Duration
	output      io.Writer
}

// Option configures an ExecRunner
type Option func(*ExecRunner)

// WithIdleTimeout sets the default per-line window for streamed commands
func WithIdleTimeout(d time.Duration) Option {
	return func(r *ExecRunner) {
		if d > 0 {
			r.idleTimeout = d
		}
	}
}

// WithOutput sets where streamed output is mirrored (stdout by default)
func WithOutput(w io.Writer) Option {
	return func(r *ExecRunner) {
		r.output = w
	}
}

// NewExecRunner creates a runner
func NewExecRunner(log logger.Logger, opts ...Option) *ExecRunner {
	if log == nil {
		log = logger.Discard()
	}
	r := &ExecRunner{
		logger:      log.WithComponent("process"),
		idleTimeout: DefaultIdleTimeout,
		output:      os.Stdout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes c
func (r *ExecRunner) Run(ctx context.Context, c Command) (string, error) {
	if len(c.Args) == 0 {
		return "", ErrEmptyCommand
	}

	r.logCommand(ctx, c)

	if c.Stream {
		return r.runStreaming(ctx, c)
	}
	return r.runCaptured(ctx, c)
}

func (r *ExecRunner) logCommand(ctx context.Context, c Command) {
	dir := c.Dir
	if dir == "" {
		dir, _ = os.Getwd()
	}

	fields := []logger.Field{logger.WithField("dir", dir)}
	if diff := DiffEnv(c.Env); len(diff) > 0 {
		fields = append(fields, logger.WithField("env", formatEnv(diff)))
	}
	logger.WithContext(ctx, r.logger).Info(">> "+c.String(), fields...)
}

func (r *ExecRunner) command(ctx context.Context, c Command) *exec.Cmd {
	// #nosec G204 -- argv is assembled by the build strategies, never from user text
	cmd := exec.CommandContext(ctx, c.Args[0], c.Args[1:]...)
	cmd.Dir = c.Dir
	if c.Env != nil {
		cmd.Env = c.Env
	}
	setProcessGroup(cmd)
	cmd.Cancel = func() error {
		return killProcessGroup(cmd)
	}
	cmd.WaitDelay = 5 * time.Second
	return cmd
}

func (r *ExecRunner) runCaptured(ctx context.Context, c Command) (string, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	cmd := r.command(ctx, c)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	output := out.String()

	if err != nil {
		if c.Timeout > 0 && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			r.logger.Warn("Timed out", logger.WithField("cmd", c.String()))
			return output, &TimeoutError{Command: c.String(), Timeout: c.Timeout, Output: output}
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return output, fmt.Errorf("%s: %w", c.String(), ctxErr)
		}
		r.logger.Error("Command failed", logger.WithField("output", strings.TrimSpace(output)))
		return output, newProcessError(c, err, output)
	}

	if !c.Silent && output != "" {
		r.logger.Debug(strings.TrimRight(output, "\n"))
	}
	return output, nil
}

func (r *ExecRunner) runStreaming(ctx context.Context, c Command) (string, error) {
	idle := c.IdleTimeout
	if idle <= 0 {
		idle = r.idleTimeout
	}

	cmd := r.command(ctx, c)
	pr, pw, err := os.Pipe()
	if err != nil {
		return "", fmt.Errorf("creating output pipe: %w", err)
	}
	defer pr.Close()
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		pw.Close()
		return "", newProcessError(c, err, "")
	}
	// the child holds its own copy of the write end
	pw.Close()

	lines := make(chan string)
	done := make(chan struct{})

	var g errgroup.Group
	g.Go(func() error {
		defer close(lines)
		scanner := bufio.NewScanner(pr)
		scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return nil
			}
		}
		if err := scanner.Err(); err != nil && !errors.Is(err, os.ErrClosed) {
			return err
		}
		return nil
	})

	var collected strings.Builder
	timedOut := false
	timer := time.NewTimer(idle)
	defer timer.Stop()

loop:
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				break loop
			}
			collected.WriteString(line)
			collected.WriteByte('\n')
			fmt.Fprintln(r.output, line)
			timer.Reset(idle)
		case <-timer.C:
			timedOut = true
			r.logger.Warn("No output, killing", logger.WithField("cmd", c.String()), logger.WithField("idle", idle))
			_ = killProcessGroup(cmd)
			break loop
		case <-ctx.Done():
			break loop
		}
	}
	close(done)

	waitErr := cmd.Wait()
	// unblocks the reader if an escaped grandchild still holds the pipe
	pr.Close()
	readErr := g.Wait()

	output := collected.String()
	switch {
	case timedOut:
		return output, &TimeoutError{Command: c.String(), Timeout: idle, Idle: true, Output: output}
	case ctx.Err() != nil:
		return output, fmt.Errorf("%s: %w", c.String(), ctx.Err())
	case waitErr != nil:
		return output, newProcessError(c, waitErr, output)
	case readErr != nil:
		return output, fmt.Errorf("reading output of %s: %w", c.String(), readErr)
	}
	return output, nil
}

// DiffEnv returns the entries of env that are absent from, or differ from, the host environment
func DiffEnv(env []string) map[string]string {
	if env == nil {
		return nil
	}

	host := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			host[k] = v
		}
	}

	diff := make(map[string]string)
	for _, kv := range env {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		if hv, present := host[k]; !present || hv != v {
			diff[k] = v
		}
	}
	return diff
}

func formatEnv(env map[string]string) string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + shellquote.Join(env[k])
	}
	return strings.Join(parts, " ")
}
