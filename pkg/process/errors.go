package process

import (
	"errors"
	"fmt"
	"os/exec"
	"time"
)

var (
	// ErrEmptyCommand indicates a Command without argv
	ErrEmptyCommand = errors.New("empty command")

	// ErrTimeout matches every TimeoutError through errors.Is
	ErrTimeout = errors.New("command timed out")
)

// ProcessError reports a command that exited unsuccessfully
type ProcessError struct {
	Command  string
	ExitCode int
	Output   string
	Err      error
}

func (e *ProcessError) Error() string {
	return fmt.Sprintf("command %q failed with exit code %d: %v", e.Command, e.ExitCode, e.Err)
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}

func newProcessError(c Command, err error, output string) *ProcessError {
	code := -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code = exitErr.ExitCode()
	}
	return &ProcessError{Command: c.String(), ExitCode: code, Output: output, Err: err}
}

// TimeoutError reports a command killed because it ran too long (Idle=false)
// or produced no output line within the idle window (Idle=true)
type TimeoutError struct {
	Command string
	Timeout time.Duration
	Idle    bool
	Output  string
}

func (e *TimeoutError) Error() string {
	if e.Idle {
		return fmt.Sprintf("command %q produced no output for %s and was killed", e.Command, e.Timeout)
	}
	return fmt.Sprintf("command %q exceeded %s and was killed", e.Command, e.Timeout)
}

func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// OutputOf returns the captured output carried by err, if any
func OutputOf(err error) string {
	var pe *ProcessError
	if errors.As(err, &pe) {
		return pe.Output
	}
	var te *TimeoutError
	if errors.As(err, &te) {
		return te.Output
	}
	return ""
}
