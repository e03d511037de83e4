package vcs

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownRepository indicates an identifier no backend recognizes
	ErrUnknownRepository = errors.New("unknown repository")

	// ErrUnknownRevision matches every UnknownRevisionError through errors.Is
	ErrUnknownRevision = errors.New("unknown revision")

	// ErrRevisionNotSupported indicates a revision passed to a puller that only tracks a branch tip
	ErrRevisionNotSupported = errors.New("puller does not accept a revision")

	// ErrRevisionRequired indicates a tip sync on a puller that needs an explicit revision
	ErrRevisionRequired = errors.New("puller requires a revision")

	// ErrRepositoryMismatch indicates a fresh clone that still does not match its repository
	ErrRepositoryMismatch = errors.New("working copy does not match repository after clone")

	// ErrUnparseableOutput indicates a VCS client printed something we cannot read a revision from
	ErrUnparseableOutput = errors.New("unparseable vcs output")
)

// UnknownRevisionError reports a revision the backend does not know, with its output
type UnknownRevisionError struct {
	Revision string
	Output   string
}

func (e *UnknownRevisionError) Error() string {
	return fmt.Sprintf("unknown revision %s: %s", e.Revision, strings.TrimSpace(e.Output))
}

func (e *UnknownRevisionError) Is(target error) bool {
	return target == ErrUnknownRevision
}
