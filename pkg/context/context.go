// Package context carries run-scoped tracing values (run id, operation, start time).
package context

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Unexported struct pointers prevent key collisions.
var (
	runIDKey     = &struct{}{}
	operationKey = &struct{}{}
	startTimeKey = &struct{}{}
)

const (
	unknownRun       = "unknown-run"
	unknownOperation = "unknown-operation"
)

// WithRunID adds a run ID to the context, generating one when empty
func WithRunID(parent context.Context, runID string) context.Context {
	if runID == "" {
		runID = GenerateRunID()
	}
	return context.WithValue(parent, runIDKey, runID)
}

// GetRunID retrieves the run ID from context
func GetRunID(ctx context.Context) string {
	if id, ok := ctx.Value(runIDKey).(string); ok && id != "" {
		return id
	}
	return unknownRun
}

// HasRunID reports whether a run ID was attached
func HasRunID(ctx context.Context) bool {
	return GetRunID(ctx) != unknownRun
}

// WithOperation names the step currently executing (sync, build, manifest...)
func WithOperation(parent context.Context, operation string) context.Context {
	return context.WithValue(parent, operationKey, operation)
}

// GetOperation retrieves the operation name from context
func GetOperation(ctx context.Context) string {
	if op, ok := ctx.Value(operationKey).(string); ok && op != "" {
		return op
	}
	return unknownOperation
}

// HasOperation reports whether an operation was attached
func HasOperation(ctx context.Context) bool {
	return GetOperation(ctx) != unknownOperation
}

// WithStartTime adds the operation start time to the context
func WithStartTime(parent context.Context, startTime time.Time) context.Context {
	return context.WithValue(parent, startTimeKey, startTime)
}

// GetStartTime retrieves the start time, or the zero time when absent
func GetStartTime(ctx context.Context) time.Time {
	if t, ok := ctx.Value(startTimeKey).(time.Time); ok {
		return t
	}
	return time.Time{}
}

// GetDuration returns the time elapsed since the start time, or 0 when absent
func GetDuration(ctx context.Context) time.Duration {
	start := GetStartTime(ctx)
	if start.IsZero() {
		return 0
	}
	return time.Since(start)
}

// GenerateRunID creates a new unique run ID
func GenerateRunID() string {
	return "run_" + uuid.New().String()
}

// EnrichContext attaches a run ID (if missing) and a fresh start time
func EnrichContext(parent context.Context) context.Context {
	ctx := parent
	if !HasRunID(ctx) {
		ctx = WithRunID(ctx, GenerateRunID())
	}
	return WithStartTime(ctx, time.Now())
}
