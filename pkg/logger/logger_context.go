package logger

import (
	"context"

	pcontext "github.com/arewefastyet/jsbuild/pkg/context"
)

// LoggerContext extends Logger with methods that pull run fields out of a context.
type LoggerContext interface {
	Logger
	InfoContext(ctx context.Context, message string, fields ...Field)
	ErrorContext(ctx context.Context, message string, fields ...Field)
	WarnContext(ctx context.Context, message string, fields ...Field)
	DebugContext(ctx context.Context, message string, fields ...Field)
	SuccessContext(ctx context.Context, message string, fields ...Field)
}

var _ LoggerContext = (*ComponentLogger)(nil)

// InfoContext logs an info message with run fields
func (l *ComponentLogger) InfoContext(ctx context.Context, message string, fields ...Field) {
	l.Info(message, append(contextFields(ctx), fields...)...)
}

// ErrorContext logs an error message with run fields
func (l *ComponentLogger) ErrorContext(ctx context.Context, message string, fields ...Field) {
	l.Error(message, append(contextFields(ctx), fields...)...)
}

// WarnContext logs a warning message with run fields
func (l *ComponentLogger) WarnContext(ctx context.Context, message string, fields ...Field) {
	l.Warn(message, append(contextFields(ctx), fields...)...)
}

// DebugContext logs a debug message with run fields
func (l *ComponentLogger) DebugContext(ctx context.Context, message string, fields ...Field) {
	l.Debug(message, append(contextFields(ctx), fields...)...)
}

// SuccessContext logs a success message with run fields
func (l *ComponentLogger) SuccessContext(ctx context.Context, message string, fields ...Field) {
	l.Success(message, append(contextFields(ctx), fields...)...)
}

func contextFields(ctx context.Context) []Field {
	if ctx == nil {
		return nil
	}

	var fields []Field
	if pcontext.HasRunID(ctx) {
		fields = append(fields, WithField("run_id", pcontext.GetRunID(ctx)))
	}
	if pcontext.HasOperation(ctx) {
		fields = append(fields, WithField("operation", pcontext.GetOperation(ctx)))
	}
	if d := pcontext.GetDuration(ctx); d > 0 {
		fields = append(fields, WithField("duration_ms", d.Milliseconds()))
	}
	return fields
}

// WithContext wraps a logger so every call carries the context's run fields
func WithContext(ctx context.Context, logger Logger) Logger {
	if ctx == nil {
		return logger
	}
	return &contextualLogger{ctx: ctx, logger: logger}
}

type contextualLogger struct {
	ctx    context.Context
	logger Logger
}

func (cl *contextualLogger) Info(message string, fields ...Field) {
	if lc, ok := cl.logger.(LoggerContext); ok {
		lc.InfoContext(cl.ctx, message, fields...)
		return
	}
	cl.logger.Info(message, fields...)
}

func (cl *contextualLogger) Error(message string, fields ...Field) {
	if lc, ok := cl.logger.(LoggerContext); ok {
		lc.ErrorContext(cl.ctx, message, fields...)
		return
	}
	cl.logger.Error(message, fields...)
}

func (cl *contextualLogger) Warn(message string, fields ...Field) {
	if lc, ok := cl.logger.(LoggerContext); ok {
		lc.WarnContext(cl.ctx, message, fields...)
		return
	}
	cl.logger.Warn(message, fields...)
}

func (cl *contextualLogger) Debug(message string, fields ...Field) {
	if lc, ok := cl.logger.(LoggerContext); ok {
		lc.DebugContext(cl.ctx, message, fields...)
		return
	}
	cl.logger.Debug(message, fields...)
}

func (cl *contextualLogger) Success(message string, fields ...Field) {
	if lc, ok := cl.logger.(LoggerContext); ok {
		lc.SuccessContext(cl.ctx, message, fields...)
		return
	}
	cl.logger.Success(message, fields...)
}

func (cl *contextualLogger) WithComponent(component string) Logger {
	return &contextualLogger{
		ctx:    cl.ctx,
		logger: cl.logger.WithComponent(component),
	}
}
