package log

import "context"

// Logger defines a standard interface for logging.
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...map[string]interface{})
	Info(ctx context.Context, msg string, fields ...map[string]interface{})
	Warn(ctx context.Context, msg string, fields ...map[string]interface{})
	Error(ctx context.Context, msg string, err error, fields ...map[string]interface{})
	Fatal(ctx context.Context, msg string, err error, fields ...map[string]interface{}) // the zerolog adapter exits the process
	With(fields map[string]interface{}) Logger
}

type nopLogger struct{}

// NewNopLogger returns a Logger that discards everything, Fatal included.
func NewNopLogger() Logger { return nopLogger{} }

func (nopLogger) Debug(context.Context, string, ...map[string]interface{})        {}
func (nopLogger) Info(context.Context, string, ...map[string]interface{})         {}
func (nopLogger) Warn(context.Context, string, ...map[string]interface{})         {}
func (nopLogger) Error(context.Context, string, error, ...map[string]interface{}) {}
func (nopLogger) Fatal(context.Context, string, error, ...map[string]interface{}) {}
func (n nopLogger) With(map[string]interface{}) Logger                            { return n }
