// Package logging builds the zap loggers used by the binaries and carries
// request-scoped fields through a context.
package logging

import (
	"context"
	"io"
	"os"
	"runtime/debug"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a JSON logger writing to stdout at the given level. An
// unparsable level falls back to info with a warning.
func New(level, name string) *zap.Logger {
	return NewTo(os.Stdout, level, name)
}

// NewTo is New with an explicit destination.
func NewTo(w io.Writer, level, name string) *zap.Logger {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = ""

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	log := zap.New(zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		zapcore.Lock(zapcore.AddSync(w)),
		lvl,
	)).Named(name)

	if err != nil && level != "" {
		log.With(zap.String("requested_level", level)).Warn("unable to parse log level, using INFO")
	}
	return log
}

type fieldsKey struct{}

// WithFields returns a context carrying fields in addition to those
// already attached.
func WithFields(ctx context.Context, fields ...zap.Field) context.Context {
	old := Fields(ctx)
	all := make([]zap.Field, 0, len(old)+len(fields))
	all = append(append(all, old...), fields...)
	return context.WithValue(ctx, fieldsKey{}, all)
}

// Fields returns the fields attached to ctx.
func Fields(ctx context.Context) []zap.Field {
	fields, _ := ctx.Value(fieldsKey{}).([]zap.Field)
	return fields
}

// FromContext returns parent with the context's fields.
func FromContext(ctx context.Context, parent *zap.Logger) *zap.Logger {
	return parent.With(Fields(ctx)...)
}

// Recover logs a panic with its stack. It must be deferred directly.
func Recover(log *zap.Logger) {
	if r := recover(); r != nil {
		log.With(zap.Any("panic", r), zap.String("stack", string(debug.Stack()))).Error("recovered panic")
	}
}
