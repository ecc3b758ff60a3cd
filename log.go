package strata

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// discardHandler drops every record. Enabled returns false so callers skip
// formatting altogether.
type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (discardHandler) WithAttrs([]slog.Attr) slog.Handler        { return discardHandler{} }
func (discardHandler) WithGroup(string) slog.Handler             { return discardHandler{} }

var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(slog.New(discardHandler{}))
}

// SetLogger installs the logger used by strata and its sub-packages. By
// default nothing is logged. Passing nil restores the silent default.
//
// Levels:
//   - [slog.LevelDebug]: per-frame flush and paint statistics
//   - [slog.LevelInfo]: atlas creation and release
//   - [slog.LevelWarn]: degraded paints (no surface, atlas full)
//   - [slog.LevelError]: protocol-integrity violations
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(discardHandler{})
	}
	loggerPtr.Store(l)
}

// Logger returns the current logger. Safe for concurrent use.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
