package glcache

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// nopHandler discards all records. Enabled returns false so callers skip formatting.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(slog.New(nopHandler{}))
}

// SetLogger configures the logger used by every [Cache]. By default nothing is logged.
// Pass nil to restore silent behavior.
//
// Log levels used:
//   - [slog.LevelDebug]: programs recompiled from the persisted document, document writes
//   - [slog.LevelInfo]: persistence enabled
//   - [slog.LevelWarn]: persisted document discarded or not written
//   - [slog.LevelError]: program compilation failures
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(nopHandler{})
	}
	loggerPtr.Store(l)
}

// Logger returns the logger in use.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
