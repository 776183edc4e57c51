package discord

import (
	"log/slog"
	"runtime/debug"
)

// guard is deferred at the top of every goroutine the adapter starts for
// an inbound event. A panic is logged with its stack and swallowed so the
// session keeps running.
func guard(logger *slog.Logger, what string, attrs ...any) {
	r := recover()
	if r == nil {
		return
	}
	attrs = append(attrs, "handler", what, "panic", r, "stack", string(debug.Stack()))
	logger.Error("handler panicked", attrs...)
}
