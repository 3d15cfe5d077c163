// Package recovery provides panic containment for externally-owned code,
// such as the unreachable-notification handlers and echo-reply callbacks
// registered with the ICMPv6 engine. A panic in a handler must not unwind
// the stack's inbound processing path.
package recovery

import (
	"fmt"
	"log/slog"
	"runtime/debug"
)

// RecoverWithLog recovers from panics and logs them with the provided logger.
// Use with defer around any call into code this subsystem does not own:
//
//	defer recovery.RecoverWithLog(logger, "unreachable handler")
//	h.HandleDestinationUnreachable(msg, info, hdr)
func RecoverWithLog(logger *slog.Logger, name string) {
	if r := recover(); r != nil {
		logger.Error("panic recovered",
			"in", name,
			"panic", fmt.Sprintf("%v", r),
			"stack", string(debug.Stack()))
	}
}

// RecoverWithCallback recovers from panics, logs them, and calls the
// optional callback with the recovered value, for cleanup or metrics.
func RecoverWithCallback(logger *slog.Logger, name string, callback func(recovered any)) {
	if r := recover(); r != nil {
		logger.Error("panic recovered",
			"in", name,
			"panic", fmt.Sprintf("%v", r),
			"stack", string(debug.Stack()))
		if callback != nil {
			callback(r)
		}
	}
}
