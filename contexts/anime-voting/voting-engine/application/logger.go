package application

import "log/slog"

// ModuleName is attached to every log line and span emitted by the module.
const ModuleName = "anime-voting/voting-engine"

// ResolveLogger guarantees a non-nil logger for application/worker code paths.
func ResolveLogger(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
