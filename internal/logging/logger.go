// Package logging defines the structured logger used across the server and
// its slog and zap backends. Backends redact values stored under sensitive
// keys (see Redacted), so passing a password or key by mistake does not leak
// it into log output.
package logging

import "context"

// Logger is a context-aware, structured logger. args are key/value pairs:
//
//	logger.Info(ctx, "secret stored", "user_id", id, "secret_id", key.ID)
//
// Components derive their logger once with With("module", name).
type Logger interface {
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)
	With(args ...any) Logger
}
