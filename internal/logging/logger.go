// Package logging defines the structured logger used by the server and
// client. The interface is deliberately small so services depend on
// behaviour rather than on a concrete logging backend.
package logging

import "context"

// Logger logs structured, context-aware messages. The trailing args are
// alternating key/value pairs:
//
//	log.Info(ctx, "listening", "addr", addr)
type Logger interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)

	// With returns a derived logger that carries the given key/value
	// pairs on every record it emits.
	With(args ...any) Logger
}
