// Package logging is the structured logger every moments component writes
// to. Components take the Logger interface and derive a child with
// With("module", ...) so each line names its origin.
package logging

import "context"

// Logger takes a message followed by alternating keys and values:
//
//	log.Warn(ctx, "push failed", "peer", peer, "cursor", cursor, "err", err)
type Logger interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	// Warn is for failures the caller recovers from: dropped commands,
	// undelivered pushes, lost relay streams.
	Warn(ctx context.Context, msg string, args ...any)
	// Error is for storage and encoding failures that cost a reply or a write.
	Error(ctx context.Context, msg string, args ...any)
	With(args ...any) Logger
}
