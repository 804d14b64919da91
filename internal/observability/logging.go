// Package observability provides structured logging for the application.
package observability

import (
	"context"
	"log/slog"
	"os"

	"github.com/google/uuid"
)

// Setup installs the JSON slog handler as the process-wide default logger.
// level defaults to info when the name is unknown.
func Setup(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// LogContextKey is the type for context keys used by this package.
type LogContextKey string

// CorrelationID keys a per-request id carried through the call chain.
const CorrelationID LogContextKey = "correlation_id"

// GenerateCorrelationID creates a new unique correlation id.
func GenerateCorrelationID() string {
	return uuid.NewString()
}

// WithCorrelationID returns a context carrying the given correlation id.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, CorrelationID, id)
}

// ExtractCorrelationID retrieves the correlation id from the context, or "".
func ExtractCorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(CorrelationID).(string); ok {
		return id
	}
	return ""
}

// StoreLogger provides structured logging for document store operations.
type StoreLogger struct {
	collection string
}

// NewStoreLogger creates a StoreLogger for the given collection.
func NewStoreLogger(collection string) *StoreLogger {
	return &StoreLogger{collection: collection}
}

// LogWrite logs a store write.
func (l *StoreLogger) LogWrite(ctx context.Context, operation, docID string) {
	slog.InfoContext(ctx, "store write",
		slog.String("collection", l.collection),
		slog.String("operation", operation),
		slog.String("doc_id", docID),
		slog.String("correlation_id", ExtractCorrelationID(ctx)),
	)
}

// LogError logs a store error.
func (l *StoreLogger) LogError(ctx context.Context, operation string, err error) {
	slog.ErrorContext(ctx, "store error",
		slog.String("collection", l.collection),
		slog.String("operation", operation),
		slog.String("correlation_id", ExtractCorrelationID(ctx)),
		slog.String("error", err.Error()),
	)
}
