package gannet

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with helpers for index operation logging.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a logger with the given handler. A nil handler falls
// back to a text handler writing to stderr at info level.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}

	return &Logger{Logger: slog.New(handler)}
}

// NewJSONLogger creates a logger emitting JSON records to stderr.
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewTextLogger creates a logger emitting text records to stderr.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NoopLogger creates a logger that discards all records.
func NoopLogger() *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	}))
}

// LogInsert logs the outcome of a single insert.
func (l *Logger) LogInsert(ctx context.Context, id ID, dimension int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "insert failed",
			slog.Uint64("id", uint64(id)),
			slog.Int("dimension", dimension),
			slog.Any("error", err),
		)
		return
	}

	l.DebugContext(ctx, "insert completed", slog.Uint64("id", uint64(id)))
}

// LogBatchInsert logs the outcome of a batch insert.
func (l *Logger) LogBatchInsert(ctx context.Context, total, failed int) {
	if failed > 0 {
		l.WarnContext(ctx, "batch insert completed with errors",
			slog.Int("total", total),
			slog.Int("failed", failed),
			slog.Int("succeeded", total-failed),
		)
		return
	}

	l.InfoContext(ctx, "batch insert completed", slog.Int("count", total))
}

// LogSearch logs the outcome of a search.
func (l *Logger) LogSearch(ctx context.Context, k, results int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "search failed",
			slog.Int("k", k),
			slog.Any("error", err),
		)
		return
	}

	l.DebugContext(ctx, "search completed",
		slog.Int("k", k),
		slog.Int("results", results),
	)
}

// LogDelete logs the outcome of a delete.
func (l *Logger) LogDelete(ctx context.Context, id ID, err error) {
	if err != nil {
		l.ErrorContext(ctx, "delete failed",
			slog.Uint64("id", uint64(id)),
			slog.Any("error", err),
		)
		return
	}

	l.DebugContext(ctx, "delete completed", slog.Uint64("id", uint64(id)))
}

// LogCompact logs the outcome of a compaction.
func (l *Logger) LogCompact(ctx context.Context, reclaimed int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "compaction failed", slog.Any("error", err))
		return
	}

	l.InfoContext(ctx, "compaction completed", slog.Int("reclaimed", reclaimed))
}

// LogSnapshot logs the outcome of a snapshot write.
func (l *Logger) LogSnapshot(ctx context.Context, name string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "snapshot failed", slog.Any("error", err))
		return
	}

	l.InfoContext(ctx, "snapshot saved", slog.String("name", name))
}

// LogRestore logs the outcome of a restore.
func (l *Logger) LogRestore(ctx context.Context, name string, vectors int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "restore failed", slog.Any("error", err))
		return
	}

	l.InfoContext(ctx, "snapshot restored",
		slog.String("name", name),
		slog.Int("vectors", vectors),
	)
}
