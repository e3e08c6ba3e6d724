package log

import (
	"context"
	"log/slog"
	"net/http"
)

// StructuredLogger writes the few events whose field set is fixed, so every
// call site logs them the same way.
type StructuredLogger struct {
	logger *Logger
}

func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{logger: logger}
}

func statusLevel(status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	}
	return slog.LevelInfo
}

// LogHTTPEnd records a finished request. 4xx logs at warn, 5xx at error.
func (sl *StructuredLogger) LogHTTPEnd(ctx context.Context, r *http.Request, status int, durationMs int64, clientIP string) {
	f := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.UserAgent(), r.Referer()).
		WithHTTPResponse(status, durationMs, status < 400).
		WithClientIP(clientIP).
		WithComponent(ComponentHTTP)
	sl.logger.Logger.Log(ctx, statusLevel(status), "HTTP request completed", f.ToSlice()...)
}

// TransactionFields is what gets logged of a saved transaction. The
// description is left out.
type TransactionFields struct {
	AccountID   string
	CategoryID  string
	Type        string
	AmountCents int64
}

func (sl *StructuredLogger) LogTransactionSaved(ctx context.Context, op string, tx TransactionFields) {
	f := NewFields().
		WithTransaction(tx.AccountID, tx.CategoryID, tx.Type, tx.AmountCents).
		WithOperation(op).
		WithComponent(ComponentForm)
	sl.logger.Logger.InfoContext(ctx, "Transaction saved", f.ToSlice()...)
}

// LogError logs err at error level with extra fields. fields may be nil.
func (sl *StructuredLogger) LogError(ctx context.Context, msg string, err error, component, op string, fields LogFields) {
	if fields == nil {
		fields = NewFields()
	}
	f := fields.WithError(err).WithOperation(op).WithComponent(component)
	sl.logger.Logger.ErrorContext(ctx, msg, f.ToSlice()...)
}
