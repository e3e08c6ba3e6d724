package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newBufferLogger(level slog.Level) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return New(Config{Level: level, JSON: true, Output: &buf}), &buf
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestComponentIsAttached(t *testing.T) {
	logger, buf := newBufferLogger(slog.LevelInfo)
	logger.WithComponent(ComponentStore).Info("cached", FieldCount, 3)

	assert.Contains(t, buf.String(), `"component":"store"`)
	assert.Contains(t, buf.String(), `"count":3`)
}

func TestContextLogger(t *testing.T) {
	logger, buf := newBufferLogger(slog.LevelInfo)
	ctx := NewContext(context.Background(), logger.With(FieldRequestID, "req_1"))

	FromContext(ctx).Info("hello")
	assert.Contains(t, buf.String(), `"request_id":"req_1"`)

	assert.NotNil(t, FromContext(context.Background()))
}

func TestLogHTTPEndLevelFollowsStatus(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{200, `"level":"INFO"`},
		{404, `"level":"WARN"`},
		{502, `"level":"ERROR"`},
	}
	for _, tt := range tests {
		logger, buf := newBufferLogger(slog.LevelDebug)
		r := httptest.NewRequest("GET", "/accounts?x=1", nil)
		NewStructuredLogger(logger).LogHTTPEnd(context.Background(), r, tt.status, 12, "10.0.0.1")
		assert.Contains(t, buf.String(), tt.level, tt.status)
		assert.Contains(t, buf.String(), `"client_ip":"10.0.0.1"`)
	}
}

func TestLogError(t *testing.T) {
	logger, buf := newBufferLogger(slog.LevelInfo)
	NewStructuredLogger(logger).LogError(context.Background(), "Export failed", errors.New("disk full"),
		ComponentExport, OpExport, LogFields{FieldFormat: "pdf"})

	out := buf.String()
	assert.Contains(t, out, `"error":"disk full"`)
	assert.Contains(t, out, `"operation":"export"`)
	assert.Contains(t, out, `"format":"pdf"`)
}
