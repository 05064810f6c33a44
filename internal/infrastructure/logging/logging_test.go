package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/freight-reconcile/internal/infrastructure/config"
)

func TestMavenHandler_Format(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewMavenHandler(&buf, nil)).With("system", "matcher")

	logger.Info("match confirmed", "kind", "pagar", "obligation_id", 7, "amount", decimal.RequireFromString("1500.00"))

	line := buf.String()
	assert.Regexp(t, `^\[INFO\] \[matcher\] \[\d{2}:\d{2}:\d{2}\] match confirmed`, line)
	assert.Contains(t, line, " kind=pagar obligation_id=7 amount=1500")
	assert.NotContains(t, line, "system=")
	assert.NotContains(t, line, "\033[", "no colors when not writing to a terminal")
}

func TestMavenHandler_Level(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewMavenHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))

	logger.Info("hidden")
	logger.Debug("hidden")
	logger.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "[WARN]")
}

func TestMavenHandler_QuotingAndGroups(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewMavenHandler(&buf, nil))

	logger.WithGroup("tx").With("description", "Frete SP").Info("parsed", "date", "2024-03-10", slog.Group("score", "amount", 50, "date", 30))

	line := buf.String()
	assert.Contains(t, line, `tx.description="Frete SP"`)
	assert.Contains(t, line, "tx.date=2024-03-10")
	assert.Contains(t, line, "tx.score.amount=50 tx.score.date=30")
}

func TestMavenHandler_LevelLabels(t *testing.T) {
	tests := []struct {
		level slog.Level
		want  string
	}{
		{slog.LevelDebug, "[DEBUG]"},
		{slog.LevelInfo + 2, "[INFO]"},
		{slog.LevelWarn, "[WARN]"},
		{slog.LevelError + 4, "[ERROR]"},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		logger := slog.New(NewMavenHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
		logger.Log(context.Background(), tt.level, "x")
		assert.True(t, strings.HasPrefix(buf.String(), tt.want), "level %v: %q", tt.level, buf.String())
	}
}

func TestMavenHandler_ZeroTimeOmitted(t *testing.T) {
	var buf bytes.Buffer
	h := NewMavenHandler(&buf, nil)

	require.NoError(t, h.Handle(context.Background(), slog.NewRecord(time.Time{}, slog.LevelInfo, "no clock", 0)))

	assert.Equal(t, "[INFO] no clock\n", buf.String())
}

func TestMavenHandler_DerivedHandlersAreIndependent(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(NewMavenHandler(&buf, nil))
	api := base.With("system", "api", "component", "server")

	api.Info("started")
	base.Info("plain", "elapsed", 1500*time.Millisecond)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "[api]")
	assert.Contains(t, lines[0], "component=server")
	assert.NotContains(t, lines[1], "[api]")
	assert.NotContains(t, lines[1], "component=")
	assert.Contains(t, lines[1], "elapsed=1.5s")
}

func TestMavenHandler_DynamicLevel(t *testing.T) {
	var buf bytes.Buffer
	level := &slog.LevelVar{}
	logger := slog.New(NewMavenHandler(&buf, &slog.HandlerOptions{Level: level}))

	logger.Debug("before")
	level.Set(slog.LevelDebug)
	logger.Debug("after")

	assert.NotContains(t, buf.String(), "before")
	assert.Contains(t, buf.String(), "after")
}

func TestNewLoggerTo_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, config.LoggingConfig{Level: "debug", Format: "json"})

	logger.Debug("statement matched", "transactions", 3)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "DEBUG", entry["level"])
	assert.Equal(t, "statement matched", entry["msg"])
	assert.Equal(t, float64(3), entry["transactions"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("WARNING"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}
