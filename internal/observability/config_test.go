package observability

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, "info", config.Logging.Level)
	assert.Equal(t, "json", config.Logging.Format)
	assert.True(t, config.Metrics.Enabled)
	assert.Equal(t, 9090, config.Metrics.PrometheusPort)
	assert.False(t, config.Tracing.Enabled)
	assert.Equal(t, "otlp", config.Tracing.Exporter)
	assert.Equal(t, 1.0, config.Tracing.SampleRate)
	assert.Equal(t, "astra", config.Tracing.ServiceName)
}

func TestNewLogger_Format(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "debug", Format: "json", Output: &buf})
	logger.Info("reading served", "sign", "aries")

	out := buf.String()
	assert.Contains(t, out, `"msg":"reading served"`)
	assert.Contains(t, out, `"sign":"aries"`)
}

func TestNewLogger_LevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "warn", Format: "text", Output: &buf})
	logger.Debug("hidden")
	logger.Info("hidden too")
	logger.Warn("visible")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "visible")
}

func TestWithContext_CarriesUserAndChannel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "info", Format: "json", Output: &buf})

	ctx := ContextWithUserID(context.Background(), "42")
	ctx = ContextWithChannel(ctx, "telegram")
	logger.InfoContext(ctx, "handled")

	out := buf.String()
	assert.Contains(t, out, `"user_id":"42"`)
	assert.Contains(t, out, `"channel":"telegram"`)
}

func TestSanitizeToken(t *testing.T) {
	if got := SanitizeToken("short"); got != "***" {
		t.Fatalf("short token: expected ***, got %q", got)
	}
	long := "123456789:AAHsampletokensampletoken"
	got := SanitizeToken(long)
	if strings.Contains(got, long[8:len(long)-4]) {
		t.Fatalf("sanitized token leaks middle: %q", got)
	}
	assert.Equal(t, long[:8]+"..."+long[len(long)-4:], got)
}
