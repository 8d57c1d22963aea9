package otel

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/contrib/bridges/otelslog"

	"github.com/foosbot/goalkeeper/internal/config"
)

func TestNew_Disabled(t *testing.T) {
	p, err := New(config.OTelConfig{}, nil)
	require.NoError(t, err)
	assert.False(t, p.Enabled())
	assert.Nil(t, p.LoggerProvider())
	assert.NoError(t, p.Flush(context.Background()))
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNew_EnabledWithoutSink(t *testing.T) {
	_, err := New(config.OTelConfig{Enabled: true, ServiceName: "goalkeeper"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no log writer or endpoint")
}

func TestNew_WritesRecords(t *testing.T) {
	var buf bytes.Buffer
	p, err := New(config.OTelConfig{
		Enabled:      true,
		ServiceName:  "goalkeeper",
		BatchTimeout: time.Second,
	}, &buf)
	require.NoError(t, err)
	require.NotNil(t, p.LoggerProvider())

	logger := slog.New(otelslog.NewHandler("test", otelslog.WithLoggerProvider(p.LoggerProvider())))
	logger.Info("strike executed", "kind", "quick")

	require.NoError(t, p.Flush(context.Background()))
	assert.Contains(t, buf.String(), "strike executed")
	assert.Contains(t, buf.String(), "goalkeeper")
	require.NoError(t, p.Shutdown(context.Background()))
}
