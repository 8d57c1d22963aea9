package logging

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

func TestSetup_ConsoleAndFile(t *testing.T) {
	var console, file bytes.Buffer
	m := NewSlogManager()
	m.Setup(Options{Level: "info", Console: &console, File: &file})
	m.Logger().Info("ball detected", "x", 470)

	assert.Contains(t, console.String(), "ball detected")
	assert.Contains(t, file.String(), "ball detected")
	assert.Contains(t, file.String(), "x=470")
}

func TestSetup_FileOnly(t *testing.T) {
	var file bytes.Buffer
	m := NewSlogManager()
	m.Setup(Options{Level: "info", File: &file})
	m.Logger().Info("hello file")

	assert.Contains(t, file.String(), "Logging initialized")
	assert.Contains(t, file.String(), "hello file")
}

func TestSetup_DebugLevel(t *testing.T) {
	var buf bytes.Buffer
	m := NewSlogManager()
	m.Setup(Options{Level: "debug", File: &buf})

	m.Logger().Debug("debug msg")
	m.Logger().Info("info msg")

	output := buf.String()
	assert.Contains(t, output, "debug msg")
	assert.Contains(t, output, "info msg")
}

func TestSetup_InfoLevel_FiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	m := NewSlogManager()
	m.Setup(Options{Level: "info", File: &buf})

	m.Logger().Debug("should be filtered")
	m.Logger().Info("should appear")

	output := buf.String()
	assert.NotContains(t, output, "should be filtered")
	assert.Contains(t, output, "should appear")
}

func TestSetup_ReplacesLogger(t *testing.T) {
	var buf1, buf2 bytes.Buffer
	m := NewSlogManager()

	m.Setup(Options{Level: "info", File: &buf1})
	m.Logger().Info("first")

	m.Setup(Options{Level: "info", File: &buf2})
	m.Logger().Info("second")

	assert.Contains(t, buf1.String(), "first")
	assert.NotContains(t, buf1.String(), "second", "old file should not receive new logs")
	assert.Contains(t, buf2.String(), "second")
}

func TestLogger_DefaultBeforeSetup(t *testing.T) {
	m := NewSlogManager()
	logger := m.Logger()
	assert.Equal(t, slog.Default(), logger)
}

func TestFlush_NilProvider(t *testing.T) {
	m := NewSlogManager()
	err := m.Flush(context.Background())
	assert.NoError(t, err)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
		{"ERROR", slog.LevelError},
		{"", slog.LevelInfo},
		{"invalid", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.input))
		})
	}
}

func TestMultiHandler_FansOut(t *testing.T) {
	var buf1, buf2 bytes.Buffer
	h1 := slog.NewTextHandler(&buf1, &slog.HandlerOptions{Level: slog.LevelInfo})
	h2 := slog.NewTextHandler(&buf2, &slog.HandlerOptions{Level: slog.LevelInfo})

	multi := NewMultiHandler(h1, h2)
	logger := slog.New(multi)
	logger.Info("fanned out")

	assert.Contains(t, buf1.String(), "fanned out")
	assert.Contains(t, buf2.String(), "fanned out")
}

func TestMultiHandler_FiltersNilHandlers(t *testing.T) {
	var buf bytes.Buffer
	h := slog.NewTextHandler(&buf, nil)

	multi := NewMultiHandler(nil, h, nil)
	require.Len(t, multi.sinks, 1)

	logger := slog.New(multi)
	logger.Info("works")
	assert.Contains(t, buf.String(), "works")
}

func TestMultiHandler_Enabled(t *testing.T) {
	infoHandler := slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelInfo})
	debugHandler := slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelDebug})

	// Multi with only info handler: debug should be disabled
	infoOnly := NewMultiHandler(infoHandler)
	assert.False(t, infoOnly.Enabled(context.Background(), slog.LevelDebug))
	assert.True(t, infoOnly.Enabled(context.Background(), slog.LevelInfo))

	// Multi with both: debug should be enabled (any handler enables it)
	both := NewMultiHandler(infoHandler, debugHandler)
	assert.True(t, both.Enabled(context.Background(), slog.LevelDebug))
}

func TestMultiHandler_Empty(t *testing.T) {
	multi := NewMultiHandler()
	assert.False(t, multi.Enabled(context.Background(), slog.LevelInfo))
}

func TestMultiHandler_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	h := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})
	multi := NewMultiHandler(h)

	withAttrs := multi.WithAttrs([]slog.Attr{slog.String("component", "test")})
	logger := slog.New(withAttrs)
	logger.Info("with attrs")

	assert.Contains(t, buf.String(), "component=test")
}

func TestMultiHandler_WithGroup(t *testing.T) {
	var buf bytes.Buffer
	h := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})
	multi := NewMultiHandler(h)

	withGroup := multi.WithGroup("grp")
	logger := slog.New(withGroup)
	logger.Info("grouped", "key", "val")

	assert.Contains(t, buf.String(), "grp.key=val")
}

func TestMultiHandler_WithGroupEmpty(t *testing.T) {
	h := slog.NewTextHandler(&bytes.Buffer{}, nil)
	multi := NewMultiHandler(h)

	same := multi.WithGroup("")
	assert.Equal(t, multi, same, "empty group name should return same handler")
}

func TestFlush_WithProvider(t *testing.T) {
	provider := sdklog.NewLoggerProvider() // no exporter, just validates non-nil path
	m := NewSlogManager()

	var buf bytes.Buffer
	m.Setup(Options{Level: "info", File: &buf, Provider: provider})

	err := m.Flush(context.Background())
	assert.NoError(t, err)
}

// errorHandler is a slog.Handler that always returns an error from Handle.
type errorHandler struct {
	slog.Handler
}

func (h *errorHandler) Handle(_ context.Context, _ slog.Record) error {
	return errors.New("handler error")
}

func (h *errorHandler) Enabled(_ context.Context, _ slog.Level) bool {
	return true
}

func TestMultiHandler_HandleError(t *testing.T) {
	var buf bytes.Buffer
	spy := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})

	// First handler errors, second (spy) should still receive the record.
	multi := NewMultiHandler(&errorHandler{}, spy)
	logger := slog.New(multi)
	logger.Info("should reach spy")
	logger.With("component", "vision").Info("derived")

	assert.Contains(t, buf.String(), "should reach spy")
	assert.Contains(t, buf.String(), "component=vision")
	assert.Equal(t, uint64(2), multi.Failures())

	err := multi.Handle(context.Background(), slog.NewRecord(time.Now(), slog.LevelInfo, "direct", 0))
	assert.EqualError(t, err, "handler error")
}

func TestSlogManager_SinkFailures(t *testing.T) {
	m := NewSlogManager()
	assert.Equal(t, uint64(0), m.SinkFailures())

	m.Setup(Options{Level: "info", File: failingWriter{}})
	m.Logger().Info("lost")
	assert.Equal(t, uint64(2), m.SinkFailures())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestSetup_WithOTelProvider(t *testing.T) {
	provider := sdklog.NewLoggerProvider()

	var buf bytes.Buffer
	m := NewSlogManager()
	m.Setup(Options{Level: "info", File: &buf, Provider: provider})

	m.Logger().Info("otel integrated")
	assert.Contains(t, buf.String(), "otel integrated")
}

type fakeState struct{ state, session string }

func (f fakeState) StateName() string { return f.state }
func (f fakeState) SessionID() string { return f.session }

func TestSetup_StateContext(t *testing.T) {
	var buf bytes.Buffer
	st := &fakeState{state: "stopped"}
	m := NewSlogManager()
	m.Setup(Options{Level: "info", File: &buf, Context: StateContext(st)})

	m.Logger().Info("idle")
	assert.Contains(t, buf.String(), "state=stopped")
	assert.NotContains(t, buf.String(), "session=")

	st.state, st.session = "running", "3f6c"
	buf.Reset()
	m.Logger().With("component", "motor").Info("strike")
	out := buf.String()
	assert.Contains(t, out, "state=running")
	assert.Contains(t, out, "session=3f6c")
	assert.Contains(t, out, "component=motor")
}

func TestContextHandler_WithGroupEmpty(t *testing.T) {
	h := NewContextHandler(slog.NewTextHandler(&bytes.Buffer{}, nil), nil)
	assert.Equal(t, h, h.WithGroup(""))
}

func TestSetup_Graylog(t *testing.T) {
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer conn.Close()

	w, err := NewGraylogWriter(conn.LocalAddr().String())
	require.NoError(t, err)
	defer w.Close()

	m := NewSlogManager()
	m.Setup(Options{Level: "info", Graylog: w})
	m.Logger().Warn("motor stalled")

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	found := false
	buf := make([]byte, 8192)
	for !found {
		n, _, err := conn.ReadFrom(buf)
		require.NoError(t, err)
		zr, err := gzip.NewReader(bytes.NewReader(buf[:n]))
		require.NoError(t, err)
		body, err := io.ReadAll(zr)
		require.NoError(t, err)
		found = strings.Contains(string(body), "motor stalled")
	}
	assert.True(t, found)
}
