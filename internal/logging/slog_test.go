package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

func TestSetup_FileOnly_NoStdout(t *testing.T) {
	// Capture stdout to verify nothing is written there
	origStdout := captureStdout(t)

	var fileBuf bytes.Buffer
	m := NewSlogManager()
	m.Setup(&fileBuf, "info", nil)
	m.Logger().Info("hello file")

	stdout := origStdout()

	assert.Contains(t, fileBuf.String(), "hello file", "log should appear in file")
	// The "Logging initialized" message from Setup also goes to file, not stdout
	assert.Empty(t, stdout, "nothing should be written to stdout when file is provided")
}

func TestSetup_NoFile_WritesToStdout(t *testing.T) {
	origStdout := captureStdout(t)

	m := NewSlogManager()
	m.Setup(nil, "info", nil)
	m.Logger().Info("hello console")

	stdout := origStdout()

	assert.Contains(t, stdout, "hello console", "log should appear on stdout")
}

func TestSetup_ReplacesLogger(t *testing.T) {
	var buf1, buf2 bytes.Buffer
	m := NewSlogManager()

	m.Setup(&buf1, "info", nil)
	m.Logger().Info("first")

	m.Setup(&buf2, "info", nil)
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

func TestSetup_LevelFiltering(t *testing.T) {
	tests := []struct {
		level     string
		wantDebug bool
		wantInfo  bool
		wantWarn  bool
	}{
		{"debug", true, true, true},
		{"INFO", false, true, true},
		{"warn", false, false, true},
		{"error", false, false, false},
		{"", false, true, true},
		{"verbose", false, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			m := NewSlogManager()
			m.Setup(&buf, tt.level, nil)

			m.Logger().Debug("ray cast", "ray", 2)
			m.Logger().Info("episode started", "sequence", 1)
			m.Logger().Warn("recorder queue full")

			out := buf.String()
			assert.Equal(t, tt.wantDebug, strings.Contains(out, "ray cast"))
			assert.Equal(t, tt.wantInfo, strings.Contains(out, "episode started"))
			assert.Equal(t, tt.wantWarn, strings.Contains(out, "recorder queue full"))
		})
	}
}

func TestMultiHandler_SinksAndDerivedHandlers(t *testing.T) {
	var console, gelf bytes.Buffer
	multi := NewMultiHandler(
		nil,
		slog.NewTextHandler(&console, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewTextHandler(&gelf, &slog.HandlerOptions{Level: slog.LevelDebug}),
	)
	require.Len(t, multi.handlers, 2)
	assert.True(t, multi.Enabled(context.Background(), slog.LevelDebug))
	assert.False(t, NewMultiHandler().Enabled(context.Background(), slog.LevelError))

	logger := slog.New(multi).With("component", "env").WithGroup("tick")
	logger.Debug("observed", "rays", 5)
	logger.Info("advanced", "speed", 2.5)

	assert.NotContains(t, console.String(), "observed")
	assert.Contains(t, console.String(), "component=env")
	assert.Contains(t, console.String(), "tick.speed=2.5")
	assert.Contains(t, gelf.String(), "tick.rays=5")
	assert.Same(t, multi, multi.WithGroup(""))
}

func TestFlush_WithProvider(t *testing.T) {
	provider := sdklog.NewLoggerProvider() // no exporter, just validates non-nil path
	m := NewSlogManager()

	var buf bytes.Buffer
	m.Setup(&buf, "info", provider)

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

	assert.Contains(t, buf.String(), "should reach spy")

	err := multi.Handle(context.Background(), slog.NewRecord(time.Now(), slog.LevelInfo, "direct", 0))
	assert.EqualError(t, err, "handler error")
}

func TestSetup_GraylogReceivesRecords(t *testing.T) {
	var file, gelf bytes.Buffer
	m := NewSlogManager()
	m.Setup(&file, "info", nil, WithGraylog(&gelf))

	m.Logger().Info("to graylog", "episode", "ep-1")

	assert.Contains(t, file.String(), "to graylog")
	assert.Contains(t, gelf.String(), "to graylog")
	assert.Contains(t, gelf.String(), "episode=ep-1")
}

type closeSpy struct {
	bytes.Buffer
	closed bool
}

func (c *closeSpy) Close() error {
	c.closed = true
	return nil
}

func TestClose_ClosesGraylogWriter(t *testing.T) {
	spy := &closeSpy{}
	m := NewSlogManager()
	m.Setup(&bytes.Buffer{}, "info", nil, WithGraylog(spy))

	require.NoError(t, m.Close(context.Background()))
	assert.True(t, spy.closed)
	require.NoError(t, m.Close(context.Background()))
}

func TestSetup_ContextAttrs(t *testing.T) {
	var buf bytes.Buffer
	var ec EpisodeContext
	m := NewSlogManager()
	m.Setup(&buf, "info", nil, WithContext(ec.Attrs))

	m.Logger().Info("before episode")
	assert.NotContains(t, buf.String(), "episode=")

	ec.Set("ep-7", 42)
	m.Logger().Info("during episode")
	assert.Contains(t, buf.String(), "episode=ep-7")
	assert.Contains(t, buf.String(), "tick=42")
}

func TestContextHandler_CallSiteKeyWins(t *testing.T) {
	var buf bytes.Buffer
	var ec EpisodeContext
	ec.Set("ep-1", 9)
	logger := slog.New(NewContextHandler(slog.NewTextHandler(&buf, nil), ec.Attrs))

	logger.Info("episode finished", "episode", "ep-0")

	out := buf.String()
	assert.Contains(t, out, "episode=ep-0")
	assert.NotContains(t, out, "episode=ep-1")
	assert.Contains(t, out, "tick=9")
}

func TestContextHandler_WithAttrsKeepsProvider(t *testing.T) {
	var buf bytes.Buffer
	h := NewContextHandler(slog.NewTextHandler(&buf, nil), func() []slog.Attr {
		return []slog.Attr{slog.Int("tick", 3)}
	})

	logger := slog.New(h).With("component", "env").WithGroup("g")
	logger.Info("msg", "k", "v")

	out := buf.String()
	assert.Contains(t, out, "component=env")
	assert.Contains(t, out, "g.k=v")
	assert.Contains(t, out, "g.tick=3")
	assert.Same(t, h, h.WithGroup(""))
}

func TestSetup_WithOTelProvider(t *testing.T) {
	provider := sdklog.NewLoggerProvider()

	var buf bytes.Buffer
	m := NewSlogManager()
	m.Setup(&buf, "info", provider)

	m.Logger().Info("otel integrated")
	assert.Contains(t, buf.String(), "otel integrated")
}

// captureStdout redirects os.Stdout to a pipe and returns a function
// that restores stdout and returns what was captured.
func captureStdout(t *testing.T) func() string {
	t.Helper()

	r, w, err := osPipe()
	require.NoError(t, err)

	origStdout := osStdout
	osStdout = w

	return func() string {
		w.Close()
		osStdout = origStdout
		var buf bytes.Buffer
		buf.ReadFrom(r)
		r.Close()
		return buf.String()
	}
}
