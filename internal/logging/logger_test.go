package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &m), line)
		out = append(out, m)
	}
	return out
}

func TestLoggerLevels(t *testing.T) {
	tests := []struct {
		level LogLevel
		want  int
	}{
		{DebugLevel, 4},
		{InfoLevel, 3},
		{WarnLevel, 2},
		{ErrorLevel, 1},
	}
	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			var buf bytes.Buffer
			l := New(tt.level, &buf)
			l.Debug("d")
			l.Info("i")
			l.Warn("w")
			l.Error("e")
			assert.Len(t, decodeLines(t, &buf), tt.want)
		})
	}
}

func TestLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(DebugLevel, &buf).WithField("run_id", "abc")
	l.WithError(errors.New("boom")).Info("hello", map[string]interface{}{"n": 3})

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	e := lines[0]
	assert.Equal(t, "hello", e["message"])
	assert.Equal(t, "INFO", e["level"])
	assert.Equal(t, "abc", e["run_id"])
	assert.Equal(t, "boom", e["error"])
	assert.Equal(t, float64(3), e["n"])
	assert.Contains(t, e["caller"], "logging/logger_test.go")
}

func TestLoggerTextFormat(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewLogger(&Config{Level: "debug", Format: "text", Output: "stderr"})
	require.NoError(t, err)
	l.output = &buf

	l.WithFields(map[string]interface{}{"b": 2, "a": 1}).Warn("careful")
	line := buf.String()
	assert.Contains(t, line, "WARN  careful a=1 b=2 caller=")
	assert.True(t, strings.HasSuffix(line, "\n"))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DebugLevel, parseLevel("debug"))
	assert.Equal(t, WarnLevel, parseLevel("WARN"))
	assert.Equal(t, InfoLevel, parseLevel("verbose"))
}

func TestZapLogger(t *testing.T) {
	var buf bytes.Buffer
	zl := NewZapLogger(New(InfoLevel, &buf)).With(zap.String("component", "solver"))

	zl.Debug("hidden")
	zl.Info("evaluation",
		zap.Int("index", 2),
		zap.Float64("objective", 1.5),
		zap.Float64s("x", []float64{1, 2}),
		zap.Error(errors.New("bad")),
	)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	e := lines[0]
	assert.Equal(t, "evaluation", e["message"])
	assert.Equal(t, "solver", e["component"])
	assert.Equal(t, float64(2), e["index"])
	assert.Equal(t, 1.5, e["objective"])
	assert.Equal(t, []interface{}{1.0, 2.0}, e["x"])
	assert.Equal(t, "bad", e["error"])
	assert.Contains(t, e["caller"], "logging/logger_test.go")
}

func TestMiddleware(t *testing.T) {
	var buf bytes.Buffer
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(Middleware(New(InfoLevel, &buf)))
	r.Get("/missing", func(w http.ResponseWriter, r *http.Request) {
		FromContext(r.Context()).Info("inside")
		http.NotFound(w, r)
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/missing", nil))

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "inside", lines[0]["message"])
	assert.Equal(t, "/missing", lines[0]["path"])
	assert.Equal(t, "Request completed", lines[1]["message"])
	assert.Equal(t, float64(404), lines[1]["status"])
	assert.NotEmpty(t, lines[1]["request_id"])
}

func TestMiddlewareQuietPaths(t *testing.T) {
	var buf bytes.Buffer
	r := chi.NewRouter()
	r.Use(Middleware(New(InfoLevel, &buf)))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Empty(t, buf.String())
}
