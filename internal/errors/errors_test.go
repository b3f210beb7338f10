package errors

import (
	stderrors "errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/dotbind/internal/logging"
)

func TestErrorString(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{"message", Errorf("load failed"), "load failed"},
		{"operation", Errorf("load failed").WithOperation("open"), "load failed: operation=open"},
		{"component", Errorf("load %s", "failed").WithOperation("open").WithComponent("loader"), "load failed: operation=open, component=loader"},
		{"wrapped", Wrap(io.EOF, "read"), "read: EOF"},
		{"wrapped only", Wrap(io.EOF, ""), "EOF"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestWrapKeepsChain(t *testing.T) {
	inner := Errorf("inner")
	outer := Wrapf(inner, "outer %d", 1)

	assert.True(t, Is(outer, inner))
	assert.Equal(t, inner, stderrors.Unwrap(outer))
	assert.Equal(t, inner.Stack, outer.Stack)

	var target *Error
	require.True(t, As(Wrap(io.EOF, "x"), &target))
	assert.True(t, stderrors.Is(target, io.EOF))

	assert.Nil(t, Wrap(nil, "x"))
	assert.Nil(t, Wrapf(nil, "x"))
	assert.False(t, As(nil, &target))
}

func TestStackTrace(t *testing.T) {
	// Frames inside this package are filtered, so the test runner is the
	// first frame left.
	e := Errorf("boom")
	require.NotEmpty(t, e.StackTrace())
	assert.Contains(t, strings.Join(e.StackTrace(), "\n"), "testing.tRunner")
}

func TestRecoveryMiddleware(t *testing.T) {
	var buf strings.Builder
	logger := logging.New(logging.InfoLevel, &buf)

	h := RecoveryMiddleware(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("kaboom")
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Body.String(), "Internal Server Error")
	assert.Contains(t, buf.String(), "Recovered from panic")
	assert.Contains(t, buf.String(), "panic: kaboom")
	assert.Contains(t, buf.String(), "GET /boom")
}

func TestErrorHandler(t *testing.T) {
	var buf strings.Builder
	logger := logging.New(logging.InfoLevel, &buf)

	h := ErrorHandler(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad" {
			w.WriteHeader(http.StatusBadRequest)
		}
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ok", nil))
	assert.Empty(t, buf.String())

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/bad", nil))
	assert.Contains(t, buf.String(), "Request error")
}
