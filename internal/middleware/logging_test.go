package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newBufferLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

func TestLogger(t *testing.T) {
	t.Run("calls next handler and logs the request", func(t *testing.T) {
		logger, buf := newBufferLogger()

		var called bool
		inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
			w.Write([]byte("body{}"))
		})

		req := httptest.NewRequest(http.MethodGet, "/css/main.css", nil)
		rr := httptest.NewRecorder()
		Logger(logger)(inner).ServeHTTP(rr, req)

		if !called {
			t.Error("next handler should have been called")
		}
		if rr.Code != http.StatusOK {
			t.Errorf("status: got %d, want 200", rr.Code)
		}
		out := buf.String()
		for _, want := range []string{"level=INFO", "path=/css/main.css", "status=200", "bytes=6"} {
			if !strings.Contains(out, want) {
				t.Errorf("log output %q missing %q", out, want)
			}
		}
	})

	t.Run("logs client errors as warnings", func(t *testing.T) {
		logger, buf := newBufferLogger()
		inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})

		req := httptest.NewRequest(http.MethodGet, "/missing.png", nil)
		rr := httptest.NewRecorder()
		Logger(logger)(inner).ServeHTTP(rr, req)

		if rr.Code != http.StatusNotFound {
			t.Errorf("status: got %d, want 404", rr.Code)
		}
		if !strings.Contains(buf.String(), "level=WARN") {
			t.Errorf("404 should log at WARN, got %q", buf.String())
		}
	})

	t.Run("logs server errors as errors", func(t *testing.T) {
		logger, buf := newBufferLogger()
		inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		Logger(logger)(inner).ServeHTTP(httptest.NewRecorder(), req)

		if !strings.Contains(buf.String(), "level=ERROR") {
			t.Errorf("502 should log at ERROR, got %q", buf.String())
		}
	})

	t.Run("nil logger falls back to default", func(t *testing.T) {
		inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		Logger(nil)(inner).ServeHTTP(httptest.NewRecorder(), req)
	})
}

func TestStatusRecorder(t *testing.T) {
	t.Run("WriteHeader only captures first call", func(t *testing.T) {
		rw := &statusRecorder{ResponseWriter: httptest.NewRecorder(), status: http.StatusOK}

		rw.WriteHeader(http.StatusNotFound)
		rw.WriteHeader(http.StatusInternalServerError)

		if rw.status != http.StatusNotFound {
			t.Errorf("status: got %d, want 404 (first call)", rw.status)
		}
	})

	t.Run("Write sets default 200 status and counts bytes", func(t *testing.T) {
		rw := &statusRecorder{ResponseWriter: httptest.NewRecorder(), status: http.StatusOK}

		rw.Write([]byte("test"))
		rw.Write([]byte("ing"))

		if rw.status != http.StatusOK {
			t.Errorf("status: got %d, want 200", rw.status)
		}
		if rw.bytes != 7 {
			t.Errorf("bytes: got %d, want 7", rw.bytes)
		}
		if !rw.written {
			t.Error("written should be true after Write")
		}
	})

	t.Run("Write does not override explicit WriteHeader", func(t *testing.T) {
		rw := &statusRecorder{ResponseWriter: httptest.NewRecorder(), status: http.StatusOK}

		rw.WriteHeader(http.StatusCreated)
		rw.Write([]byte("created"))

		if rw.status != http.StatusCreated {
			t.Errorf("status: got %d, want 201", rw.status)
		}
	})
}
