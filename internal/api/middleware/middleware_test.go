package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestID_GeneratesWhenMissing(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	require.NotEmpty(t, seen)
	assert.Equal(t, seen, w.Header().Get("X-Request-ID"))
}

func TestRequestID_KeepsIncoming(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-42")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "req-42", seen)
}

func TestMaxBodyBytes_RejectsLargeBody(t *testing.T) {
	called := false
	handler := MaxBodyBytes(4)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader("too long")))

	assert.False(t, called)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestRecorders_PassFlushThrough(t *testing.T) {
	handler := AccessLog(SentryMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		require.True(t, ok)
		w.Write([]byte("event: token\n\n"))
		flusher.Flush()
	})))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.True(t, w.Flushed)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5000"
	assert.Equal(t, "10.0.0.1", clientIP(req))

	req.Header.Set("X-Forwarded-For", "1.2.3.4, 10.0.0.1")
	assert.Equal(t, "1.2.3.4", clientIP(req))
}

func TestHTTPStatusToSpanStatus(t *testing.T) {
	cases := map[int]sentry.SpanStatus{
		http.StatusOK:                  sentry.SpanStatusOK,
		http.StatusNoContent:           sentry.SpanStatusOK,
		http.StatusBadRequest:          sentry.SpanStatusInvalidArgument,
		http.StatusUnprocessableEntity: sentry.SpanStatusInvalidArgument,
		http.StatusNotFound:            sentry.SpanStatusNotFound,
		http.StatusConflict:            sentry.SpanStatusAlreadyExists,
		http.StatusBadGateway:          sentry.SpanStatusUnavailable,
		http.StatusInternalServerError: sentry.SpanStatusInternalError,
	}
	for status, want := range cases {
		assert.Equal(t, want, httpStatusToSpanStatus(status), "status %d", status)
	}
}

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prevOut, prevFlags := log.Writer(), log.Flags()
	log.SetOutput(&buf)
	log.SetFlags(0)
	t.Cleanup(func() {
		log.SetOutput(prevOut)
		log.SetFlags(prevFlags)
	})
	return &buf
}

func TestAccessLog_PlainResponse(t *testing.T) {
	buf := captureLog(t)
	handler := RequestID(AccessLog(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"session not found"}`))
	})))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/sessions/x/messages", nil))

	var entry accessLogEntry
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, http.StatusNotFound, entry.Status)
	assert.Equal(t, "/sessions/x/messages", entry.Path)
	assert.Equal(t, 29, entry.Bytes)
	assert.NotEmpty(t, entry.RequestID)
	assert.Zero(t, entry.Events)
	assert.False(t, entry.Aborted)
}

func TestAccessLog_StreamCountsEventsAndAborts(t *testing.T) {
	buf := captureLog(t)
	handler := AccessLog(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		for i := 0; i < 3; i++ {
			w.Write([]byte("event: token\ndata: {}\n\n"))
			flusher.Flush()
		}
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/ask", nil).WithContext(ctx)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	var entry accessLogEntry
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, 3, entry.Events)
	assert.True(t, entry.Aborted)
}

func TestWrapRecorder_SharedAcrossMiddleware(t *testing.T) {
	rec := wrapRecorder(httptest.NewRecorder())
	assert.Same(t, rec, wrapRecorder(rec))
	assert.Equal(t, http.StatusOK, rec.statusCode())

	rec.WriteHeader(http.StatusAccepted)
	rec.WriteHeader(http.StatusInternalServerError)
	assert.Equal(t, http.StatusAccepted, rec.statusCode())
}
