package middleware

import "net/http"

// responseRecorder captures what a handler wrote. Flushes are counted so
// streamed answers can be told apart from plain JSON responses.
type responseRecorder struct {
	http.ResponseWriter
	status  int
	bytes   int
	flushes int
}

func wrapRecorder(w http.ResponseWriter) *responseRecorder {
	if rec, ok := w.(*responseRecorder); ok {
		return rec
	}
	return &responseRecorder{ResponseWriter: w}
}

func (r *responseRecorder) WriteHeader(status int) {
	if r.status == 0 {
		r.status = status
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

func (r *responseRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		r.flushes++
		f.Flush()
	}
}

// statusCode is the status sent, or 200 when the handler wrote nothing.
func (r *responseRecorder) statusCode() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}

func (r *responseRecorder) streamed() bool {
	return r.flushes > 0
}
