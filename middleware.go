package kvsession

import (
	"context"
	"log/slog"
	"net/http"
)

type contextKey struct{}

// FromContext returns the session stored by Middleware, or nil.
func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(contextKey{}).(*Session)
	return s
}

// NewContext returns a copy of ctx carrying s.
func NewContext(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// Middleware opens a session for every request and makes it available
// through FromContext. Session cookies are attached when the handler first
// writes its header.
func (f *Factory) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := newResponseWriter(w)

		s, err := f.Open(r.Context(), r, rw)
		if err != nil {
			f.logger.ErrorContext(r.Context(), "failed to open session", slog.Any("error", err))
			http.Error(rw, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		next.ServeHTTP(rw, r.WithContext(NewContext(r.Context(), s)))
		rw.flushHeader()
	})
}

// responseWriter runs the registered callbacks exactly once, right before the
// status line goes out.
type responseWriter struct {
	http.ResponseWriter
	callbacks   []ResponseCallback
	wroteHeader bool
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w}
}

func (rw *responseWriter) AddResponseCallback(fn ResponseCallback) {
	rw.callbacks = append(rw.callbacks, fn)
}

func (rw *responseWriter) WriteHeader(status int) {
	if rw.wroteHeader {
		return
	}
	rw.wroteHeader = true
	for _, fn := range rw.callbacks {
		fn(rw.ResponseWriter, status)
	}
	rw.ResponseWriter.WriteHeader(status)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

func (rw *responseWriter) Flush() {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	if fl, ok := rw.ResponseWriter.(http.Flusher); ok {
		fl.Flush()
	}
}

// flushHeader covers handlers that return without writing anything.
func (rw *responseWriter) flushHeader() {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
