package server

import (
	"context"
	"net/http"
	"time"

	"github.com/klauspost/compress/gzhttp"
	"github.com/rs/xid"
	"github.com/rs/zerolog"

	"imghost/internal/gallery"
	"imghost/internal/server/auth"
)

type middleware func(next http.Handler) http.Handler

func handle(mux *http.ServeMux, pattern string, handler http.Handler, middlewares ...middleware) {
	mux.Handle(pattern, chain(handler, middlewares...))
}

// chain wraps handler so the first middleware runs first.
func chain(handler http.Handler, middlewares ...middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return handler
}

// requestLogger assigns a request id and stores a child logger carrying it
// in the request context.
func requestLogger(log zerolog.Logger) middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get("X-Request-Id")
			if id == "" {
				id = xid.New().String()
			}
			w.Header().Set("X-Request-Id", id)

			l := log.With().
				Str("request_id", id).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Logger()
			next.ServeHTTP(w, r.WithContext(l.WithContext(r.Context())))
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	n, err := s.ResponseWriter.Write(b)
	s.bytes += n
	return n, err
}

func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

// accessLog records one line per request.
func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		if rec.status == 0 {
			rec.status = http.StatusOK
		}
		zerolog.Ctx(r.Context()).Info().
			Int("status", rec.status).
			Int("bytes", rec.bytes).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

// cors allows browser access from any origin and answers preflights.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func compress(next http.Handler) http.Handler {
	return gzhttp.GzipHandler(next)
}

// auditLog records every gallery mutation with the acting principal.
type auditLog struct{}

func (auditLog) Notify(ctx context.Context, ev gallery.Event) {
	e := zerolog.Ctx(ctx).Info().
		Str("event", string(ev.Kind)).
		Time("at", ev.Time)
	if ev.Key != "" {
		e = e.Str("key", ev.Key)
	}
	if ev.Path != "" {
		e = e.Str("folder", ev.Path)
	}
	if ev.Kind == gallery.EventFolderDeleted {
		e = e.Int("deleted", ev.Count).Int("failed", ev.Failed)
	}
	if p := auth.FromContext(ctx); p != nil {
		e = e.Str("principal", p.ID)
	}
	e.Msg("audit")
}
