package requestlog

import (
	"net/http"
	"strings"
	"time"

	"github.com/aatuh/shield/metrics"
	"github.com/aatuh/shield/ports"
	"github.com/go-chi/chi/v5/middleware"
)

type Middleware struct {
	Log ports.Logger
}

func New(log ports.Logger) *Middleware { return &Middleware{Log: log} }

// Handler logs one line per request. Rejections by the guards show up as
// 403 or as a 302 back to the referrer; xsrf_cookie tells whether a fresh
// XSRF-TOKEN cookie was issued.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &respWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)

		m.Log.Info("http",
			"method", r.Method,
			"path", r.URL.Path,
			"route", metrics.Route(r),
			"status", ww.status,
			"bytes", ww.bytes,
			"dur_ms", time.Since(start).Milliseconds(),
			"ip", r.RemoteAddr,
			"ua", r.UserAgent(),
			"rid", middleware.GetReqID(r.Context()),
			"xsrf_cookie", setsCookie(w.Header(), "XSRF-TOKEN"),
		)
	})
}

type respWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *respWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *respWriter) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

func setsCookie(h http.Header, name string) bool {
	for _, c := range h.Values("Set-Cookie") {
		if strings.HasPrefix(c, name+"=") {
			return true
		}
	}
	return false
}
