package recover

import (
	"net/http"
	"runtime/debug"

	"github.com/aatuh/shield/httpx"
	"github.com/aatuh/shield/ports"
)

// Middleware converts panics into RFC-7807 problem+json responses and logs
// them with a stack trace. Panic values never reach clients.
// http.ErrAbortHandler is re-raised so the server can abort the connection.
func Middleware(log ports.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				log.Error("panic recovered",
					"panic", rec,
					"method", r.Method,
					"path", r.URL.Path,
					"stack", string(debug.Stack()),
				)
				httpx.WriteProblem(w, http.StatusInternalServerError, httpx.Problem{
					Title:  http.StatusText(http.StatusInternalServerError),
					Detail: "internal server error",
				})
			}()
			next.ServeHTTP(w, r)
		})
	}
}
