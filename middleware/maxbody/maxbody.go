// Package maxbody bounds request bodies before guards parse them.
package maxbody

import (
	"net/http"

	"github.com/aatuh/shield/httpx"
)

type Middleware struct {
	MaxBytes int64
}

func New(max int64) *Middleware { return &Middleware{MaxBytes: max} }

// Handler rejects requests declaring a larger Content-Length with 413 and
// caps the rest, so form and JSON parsing fail once the limit is hit.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.MaxBytes <= 0 || r.Body == nil || r.Body == http.NoBody {
			next.ServeHTTP(w, r)
			return
		}
		if r.ContentLength > m.MaxBytes {
			httpx.WriteSimpleProblem(w, http.StatusRequestEntityTooLarge,
				http.StatusText(http.StatusRequestEntityTooLarge), "request body too large")
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, m.MaxBytes)
		next.ServeHTTP(w, r)
	})
}
