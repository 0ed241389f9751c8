package secure

import (
	"errors"
	"mime"
	"net/http"
	"strings"

	"github.com/aatuh/shield/guard"
	"github.com/aatuh/shield/httpx"
)

// DefaultErrorHandler lets errors that can recover do so (the CSRF error
// redirects back with flashed input) and writes problem+json otherwise.
func DefaultErrorHandler(w http.ResponseWriter, c *guard.Context, err error) {
	var rec guard.Recoverer
	if errors.As(err, &rec) {
		rec.Recover(c)
		return
	}
	ProblemErrorHandler(w, c, err)
}

// ProblemErrorHandler always writes problem+json. Errors exposing a status
// carry their code as the "code" extension; anything else is a 500.
func ProblemErrorHandler(w http.ResponseWriter, _ *guard.Context, err error) {
	var he guard.HTTPError
	if errors.As(err, &he) {
		p := httpx.NewProblem(he.Status(), he.Error()).With("code", he.Code())
		httpx.WriteProblem(w, he.Status(), *p)
		return
	}
	httpx.WriteSimpleProblem(w, http.StatusInternalServerError,
		http.StatusText(http.StatusInternalServerError), "request could not be processed")
}

// NegotiatedErrorHandler picks ProblemErrorHandler for clients preferring
// JSON and DefaultErrorHandler for browsers.
func NegotiatedErrorHandler(w http.ResponseWriter, c *guard.Context, err error) {
	if wantsJSON(c.Request) {
		ProblemErrorHandler(w, c, err)
		return
	}
	DefaultErrorHandler(w, c, err)
}

func wantsJSON(r *http.Request) bool {
	if r.Header.Get("X-Requested-With") == "XMLHttpRequest" {
		return true
	}
	for _, part := range strings.Split(r.Header.Get("Accept"), ",") {
		mt, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		if mt == "text/html" {
			return false
		}
		if mt == "application/json" || strings.HasSuffix(mt, "+json") {
			return true
		}
	}
	return false
}
