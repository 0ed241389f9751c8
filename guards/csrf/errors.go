package csrf

import (
	"net/http"

	"github.com/aatuh/shield/guard"
)

const (
	// Code identifies the invalid token error.
	Code = "E_BAD_CSRF_TOKEN"
	// Message is the human readable text for Code.
	Message = "Invalid or expired CSRF token"
)

// Input fields never flashed back to the form.
var sensitiveFields = map[string]bool{
	FieldName:               true,
	"_method":               true,
	"password":              true,
	"password_confirmation": true,
}

// TokenError reports a missing, malformed or mismatched token.
type TokenError struct {
	input map[string]any
}

var (
	_ guard.HTTPError = (*TokenError)(nil)
	_ guard.Recoverer = (*TokenError)(nil)
)

func (e *TokenError) Error() string { return Message }
func (e *TokenError) Status() int   { return http.StatusForbidden }
func (e *TokenError) Code() string  { return Code }

// Input returns the rejected request input without the token and
// credential fields.
func (e *TokenError) Input() map[string]any {
	out := make(map[string]any, len(e.input))
	for k, v := range e.input {
		if !sensitiveFields[k] {
			out[k] = v
		}
	}
	return out
}

// Recover flashes the input under "old" and the error under "errors", then
// redirects back to the referring page.
func (e *TokenError) Recover(c *guard.Context) {
	if c.Session != nil {
		c.Session.Flash("old", e.Input())
		c.Session.Flash("errors", map[string]any{Code: Message})
	}
	back := c.Request.Referer()
	if back == "" {
		back = "/"
	}
	http.Redirect(c.Response, c.Request, back, http.StatusFound)
}
