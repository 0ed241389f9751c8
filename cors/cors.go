package cors

import (
	"net/http"

	"github.com/aatuh/shield/ports"
	"github.com/go-chi/cors"
)

// Handler provides CORS functionality.
type Handler struct{}

// New creates a new CORS handler that implements ports.CORSHandler.
func New() ports.CORSHandler {
	return &Handler{}
}

// DefaultOptions admits the CSRF token headers and credentials so that
// cross-origin script clients can echo the XSRF-TOKEN cookie back. With
// credentials on, origins must be listed explicitly.
func DefaultOptions(origins ...string) ports.CORSOptions {
	return ports.CORSOptions{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "HEAD", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept", "Authorization", "Content-Type",
			"X-CSRF-Token", "X-XSRF-Token", "X-Requested-With",
		},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}
}

// Handler returns a CORS handler with the given options.
func (h *Handler) Handler(opts ports.CORSOptions) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   opts.AllowedMethods,
		AllowedHeaders:   opts.AllowedHeaders,
		ExposedHeaders:   opts.ExposedHeaders,
		AllowCredentials: opts.AllowCredentials,
		MaxAge:           opts.MaxAge,
	})
}
