package requestlog

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aatuh/shield/logzap"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogsRouteAndCookie(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(New(logzap.New(zap.New(core))).Handler)
	r.Post("/items/{id}", func(w http.ResponseWriter, _ *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "XSRF-TOKEN", Value: "x"})
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("ok"))
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/items/3", nil))

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "/items/{id}", fields["route"])
	assert.Equal(t, "/items/3", fields["path"])
	assert.EqualValues(t, http.StatusCreated, fields["status"])
	assert.EqualValues(t, 2, fields["bytes"])
	assert.Equal(t, true, fields["xsrf_cookie"])
	assert.NotEmpty(t, fields["rid"])
}

func TestUnmatchedRouteKeepsPath(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	r := chi.NewRouter()
	r.Use(New(logzap.New(zap.New(core))).Handler)
	r.Get("/items/{id}", func(http.ResponseWriter, *http.Request) {})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope/1", nil))

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "unmatched", fields["route"])
	assert.Equal(t, "/nope/1", fields["path"])
	assert.EqualValues(t, http.StatusNotFound, fields["status"])
}
