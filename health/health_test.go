package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aatuh/shield/chi"
	"github.com/aatuh/shield/clock"
	"github.com/aatuh/shield/logzap"
	"github.com/aatuh/shield/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)

func TestReadinessWithMemoryStore(t *testing.T) {
	store := session.NewMemoryStore(nil)
	h := NewHandler(time.Second, clock.NewManualClock(now), logzap.Nop(), SessionStoreChecker(store))

	res := h.Readiness(context.Background())
	assert.Equal(t, StatusHealthy, res.Status)
	assert.Equal(t, map[string]string{"sessions": "healthy"}, res.Checks)
	assert.Equal(t, 0, store.Len())
}

func TestReadinessReportsFailures(t *testing.T) {
	h := NewHandler(time.Second, clock.NewManualClock(now), logzap.Nop(),
		NewChecker("db", func(context.Context) error { return errors.New("connection refused") }),
	)
	r := chi.New()
	h.RegisterRoutes(r)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, ReadyzPath, nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var res Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, StatusUnhealthy, res.Status)
	assert.Equal(t, "connection refused", res.Checks["db"])

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, LivezPath, nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
