package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aatuh/shield/clock"
	"github.com/stretchr/testify/assert"
)

func do(h http.Handler, method, addr string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(method, "/", nil)
	r.RemoteAddr = addr
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestLimitsUnsafeMethods(t *testing.T) {
	clk := clock.NewManualClock(time.Unix(0, 0))
	mw := New(Options{Capacity: 2, RefillRate: 1, Clock: clk})
	h := mw.Handler(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	assert.Equal(t, http.StatusOK, do(h, http.MethodPost, "10.0.0.1:1000").Code)
	assert.Equal(t, http.StatusOK, do(h, http.MethodPost, "10.0.0.1:1001").Code)
	w := do(h, http.MethodPost, "10.0.0.1:1002")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))

	// other clients and safe methods are unaffected
	assert.Equal(t, http.StatusOK, do(h, http.MethodPost, "10.0.0.2:1000").Code)
	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "10.0.0.1:1000").Code)

	clk.Advance(time.Second)
	assert.Equal(t, http.StatusOK, do(h, http.MethodPost, "10.0.0.1:1000").Code)
}

func TestIdleBucketsAreSwept(t *testing.T) {
	clk := clock.NewManualClock(time.Unix(0, 0))
	mw := New(Options{IdleTTL: time.Minute, Clock: clk})
	h := mw.Handler(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	do(h, http.MethodPost, "10.0.0.1:1")
	do(h, http.MethodPost, "10.0.0.2:1")
	assert.Equal(t, 2, mw.Buckets())

	clk.Advance(2 * time.Minute)
	do(h, http.MethodPost, "10.0.0.3:1")
	assert.Equal(t, 1, mw.Buckets())
}
