package httpx

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestWriteProblemMergesExtensions(t *testing.T) {
	w := httptest.NewRecorder()
	p := NewProblem(http.StatusForbidden, "bad token").
		With("code", "E_BAD_CSRF_TOKEN").
		With("status", 200).
		With("", "ignored")
	WriteProblem(w, http.StatusForbidden, *p)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, ProblemContentType, w.Header().Get("Content-Type"))
	want := map[string]any{
		"title":  "Forbidden",
		"status": float64(403),
		"detail": "bad token",
		"code":   "E_BAD_CSRF_TOKEN",
	}
	if diff := cmp.Diff(want, decode(t, w)); diff != "" {
		t.Fatalf("problem mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteProblemDefaultsTo500(t *testing.T) {
	w := httptest.NewRecorder()
	WriteSimpleProblem(w, 0, "Oops", "")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := decode(t, w)
	assert.Equal(t, "Oops", body["title"])
	assert.NotContains(t, body, "detail")
}

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	WriteJSON(w, http.StatusCreated, map[string]string{"token": "abc"})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"token":"abc"}`, w.Body.String())
}
