package noopen

import (
	"net/http/httptest"
	"testing"

	"github.com/aatuh/shield/guard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeader(t *testing.T) {
	w := httptest.NewRecorder()
	c := &guard.Context{Response: w, Request: httptest.NewRequest("GET", "/", nil)}

	require.NoError(t, New(Options{Enabled: true})(c))
	assert.Equal(t, "noopen", w.Header().Get(HeaderName))
}

func TestDisabled(t *testing.T) {
	w := httptest.NewRecorder()
	c := &guard.Context{Response: w, Request: httptest.NewRequest("GET", "/", nil)}

	require.NoError(t, New(Options{})(c))
	assert.Empty(t, w.Header())
}
