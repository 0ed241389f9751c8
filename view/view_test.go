package view

import (
	"html/template"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalsShareAndCopy(t *testing.T) {
	l := NewLocals()
	l.Share(map[string]any{"a": 1})
	l.Share(map[string]any{"a": 2, "b": 3})

	v := l.Values()
	assert.Equal(t, map[string]any{"a": 2, "b": 3}, v)

	v["c"] = 4
	_, ok := l.Values()["c"]
	assert.False(t, ok)
}

func TestRenderMergesLocalsUnderData(t *testing.T) {
	tmpl := template.Must(template.New("page").Parse(
		`{{.title}} {{.who}} {{call .raw}}`))
	e := New(tmpl)

	l := NewLocals()
	l.Share(map[string]any{
		"title": "from-locals",
		"who":   "locals",
		"raw":   func() template.HTML { return template.HTML("<b>x</b>") },
	})
	r := httptest.NewRequest("GET", "/", nil)
	r = r.WithContext(WithLocals(r.Context(), l))
	w := httptest.NewRecorder()

	require.NoError(t, e.Render(w, r, "page", map[string]any{"who": "<data>"}))
	assert.Equal(t, "from-locals &lt;data&gt; <b>x</b>", w.Body.String())
	assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))
}

func TestRenderWithoutLocals(t *testing.T) {
	e := New(template.Must(template.New("p").Parse(`{{.x}}`)))
	w := httptest.NewRecorder()
	require.NoError(t, e.Render(w, httptest.NewRequest("GET", "/", nil), "p", map[string]any{"x": "ok"}))
	assert.Equal(t, "ok", w.Body.String())
}

func TestRenderFailureWritesNothing(t *testing.T) {
	e := New(template.Must(template.New("p").Parse(`{{.x}}`)))
	w := httptest.NewRecorder()
	assert.Error(t, e.Render(w, httptest.NewRequest("GET", "/", nil), "missing", nil))
	assert.Empty(t, w.Body.String())
}
