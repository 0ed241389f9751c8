// Package view is the optional rendering capability guards share values
// with. Guards only see ports.ViewLocals; handlers render through Engine.
package view

import (
	"bytes"
	"context"
	"html/template"
	"maps"
	"net/http"
	"sync"

	"github.com/aatuh/shield/ports"
)

type ctxKey struct{}

// Locals collects values shared with templates during one request.
type Locals struct {
	mu     sync.Mutex
	values map[string]any
}

var _ ports.ViewLocals = (*Locals)(nil)

func NewLocals() *Locals { return &Locals{values: map[string]any{}} }

// Share merges values into the locals, replacing existing keys.
func (l *Locals) Share(values map[string]any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	maps.Copy(l.values, values)
}

// Values returns a copy of the shared values.
func (l *Locals) Values() map[string]any {
	l.mu.Lock()
	defer l.mu.Unlock()
	return maps.Clone(l.values)
}

// WithLocals attaches l to ctx.
func WithLocals(ctx context.Context, l *Locals) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// LocalsFromContext returns the request locals, or nil.
func LocalsFromContext(ctx context.Context) *Locals {
	l, _ := ctx.Value(ctxKey{}).(*Locals)
	return l
}

// Engine renders named templates with request locals merged in.
type Engine struct {
	tmpl *template.Template
}

func New(t *template.Template) *Engine { return &Engine{tmpl: t} }

// Render executes the named template. Request locals are applied first so
// keys in data win. Nothing is written when execution fails.
func (e *Engine) Render(w http.ResponseWriter, r *http.Request, name string, data map[string]any) error {
	merged := map[string]any{}
	if l := LocalsFromContext(r.Context()); l != nil {
		merged = l.Values()
	}
	maps.Copy(merged, data)

	var buf bytes.Buffer
	if err := e.tmpl.ExecuteTemplate(&buf, name, merged); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, err := buf.WriteTo(w)
	return err
}
