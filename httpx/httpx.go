// Package httpx writes JSON and RFC 7807 problem responses.
package httpx

import (
	"encoding/json"
	"net/http"
)

// ProblemContentType is the media type of problem responses.
const ProblemContentType = "application/problem+json"

// Problem is an RFC 7807 problem document. Ext members are emitted next to
// the standard ones and never override them.
type Problem struct {
	Type     string
	Title    string
	Status   int
	Detail   string
	Instance string
	Ext      map[string]any
}

// NewProblem returns a problem titled after the status text.
func NewProblem(status int, detail string) *Problem {
	return &Problem{Title: http.StatusText(status), Status: status, Detail: detail}
}

// With sets an extension member. Empty keys are ignored.
func (p *Problem) With(key string, value any) *Problem {
	if key == "" {
		return p
	}
	if p.Ext == nil {
		p.Ext = make(map[string]any)
	}
	p.Ext[key] = value
	return p
}

func (p Problem) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(p.Ext)+5)
	for k, v := range p.Ext {
		out[k] = v
	}
	set := func(k string, v any, empty bool) {
		if empty {
			delete(out, k)
			return
		}
		out[k] = v
	}
	set("type", p.Type, p.Type == "")
	set("title", p.Title, p.Title == "")
	set("status", p.Status, p.Status == 0)
	set("detail", p.Detail, p.Detail == "")
	set("instance", p.Instance, p.Instance == "")
	return json.Marshal(out)
}

// WriteProblem writes p with the given status. Non-positive statuses
// become 500.
func WriteProblem(w http.ResponseWriter, status int, p Problem) {
	if status <= 0 {
		status = http.StatusInternalServerError
	}
	p.Status = status
	write(w, status, ProblemContentType, p)
}

func WriteSimpleProblem(w http.ResponseWriter, status int, title, detail string) {
	WriteProblem(w, status, Problem{Title: title, Detail: detail})
}

// WriteJSON writes v as application/json with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	write(w, status, "application/json", v)
}

func write(w http.ResponseWriter, status int, contentType string, v any) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
