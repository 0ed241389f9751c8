package csp

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// ErrInvalidDirective is wrapped by every directive validation error.
var ErrInvalidDirective = errors.New("csp: invalid directive")

// Directive is one policy entry, for example script-src 'self'.
type Directive struct {
	Name   string
	Values []string
}

// Defaults are the policy applied when Options.UseDefaults is set.
func Defaults() []Directive {
	return []Directive{
		{Name: "default-src", Values: []string{"'self'"}},
		{Name: "base-uri", Values: []string{"'self'"}},
		{Name: "font-src", Values: []string{"'self'", "https:", "data:"}},
		{Name: "form-action", Values: []string{"'self'"}},
		{Name: "frame-ancestors", Values: []string{"'self'"}},
		{Name: "img-src", Values: []string{"'self'", "data:"}},
		{Name: "object-src", Values: []string{"'none'"}},
		{Name: "script-src", Values: []string{"'self'"}},
		{Name: "script-src-attr", Values: []string{"'none'"}},
		{Name: "style-src", Values: []string{"'self'", "https:", "'unsafe-inline'"}},
		{Name: "upgrade-insecure-requests"},
	}
}

// Keywords that browsers only honour when single quoted.
var quotedKeywords = map[string]bool{
	"self":                     true,
	"none":                     true,
	"strict-dynamic":           true,
	"report-sample":            true,
	"inline-speculation-rules": true,
	"unsafe-inline":            true,
	"unsafe-eval":              true,
	"unsafe-hashes":            true,
	"wasm-unsafe-eval":         true,
}

// ParseDirectives reads the header syntax: directives separated by ";",
// names and values by spaces. Empty segments are ignored.
func ParseDirectives(s string) []Directive {
	var out []Directive
	for _, seg := range strings.Split(s, ";") {
		fields := strings.Fields(seg)
		if len(fields) == 0 {
			continue
		}
		out = append(out, Directive{Name: fields[0], Values: fields[1:]})
	}
	return out
}

// dashify turns scriptSrc into script-src. Dashed names pass through.
func dashify(name string) string {
	var b strings.Builder
	for _, r := range name {
		if unicode.IsUpper(r) {
			b.WriteByte('-')
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}

func validName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-') {
			return false
		}
	}
	return true
}

// normalize dashes names, validates names and values, rejects duplicates
// and, when withDefaults is set, lays the directives over Defaults.
func normalize(in []Directive, withDefaults bool) ([]Directive, error) {
	seen := map[string]bool{}
	var out []Directive
	for _, d := range in {
		name := dashify(strings.TrimSpace(d.Name))
		if !validName(name) {
			return nil, fmt.Errorf("%w: name %q", ErrInvalidDirective, d.Name)
		}
		if seen[name] {
			return nil, fmt.Errorf("%w: %q is declared twice", ErrInvalidDirective, name)
		}
		seen[name] = true
		for _, v := range d.Values {
			if v == "" || strings.ContainsAny(v, ";,") {
				return nil, fmt.Errorf("%w: %s value %q", ErrInvalidDirective, name, v)
			}
			if quotedKeywords[strings.ToLower(v)] {
				return nil, fmt.Errorf("%w: %s value %q must be quoted", ErrInvalidDirective, name, v)
			}
		}
		out = append(out, Directive{Name: name, Values: append([]string(nil), d.Values...)})
	}
	if !withDefaults {
		return out, nil
	}

	merged := make([]Directive, 0, len(out)+len(Defaults()))
	for _, d := range Defaults() {
		if !seen[d.Name] {
			merged = append(merged, d)
			continue
		}
		for _, o := range out {
			if o.Name == d.Name {
				merged = append(merged, o)
			}
		}
	}
	defaults := map[string]bool{}
	for _, d := range Defaults() {
		defaults[d.Name] = true
	}
	for _, o := range out {
		if !defaults[o.Name] {
			merged = append(merged, o)
		}
	}
	return merged, nil
}
