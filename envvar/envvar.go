package envvar

import (
	"os"
	"strconv"
	"strings"

	"github.com/aatuh/envvar"
	"github.com/aatuh/shield/ports"
)

// Adapter provides environment variable access using the envvar library.
type Adapter struct{}

var _ ports.EnvVar = (*Adapter)(nil)

// New creates a new envvar adapter.
func New() *Adapter {
	return &Adapter{}
}

// LoadEnvFiles loads environment variables from the given files that
// exist, such as .env. Missing files are skipped.
func (a *Adapter) LoadEnvFiles(paths []string) {
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) > 0 {
		envvar.MustLoadEnvVars(existing)
	}
}

// GetOr returns the value or default if not present.
func (a *Adapter) GetOr(key, def string) string {
	return envvar.GetOr(key, def)
}

// MustGet returns the value or panics if not present.
func (a *Adapter) MustGet(key string) string {
	return envvar.MustGet(key)
}

// GetBoolOr returns the value as boolean or default if not present.
func (a *Adapter) GetBoolOr(key string, def bool) bool {
	return envvar.GetBoolOr(key, def)
}

// GetIntOr returns the value as integer or default if not present or
// invalid.
func (a *Adapter) GetIntOr(key string, def int) int {
	v := envvar.Get(key)
	if v == "" {
		return def
	}
	if i, err := strconv.Atoi(v); err == nil {
		return i
	}
	return def
}

// GetListOr splits a comma separated value, dropping blank items. An unset
// variable yields def.
func (a *Adapter) GetListOr(key string, def []string) []string {
	v := envvar.Get(key)
	if v == "" {
		return def
	}
	return SplitList(v)
}

// SplitList splits on commas and trims each item.
func SplitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// IsSecretName reports whether a variable or field name looks sensitive.
func IsSecretName(name string) bool {
	upper := strings.ToUpper(name)
	return strings.Contains(upper, "SECRET") ||
		strings.Contains(upper, "TOKEN") ||
		strings.Contains(upper, "PASSWORD") ||
		strings.Contains(upper, "DSN") ||
		strings.HasSuffix(upper, "KEY")
}

// DumpRedacted returns the environment with secrets redacted.
func (a *Adapter) DumpRedacted(prefixes ...string) map[string]string {
	env := os.Environ()
	out := make(map[string]string, len(env))
	for _, kv := range env {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || !hasAnyPrefix(k, prefixes) {
			continue
		}
		if IsSecretName(k) {
			out[k] = "***"
		} else {
			out[k] = v
		}
	}
	return out
}

func hasAnyPrefix(s string, prefixes []string) bool {
	if len(prefixes) == 0 {
		return true
	}
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
