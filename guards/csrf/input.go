package csrf

import (
	"bytes"
	"encoding/json"
	"io"
	"maps"
	"mime"
	"net/http"
	"net/url"
	"strings"
)

const (
	maxJSONBody      = 1 << 20
	maxMultipartBody = 32 << 20
)

// readInput merges query values with the parsed body. Form bodies are left
// parsed on r; JSON bodies are restored so downstream handlers can read them.
func readInput(r *http.Request) map[string]any {
	in := map[string]any{}
	copyValues(in, r.URL.Query())
	if r.Body == nil || r.Body == http.NoBody {
		return in
	}

	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch {
	case ct == "multipart/form-data":
		if err := r.ParseMultipartForm(maxMultipartBody); err == nil {
			copyValues(in, r.PostForm)
		}
	case ct == "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err == nil {
			copyValues(in, r.PostForm)
		}
	case ct == "application/json" || strings.HasSuffix(ct, "+json"):
		maps.Copy(in, readJSON(r))
	}
	return in
}

func readJSON(r *http.Request) map[string]any {
	buf, err := io.ReadAll(io.LimitReader(r.Body, maxJSONBody))
	r.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(buf), r.Body), r.Body}
	if err != nil {
		return nil
	}
	var body map[string]any
	if err := json.Unmarshal(buf, &body); err != nil {
		return nil
	}
	return body
}

func copyValues(dst map[string]any, src url.Values) {
	for k, v := range src {
		switch len(v) {
		case 0:
		case 1:
			dst[k] = v[0]
		default:
			dst[k] = append([]string(nil), v...)
		}
	}
}
