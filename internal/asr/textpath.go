package asr

import (
	"strings"

	"github.com/tidwall/gjson"
)

// ExtractText pulls the transcript out of a JSON response. path accepts both
// gjson syntax (results.0.text) and bracket indexes (results[0].text). When
// path does not resolve, "text" and then the first non-empty top-level string
// are tried.
func ExtractText(body []byte, path string) string {
	if !gjson.ValidBytes(body) {
		return ""
	}
	if path != "" {
		if v := gjson.GetBytes(body, GJSONPath(path)); v.Exists() && v.Type != gjson.JSON {
			return v.String()
		}
	}
	root := gjson.ParseBytes(body)
	if v := root.Get("text"); v.Exists() && v.Type != gjson.JSON {
		return v.String()
	}
	var first string
	root.ForEach(func(_, value gjson.Result) bool {
		if value.Type == gjson.String && value.Str != "" {
			first = value.Str
			return false
		}
		return true
	})
	return first
}

// GJSONPath rewrites "a.b[1].c" into "a.b.1.c".
func GJSONPath(path string) string {
	r := strings.NewReplacer("[", ".", "]", "")
	return strings.TrimPrefix(r.Replace(path), ".")
}
