package cli

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// jsonToken matches, in order: a quoted string with an optional trailing colon (an object
// key), a bare literal, or a number.
var jsonToken = regexp.MustCompile(`("(\\u[a-zA-Z0-9]{4}|\\[^u]|[^\\"])*"(\s*:)?|\b(true|false|null)\b|-?\d+(?:\.\d*)?(?:[eE][+\-]?\d+)?)`)

// tokenColor picks the style for one JSON token. Keys are returned with their colon
// stripped so the colon itself stays unstyled.
func tokenColor(token string) (text, color, suffix string) {
	switch {
	case strings.HasSuffix(token, ":"):
		return strings.TrimRight(token[:len(token)-1], " \t"), Blue, ":"
	case strings.HasPrefix(token, `"`):
		return token, Green, ""
	case token == "true", token == "false":
		return token, Yellow, ""
	case token == "null":
		return token, Dim, ""
	default:
		return token, Purple, ""
	}
}

// HighlightJSON colors the keys and values of a JSON document. The console log encoder
// runs every field object through it; with color disabled the input comes back unchanged.
func HighlightJSON(doc string) string {
	if !Enabled() {
		return doc
	}
	return jsonToken.ReplaceAllStringFunc(doc, func(token string) string {
		text, color, suffix := tokenColor(token)
		return color + text + Reset + suffix
	})
}

// PrettyFormat indents v as JSON and highlights it. Strings and byte slices are taken to
// be JSON already; values that do not marshal fall back to %+v.
func PrettyFormat(v any) string {
	var doc string
	switch t := v.(type) {
	case []byte:
		doc = string(t)
	case string:
		doc = t
	default:
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Sprintf("%+v", v)
		}
		doc = string(b)
	}
	return HighlightJSON(doc)
}

// PrettyPrint writes PrettyFormat(v) to stdout. The load test prints its summary with it.
func PrettyPrint(v any) {
	fmt.Println(PrettyFormat(v))
}
