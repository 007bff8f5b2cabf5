// Package headers parses -H "Name: value" flags.
package headers

import (
	"fmt"
	"net/http"
	"strings"
)

// Parse converts "Name: value" strings into a header map with canonical
// names. Later values for the same name win. A string without a colon or
// with an empty name is an error.
func Parse(h []string) (map[string]string, error) {
	m := make(map[string]string, len(h))
	for _, hdr := range h {
		name, value, ok := strings.Cut(hdr, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" || strings.ContainsAny(name, " \t") {
			return nil, fmt.Errorf("invalid header %q: want \"Name: value\"", hdr)
		}
		m[http.CanonicalHeaderKey(name)] = strings.TrimSpace(value)
	}
	return m, nil
}
