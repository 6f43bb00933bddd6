package mediator

import (
	"net/url"
	"strings"
)

// sanitizeURL clones u and clears its query and fragment, for safe audit
// logging (I4). The operation is idempotent.
func sanitizeURL(u *url.URL) string {
	sanitized := *u
	sanitized.RawQuery = ""
	sanitized.Fragment = ""
	sanitized.RawFragment = ""
	return sanitized.String()
}

// sanitizeURLString handles URLs that failed to parse: it truncates at the
// first '#', then the first '?' within that prefix. Idempotent.
func sanitizeURLString(raw string) string {
	if i := strings.IndexByte(raw, '#'); i >= 0 {
		raw = raw[:i]
	}
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		raw = raw[:i]
	}
	return raw
}
