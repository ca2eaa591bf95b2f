package validators

import (
	"net/http"
	"strings"
)

// RequestToken returns the caller's session token from the named cookie,
// falling back to an Authorization bearer header.
func RequestToken(r *http.Request, cookieName string) string {
	if r == nil {
		return ""
	}
	if cookieName != "" {
		if c, err := r.Cookie(cookieName); err == nil {
			if v := strings.TrimSpace(c.Value); v != "" {
				return v
			}
		}
	}
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(raw) > 7 && strings.EqualFold(raw[:7], "bearer ") {
		return strings.TrimSpace(raw[7:])
	}
	return ""
}
