// internal/handlers/utils.go
package handlers

import "strings"

// extractCookieToken pulls one cookie's value straight out of the raw
// Cookie header. WS upgrade requests don't go through http.Request
// cookie parsing here, so this stays header-string based.
func extractCookieToken(cookieHeader, cookieName string) string {
	parts := strings.Split(cookieHeader, cookieName+"=")
	if len(parts) < 2 {
		return ""
	}
	token := parts[1]
	if idx := strings.Index(token, ";"); idx != -1 {
		token = token[:idx]
	}
	return token
}
