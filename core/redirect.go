package core

import "strings"

// DefaultRedirectTarget is where a fresh sign-in lands when no explicit
// target was requested.
const DefaultRedirectTarget = "/organizations"

// publicPrefixes lists routes served without an authenticated session.
// The request gate passes them through unconditionally, and they are also
// the denylist for post-login redirect targets.
var publicPrefixes = []string{
	"/login",
	"/signup",
	"/password-reset",
	"/verify-email",
	"/assets/",
	"/healthz",
	"/session/",
	"/oauth/",
	"/api/",
}

// IsPublicPath reports whether path is served without a session.
func IsPublicPath(path string) bool {
	for _, prefix := range publicPrefixes {
		if path == strings.TrimSuffix(prefix, "/") || strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// SafeRedirectTarget validates a requested post-login target. Only
// same-origin relative paths outside the public set are honored; anything
// else falls back to DefaultRedirectTarget. Rejecting "//" and scheme
// prefixes closes the open-redirect hole.
func SafeRedirectTarget(target string) string {
	if target == "" || !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") {
		return DefaultRedirectTarget
	}
	if strings.Contains(target, "://") || strings.ContainsAny(target, "\\\r\n") {
		return DefaultRedirectTarget
	}
	if IsPublicPath(target) {
		return DefaultRedirectTarget
	}
	return target
}
