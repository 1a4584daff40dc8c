package httpapi

import (
	"github.com/gobuffalo/buffalo"
)

// securityHeaders sets the response headers appropriate for a JSON-only API
// with no server-rendered forms or cookie-based sessions: no CSRF or CSP
// script-src entries are needed, just the usual hardening headers. Adapted
// from the teacher's secure.Middleware, trimmed to what a pure JSON boundary
// actually needs.
func securityHeaders(next buffalo.Handler) buffalo.Handler {
	return func(c buffalo.Context) error {
		w := c.Response()
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("X-Permitted-Cross-Domain-Policies", "none")
		return next(c)
	}
}
