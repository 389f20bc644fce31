package middlewares

import (
	"net/http"
	"strings"
)

// isHTTPS detecta si el request llegó por HTTPS (directo o detrás de proxy).
func isHTTPS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

// SecurityHeadersConfig configura la CSP de las páginas.
type SecurityHeadersConfig struct {
	// FormActionOrigins son orígenes externos a los que un form puede terminar
	// redirigiendo (el proveedor OIDC en signin/signout).
	FormActionOrigins []string
}

// WithSecurityHeaders inyecta cabeceras de seguridad para páginas HTML sin JS.
func WithSecurityHeaders(cfg SecurityHeadersConfig) Middleware {
	formAction := "'self'"
	for _, o := range cfg.FormActionOrigins {
		if o = strings.TrimSpace(o); o != "" {
			formAction += " " + o
		}
	}
	csp := strings.Join([]string{
		"default-src 'self'",
		"img-src 'self' data:",
		"style-src 'self'",
		"script-src 'none'",
		"object-src 'none'",
		"base-uri 'none'",
		"frame-ancestors 'none'",
		"form-action " + formAction,
	}, "; ")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()

			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Cross-Origin-Opener-Policy", "same-origin")
			h.Set("Content-Security-Policy", csp)
			h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=()")

			if isHTTPS(r) {
				h.Set("Strict-Transport-Security", "max-age=15552000; includeSubDomains")
			}

			next.ServeHTTP(w, r)
		})
	}
}
