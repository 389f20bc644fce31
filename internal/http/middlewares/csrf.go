package middlewares

import (
	"net/http"
	"strings"

	httperrors "github.com/dropDatabas3/liberty-web/internal/http/errors"
	"github.com/dropDatabas3/liberty-web/internal/observability/logger"
	tokens "github.com/dropDatabas3/liberty-web/internal/security/token"
)

const maxFormBytes = 64 << 10

// CSRFConfig configura el double-submit CSRF.
type CSRFConfig struct {
	HeaderName string // Default: "X-CSRF-Token"
	FieldName  string // Default: "csrf_token"
	CookieName string // Default: "liberty.csrf"
	Secure     bool
}

func (c CSRFConfig) withDefaults() CSRFConfig {
	if strings.TrimSpace(c.HeaderName) == "" {
		c.HeaderName = "X-CSRF-Token"
	}
	if strings.TrimSpace(c.FieldName) == "" {
		c.FieldName = "csrf_token"
	}
	if strings.TrimSpace(c.CookieName) == "" {
		c.CookieName = "liberty.csrf"
	}
	return c
}

func isUnsafe(m string) bool {
	switch strings.ToUpper(m) {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}

// WithCSRFToken garantiza que exista la cookie CSRF (la emite si falta) y deja
// el valor en el contexto para los formularios de la página.
func WithCSRFToken(cfg CSRFConfig) Middleware {
	cfg = cfg.withDefaults()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok := ""
			if ck, err := r.Cookie(cfg.CookieName); err == nil && len(ck.Value) >= 32 {
				tok = ck.Value
			}
			if tok == "" {
				var err error
				tok, err = tokens.GenerateOpaqueToken(32)
				if err != nil {
					httperrors.Write(w, r, httperrors.ErrInternalServerError.WithCause(err))
					return
				}
				// legible por el form, no HttpOnly a propósito
				http.SetCookie(w, &http.Cookie{
					Name:     cfg.CookieName,
					Value:    tok,
					Path:     "/",
					Secure:   cfg.Secure,
					SameSite: http.SameSiteLaxMode,
				})
			}
			next.ServeHTTP(w, r.WithContext(setCSRFToken(r.Context(), tok)))
		})
	}
}

// WithCSRF exige, en métodos inseguros, que la cookie coincida con el campo
// del form o el header.
func WithCSRF(cfg CSRFConfig) Middleware {
	cfg = cfg.withDefaults()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !isUnsafe(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			sent := strings.TrimSpace(r.Header.Get(cfg.HeaderName))
			if sent == "" {
				r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
				sent = strings.TrimSpace(r.PostFormValue(cfg.FieldName))
			}
			ck, _ := r.Cookie(cfg.CookieName)

			if sent == "" || ck == nil || strings.TrimSpace(ck.Value) == "" || !tokens.Equal(sent, ck.Value) {
				logger.From(r.Context()).Warn("csrf check failed", logger.ClientIP(clientIP(r)))
				httperrors.Write(w, r, httperrors.ErrInvalidCSRF)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
