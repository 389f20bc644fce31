package middlewares

import (
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"

	httperrors "github.com/dropDatabas3/liberty-web/internal/http/errors"
	"github.com/dropDatabas3/liberty-web/internal/observability/logger"
	"github.com/dropDatabas3/liberty-web/internal/rate"
)

// clientIP es la IP de RemoteAddr, sin mirar headers.
func clientIP(r *http.Request) string {
	return ClientIP(r, nil)
}

// ClientIP resuelve la IP del cliente. X-Forwarded-For sólo cuenta cuando
// RemoteAddr es un proxy de trusted: se recorre de derecha a izquierda y se
// toma el primer salto que no es de confianza.
func ClientIP(r *http.Request, trusted []netip.Prefix) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if len(trusted) == 0 || !isTrusted(host, trusted) {
		return host
	}

	hops := strings.Split(strings.Join(r.Header.Values("X-Forwarded-For"), ","), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		if _, err := netip.ParseAddr(hop); err != nil {
			// basura en el header: nos quedamos con el último salto conocido
			return host
		}
		if !isTrusted(hop, trusted) {
			return hop
		}
		host = hop
	}
	return host
}

func isTrusted(ip string, trusted []netip.Prefix) bool {
	a, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	a = a.Unmap()
	for _, p := range trusted {
		if p.Contains(a) {
			return true
		}
	}
	return false
}

// RateKeyFunc define cómo generar la clave de rate limiting.
type RateKeyFunc func(r *http.Request) string

// IPOnlyRateKey genera una clave basada solo en IP.
func IPOnlyRateKey(trusted []netip.Prefix) RateKeyFunc {
	return func(r *http.Request) string { return ClientIP(r, trusted) }
}

// RateLimitConfig configura el middleware de rate limiting.
type RateLimitConfig struct {
	Limiter rate.Limiter
	KeyFunc RateKeyFunc
	// Scope separa contadores de distintos grupos de rutas.
	Scope string
	// TrustedProxies habilita X-Forwarded-For para la clave por IP.
	TrustedProxies []netip.Prefix
}

// WithRateLimit crea un middleware de rate limiting. Si el limiter falla el
// request pasa igual.
func WithRateLimit(cfg RateLimitConfig) Middleware {
	if cfg.Limiter == nil {
		return nil
	}
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = IPOnlyRateKey(cfg.TrustedProxies)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := cfg.KeyFunc(r)
			if cfg.Scope != "" {
				key = cfg.Scope + "|" + key
			}
			res, err := cfg.Limiter.Allow(r.Context(), key)
			if err != nil {
				logger.From(r.Context()).Warn("rate limiter error, allowing request", logger.Err(err))
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(res.Limit, 10))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
			if !res.Allowed {
				w.Header().Set("Retry-After", strconv.Itoa(int(res.RetryAfter.Seconds())))
				httperrors.Write(w, r, httperrors.ErrRateLimitExceeded)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
