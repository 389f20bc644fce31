// Package router arma el árbol de rutas sobre chi.
package router

import (
	"net/http"
	"net/netip"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/liberty-web/internal/http/controllers"
	httperrors "github.com/dropDatabas3/liberty-web/internal/http/errors"
	mw "github.com/dropDatabas3/liberty-web/internal/http/middlewares"
	"github.com/dropDatabas3/liberty-web/internal/rate"
	"github.com/dropDatabas3/liberty-web/internal/web"
)

// Deps contiene todo lo que el router necesita.
type Deps struct {
	Controllers *controllers.Controllers

	CSRF     mw.CSRFConfig
	Security mw.SecurityHeadersConfig

	// AuthLimiter es opcional: nil deshabilita el rate limit de /auth/*.
	AuthLimiter rate.Limiter
	// TrustedProxies cuyo X-Forwarded-For se usa para la clave del limiter.
	TrustedProxies []netip.Prefix

	// MetricsHandler nil deshabilita /metrics.
	MetricsHandler http.Handler
	MetricsPath    string
}

// New devuelve el handler raíz.
func New(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(mw.WithRequestID())

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		httperrors.Write(w, req, httperrors.ErrNotFound)
	})

	registerInfraRoutes(r, deps)

	r.Group(func(r chi.Router) {
		r.Use(mw.WithLogging(), mw.WithMetrics(), mw.WithRecover())

		registerHomeRoutes(r, deps)
		registerAuthRoutes(r, deps)
	})
	return r
}

// /readyz y /metrics: sin logging ni métricas propias (muy frecuentes).
func registerInfraRoutes(r chi.Router, deps Deps) {
	c := deps.Controllers
	r.With(mw.WithRecover()).HandleFunc("/readyz", c.Health.Readyz)

	if deps.MetricsHandler != nil {
		path := deps.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.With(mw.WithRecover()).Handle(path, deps.MetricsHandler)
	}
}

func registerHomeRoutes(r chi.Router, deps Deps) {
	c := deps.Controllers

	// GET / - landing; lleva token cuando hay sesión
	r.With(
		mw.WithSecurityHeaders(deps.Security),
		mw.WithNoStore(),
		mw.WithCSRFToken(deps.CSRF),
	).HandleFunc("/", c.Home.Home)

	r.With(mw.WithCacheControl("public, max-age=3600")).
		Handle("/static/*", http.StripPrefix("/static/", web.Static()))
}

func registerAuthRoutes(r chi.Router, deps Deps) {
	c := deps.Controllers

	r.Route("/auth", func(r chi.Router) {
		r.Use(mw.Compose(
			mw.WithSecurityHeaders(deps.Security),
			mw.WithNoStore(),
			mw.WithRateLimit(mw.RateLimitConfig{
				Limiter:        deps.AuthLimiter,
				Scope:          "auth",
				TrustedProxies: deps.TrustedProxies,
			}),
		))

		// POST /auth/signin - arranca el code flow
		r.With(mw.WithCSRF(deps.CSRF)).HandleFunc("/signin", c.Auth.SignIn)

		// GET /auth/callback - redirect del proveedor (protegido por state)
		r.HandleFunc("/callback", c.Auth.Callback)

		// POST /auth/signout
		r.With(mw.WithCSRF(deps.CSRF)).HandleFunc("/signout", c.Auth.SignOut)
	})
}
