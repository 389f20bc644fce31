package server

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/dropDatabas3/liberty-web/internal/auth"
	"github.com/dropDatabas3/liberty-web/internal/cache"
	"github.com/dropDatabas3/liberty-web/internal/config"
	"github.com/dropDatabas3/liberty-web/internal/http/controllers"
	mw "github.com/dropDatabas3/liberty-web/internal/http/middlewares"
	"github.com/dropDatabas3/liberty-web/internal/http/router"
	healthsvc "github.com/dropDatabas3/liberty-web/internal/http/services/health"
	"github.com/dropDatabas3/liberty-web/internal/metrics"
	"github.com/dropDatabas3/liberty-web/internal/oidc"
	"github.com/dropDatabas3/liberty-web/internal/rate"
	"github.com/dropDatabas3/liberty-web/internal/web"
)

// BuildHandler arma el handler HTTP con todas las dependencias.
// El cleanup devuelto cierra el cache; el caller debe invocarlo al apagar.
func BuildHandler(ctx context.Context, cfg *config.Config) (http.Handler, func() error, error) {
	// 1. Cache (sesiones + pending logins)
	c, err := cache.New(ctx, cache.Config{
		Kind:       cfg.Cache.Kind,
		Addr:       cfg.Cache.Redis.Addr,
		Password:   cfg.Cache.Redis.Password,
		DB:         cfg.Cache.Redis.DB,
		Prefix:     cfg.Cache.Redis.Prefix,
		DefaultTTL: cfg.MemoryDefaultTTL(),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to init cache: %w", err)
	}
	cleanup := c.Close

	// 2. OIDC client contra el backend
	oc := oidc.New(oidc.Config{
		Issuer:       cfg.OIDC.Issuer,
		ClientID:     cfg.OIDC.ClientID,
		ClientSecret: cfg.OIDC.ClientSecret,
		RedirectURL:  cfg.OIDC.RedirectURL,
		Scopes:       cfg.OIDC.Scopes,
		HTTPClient:   &http.Client{Timeout: cfg.OIDCHTTPTimeout()},
	})

	// 3. Services
	authService, err := auth.New(auth.Deps{
		Provider: oc,
		Cache:    c,
		Secret:   cfg.Auth.Secret,
		Config: auth.Config{
			Cookie: auth.CookieConfig{
				Name:     cfg.Auth.Session.CookieName,
				Domain:   cfg.Auth.Session.Domain,
				SameSite: auth.ParseSameSite(cfg.Auth.Session.SameSite),
				Secure:   cfg.Auth.Session.Secure,
				TTL:      cfg.SessionTTL(),
			},
			PendingTTL:       cfg.PendingTTL(),
			FetchUserInfo:    cfg.OIDC.FetchUserInfo,
			FederatedSignOut: cfg.Auth.FederatedSignOut,
			PublicURL:        cfg.Server.PublicURL,
		},
	})
	if err != nil {
		_ = cleanup()
		return nil, nil, fmt.Errorf("failed to init auth service: %w", err)
	}

	health := healthsvc.NewHealthService(healthsvc.Deps{
		CacheCheck: c.Ping,
		OIDCCheck: func(ctx context.Context) error {
			_, err := oc.Discovery(ctx)
			return err
		},
		Version: cfg.App.Version,
	})

	renderer, err := web.NewRenderer()
	if err != nil {
		_ = cleanup()
		return nil, nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	// 4. Controllers + router
	ctrls := controllers.New(controllers.Deps{
		Auth:      authService,
		Health:    health,
		Renderer:  renderer,
		SignUpURL: cfg.SignUpURL(),
	})

	deps := router.Deps{
		Controllers: ctrls,
		CSRF: mw.CSRFConfig{
			CookieName: cfg.Auth.CSRF.CookieName,
			Secure:     cfg.Auth.Session.Secure,
		},
		// los forms de signin/signout terminan en el proveedor
		Security: mw.SecurityHeadersConfig{FormActionOrigins: originsOf(cfg.OIDC.Issuer)},
	}
	if cfg.Rate.Enabled {
		deps.AuthLimiter = newAuthLimiter(c, cfg)
		deps.TrustedProxies = cfg.TrustedProxyPrefixes()
	}
	if cfg.Metrics.Enabled {
		reg, err := metrics.NewRegistry()
		if err != nil {
			_ = cleanup()
			return nil, nil, fmt.Errorf("failed to init metrics: %w", err)
		}
		deps.MetricsHandler = metrics.Handler(reg)
		deps.MetricsPath = cfg.Metrics.Path
	}

	return router.New(deps), cleanup, nil
}

// newAuthLimiter usa Redis si el cache es Redis (límite compartido entre
// réplicas); si no, uno en memoria.
func newAuthLimiter(c cache.Client, cfg *config.Config) rate.Limiter {
	if r, ok := c.(*cache.Redis); ok {
		return rate.NewRedisLimiter(r.Underlying(), cfg.Cache.Redis.Prefix+":rl:", cfg.Rate.Auth.Limit, cfg.RateAuthWindow())
	}
	return rate.NewMemoryLimiter("rl:", cfg.Rate.Auth.Limit, cfg.RateAuthWindow())
}

func originsOf(raw ...string) []string {
	var out []string
	for _, s := range raw {
		u, err := url.Parse(s)
		if err != nil || u.Scheme == "" || u.Host == "" {
			continue
		}
		out = append(out, u.Scheme+"://"+u.Host)
	}
	return out
}
