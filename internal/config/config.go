package config

import (
	"errors"
	"fmt"
	"net/netip"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dropDatabas3/liberty-web/internal/validation"
)

type Config struct {
	App struct {
		// dev | staging | prod
		Env     string `yaml:"app_env"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	Server struct {
		Addr string `yaml:"addr"`
		// URL pública del front (para redirect_uri y post_logout_redirect_uri)
		PublicURL       string `yaml:"public_url"`
		ReadTimeout     string `yaml:"read_timeout"`
		WriteTimeout    string `yaml:"write_timeout"`
		ShutdownTimeout string `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	// API es el backend (Django). Se usa para el link de registro y como base del issuer.
	API struct {
		URL string `yaml:"url"`
	} `yaml:"api"`

	OIDC struct {
		Issuer        string   `yaml:"issuer"` // si vacío => <api.url>/openid
		ClientID      string   `yaml:"client_id"`
		ClientSecret  string   `yaml:"client_secret"`
		RedirectURL   string   `yaml:"redirect_url"` // si vacío => <server.public_url>/auth/callback
		Scopes        []string `yaml:"scopes"`
		FetchUserInfo bool     `yaml:"fetch_userinfo"`
		HTTPTimeout   string   `yaml:"http_timeout"`
	} `yaml:"oidc"`

	Auth struct {
		Secret           string `yaml:"secret"`
		FederatedSignOut bool   `yaml:"federated_signout"`
		PendingTTL       string `yaml:"pending_ttl"` // vida del state/nonce/PKCE
		Session          struct {
			CookieName string `yaml:"cookie_name"`
			Domain     string `yaml:"domain"`
			SameSite   string `yaml:"samesite"`
			Secure     bool   `yaml:"secure"`
			TTL        string `yaml:"ttl"`
		} `yaml:"session"`
		CSRF struct {
			CookieName string `yaml:"cookie_name"`
		} `yaml:"csrf"`
	} `yaml:"auth"`

	Cache struct {
		Kind  string `yaml:"kind"` // memory | redis
		Redis struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
		Memory struct {
			DefaultTTL string `yaml:"default_ttl"`
		} `yaml:"memory"`
	} `yaml:"cache"`

	Rate struct {
		Enabled bool `yaml:"enabled"`
		Auth    struct {
			Limit  int    `yaml:"limit"`
			Window string `yaml:"window"`
		} `yaml:"auth"`
		// TrustedProxies: IPs o CIDRs cuyo X-Forwarded-For se respeta. Vacío =>
		// se limita por RemoteAddr.
		TrustedProxies []string `yaml:"trusted_proxies"`
	} `yaml:"rate"`

	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
}

// Load lee el YAML (si path no es vacío), aplica defaults, overrides por env y valida.
func Load(path string) (*Config, error) {
	c := presets()
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	c.applyEnvOverrides()
	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// presets son los defaults cuyo valor cero significa otra cosa (false, 0). Se
// cargan antes del YAML para que el YAML o el env puedan pisarlos.
func presets() Config {
	var c Config
	c.OIDC.FetchUserInfo = true
	c.Rate.Auth.Limit = 20
	return c
}

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":3000"
	}
	if c.Server.PublicURL == "" {
		c.Server.PublicURL = "http://localhost:3000"
	}
	if c.Server.ReadTimeout == "" {
		c.Server.ReadTimeout = "10s"
	}
	if c.Server.WriteTimeout == "" {
		c.Server.WriteTimeout = "30s"
	}
	if c.Server.ShutdownTimeout == "" {
		c.Server.ShutdownTimeout = "10s"
	}

	if c.API.URL == "" {
		c.API.URL = "http://api:8000"
	}
	c.API.URL = strings.TrimRight(strings.TrimSpace(c.API.URL), "/")

	// Django oidc_provider cuelga de /openid
	if strings.TrimSpace(c.OIDC.Issuer) == "" {
		c.OIDC.Issuer = c.API.URL + "/openid"
	}
	if strings.TrimSpace(c.OIDC.RedirectURL) == "" {
		c.OIDC.RedirectURL = strings.TrimRight(c.Server.PublicURL, "/") + "/auth/callback"
	}
	if len(c.OIDC.Scopes) == 0 {
		c.OIDC.Scopes = []string{"openid", "profile", "email"}
	}
	if c.OIDC.HTTPTimeout == "" {
		c.OIDC.HTTPTimeout = "10s"
	}

	if c.Auth.PendingTTL == "" {
		c.Auth.PendingTTL = "10m"
	}
	if c.Auth.Session.CookieName == "" {
		c.Auth.Session.CookieName = "liberty.session"
	}
	if c.Auth.Session.SameSite == "" {
		c.Auth.Session.SameSite = "Lax"
	}
	if c.Auth.Session.TTL == "" {
		c.Auth.Session.TTL = "720h" // 30d
	}
	if c.Auth.CSRF.CookieName == "" {
		c.Auth.CSRF.CookieName = "liberty.csrf"
	}

	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Cache.Redis.Prefix == "" {
		c.Cache.Redis.Prefix = "liberty"
	}
	if c.Cache.Memory.DefaultTTL == "" {
		c.Cache.Memory.DefaultTTL = "10m"
	}

	if c.Rate.Auth.Window == "" {
		c.Rate.Auth.Window = "1m"
	}

	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// Validate revisa los valores críticos. Se llama desde Load después de defaults.
func (c *Config) Validate() error {
	var errs []error

	if len(c.Auth.Secret) < 32 {
		errs = append(errs, errors.New("auth.secret (AUTH_SECRET) must be at least 32 characters"))
	}
	if strings.TrimSpace(c.OIDC.ClientID) == "" {
		errs = append(errs, errors.New("oidc.client_id (OIDC_CLIENT_ID) is required"))
	}
	if err := validation.ValidateScopes(c.OIDC.Scopes); err != nil {
		errs = append(errs, fmt.Errorf("oidc.scopes (OIDC_SCOPES): %w", err))
	}
	for name, raw := range map[string]string{
		"api.url":           c.API.URL,
		"oidc.issuer":       c.OIDC.Issuer,
		"oidc.redirect_url": c.OIDC.RedirectURL,
		"server.public_url": c.Server.PublicURL,
	} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("%s must be an absolute URL, got %q", name, raw))
		}
	}

	durations := map[string]string{
		"server.read_timeout":      c.Server.ReadTimeout,
		"server.write_timeout":     c.Server.WriteTimeout,
		"server.shutdown_timeout":  c.Server.ShutdownTimeout,
		"oidc.http_timeout":        c.OIDC.HTTPTimeout,
		"auth.pending_ttl":         c.Auth.PendingTTL,
		"auth.session.ttl":         c.Auth.Session.TTL,
		"cache.memory.default_ttl": c.Cache.Memory.DefaultTTL,
		"rate.auth.window":         c.Rate.Auth.Window,
	}
	for name, raw := range durations {
		d, err := time.ParseDuration(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}

	if c.Rate.Auth.Limit <= 0 {
		errs = append(errs, fmt.Errorf("rate.auth.limit (RATE_AUTH_LIMIT) must be positive, got %d", c.Rate.Auth.Limit))
	}
	for _, raw := range c.Rate.TrustedProxies {
		if _, err := parseProxy(raw); err != nil {
			errs = append(errs, fmt.Errorf("rate.trusted_proxies (RATE_TRUSTED_PROXIES): %w", err))
		}
	}

	switch strings.ToLower(c.Auth.Session.SameSite) {
	case "lax", "strict", "none":
	default:
		errs = append(errs, fmt.Errorf("auth.session.samesite must be Lax, Strict or None, got %q", c.Auth.Session.SameSite))
	}
	switch c.Cache.Kind {
	case "memory":
	case "redis":
		if strings.TrimSpace(c.Cache.Redis.Addr) == "" {
			errs = append(errs, errors.New("cache.redis.addr (REDIS_ADDR) is required when cache.kind=redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("cache.kind must be memory or redis, got %q", c.Cache.Kind))
	}

	// en prod la cookie de sesión viaja solo por HTTPS
	if c.IsProd() && !c.Auth.Session.Secure {
		errs = append(errs, errors.New("auth.session.secure must be true in prod"))
	}
	if strings.EqualFold(c.Auth.Session.SameSite, "none") && !c.Auth.Session.Secure {
		errs = append(errs, errors.New("auth.session.samesite=None requires secure cookies"))
	}

	return errors.Join(errs...)
}

func (c *Config) IsProd() bool { return strings.EqualFold(c.App.Env, "prod") }

// SignUpURL es el destino del link "Sign Up" de la landing.
func (c *Config) SignUpURL() string { return c.API.URL + "/account/signup" }

// ─── duraciones ya validadas ───

func (c *Config) ReadTimeout() time.Duration     { return mustDur(c.Server.ReadTimeout) }
func (c *Config) WriteTimeout() time.Duration    { return mustDur(c.Server.WriteTimeout) }
func (c *Config) ShutdownTimeout() time.Duration { return mustDur(c.Server.ShutdownTimeout) }
func (c *Config) OIDCHTTPTimeout() time.Duration { return mustDur(c.OIDC.HTTPTimeout) }
func (c *Config) PendingTTL() time.Duration      { return mustDur(c.Auth.PendingTTL) }
func (c *Config) SessionTTL() time.Duration      { return mustDur(c.Auth.Session.TTL) }
func (c *Config) MemoryDefaultTTL() time.Duration {
	return mustDur(c.Cache.Memory.DefaultTTL)
}
func (c *Config) RateAuthWindow() time.Duration { return mustDur(c.Rate.Auth.Window) }

// TrustedProxyPrefixes devuelve rate.trusted_proxies ya parseados; una IP
// suelta queda como /32 (o /128).
func (c *Config) TrustedProxyPrefixes() []netip.Prefix {
	out := make([]netip.Prefix, 0, len(c.Rate.TrustedProxies))
	for _, raw := range c.Rate.TrustedProxies {
		if p, err := parseProxy(raw); err == nil {
			out = append(out, p)
		}
	}
	return out
}

func parseProxy(raw string) (netip.Prefix, error) {
	raw = strings.TrimSpace(raw)
	if strings.Contains(raw, "/") {
		p, err := netip.ParsePrefix(raw)
		if err != nil {
			return netip.Prefix{}, err
		}
		return p.Masked(), nil
	}
	a, err := netip.ParseAddr(raw)
	if err != nil {
		return netip.Prefix{}, err
	}
	a = a.Unmap()
	return netip.PrefixFrom(a, a.BitLen()), nil
}

func mustDur(s string) time.Duration {
	d, _ := time.ParseDuration(strings.TrimSpace(s))
	return d
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}
func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}
func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}
func getEnvCSV(key string) ([]string, bool) {
	s, ok := getEnvStr(key)
	if !ok {
		return nil, false
	}
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out, true
}

// applyEnvOverrides pisa el YAML con variables de entorno. Los nombres siguen
// los que genera el scaffold (.env.frontend): API_URL, AUTH_SECRET, OIDC_CLIENT_*.
func (c *Config) applyEnvOverrides() {
	// APP
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(strings.TrimSpace(v))
	}
	if v, ok := getEnvStr("SERVICE_VERSION"); ok {
		c.App.Version = v
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.Log.Level = v
	}

	// SERVER
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvStr("PUBLIC_URL"); ok {
		c.Server.PublicURL = strings.TrimRight(strings.TrimSpace(v), "/")
	}

	// API / OIDC
	if v, ok := getEnvStr("API_URL"); ok {
		c.API.URL = v
	}
	if v, ok := getEnvStr("OIDC_ISSUER"); ok {
		c.OIDC.Issuer = strings.TrimSpace(v)
	}
	if v, ok := getEnvStr("OIDC_CLIENT_ID"); ok {
		c.OIDC.ClientID = strings.TrimSpace(v)
	}
	if v, ok := getEnvStr("OIDC_CLIENT_SECRET"); ok {
		c.OIDC.ClientSecret = strings.TrimSpace(v)
	}
	if v, ok := getEnvStr("OIDC_REDIRECT_URL"); ok {
		c.OIDC.RedirectURL = strings.TrimSpace(v)
	}
	if v, ok := getEnvCSV("OIDC_SCOPES"); ok && len(v) > 0 {
		c.OIDC.Scopes = v
	}
	if v, ok := getEnvBool("OIDC_FETCH_USERINFO"); ok {
		c.OIDC.FetchUserInfo = v
	}

	// AUTH
	if v, ok := getEnvStr("AUTH_SECRET"); ok {
		c.Auth.Secret = strings.TrimSpace(v)
	}
	if v, ok := getEnvBool("AUTH_FEDERATED_SIGNOUT"); ok {
		c.Auth.FederatedSignOut = v
	}
	if v, ok := getEnvStr("AUTH_PENDING_TTL"); ok {
		c.Auth.PendingTTL = v
	}
	if v, ok := getEnvStr("AUTH_SESSION_TTL"); ok {
		c.Auth.Session.TTL = v
	}
	if v, ok := getEnvStr("AUTH_COOKIE_NAME"); ok {
		c.Auth.Session.CookieName = v
	}
	if v, ok := getEnvStr("AUTH_COOKIE_DOMAIN"); ok {
		c.Auth.Session.Domain = v
	}
	if v, ok := getEnvStr("AUTH_COOKIE_SAMESITE"); ok {
		c.Auth.Session.SameSite = v
	}
	if v, ok := getEnvBool("AUTH_COOKIE_SECURE"); ok {
		c.Auth.Session.Secure = v
	}

	// CACHE
	if v, ok := getEnvStr("CACHE_KIND"); ok {
		c.Cache.Kind = strings.ToLower(strings.TrimSpace(v))
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Cache.Redis.Addr = v
	}
	if v, ok := getEnvStr("REDIS_PASSWORD"); ok {
		c.Cache.Redis.Password = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Cache.Redis.DB = v
	}
	if v, ok := getEnvStr("REDIS_PREFIX"); ok {
		c.Cache.Redis.Prefix = v
	}

	// RATE
	if v, ok := getEnvBool("RATE_ENABLED"); ok {
		c.Rate.Enabled = v
	}
	if v, ok := getEnvInt("RATE_AUTH_LIMIT"); ok {
		c.Rate.Auth.Limit = v
	}
	if v, ok := getEnvStr("RATE_AUTH_WINDOW"); ok {
		c.Rate.Auth.Window = v
	}
	if v, ok := getEnvCSV("RATE_TRUSTED_PROXIES"); ok {
		c.Rate.TrustedProxies = v
	}

	// METRICS
	if v, ok := getEnvBool("METRICS_ENABLED"); ok {
		c.Metrics.Enabled = v
	}
}
