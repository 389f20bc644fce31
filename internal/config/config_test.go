package config

import (
	"net/netip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("AUTH_SECRET", testSecret)
	t.Setenv("OIDC_CLIENT_ID", "123456")
}

func TestLoad_DefaultsFromEnvOnly(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("API_URL", "http://api:8000/")

	c, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":3000", c.Server.Addr)
	assert.Equal(t, "http://api:8000", c.API.URL)
	assert.Equal(t, "http://api:8000/openid", c.OIDC.Issuer)
	assert.Equal(t, "http://localhost:3000/auth/callback", c.OIDC.RedirectURL)
	assert.Equal(t, []string{"openid", "profile", "email"}, c.OIDC.Scopes)
	assert.Equal(t, "liberty.session", c.Auth.Session.CookieName)
	assert.Equal(t, 720*time.Hour, c.SessionTTL())
	assert.Equal(t, 10*time.Minute, c.PendingTTL())
	assert.Equal(t, "memory", c.Cache.Kind)
	assert.Equal(t, "http://api:8000/account/signup", c.SignUpURL())
	assert.True(t, c.OIDC.FetchUserInfo)
	assert.Equal(t, 20, c.Rate.Auth.Limit)
	assert.Empty(t, c.TrustedProxyPrefixes())
}

func TestLoad_FetchUserInfoCanBeDisabled(t *testing.T) {
	setRequiredEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("oidc:\n  fetch_userinfo: false\n"), 0o600))
	c, err := Load(path)
	require.NoError(t, err)
	assert.False(t, c.OIDC.FetchUserInfo)

	t.Setenv("OIDC_FETCH_USERINFO", "true")
	c, err = Load(path)
	require.NoError(t, err)
	assert.True(t, c.OIDC.FetchUserInfo, "env wins over yaml")
}

func TestLoad_TrustedProxies(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("RATE_TRUSTED_PROXIES", "10.0.0.0/8, 192.168.1.7")

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, []netip.Prefix{
		netip.MustParsePrefix("10.0.0.0/8"),
		netip.MustParsePrefix("192.168.1.7/32"),
	}, c.TrustedProxyPrefixes())
}

func TestLoad_YAMLThenEnvOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SERVER_ADDR", ":9999")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yml := `
server:
  addr: ":8081"
  public_url: "https://front.example.com"
api:
  url: "https://api.example.com"
oidc:
  scopes: [openid, email]
auth:
  session:
    ttl: 12h
    secure: true
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))

	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9999", c.Server.Addr, "env wins over yaml")
	assert.Equal(t, "https://api.example.com/openid", c.OIDC.Issuer)
	assert.Equal(t, "https://front.example.com/auth/callback", c.OIDC.RedirectURL)
	assert.Equal(t, []string{"openid", "email"}, c.OIDC.Scopes)
	assert.Equal(t, 12*time.Hour, c.SessionTTL())
	assert.True(t, c.Auth.Session.Secure)
}

func TestLoad_MissingFile(t *testing.T) {
	setRequiredEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{
			name: "short secret",
			env:  map[string]string{"AUTH_SECRET": "short", "OIDC_CLIENT_ID": "x"},
			want: "AUTH_SECRET",
		},
		{
			name: "missing client id",
			env:  map[string]string{"AUTH_SECRET": testSecret},
			want: "OIDC_CLIENT_ID",
		},
		{
			name: "bad duration",
			env:  map[string]string{"AUTH_SECRET": testSecret, "OIDC_CLIENT_ID": "x", "AUTH_SESSION_TTL": "forever"},
			want: "auth.session.ttl",
		},
		{
			name: "redis without addr",
			env:  map[string]string{"AUTH_SECRET": testSecret, "OIDC_CLIENT_ID": "x", "CACHE_KIND": "redis"},
			want: "REDIS_ADDR",
		},
		{
			name: "prod requires secure cookie",
			env:  map[string]string{"AUTH_SECRET": testSecret, "OIDC_CLIENT_ID": "x", "APP_ENV": "prod"},
			want: "secure",
		},
		{
			name: "scopes without openid",
			env:  map[string]string{"AUTH_SECRET": testSecret, "OIDC_CLIENT_ID": "x", "OIDC_SCOPES": "profile,email"},
			want: "OIDC_SCOPES",
		},
		{
			name: "zero rate limit",
			env:  map[string]string{"AUTH_SECRET": testSecret, "OIDC_CLIENT_ID": "x", "RATE_AUTH_LIMIT": "0"},
			want: "rate.auth.limit",
		},
		{
			name: "negative rate limit",
			env:  map[string]string{"AUTH_SECRET": testSecret, "OIDC_CLIENT_ID": "x", "RATE_AUTH_LIMIT": "-3"},
			want: "rate.auth.limit",
		},
		{
			name: "bad trusted proxy",
			env:  map[string]string{"AUTH_SECRET": testSecret, "OIDC_CLIENT_ID": "x", "RATE_TRUSTED_PROXIES": "10.0.0.0/33"},
			want: "RATE_TRUSTED_PROXIES",
		},
		{
			name: "relative issuer",
			env:  map[string]string{"AUTH_SECRET": testSecret, "OIDC_CLIENT_ID": "x", "OIDC_ISSUER": "/openid"},
			want: "oidc.issuer",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load("")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
