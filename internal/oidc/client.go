// Package oidc es el cliente relying-party contra el proveedor OpenID Connect
// del backend (Django oidc_provider). Discovery, JWKS y verificación del
// id_token van por go-oidc; el code flow con PKCE por x/oauth2.
package oidc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

const (
	discoveryTTL = 24 * time.Hour
	// margen de reloj para exp del id_token
	clockLeeway = 30 * time.Second
)

var (
	ErrDiscovery     = errors.New("oidc: discovery failed")
	ErrNoIDToken     = errors.New("oidc: token response without id_token")
	ErrInvalidToken  = errors.New("oidc: invalid id_token")
	ErrNonceMismatch = errors.New("oidc: nonce mismatch")
	ErrNoUserInfo    = errors.New("oidc: provider has no userinfo endpoint")
)

// Config del relying party.
type Config struct {
	Issuer       string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	HTTPClient   *http.Client
}

// Discovery es el subconjunto de openid-configuration que usamos.
type Discovery struct {
	Issuer             string   `json:"issuer"`
	AuthEndpoint       string   `json:"authorization_endpoint"`
	TokenEndpoint      string   `json:"token_endpoint"`
	UserInfoEndpoint   string   `json:"userinfo_endpoint"`
	JWKSURI            string   `json:"jwks_uri"`
	EndSessionEndpoint string   `json:"end_session_endpoint"`
	IDTokenAlgs        []string `json:"id_token_signing_alg_values_supported"`
}

// Tokens es la respuesta del token endpoint.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	IDToken      string
	TokenType    string
	Scope        string
	Expiry       time.Time
}

// Client es seguro para uso concurrente. El *gooidc.Provider (y con él el
// JWKS) se cachea discoveryTTL.
type Client struct {
	cfg  Config
	http *http.Client
	now  func() time.Time

	mu     sync.RWMutex
	prov   *gooidc.Provider
	disc   *Discovery
	discAt time.Time
}

// New crea el cliente. No hace I/O; discovery se resuelve on demand.
func New(cfg Config) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{cfg: cfg, http: hc, now: time.Now}
}

// Issuer devuelve el issuer configurado.
func (c *Client) Issuer() string { return c.cfg.Issuer }

func (c *Client) load(ctx context.Context) (*gooidc.Provider, *Discovery, error) {
	c.mu.RLock()
	prov, disc := c.prov, c.disc
	stale := c.now().Sub(c.discAt) > discoveryTTL
	c.mu.RUnlock()
	if prov != nil && !stale {
		return prov, disc, nil
	}

	// NewProvider exige que issuer coincida exacto con el documento
	prov, err := gooidc.NewProvider(gooidc.ClientContext(ctx, c.http), c.cfg.Issuer)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrDiscovery, err)
	}
	var dd Discovery
	if err := prov.Claims(&dd); err != nil {
		return nil, nil, fmt.Errorf("%w: claims: %v", ErrDiscovery, err)
	}
	if dd.AuthEndpoint == "" || dd.TokenEndpoint == "" || dd.JWKSURI == "" {
		return nil, nil, fmt.Errorf("%w: incomplete document", ErrDiscovery)
	}

	c.mu.Lock()
	c.prov, c.disc, c.discAt = prov, &dd, c.now()
	c.mu.Unlock()
	return prov, &dd, nil
}

func (c *Client) provider(ctx context.Context) (*gooidc.Provider, error) {
	p, _, err := c.load(ctx)
	return p, err
}

// Discovery devuelve el documento cacheado o lo (re)carga si está vencido.
func (c *Client) Discovery(ctx context.Context) (*Discovery, error) {
	_, d, err := c.load(ctx)
	return d, err
}

func (c *Client) oauth2Config(p *gooidc.Provider) *oauth2.Config {
	ep := p.Endpoint()
	// client_secret_basic
	ep.AuthStyle = oauth2.AuthStyleInHeader
	return &oauth2.Config{
		ClientID:     c.cfg.ClientID,
		ClientSecret: c.cfg.ClientSecret,
		RedirectURL:  c.cfg.RedirectURL,
		Scopes:       c.cfg.Scopes,
		Endpoint:     ep,
	}
}

// AuthURL construye la URL de autorización (code flow + PKCE S256 + nonce).
func (c *Client) AuthURL(ctx context.Context, state, nonce, verifier string) (string, error) {
	p, err := c.provider(ctx)
	if err != nil {
		return "", err
	}
	return c.oauth2Config(p).AuthCodeURL(state,
		gooidc.Nonce(nonce),
		oauth2.S256ChallengeOption(verifier),
	), nil
}

// Exchange canjea el code por tokens enviando el code_verifier.
func (c *Client) Exchange(ctx context.Context, code, verifier string) (*Tokens, error) {
	p, err := c.provider(ctx)
	if err != nil {
		return nil, err
	}
	tok, err := c.oauth2Config(p).Exchange(gooidc.ClientContext(ctx, c.http), code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("oidc: exchange: %w", err)
	}
	idToken, _ := tok.Extra("id_token").(string)
	if idToken == "" {
		return nil, ErrNoIDToken
	}
	scope, _ := tok.Extra("scope").(string)
	return &Tokens{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		IDToken:      idToken,
		TokenType:    tok.TokenType,
		Scope:        scope,
		Expiry:       tok.Expiry,
	}, nil
}

// UserInfo consulta el userinfo endpoint con el access token.
func (c *Client) UserInfo(ctx context.Context, accessToken string) (*Claims, error) {
	p, err := c.provider(ctx)
	if err != nil {
		return nil, err
	}
	if p.UserInfoEndpoint() == "" {
		return nil, ErrNoUserInfo
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
	info, err := p.UserInfo(gooidc.ClientContext(ctx, c.http), ts)
	if err != nil {
		return nil, fmt.Errorf("oidc: userinfo: %w", err)
	}
	var cl Claims
	if err := info.Claims(&cl); err != nil {
		return nil, fmt.Errorf("oidc: userinfo decode: %w", err)
	}
	return &cl, nil
}

// EndSessionURL arma la URL de logout RP-initiated. Devuelve "" si el
// proveedor no publica end_session_endpoint.
func (c *Client) EndSessionURL(ctx context.Context, idTokenHint, postLogoutRedirect string) (string, error) {
	d, err := c.Discovery(ctx)
	if err != nil {
		return "", err
	}
	if d.EndSessionEndpoint == "" {
		return "", nil
	}
	u, err := url.Parse(d.EndSessionEndpoint)
	if err != nil {
		return "", fmt.Errorf("oidc: end_session_endpoint: %w", err)
	}
	q := u.Query()
	if idTokenHint != "" {
		q.Set("id_token_hint", idTokenHint)
	}
	if postLogoutRedirect != "" {
		q.Set("post_logout_redirect_uri", postLogoutRedirect)
	}
	q.Set("client_id", c.cfg.ClientID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
