package oidc_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/dropDatabas3/liberty-web/internal/oidc"
	"github.com/dropDatabas3/liberty-web/internal/oidc/oidctest"
)

const redirect = "http://localhost:3000/auth/callback"

func newClient(p *oidctest.Provider) *oidc.Client {
	return oidc.New(oidc.Config{
		Issuer:       p.Issuer(),
		ClientID:     p.ClientID,
		ClientSecret: p.ClientSecret,
		RedirectURL:  redirect,
		Scopes:       []string{"openid", "profile", "email"},
	})
}

func TestCodeFlowWithPKCE(t *testing.T) {
	ctx := context.Background()
	p := oidctest.New(t, "web", "s3cret")
	c := newClient(p)

	verifier := oauth2.GenerateVerifier()
	authURL, err := c.AuthURL(ctx, "st-1", "n-1", verifier)
	require.NoError(t, err)

	u, err := url.Parse(authURL)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, p.Issuer()+"/authorize", u.Scheme+"://"+u.Host+u.Path)
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "openid profile email", q.Get("scope"))
	assert.Equal(t, "n-1", q.Get("nonce"))
	assert.Equal(t, redirect, q.Get("redirect_uri"))

	code, state := p.Authorize(t, authURL)
	assert.Equal(t, "st-1", state)

	tok, err := c.Exchange(ctx, code, verifier)
	require.NoError(t, err)
	assert.NotEmpty(t, tok.AccessToken)
	assert.NotEmpty(t, tok.IDToken)
	assert.Equal(t, "openid profile email", tok.Scope)
	assert.False(t, tok.Expiry.IsZero())

	claims, err := c.VerifyIDToken(ctx, tok.IDToken, "n-1")
	require.NoError(t, err)
	assert.Equal(t, "42", claims.Subject)
	assert.Equal(t, "Ada", claims.GivenName)
	assert.Equal(t, "Lovelace", claims.FamilyName)
	assert.Equal(t, "ada@example.com", claims.Email)

	info, err := c.UserInfo(ctx, tok.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "42", info.Subject)
	assert.Equal(t, "Ada Lovelace", info.Name)
}

func TestExchange_WrongVerifier(t *testing.T) {
	ctx := context.Background()
	p := oidctest.New(t, "web", "s3cret")
	c := newClient(p)

	authURL, err := c.AuthURL(ctx, "st", "n", oauth2.GenerateVerifier())
	require.NoError(t, err)
	code, _ := p.Authorize(t, authURL)

	_, err = c.Exchange(ctx, code, oauth2.GenerateVerifier())
	require.Error(t, err)
}

func TestExchange_BadClientSecret(t *testing.T) {
	ctx := context.Background()
	p := oidctest.New(t, "web", "s3cret")
	c := oidc.New(oidc.Config{Issuer: p.Issuer(), ClientID: "web", ClientSecret: "nope", RedirectURL: redirect})

	v := oauth2.GenerateVerifier()
	authURL, err := c.AuthURL(ctx, "st", "n", v)
	require.NoError(t, err)
	code, _ := p.Authorize(t, authURL)

	_, err = c.Exchange(ctx, code, v)
	var re *oauth2.RetrieveError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "invalid_client", re.ErrorCode)
}

func TestVerifyIDToken_Rejections(t *testing.T) {
	ctx := context.Background()
	p := oidctest.New(t, "web", "s3cret")
	c := newClient(p)

	tests := []struct {
		name   string
		mutate func(m map[string]any)
		nonce  string
		nonceE bool
	}{
		{name: "nonce", nonce: "other", nonceE: true},
		{name: "aud", mutate: func(m map[string]any) { m["aud"] = "someone-else" }},
		{name: "iss", mutate: func(m map[string]any) { m["iss"] = "https://evil.example/openid" }},
		{name: "expired", mutate: func(m map[string]any) { m["exp"] = time.Now().Add(-5 * time.Minute).Unix() }},
		{name: "no exp", mutate: func(m map[string]any) { delete(m, "exp") }},
		{name: "no sub", mutate: func(m map[string]any) { delete(m, "sub") }},
		{name: "azp", mutate: func(m map[string]any) { m["aud"] = []string{"web", "other"}; m["azp"] = "other" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := p.IDTokenClaims("n-1")
			if tt.mutate != nil {
				tt.mutate(claims)
			}
			nonce := "n-1"
			if tt.nonce != "" {
				nonce = tt.nonce
			}
			_, err := c.VerifyIDToken(ctx, p.SignIDToken(claims), nonce)
			require.Error(t, err)
			assert.ErrorIs(t, err, oidc.ErrInvalidToken)
			if tt.nonceE {
				assert.ErrorIs(t, err, oidc.ErrNonceMismatch)
			}
		})
	}
}

func TestVerifyIDToken_ExpiredIsTokenExpiredError(t *testing.T) {
	p := oidctest.New(t, "web", "s3cret")
	c := newClient(p)

	claims := p.IDTokenClaims("n")
	claims["exp"] = time.Now().Add(-time.Minute).Unix()
	_, err := c.VerifyIDToken(context.Background(), p.SignIDToken(claims), "n")
	var te *gooidc.TokenExpiredError
	assert.True(t, errors.As(err, &te))
}

func TestVerifyIDToken_RejectsHS256(t *testing.T) {
	p := oidctest.New(t, "web", "s3cret")
	c := newClient(p)

	raw, err := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, p.IDTokenClaims("n")).SignedString([]byte(p.ClientSecret))
	require.NoError(t, err)
	_, err = c.VerifyIDToken(context.Background(), raw, "n")
	assert.ErrorIs(t, err, oidc.ErrInvalidToken)
}

func TestVerifyIDToken_MinimalThenUserInfo(t *testing.T) {
	ctx := context.Background()
	p := oidctest.New(t, "web", "s3cret")
	p.MinimalIDToken = true
	c := newClient(p)

	v := oauth2.GenerateVerifier()
	authURL, err := c.AuthURL(ctx, "st", "n", v)
	require.NoError(t, err)
	code, _ := p.Authorize(t, authURL)
	tok, err := c.Exchange(ctx, code, v)
	require.NoError(t, err)

	claims, err := c.VerifyIDToken(ctx, tok.IDToken, "n")
	require.NoError(t, err)
	assert.Equal(t, "42", claims.Subject)
	assert.Empty(t, claims.Email)
	assert.Empty(t, claims.GivenName)

	info, err := c.UserInfo(ctx, tok.AccessToken)
	require.NoError(t, err)
	claims.Merge(info)
	assert.Equal(t, "ada@example.com", claims.Email)
	assert.Equal(t, "Ada", claims.GivenName)
	assert.Equal(t, int32(1), p.UserInfoHits.Load())
}

func TestUserInfo_BadAccessToken(t *testing.T) {
	p := oidctest.New(t, "web", "s3cret")
	_, err := newClient(p).UserInfo(context.Background(), "nope")
	assert.Error(t, err)
}

func TestVerifyIDToken_WithinLeeway(t *testing.T) {
	p := oidctest.New(t, "web", "s3cret")
	c := newClient(p)

	claims := p.IDTokenClaims("n")
	claims["exp"] = time.Now().Add(-10 * time.Second).Unix()
	_, err := c.VerifyIDToken(context.Background(), p.SignIDToken(claims), "n")
	require.NoError(t, err)
}

func TestVerifyIDToken_TamperedSignature(t *testing.T) {
	p := oidctest.New(t, "web", "s3cret")
	c := newClient(p)

	raw := p.SignIDToken(p.IDTokenClaims("n"))
	raw = raw[:len(raw)-4] + "AAAA"
	_, err := c.VerifyIDToken(context.Background(), raw, "n")
	assert.ErrorIs(t, err, oidc.ErrInvalidToken)
}

func TestVerifyIDToken_KeyRotationRefreshesJWKS(t *testing.T) {
	ctx := context.Background()
	p := oidctest.New(t, "web", "s3cret")
	c := newClient(p)

	_, err := c.VerifyIDToken(ctx, p.SignIDToken(p.IDTokenClaims("n")), "n")
	require.NoError(t, err)
	_, err = c.VerifyIDToken(ctx, p.SignIDToken(p.IDTokenClaims("n")), "n")
	require.NoError(t, err)
	assert.Equal(t, int32(1), p.JWKSHits.Load(), "jwks should be cached")

	p.RotateKey(t)
	_, err = c.VerifyIDToken(ctx, p.SignIDToken(p.IDTokenClaims("n")), "n")
	require.NoError(t, err)
	assert.Equal(t, int32(2), p.JWKSHits.Load())
}

func TestEndSessionURL(t *testing.T) {
	ctx := context.Background()
	p := oidctest.New(t, "web", "s3cret")
	c := newClient(p)

	got, err := c.EndSessionURL(ctx, "idt", "http://localhost:3000/")
	require.NoError(t, err)
	u, err := url.Parse(got)
	require.NoError(t, err)
	assert.Equal(t, "/openid/end-session", u.Path)
	assert.Equal(t, "idt", u.Query().Get("id_token_hint"))
	assert.Equal(t, "http://localhost:3000/", u.Query().Get("post_logout_redirect_uri"))
	assert.Equal(t, "web", u.Query().Get("client_id"))

	p2 := oidctest.New(t, "web", "s3cret")
	p2.NoEndSession = true
	got, err = newClient(p2).EndSessionURL(ctx, "idt", "/")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDiscovery_IssuerMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"issuer":"https://other.example","authorization_endpoint":"a","token_endpoint":"t","jwks_uri":"j"}`))
	}))
	defer srv.Close()

	c := oidc.New(oidc.Config{Issuer: srv.URL, ClientID: "web"})
	_, err := c.Discovery(context.Background())
	assert.ErrorIs(t, err, oidc.ErrDiscovery)
}

func TestDiscovery_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	c := oidc.New(oidc.Config{Issuer: srv.URL + "/openid", ClientID: "web"})
	_, err := c.Discovery(context.Background())
	assert.ErrorIs(t, err, oidc.ErrDiscovery)
}

func TestClaimsMerge(t *testing.T) {
	c := &oidc.Claims{Email: "a@b.c", GivenName: "Ada"}
	c.Merge(&oidc.Claims{Email: "x@y.z", GivenName: "Other", FamilyName: "Lovelace", Picture: "p.png"})
	assert.Equal(t, "a@b.c", c.Email)
	assert.Equal(t, "Ada", c.GivenName)
	assert.Equal(t, "Lovelace", c.FamilyName)
	assert.Equal(t, "p.png", c.Picture)
}
