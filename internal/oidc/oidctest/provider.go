// Package oidctest levanta un proveedor OpenID Connect falso sobre httptest
// para tests de integración del relying party.
package oidctest

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

type grant struct {
	nonce       string
	challenge   string
	redirectURI string
}

// Provider emula el /openid de Django oidc_provider.
type Provider struct {
	Server       *httptest.Server
	ClientID     string
	ClientSecret string

	// Subject y Profile alimentan id_token y userinfo.
	Subject string
	Profile map[string]any
	// NoEndSession oculta end_session_endpoint en discovery.
	NoEndSession bool
	// TokenError fuerza una respuesta de error en /token.
	TokenError string
	// MinimalIDToken deja el perfil fuera del id_token y sólo lo sirve por
	// userinfo, como Django con OIDC_IDTOKEN_INCLUDE_CLAIMS apagado.
	MinimalIDToken bool

	JWKSHits     atomic.Int32
	UserInfoHits atomic.Int32

	mu     sync.Mutex
	key    *rsa.PrivateKey
	kid    string
	codes  map[string]grant
	tokens map[string]string // access_token -> sub
	seq    int
}

// New arranca el servidor; se cierra con t.Cleanup.
func New(t testing.TB, clientID, clientSecret string) *Provider {
	t.Helper()
	p := &Provider{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Subject:      "42",
		Profile: map[string]any{
			"given_name":  "Ada",
			"family_name": "Lovelace",
			"name":        "Ada Lovelace",
			"email":       "ada@example.com",
		},
		codes:  map[string]grant{},
		tokens: map[string]string{},
	}
	p.RotateKey(t)

	mux := http.NewServeMux()
	mux.HandleFunc("/openid/.well-known/openid-configuration", p.discovery)
	mux.HandleFunc("/openid/jwks", p.jwks)
	mux.HandleFunc("/openid/token", p.token)
	mux.HandleFunc("/openid/userinfo", p.userinfo)
	p.Server = httptest.NewServer(mux)
	t.Cleanup(p.Server.Close)
	return p
}

// Issuer es la URL base del proveedor (termina en /openid).
func (p *Provider) Issuer() string { return p.Server.URL + "/openid" }

// RotateKey genera una clave nueva con otro kid.
func (p *Provider) RotateKey(t testing.TB) {
	t.Helper()
	k, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("rsa key: %v", err)
	}
	p.mu.Lock()
	p.seq++
	p.key = k
	p.kid = fmt.Sprintf("kid-%d", p.seq)
	p.mu.Unlock()
}

// Authorize simula el paso por el authorization endpoint: registra el code
// ligado a nonce y code_challenge y devuelve code y state.
func (p *Provider) Authorize(t testing.TB, authURL string) (code, state string) {
	t.Helper()
	u, err := url.Parse(authURL)
	if err != nil {
		t.Fatalf("auth url: %v", err)
	}
	q := u.Query()
	if q.Get("code_challenge_method") != "S256" {
		t.Fatalf("expected S256 challenge, got %q", q.Get("code_challenge_method"))
	}
	if q.Get("client_id") != p.ClientID {
		t.Fatalf("client_id = %q", q.Get("client_id"))
	}
	p.mu.Lock()
	p.seq++
	code = fmt.Sprintf("code-%d", p.seq)
	p.codes[code] = grant{
		nonce:       q.Get("nonce"),
		challenge:   q.Get("code_challenge"),
		redirectURI: q.Get("redirect_uri"),
	}
	p.mu.Unlock()
	return code, q.Get("state")
}

// SignIDToken firma claims arbitrarios con la clave vigente.
func (p *Provider) SignIDToken(claims jwtv5.MapClaims) string {
	p.mu.Lock()
	key, kid := p.key, p.kid
	p.mu.Unlock()
	tok := jwtv5.NewWithClaims(jwtv5.SigningMethodRS256, claims)
	tok.Header["kid"] = kid
	s, err := tok.SignedString(key)
	if err != nil {
		panic(err)
	}
	return s
}

// IDTokenClaims arma los claims estándar para el sujeto configurado.
func (p *Provider) IDTokenClaims(nonce string) jwtv5.MapClaims {
	now := time.Now()
	c := jwtv5.MapClaims{
		"iss": p.Issuer(),
		"sub": p.Subject,
		"aud": p.ClientID,
		"iat": now.Unix(),
		"exp": now.Add(10 * time.Minute).Unix(),
	}
	if nonce != "" {
		c["nonce"] = nonce
	}
	if p.MinimalIDToken {
		return c
	}
	for k, v := range p.Profile {
		c[k] = v
	}
	return c
}

func (p *Provider) discovery(w http.ResponseWriter, _ *http.Request) {
	iss := p.Issuer()
	doc := map[string]any{
		"issuer":                                iss,
		"authorization_endpoint":                iss + "/authorize",
		"token_endpoint":                        iss + "/token",
		"userinfo_endpoint":                     iss + "/userinfo",
		"jwks_uri":                              iss + "/jwks",
		"id_token_signing_alg_values_supported": []string{"RS256"},
	}
	if !p.NoEndSession {
		doc["end_session_endpoint"] = iss + "/end-session"
	}
	writeJSON(w, http.StatusOK, doc)
}

func (p *Provider) jwks(w http.ResponseWriter, _ *http.Request) {
	p.JWKSHits.Add(1)
	p.mu.Lock()
	pub, kid := p.key.PublicKey, p.kid
	p.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"keys": []map[string]string{{
			"kty": "RSA",
			"alg": "RS256",
			"use": "sig",
			"kid": kid,
			"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		}},
	})
}

func (p *Provider) token(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
		return
	}
	id, secret, ok := r.BasicAuth()
	if !ok {
		id, secret = r.PostForm.Get("client_id"), r.PostForm.Get("client_secret")
	}
	if id != p.ClientID || secret != p.ClientSecret {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_client"})
		return
	}
	if p.TokenError != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": p.TokenError})
		return
	}
	if r.PostForm.Get("grant_type") != "authorization_code" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported_grant_type"})
		return
	}

	code := r.PostForm.Get("code")
	p.mu.Lock()
	g, found := p.codes[code]
	delete(p.codes, code)
	p.mu.Unlock()
	if !found || g.redirectURI != r.PostForm.Get("redirect_uri") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
		return
	}
	sum := sha256.Sum256([]byte(r.PostForm.Get("code_verifier")))
	if base64.RawURLEncoding.EncodeToString(sum[:]) != g.challenge {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant", "error_description": "pkce"})
		return
	}

	p.mu.Lock()
	p.seq++
	access := fmt.Sprintf("at-%d", p.seq)
	p.tokens[access] = p.Subject
	p.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"access_token":  access,
		"refresh_token": "rt-" + access,
		"token_type":    "Bearer",
		"expires_in":    3600,
		"scope":         "openid profile email",
		"id_token":      p.SignIDToken(p.IDTokenClaims(g.nonce)),
	})
}

func (p *Provider) userinfo(w http.ResponseWriter, r *http.Request) {
	p.UserInfoHits.Add(1)
	const prefix = "Bearer "
	h := r.Header.Get("Authorization")
	if len(h) <= len(prefix) || h[:len(prefix)] != prefix {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	p.mu.Lock()
	sub, ok := p.tokens[h[len(prefix):]]
	p.mu.Unlock()
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	out := map[string]any{"sub": sub}
	for k, v := range p.Profile {
		out[k] = v
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
