package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/liberty-web/internal/auth"
	"github.com/dropDatabas3/liberty-web/internal/cache"
	"github.com/dropDatabas3/liberty-web/internal/oidc"
	"github.com/dropDatabas3/liberty-web/internal/oidc/oidctest"
)

const secret = "0123456789abcdef0123456789abcdef"

type harness struct {
	svc   *auth.Service
	p     *oidctest.Provider
	cache *cache.Memory
	now   time.Time
}

func newHarness(t *testing.T, mutate func(*auth.Config)) *harness {
	t.Helper()
	p := oidctest.New(t, "web", "s3cret")
	h := &harness{p: p, cache: cache.NewMemory("test", time.Minute), now: time.Now()}
	t.Cleanup(func() { _ = h.cache.Close() })

	cfg := auth.Config{
		Cookie:        auth.CookieConfig{Name: "liberty.session", SameSite: http.SameSiteLaxMode, TTL: 24 * time.Hour},
		PendingTTL:    10 * time.Minute,
		FetchUserInfo: true,
		PublicURL:     "http://localhost:3000",
	}
	if mutate != nil {
		mutate(&cfg)
	}
	client := oidc.New(oidc.Config{
		Issuer:       p.Issuer(),
		ClientID:     "web",
		ClientSecret: "s3cret",
		RedirectURL:  "http://localhost:3000/auth/callback",
		Scopes:       []string{"openid", "profile", "email"},
	})
	svc, err := auth.New(auth.Deps{
		Provider: client,
		Cache:    h.cache,
		Secret:   secret,
		Config:   cfg,
		Now:      func() time.Time { return h.now },
	})
	require.NoError(t, err)
	h.svc = svc
	return h
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// signIn devuelve la URL de autorización y la cookie de state.
func (h *harness) signIn(t *testing.T, returnTo string) (string, *http.Cookie) {
	t.Helper()
	rec := httptest.NewRecorder()
	authURL, err := h.svc.SignIn(context.Background(), rec, httptest.NewRequest(http.MethodPost, "/auth/signin", nil), returnTo)
	require.NoError(t, err)
	sc := findCookie(rec, "liberty.session.state")
	require.NotNil(t, sc)
	return authURL, sc
}

func (h *harness) callback(query url.Values, cookies ...*http.Cookie) (*httptest.ResponseRecorder, string, error) {
	req := httptest.NewRequest(http.MethodGet, "/auth/callback?"+query.Encode(), nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	to, err := h.svc.Callback(context.Background(), rec, req)
	return rec, to, err
}

// login corre el flujo completo y devuelve la cookie de sesión.
func (h *harness) login(t *testing.T) *http.Cookie {
	t.Helper()
	authURL, sc := h.signIn(t, "/")
	code, state := h.p.Authorize(t, authURL)
	rec, _, err := h.callback(url.Values{"code": {code}, "state": {state}}, sc)
	require.NoError(t, err)
	c := findCookie(rec, "liberty.session")
	require.NotNil(t, c)
	return c
}

func (h *harness) auth(t *testing.T, c *http.Cookie) *auth.Session {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if c != nil {
		req.AddCookie(c)
	}
	sess, err := h.svc.Auth(context.Background(), req)
	require.NoError(t, err)
	return sess
}

func TestSignInCallbackAuth(t *testing.T) {
	h := newHarness(t, nil)

	authURL, sc := h.signIn(t, "/dashboard?tab=1")
	assert.True(t, sc.HttpOnly)
	code, state := h.p.Authorize(t, authURL)

	rec, returnTo, err := h.callback(url.Values{"code": {code}, "state": {state}}, sc)
	require.NoError(t, err)
	assert.Equal(t, "/dashboard?tab=1", returnTo)

	c := findCookie(rec, "liberty.session")
	require.NotNil(t, c)
	assert.True(t, c.HttpOnly)
	assert.Equal(t, "/", c.Path)
	assert.Equal(t, int((24 * time.Hour).Seconds()), c.MaxAge)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)

	sess := h.auth(t, c)
	require.NotNil(t, sess)
	wantProfile := auth.Profile{
		Sub:        "42",
		Name:       "Ada Lovelace",
		GivenName:  "Ada",
		FamilyName: "Lovelace",
		Email:      "ada@example.com",
	}
	if diff := cmp.Diff(wantProfile, sess.Profile); diff != "" {
		t.Errorf("profile mismatch (-want +got):\n%s", diff)
	}
	wantUser := auth.User{ID: "42", Name: "Ada Lovelace", Email: "ada@example.com"}
	if diff := cmp.Diff(wantUser, sess.User); diff != "" {
		t.Errorf("user mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "django", sess.Account.Provider)
	assert.Equal(t, "oidc", sess.Account.Type)
	assert.NotEmpty(t, sess.Account.AccessToken)
	assert.NotEmpty(t, sess.Account.IDToken)
	assert.Equal(t, int32(1), h.p.UserInfoHits.Load())
}

func TestCallback_MinimalIDTokenUsesUserInfo(t *testing.T) {
	h := newHarness(t, nil)
	h.p.MinimalIDToken = true

	sess := h.auth(t, h.login(t))
	require.NotNil(t, sess)
	assert.Equal(t, "42", sess.User.ID)
	assert.Equal(t, "Ada Lovelace", sess.User.Name)
	assert.Equal(t, "ada@example.com", sess.User.Email)
	assert.Equal(t, int32(1), h.p.UserInfoHits.Load())
}

func TestCallback_MinimalIDTokenWithoutUserInfo(t *testing.T) {
	h := newHarness(t, func(c *auth.Config) { c.FetchUserInfo = false })
	h.p.MinimalIDToken = true

	sess := h.auth(t, h.login(t))
	require.NotNil(t, sess)
	assert.Equal(t, "42", sess.User.ID)
	assert.Empty(t, sess.User.Email)
	assert.Zero(t, h.p.UserInfoHits.Load())
}

func TestAuth_NoCookie(t *testing.T) {
	h := newHarness(t, nil)
	assert.Nil(t, h.auth(t, nil))
}

func TestAuth_UnknownSessionID(t *testing.T) {
	h := newHarness(t, nil)
	assert.Nil(t, h.auth(t, &http.Cookie{Name: "liberty.session", Value: "forged"}))
}

func TestAuth_Expired(t *testing.T) {
	h := newHarness(t, nil)
	c := h.login(t)
	require.NotNil(t, h.auth(t, c))

	h.now = h.now.Add(25 * time.Hour)
	assert.Nil(t, h.auth(t, c))
}

func TestAuth_SealedWithOtherSecret(t *testing.T) {
	h := newHarness(t, nil)
	c := h.login(t)

	other, err := auth.New(auth.Deps{
		Provider: oidc.New(oidc.Config{Issuer: h.p.Issuer(), ClientID: "web"}),
		Cache:    h.cache,
		Secret:   "ffffffffffffffffffffffffffffffff",
	})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(c)
	sess, err := other.Auth(context.Background(), req)
	require.NoError(t, err)
	assert.Nil(t, sess)
}

func TestCallback_StateIsSingleUse(t *testing.T) {
	h := newHarness(t, nil)
	authURL, sc := h.signIn(t, "/")
	code, state := h.p.Authorize(t, authURL)

	_, _, err := h.callback(url.Values{"code": {code}, "state": {state}}, sc)
	require.NoError(t, err)

	_, to, err := h.callback(url.Values{"code": {code}, "state": {state}}, sc)
	assert.ErrorIs(t, err, auth.ErrStateExpired)
	assert.Equal(t, "/", to)
}

func TestCallback_StateCookieMismatch(t *testing.T) {
	h := newHarness(t, nil)
	authURL, _ := h.signIn(t, "/")
	code, state := h.p.Authorize(t, authURL)

	_, _, err := h.callback(url.Values{"code": {code}, "state": {state}})
	assert.ErrorIs(t, err, auth.ErrStateInvalid)

	_, _, err = h.callback(url.Values{"code": {code}, "state": {state}},
		&http.Cookie{Name: "liberty.session.state", Value: "other"})
	assert.ErrorIs(t, err, auth.ErrStateInvalid)
}

func TestCallback_PendingExpired(t *testing.T) {
	h := newHarness(t, nil)
	authURL, sc := h.signIn(t, "/")
	code, state := h.p.Authorize(t, authURL)

	h.now = h.now.Add(11 * time.Minute)
	_, _, err := h.callback(url.Values{"code": {code}, "state": {state}}, sc)
	assert.ErrorIs(t, err, auth.ErrStateExpired)
}

func TestCallback_ProviderError(t *testing.T) {
	h := newHarness(t, nil)
	_, sc := h.signIn(t, "/")

	rec, _, err := h.callback(url.Values{
		"error":             {"access_denied"},
		"error_description": {"user cancelled"},
		"state":             {sc.Value},
	}, sc)
	var pe *auth.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "access_denied", pe.Code)
	assert.Equal(t, "access_denied", auth.ErrorCode(err))
	assert.Nil(t, findCookie(rec, "liberty.session"))

	// el pending quedó consumido
	_, _, err = h.callback(url.Values{"code": {"x"}, "state": {sc.Value}}, sc)
	assert.ErrorIs(t, err, auth.ErrStateExpired)
}

func TestCallback_MissingCode(t *testing.T) {
	h := newHarness(t, nil)
	_, sc := h.signIn(t, "/")
	_, _, err := h.callback(url.Values{"state": {sc.Value}}, sc)
	assert.ErrorIs(t, err, auth.ErrMissingCode)
}

func TestCallback_ExchangeFails(t *testing.T) {
	h := newHarness(t, nil)
	h.p.TokenError = "invalid_grant"
	authURL, sc := h.signIn(t, "/")
	code, state := h.p.Authorize(t, authURL)

	_, _, err := h.callback(url.Values{"code": {code}, "state": {state}}, sc)
	assert.ErrorIs(t, err, auth.ErrExchange)
	assert.Equal(t, "exchange_failed", auth.ErrorCode(err))
}

func TestCallback_ReplacesPreviousSession(t *testing.T) {
	h := newHarness(t, nil)
	first := h.login(t)

	authURL, sc := h.signIn(t, "/")
	code, state := h.p.Authorize(t, authURL)
	rec, _, err := h.callback(url.Values{"code": {code}, "state": {state}}, sc, first)
	require.NoError(t, err)
	second := findCookie(rec, "liberty.session")
	require.NotNil(t, second)

	assert.NotEqual(t, first.Value, second.Value)
	assert.Nil(t, h.auth(t, first))
	assert.NotNil(t, h.auth(t, second))
}

func TestSignOut(t *testing.T) {
	h := newHarness(t, nil)
	c := h.login(t)

	req := httptest.NewRequest(http.MethodPost, "/auth/signout", nil)
	req.AddCookie(c)
	rec := httptest.NewRecorder()
	to, err := h.svc.SignOut(context.Background(), rec, req)
	require.NoError(t, err)
	assert.Equal(t, "/", to)

	cleared := findCookie(rec, "liberty.session")
	require.NotNil(t, cleared)
	assert.Equal(t, -1, cleared.MaxAge)
	assert.Nil(t, h.auth(t, c))
}

func TestSignOut_Federated(t *testing.T) {
	h := newHarness(t, func(c *auth.Config) { c.FederatedSignOut = true })
	c := h.login(t)

	req := httptest.NewRequest(http.MethodPost, "/auth/signout", nil)
	req.AddCookie(c)
	to, err := h.svc.SignOut(context.Background(), httptest.NewRecorder(), req)
	require.NoError(t, err)

	u, err := url.Parse(to)
	require.NoError(t, err)
	assert.Equal(t, "/openid/end-session", u.Path)
	assert.NotEmpty(t, u.Query().Get("id_token_hint"))
	assert.Equal(t, "http://localhost:3000/", u.Query().Get("post_logout_redirect_uri"))
}

func TestSignOut_WithoutSession(t *testing.T) {
	h := newHarness(t, func(c *auth.Config) { c.FederatedSignOut = true })
	rec := httptest.NewRecorder()
	to, err := h.svc.SignOut(context.Background(), rec, httptest.NewRequest(http.MethodPost, "/auth/signout", nil))
	require.NoError(t, err)
	assert.Equal(t, "/", to)
	assert.NotNil(t, findCookie(rec, "liberty.session"))
}

func TestNew_ShortSecret(t *testing.T) {
	_, err := auth.New(auth.Deps{
		Provider: oidc.New(oidc.Config{Issuer: "http://x/openid"}),
		Cache:    cache.NewMemory("", time.Minute),
		Secret:   "short",
	})
	assert.Error(t, err)
}
