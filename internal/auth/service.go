package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/dropDatabas3/liberty-web/internal/cache"
	"github.com/dropDatabas3/liberty-web/internal/observability/logger"
	"github.com/dropDatabas3/liberty-web/internal/oidc"
	"github.com/dropDatabas3/liberty-web/internal/security/secretbox"
	tokens "github.com/dropDatabas3/liberty-web/internal/security/token"
	"github.com/dropDatabas3/liberty-web/internal/util"
)

// Provider es lo que el servicio necesita del cliente OIDC.
type Provider interface {
	AuthURL(ctx context.Context, state, nonce, verifier string) (string, error)
	Exchange(ctx context.Context, code, verifier string) (*oidc.Tokens, error)
	VerifyIDToken(ctx context.Context, raw, nonce string) (*oidc.Claims, error)
	UserInfo(ctx context.Context, accessToken string) (*oidc.Claims, error)
	EndSessionURL(ctx context.Context, idTokenHint, postLogoutRedirect string) (string, error)
}

// Config del servicio.
type Config struct {
	Cookie CookieConfig
	// PendingTTL es la vida de un login en curso.
	PendingTTL time.Duration
	// ProviderName se guarda en Account.Provider.
	ProviderName     string
	FetchUserInfo    bool
	FederatedSignOut bool
	// PublicURL es la base absoluta del sitio (post_logout_redirect_uri).
	PublicURL string
}

// Deps agrupa colaboradores del servicio.
type Deps struct {
	Provider Provider
	Cache    cache.Client
	Secret   string
	Config   Config
	Now      func() time.Time
}

// Service implementa auth/signIn/callback/signOut.
type Service struct {
	provider Provider
	store    *store
	cfg      Config
	now      func() time.Time
}

// New valida deps y deriva la clave de sellado desde el secreto.
func New(d Deps) (*Service, error) {
	if d.Provider == nil || d.Cache == nil {
		return nil, errors.New("auth: provider and cache are required")
	}
	box, err := secretbox.New(d.Secret, "liberty session")
	if err != nil {
		return nil, fmt.Errorf("auth: %w", err)
	}
	cfg := d.Config
	if cfg.Cookie.Name == "" {
		cfg.Cookie.Name = "liberty.session"
	}
	if cfg.Cookie.SameSite == 0 {
		cfg.Cookie.SameSite = http.SameSiteLaxMode
	}
	if cfg.Cookie.TTL <= 0 {
		cfg.Cookie.TTL = 30 * 24 * time.Hour
	}
	if cfg.PendingTTL <= 0 {
		cfg.PendingTTL = 10 * time.Minute
	}
	if cfg.ProviderName == "" {
		cfg.ProviderName = "django"
	}
	cfg.PublicURL = strings.TrimRight(cfg.PublicURL, "/")
	now := d.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		provider: d.Provider,
		store:    &store{cache: d.Cache, box: box},
		cfg:      cfg,
		now:      now,
	}, nil
}

// CookieName devuelve el nombre de la cookie de sesión.
func (s *Service) CookieName() string { return s.cfg.Cookie.Name }

func (s *Service) sessionID(r *http.Request) string {
	c, err := r.Cookie(s.cfg.Cookie.Name)
	if err != nil {
		return ""
	}
	return c.Value
}

// Auth devuelve la sesión del request o nil. Una sesión ausente, vencida o
// ilegible no es error; sólo una falla del store lo es.
func (s *Service) Auth(ctx context.Context, r *http.Request) (*Session, error) {
	id := s.sessionID(r)
	if id == "" {
		return nil, nil
	}
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("auth"), logger.Op("Auth"))

	sess, err := s.store.getSession(ctx, id)
	if errors.Is(err, errNoSession) {
		log.Debug("session cookie without usable session")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if sess.Expired(s.now()) {
		log.Debug("session expired", logger.UserID(sess.User.ID))
		_ = s.store.deleteSession(ctx, id)
		return nil, nil
	}
	return sess, nil
}

// SignIn arranca el code flow: genera state, nonce y verifier PKCE, guarda el
// pending bajo el state y devuelve la URL de autorización.
func (s *Service) SignIn(ctx context.Context, w http.ResponseWriter, r *http.Request, returnTo string) (string, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("auth"), logger.Op("SignIn"))

	state, err := tokens.GenerateOpaqueToken(32)
	if err != nil {
		return "", err
	}
	nonce, err := tokens.GenerateOpaqueToken(32)
	if err != nil {
		return "", err
	}
	p := &pending{
		State:     state,
		Nonce:     nonce,
		Verifier:  oauth2.GenerateVerifier(),
		ReturnTo:  SafeReturnTo(returnTo),
		CreatedAt: s.now(),
	}

	authURL, err := s.provider.AuthURL(ctx, p.State, p.Nonce, p.Verifier)
	if err != nil {
		return "", fmt.Errorf("auth: authorization url: %w", err)
	}
	if err := s.store.putPending(ctx, p, s.cfg.PendingTTL); err != nil {
		return "", err
	}

	http.SetCookie(w, s.stateCookie(state))
	log.Debug("sign-in started", logger.String("return_to", p.ReturnTo))
	return authURL, nil
}

// Callback completa el login. Devuelve el returnTo saneado.
func (s *Service) Callback(ctx context.Context, w http.ResponseWriter, r *http.Request) (string, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("auth"), logger.Op("Callback"))
	q := r.URL.Query()
	state := q.Get("state")

	// el cookie de state se limpia siempre
	var cookieState string
	if c, err := r.Cookie(s.cfg.Cookie.stateCookieName()); err == nil {
		cookieState = c.Value
	}
	http.SetCookie(w, s.stateDeletion())

	if e := q.Get("error"); e != "" {
		if state != "" {
			_, _ = s.store.takePending(ctx, state)
		}
		return "/", &ProviderError{Code: e, Description: q.Get("error_description")}
	}
	if state == "" || cookieState == "" || !tokens.Equal(state, cookieState) {
		return "/", ErrStateInvalid
	}

	p, err := s.store.takePending(ctx, state)
	if err != nil {
		return "/", err
	}
	if s.now().Sub(p.CreatedAt) > s.cfg.PendingTTL {
		return "/", ErrStateExpired
	}

	code := q.Get("code")
	if code == "" {
		return "/", ErrMissingCode
	}

	tok, err := s.provider.Exchange(ctx, code, p.Verifier)
	if err != nil {
		return "/", fmt.Errorf("%w: %v", ErrExchange, err)
	}
	claims, err := s.provider.VerifyIDToken(ctx, tok.IDToken, p.Nonce)
	if err != nil {
		return "/", fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if s.cfg.FetchUserInfo && tok.AccessToken != "" {
		info, err := s.provider.UserInfo(ctx, tok.AccessToken)
		switch {
		case err != nil:
			log.Warn("userinfo failed, using id_token claims", logger.Err(err))
		case info.Subject != claims.Subject:
			log.Warn("userinfo sub mismatch, ignoring")
		default:
			claims.Merge(info)
		}
	}

	sess := s.buildSession(claims, tok)

	// sesión previa (si había) se descarta: nuevo ID en cada login
	if old := s.sessionID(r); old != "" {
		_ = s.store.deleteSession(ctx, old)
	}
	id, err := tokens.GenerateOpaqueToken(32)
	if err != nil {
		return "/", err
	}
	if err := s.store.putSession(ctx, id, sess, s.cfg.Cookie.TTL); err != nil {
		return "/", err
	}
	http.SetCookie(w, s.cfg.Cookie.build(s.cfg.Cookie.Name, id, s.cfg.Cookie.TTL))

	log.Info("signed in", logger.UserID(sess.User.ID), logger.Email(util.MaskEmail(sess.Profile.Email)))
	return p.ReturnTo, nil
}

// SignOut borra la sesión y la cookie. Con federated sign-out y un
// end_session_endpoint disponible, devuelve esa URL; si no, "/".
func (s *Service) SignOut(ctx context.Context, w http.ResponseWriter, r *http.Request) (string, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("auth"), logger.Op("SignOut"))

	http.SetCookie(w, s.cfg.Cookie.deletion(s.cfg.Cookie.Name))

	id := s.sessionID(r)
	if id == "" {
		return "/", nil
	}

	var idToken string
	if s.cfg.FederatedSignOut {
		if sess, err := s.store.getSession(ctx, id); err == nil {
			idToken = sess.Account.IDToken
		}
	}
	if err := s.store.deleteSession(ctx, id); err != nil {
		return "/", err
	}
	log.Debug("session deleted")

	if idToken == "" {
		return "/", nil
	}
	u, err := s.provider.EndSessionURL(ctx, idToken, s.cfg.PublicURL+"/")
	if err != nil {
		log.Warn("end_session url unavailable", logger.Err(err))
		return "/", nil
	}
	if u == "" {
		return "/", nil
	}
	return u, nil
}

func (s *Service) buildSession(c *oidc.Claims, tok *oidc.Tokens) *Session {
	now := s.now()
	name := c.Name
	if name == "" {
		name = strings.TrimSpace(c.GivenName + " " + c.FamilyName)
	}
	var expiresAt int64
	if !tok.Expiry.IsZero() {
		expiresAt = tok.Expiry.Unix()
	}
	return &Session{
		Profile: Profile{
			Sub:               c.Subject,
			Name:              c.Name,
			GivenName:         c.GivenName,
			FamilyName:        c.FamilyName,
			PreferredUsername: c.PreferredUsername,
			Email:             c.Email,
			EmailVerified:     c.EmailVerified,
			Picture:           c.Picture,
			Locale:            c.Locale,
		},
		User: User{
			ID:    c.Subject,
			Name:  name,
			Email: c.Email,
			Image: c.Picture,
		},
		Account: Account{
			Provider:          s.cfg.ProviderName,
			Type:              "oidc",
			ProviderAccountID: c.Subject,
			AccessToken:       tok.AccessToken,
			RefreshToken:      tok.RefreshToken,
			IDToken:           tok.IDToken,
			TokenType:         tok.TokenType,
			Scope:             tok.Scope,
			ExpiresAt:         expiresAt,
		},
		Expires: now.Add(s.cfg.Cookie.TTL),
	}
}

// el state cookie tiene que viajar en el redirect top-level del proveedor,
// así que nunca es Strict
func (s *Service) stateCookie(state string) *http.Cookie {
	c := s.cfg.Cookie.build(s.cfg.Cookie.stateCookieName(), state, s.cfg.PendingTTL)
	if c.SameSite == http.SameSiteStrictMode {
		c.SameSite = http.SameSiteLaxMode
	}
	return c
}

func (s *Service) stateDeletion() *http.Cookie {
	c := s.cfg.Cookie.deletion(s.cfg.Cookie.stateCookieName())
	if c.SameSite == http.SameSiteStrictMode {
		c.SameSite = http.SameSiteLaxMode
	}
	return c
}
