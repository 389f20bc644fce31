// Package auth contiene los controllers del flujo de login del navegador.
package auth

import (
	"context"
	"net/http"
	"net/url"

	authsvc "github.com/dropDatabas3/liberty-web/internal/auth"
	httperrors "github.com/dropDatabas3/liberty-web/internal/http/errors"
	"github.com/dropDatabas3/liberty-web/internal/metrics"
	"github.com/dropDatabas3/liberty-web/internal/observability/logger"
)

// Service es lo que los controllers necesitan de internal/auth.
type Service interface {
	SignIn(ctx context.Context, w http.ResponseWriter, r *http.Request, returnTo string) (string, error)
	Callback(ctx context.Context, w http.ResponseWriter, r *http.Request) (string, error)
	SignOut(ctx context.Context, w http.ResponseWriter, r *http.Request) (string, error)
}

// AuthController maneja /auth/signin, /auth/callback y /auth/signout.
type AuthController struct {
	service Service
}

func NewAuthController(service Service) *AuthController {
	return &AuthController{service: service}
}

// homeWithError arma "/?auth_error=<code>".
func homeWithError(code string) string {
	return "/?" + url.Values{"auth_error": {code}}.Encode()
}

// SignIn maneja POST /auth/signin
func (c *AuthController) SignIn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("AuthController.SignIn"))

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		httperrors.WriteHTML(w, httperrors.ErrMethodNotAllowed)
		return
	}

	authURL, err := c.service.SignIn(ctx, w, r, r.PostFormValue("return_to"))
	if err != nil {
		log.Error("sign-in start failed", logger.Err(err))
		metrics.SignInResult("server_error")
		http.Redirect(w, r, homeWithError("server_error"), http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, authURL, http.StatusSeeOther)
}

// Callback maneja GET /auth/callback (redirect del proveedor).
func (c *AuthController) Callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("AuthController.Callback"))

	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		httperrors.WriteHTML(w, httperrors.ErrMethodNotAllowed)
		return
	}

	returnTo, err := c.service.Callback(ctx, w, r)
	if err != nil {
		code := authsvc.ErrorCode(err)
		if code == "server_error" {
			log.Error("callback failed", logger.Err(err))
		} else {
			log.Warn("callback rejected", logger.String("auth_error", code), logger.Err(err))
		}
		metrics.SignInResult(code)
		http.Redirect(w, r, homeWithError(code), http.StatusFound)
		return
	}

	metrics.SignInResult("ok")
	http.Redirect(w, r, returnTo, http.StatusFound)
}

// SignOut maneja POST /auth/signout
func (c *AuthController) SignOut(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("AuthController.SignOut"))

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		httperrors.WriteHTML(w, httperrors.ErrMethodNotAllowed)
		return
	}

	to, err := c.service.SignOut(ctx, w, r)
	if err != nil {
		// la cookie ya se limpió; la sesión expira sola en el store
		log.Error("sign-out failed", logger.Err(err))
	}
	metrics.SignOut()
	http.Redirect(w, r, to, http.StatusSeeOther)
}
