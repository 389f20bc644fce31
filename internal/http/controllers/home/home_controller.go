// Package home contiene el controller de la landing.
package home

import (
	"bytes"
	"context"
	"net/http"

	"github.com/dropDatabas3/liberty-web/internal/auth"
	httperrors "github.com/dropDatabas3/liberty-web/internal/http/errors"
	mw "github.com/dropDatabas3/liberty-web/internal/http/middlewares"
	"github.com/dropDatabas3/liberty-web/internal/observability/logger"
	"github.com/dropDatabas3/liberty-web/internal/web"
)

// SessionReader es la parte de auth que usa la página.
type SessionReader interface {
	Auth(ctx context.Context, r *http.Request) (*auth.Session, error)
}

// HomeController renderiza GET /.
type HomeController struct {
	sessions  SessionReader
	renderer  *web.Renderer
	signUpURL string
}

func NewHomeController(sessions SessionReader, renderer *web.Renderer, signUpURL string) *HomeController {
	return &HomeController{sessions: sessions, renderer: renderer, signUpURL: signUpURL}
}

// Home maneja GET /
func (c *HomeController) Home(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("HomeController.Home"))

	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		httperrors.WriteHTML(w, httperrors.ErrMethodNotAllowed)
		return
	}

	session, err := c.sessions.Auth(ctx, r)
	if err != nil {
		// store caído: la página se sirve como anónima
		log.Warn("session lookup failed", logger.Err(err))
		session = nil
	}

	// se renderiza entero antes de mandar el 200
	var buf bytes.Buffer
	err = c.renderer.Home(&buf, web.HomeView{
		Session:   session,
		SignUpURL: c.signUpURL,
		CSRFToken: mw.GetCSRFToken(ctx),
	})
	if err != nil {
		log.Error("render failed", logger.Err(err))
		httperrors.WriteHTML(w, httperrors.ErrInternalServerError.WithCause(err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
