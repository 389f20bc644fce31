// Package controllers agrupa los controllers HTTP por dominio.
//
// Flujo de inicialización (ver server.Build):
//
//  1. services (auth.Service, health.HealthService)
//  2. ctrls := controllers.New(deps)
//  3. router.New(router.Deps{Controllers: ctrls, ...})
package controllers

import (
	authsvc "github.com/dropDatabas3/liberty-web/internal/auth"
	"github.com/dropDatabas3/liberty-web/internal/http/controllers/auth"
	"github.com/dropDatabas3/liberty-web/internal/http/controllers/health"
	"github.com/dropDatabas3/liberty-web/internal/http/controllers/home"
	healthsvc "github.com/dropDatabas3/liberty-web/internal/http/services/health"
	"github.com/dropDatabas3/liberty-web/internal/web"
)

// Controllers agrupa todos los controllers.
type Controllers struct {
	Home   *home.HomeController
	Auth   *auth.AuthController
	Health *health.HealthController
}

// Deps son los services que consumen los controllers.
type Deps struct {
	Auth      *authsvc.Service
	Health    healthsvc.HealthService
	Renderer  *web.Renderer
	SignUpURL string
}

// New crea el agregador. Único lugar donde se instancian controllers.
func New(d Deps) *Controllers {
	return &Controllers{
		Home:   home.NewHomeController(d.Auth, d.Renderer, d.SignUpURL),
		Auth:   auth.NewAuthController(d.Auth),
		Health: health.NewHealthController(d.Health),
	}
}
