// Package health contiene el service para health checks.
package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	dto "github.com/dropDatabas3/liberty-web/internal/http/dto/health"
	"github.com/dropDatabas3/liberty-web/internal/observability/logger"
)

// HealthService define las operaciones de health check.
type HealthService interface {
	Check(ctx context.Context) dto.HealthResponse
}

// Deps contiene las dependencias inyectables para el health service.
type Deps struct {
	// CacheCheck es crítico: sin cache no hay sesiones.
	CacheCheck func(ctx context.Context) error
	// OIDCCheck no es crítico: la página se sirve igual, sólo no se puede loguear.
	OIDCCheck func(ctx context.Context) error
	Version   string
	Timeout   time.Duration
}

type healthService struct {
	deps Deps
}

// NewHealthService crea un nuevo service de health check.
func NewHealthService(deps Deps) HealthService {
	if deps.Timeout <= 0 {
		deps.Timeout = 2 * time.Second
	}
	return &healthService{deps: deps}
}

const componentHealth = "health"

func (s *healthService) Check(ctx context.Context) dto.HealthResponse {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component(componentHealth),
		logger.Op("Check"),
	)

	response := dto.HealthResponse{
		Components: make(map[string]dto.HealthStatus),
		Timestamp:  time.Now().UTC(),
		Version:    s.deps.Version,
	}

	ctx, cancel := context.WithTimeout(ctx, s.deps.Timeout)
	defer cancel()

	var (
		mu       sync.Mutex
		cacheErr error
		oidcErr  error
	)
	record := func(name string, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			response.Components[name] = dto.HealthStatus{Status: "error", Message: fmt.Sprintf("unavailable: %v", err)}
			return
		}
		response.Components[name] = dto.HealthStatus{Status: "ok"}
	}

	// los checks corren en paralelo; los errores se registran, no cortan el grupo
	var g errgroup.Group
	if s.deps.CacheCheck != nil {
		g.Go(func() error {
			cacheErr = s.deps.CacheCheck(ctx)
			record("cache", cacheErr)
			return nil
		})
	} else {
		cacheErr = fmt.Errorf("cache not initialized")
		record("cache", cacheErr)
	}
	if s.deps.OIDCCheck != nil {
		g.Go(func() error {
			oidcErr = s.deps.OIDCCheck(ctx)
			record("oidc", oidcErr)
			return nil
		})
	} else {
		mu.Lock()
		response.Components["oidc"] = dto.HealthStatus{Status: "disabled"}
		mu.Unlock()
	}
	_ = g.Wait()

	switch {
	case cacheErr != nil:
		response.Status = "unavailable"
		log.Error("cache unavailable", logger.Err(cacheErr))
	case oidcErr != nil:
		response.Status = "degraded"
		log.Warn("oidc provider unavailable", logger.Err(oidcErr))
	default:
		response.Status = "ready"
	}
	return response
}
