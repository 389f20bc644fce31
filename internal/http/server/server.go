// Package server arma el handler y corre el http.Server con apagado ordenado.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/liberty-web/internal/config"
	"github.com/dropDatabas3/liberty-web/internal/observability/logger"
	"github.com/dropDatabas3/liberty-web/internal/util"
)

// Run levanta el servidor y bloquea hasta que ctx se cancela o el listener falla.
func Run(ctx context.Context, cfg *config.Config) error {
	log := logger.L().With(logger.Component("server"))

	handler, cleanup, err := BuildHandler(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := cleanup(); err != nil {
			log.Warn("cleanup error", logger.Err(err))
		}
	}()

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadTimeout:       cfg.ReadTimeout(),
		ReadHeaderTimeout: cfg.ReadTimeout(),
		WriteTimeout:      cfg.WriteTimeout(),
	}
	return serve(ctx, srv, cfg)
}

func serve(ctx context.Context, srv *http.Server, cfg *config.Config) error {
	log := logger.L().With(logger.Component("server"))
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("listening",
			logger.String("addr", srv.Addr),
			logger.String("public_url", cfg.Server.PublicURL),
			logger.String("issuer", util.MaskURL(cfg.OIDC.Issuer)),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(sctx)
	})

	return g.Wait()
}
