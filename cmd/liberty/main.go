package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/liberty-web/internal/config"
	"github.com/dropDatabas3/liberty-web/internal/http/server"
	"github.com/dropDatabas3/liberty-web/internal/observability/logger"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "liberty",
		Short:         "Front de Django Liberty (landing + login OIDC)",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newEnvCmd(), newVersionCmd())
	return root
}

func newServeCmd() *cobra.Command {
	var (
		cfgPath string
		envFile string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Levanta el servidor HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(envFile); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "⚠️  no %s loaded (%v), using process environment\n", envFile, err)
			}

			// config.yaml es opcional salvo que se pase explícito
			if _, err := os.Stat(cfgPath); errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("config") {
				cfgPath = ""
			}
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			if cfg.App.Version == "" {
				cfg.App.Version = version
			}

			logger.Init(logger.Config{
				Env:         cfg.App.Env,
				Level:       cfg.Log.Level,
				ServiceName: "liberty-web",
				Version:     cfg.App.Version,
			})
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return server.Run(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&cfgPath, "config", "config.yaml", "ruta al config YAML (opcional)")
	cmd.Flags().StringVar(&envFile, "env-file", ".env", "ruta al .env (opcional)")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Imprime la versión",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}
