package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/eshaffer321/freight-reconcile/internal/api"
	"github.com/eshaffer321/freight-reconcile/internal/domain/matcher"
	"github.com/eshaffer321/freight-reconcile/internal/infrastructure/config"
	"github.com/eshaffer321/freight-reconcile/internal/infrastructure/logging"
)

// ServeFlags holds the CLI flags for the serve command.
type ServeFlags struct {
	Port int // 0 = use config
}

func newServeCommand(global *GlobalFlags) *cobra.Command {
	flags := &ServeFlags{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, global)
			if err != nil {
				return err
			}
			if global.Verbose {
				cfg.Observability.Logging.Level = "debug"
			}
			return RunServe(cfg, flags)
		},
	}

	cmd.Flags().IntVarP(&flags.Port, "port", "p", 0, "Port to listen on (overrides config)")

	return cmd
}

// RunServe runs the API server.
func RunServe(cfg *config.Config, flags *ServeFlags) error {
	logger := logging.NewLoggerWithSystem(cfg.Observability.Logging, "api")

	matcherCfg, err := cfg.Reconciliation.MatcherConfig()
	if err != nil {
		return err
	}

	// Initialize storage
	store, err := OpenStore(context.Background(), cfg.Storage, logging.NewLoggerWithSystem(cfg.Observability.Logging, "storage"))
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	apiCfg := api.Config{
		Port:           cfg.Server.Port,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		JWTSecret:      cfg.Auth.JWTSecret,
		RequestTimeout: cfg.Reconciliation.RequestTimeout,
	}
	if flags.Port != 0 {
		apiCfg.Port = flags.Port
	}
	if len(apiCfg.AllowedOrigins) == 0 {
		apiCfg.AllowedOrigins = api.DefaultConfig().AllowedOrigins
	}

	m := matcher.NewMatcher(matcherCfg, store, logging.NewLoggerWithSystem(cfg.Observability.Logging, "matcher"))
	server := api.NewServer(apiCfg, store, m, logger)

	// Handle graceful shutdown
	done := make(chan bool, 1)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		logger.Info("received shutdown signal")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error("server shutdown error", slog.Any("error", err))
		}
		close(done)
	}()

	// Start server (blocks until shutdown)
	if err := server.Start(); err != nil {
		return err
	}

	<-done
	logger.Info("server stopped")
	return nil
}
