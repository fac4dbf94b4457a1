package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/moviedata/internal/config"
	"github.com/JonMunkholm/moviedata/internal/web"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Serve POST /api/clean and POST /api/report, which run the cleaning
pipeline on an uploaded CSV, plus /healthz and /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.config
			if cmd.Flags().Changed("addr") {
				if err := applyAddr(&cfg.Server, addr); err != nil {
					return err
				}
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger := ctx.logger
			logger.Info("configuration loaded",
				"addr", cfg.Server.Addr(),
				"max_upload_size", cfg.Server.MaxUploadSize,
				"max_concurrent", cfg.Server.MaxConcurrent,
				"rate_limit_enabled", cfg.Rate.Enabled,
			)

			server := web.NewServer(cfg, logger)
			errCh := make(chan error, 1)
			go func() { errCh <- server.Start(runCtx) }()

			select {
			case err := <-errCh:
				return err
			case <-runCtx.Done():
			}

			logger.Info("shutting down...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown: %w", err)
			}
			if err := <-errCh; err != nil {
				return err
			}
			logger.Info("server stopped")
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address as host:port (overrides SERVER_HOST and SERVER_PORT)")
	return cmd
}

// applyAddr splits a host:port listen address into cfg.
func applyAddr(cfg *config.ServerConfig, addr string) error {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid --addr %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return fmt.Errorf("invalid --addr %q: port must be 1-65535", addr)
	}
	cfg.Host = host
	cfg.Port = port
	return nil
}
