package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/agrobot/internal/cli"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web chat server",
	Long:  `Serves the chat page, POST /get_response, the legacy POST /get endpoint, health, info, OpenAPI and metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		app, err := loadApp(ctx, cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		cfg := app.Config.Server
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.Addr = addr
		}

		handler, err := app.HTTPHandler()
		if err != nil {
			return err
		}

		srv := &http.Server{
			Addr:         cfg.Addr,
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		}

		info := app.Info()
		app.Logger.Info("Starting Agrobot server",
			"address", srv.Addr,
			"model", info.Model,
			"history_backend", info.History.Backend,
			"history_scope", info.History.Scope,
			"history_sync", info.History.Sync)

		return runServer(ctx, srv, cfg.ShutdownTimeout, app.Logger)
	},
}

// runServer serves until the listener fails or ctx is cancelled, then drains
// outstanding requests for at most timeout.
func runServer(ctx *cli.SignalContext, srv *http.Server, timeout time.Duration, logger *slog.Logger) error {
	// Channel to listen for errors coming from the listener.
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)

	case <-ctx.Done():
		if sig := ctx.Signal(); sig != nil {
			logger.Info("Start shutdown", "signal", sig.String())
		} else {
			logger.Info("Start shutdown")
		}

		// Give outstanding requests a deadline for completion.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Graceful shutdown did not complete", "timeout", timeout, "error", err)
			if err := srv.Close(); err != nil {
				return fmt.Errorf("error killing server: %w", err)
			}
		}
		logger.Info("Agrobot server stopped gracefully")
		return nil
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("addr", "a", "", "Address to listen on (overrides server.addr)")
}
