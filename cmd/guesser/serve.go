package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/antoniostano/guesser/internal/app"
)

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the game over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := build(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer cleanup(res)
			if addr == "" {
				addr = res.Config.BindAddr
			}
			return serve(res, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides APP_BIND_ADDR)")
	return cmd
}

func serve(res *app.BuildResult, addr string) error {
	logger := res.Logger
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           res.API.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()
	res.Sessions.StartJanitor(runCtx, 5*time.Second)

	listenErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErr <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-listenErr:
		return err
	case <-sigCh:
		logger.Info().Msg("shutdown signal received")
	}

	runCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), res.Config.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("graceful shutdown failed")
		_ = httpServer.Close()
	}

	logger.Info().Msg("shutdown complete")
	return nil
}
