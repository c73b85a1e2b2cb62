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
	"go.uber.org/zap"

	"sportclassifier/internal/server"
)

const shutdownTimeout = 10 * time.Second

func NewServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP prediction gateway",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}
			defer log.Sync()

			srv, err := server.New(cmd.Context(), cfg, log.Desugar())
			if err != nil {
				log.Errorf("Failed to create server: %v", err)
				return err
			}

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(quit)

			log.Infof("Starting server on %s:%s", cfg.Server.Host, cfg.Server.Port)
			err = runUntilSignal(srv, quit, log)
			log.Info("Server exited")
			return err
		},
	}
}

type runner interface {
	Run() error
	Shutdown(ctx context.Context) error
}

// runUntilSignal serves until a signal arrives or Run fails. Shutdown runs on both
// paths so the model and the record store are always released.
func runUntilSignal(srv runner, quit <-chan os.Signal, log *zap.SugaredLogger) error {
	serveErr := make(chan error, 1)
	go func() {
		if err := srv.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	var runErr error
	select {
	case sig := <-quit:
		log.Infof("Received signal: %v. Shutting down gracefully...", sig)
	case runErr = <-serveErr:
		log.Errorf("Server failed: %v", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Server forced to shutdown: %v", err)
	}

	return runErr
}
