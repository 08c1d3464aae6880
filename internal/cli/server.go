package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"pyquest-gamification/internal/scheduler"
	transport "pyquest-gamification/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the HTTP API and scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	deps, err := bootstrap(ctx, configPath)
	if err != nil {
		return err
	}
	defer deps.Close()
	cfg, log, service := deps.cfg, deps.log, deps.service

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}

	if cfg.Challenge.Generate {
		if _, _, err := service.GenerateToday(ctx, false); err != nil {
			log.Warn("initial challenge generation failed", "error", err)
		}
		loc, _ := cfg.Location()
		sched := scheduler.New(service, loc, cfg.Challenge.CutoffHour, false, log.With("component", "scheduler"))
		if err := sched.Start(); err != nil {
			return err
		}
		defer sched.Stop()
	}

	handler := transport.NewHandler(service, log.With("component", "http"), nil)
	ws := transport.NewWSHandler(service.Leaderboard, log.With("component", "ws"))
	auth := transport.NewAuthenticator(cfg.Auth.JWTSecret, nil)
	if cfg.Auth.JWTSecret == "" {
		log.Warn("auth.jwt_secret not set; trusting X-User-ID header")
	}

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      transport.NewRouter(handler, ws, auth),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info("starting gamification service", "port", finalPort, "store", cfg.Store.Driver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("failed to start server", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down server")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
