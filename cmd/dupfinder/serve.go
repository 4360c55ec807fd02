package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/gcbaptista/go-dupfinder/api"
	"github.com/gcbaptista/go-dupfinder/config"
	"github.com/gcbaptista/go-dupfinder/internal/engine"
	"github.com/gcbaptista/go-dupfinder/internal/session"
)

const (
	shutdownTimeout      = 10 * time.Second
	sessionSweepInterval = 5 * time.Minute
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := loadSettings(cmd)
		if err != nil {
			return err
		}
		return serve(cmd.Context(), settings)
	},
}

func init() {
	serveCmd.Flags().String("config", "", "Path to a TOML config file")
	serveCmd.Flags().String("port", "", "Port to run the server on (overrides config)")
	serveCmd.Flags().String("data-dir", "", "Directory to store data (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

// loadSettings layers config file, environment and flags, in that order.
func loadSettings(cmd *cobra.Command) (config.Settings, error) {
	path, _ := cmd.Flags().GetString("config")
	settings, err := config.Load(path)
	if err != nil {
		return config.Settings{}, err
	}
	if err := settings.ApplyEnv(os.Getenv); err != nil {
		return config.Settings{}, err
	}
	if port, _ := cmd.Flags().GetString("port"); port != "" {
		settings.Server.Port = port
	}
	if dataDir, _ := cmd.Flags().GetString("data-dir"); dataDir != "" {
		settings.Server.DataDir = dataDir
	}

	if problems := settings.Validate(); len(problems) > 0 {
		return config.Settings{}, fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return settings, nil
}

func serve(ctx context.Context, settings config.Settings) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("Using data directory: %s", settings.Server.DataDir)
	eng, err := engine.Open(settings)
	if err != nil {
		return fmt.Errorf("failed to start engine: %w", err)
	}
	defer func() {
		if err := eng.Stop(); err != nil {
			log.Printf("Error stopping engine: %v", err)
		}
	}()

	router := gin.Default()
	router.Use(api.CORSMiddleware(), api.RequestSizeLimitMiddleware(settings.Server.MaxRequestSize))
	sessions := session.NewStore()
	sessions.StartCleanup(sessionSweepInterval, settings.Server.SessionIdleTimeout())
	defer sessions.Stop()
	api.SetupRoutes(router, eng, sessions)

	server := &http.Server{
		Addr:              ":" + settings.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting server on port %s...", settings.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Printf("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
