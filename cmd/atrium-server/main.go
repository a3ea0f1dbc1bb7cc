// Package main provides the entry point for the Atrium agent server.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/atrium-ai/atrium/internal/agent"
	"github.com/atrium-ai/atrium/internal/config"
	"github.com/atrium-ai/atrium/internal/history"
	"github.com/atrium-ai/atrium/internal/logging"
	"github.com/atrium-ai/atrium/internal/memory"
	"github.com/atrium-ai/atrium/internal/provider"
	"github.com/atrium-ai/atrium/internal/server"
	"github.com/atrium-ai/atrium/internal/session"
)

var (
	port      = flag.Int("port", 0, "Server port (overrides config)")
	directory = flag.String("directory", "", "Working directory")
	version   = flag.Bool("version", false, "Print version and exit")
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
)

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("atrium-server %s (%s)\n", Version, BuildTime)
		os.Exit(0)
	}

	// A missing .env is fine; explicit environment still applies.
	godotenv.Load()

	workDir := *directory
	if workDir == "" {
		var err error
		workDir, err = os.Getwd()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to get working directory: %v\n", err)
			os.Exit(1)
		}
	}

	cfg, err := config.Load(workDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}

	logging.Init(logging.Config{
		Level:  logging.ParseLevel(cfg.LogLevel),
		Pretty: true,
	})
	logging.Info().Str("version", Version).Str("workDir", workDir).Msg("starting atrium server")

	dbPath := cfg.Database.Path
	if dbPath == "" {
		dbPath = "atrium.db"
	}

	store, err := session.Open(dbPath)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to open session store")
	}
	defer store.Close()

	hist, err := history.Open(dbPath)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to open history store")
	}
	defer hist.Close()

	ctx := context.Background()
	openai, err := provider.NewOpenAIProvider(ctx, cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to initialize completion backend")
	}

	mem := memory.New(cfg.Memory.APIKey, cfg.Memory.BaseURL)
	runner := agent.NewRunner(openai, store, hist, mem, cfg)
	coordinator := session.NewCoordinator(cfg.AppName, store, hist, runner)

	srv := server.New(cfg, coordinator, hist)

	go func() {
		logging.Info().Int("port", cfg.Server.Port).Msg("server listening")
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logging.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logging.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("server shutdown error")
	}

	logging.Info().Msg("server stopped")
}
