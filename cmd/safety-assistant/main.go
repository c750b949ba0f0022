package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/onshammemii/iso-26262-assistant-v2/internal/api"
	"github.com/onshammemii/iso-26262-assistant-v2/internal/completion"
	"github.com/onshammemii/iso-26262-assistant-v2/internal/config"
	"github.com/onshammemii/iso-26262-assistant-v2/internal/conversation"
	"github.com/onshammemii/iso-26262-assistant-v2/internal/engine"
	"github.com/onshammemii/iso-26262-assistant-v2/internal/retrieval"
	"github.com/onshammemii/iso-26262-assistant-v2/internal/sessionstore"
	"github.com/onshammemii/iso-26262-assistant-v2/internal/telemetry"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	cfg := config.Default()
	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP listen address")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to the session database")
	flag.StringVar(&cfg.RetrieverURL, "retriever-url", cfg.RetrieverURL, "Base URL of the vector search service")
	flag.StringVar(&cfg.Model, "model", cfg.Model, "Chat model identifier")
	flag.IntVar(&cfg.NumSources, "num-sources", cfg.NumSources, "Default passage count per query")
	flag.BoolVar(&cfg.Debug, "debug", cfg.Debug, "Enable debug logging")
	flag.Parse()

	cfg.GroqAPIKey = os.Getenv("GROQ_API_KEY")
	if v := os.Getenv("GROQ_BASE_URL"); v != "" {
		cfg.GroqBaseURL = v
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(2)
	}

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	logger, err := telemetry.InitLogger(cfg.Debug)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracer, meter, cleanup, err := telemetry.InitTelemetry(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer cleanup()

	sessions, err := sessionstore.OpenSQLite(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}
	defer sessions.Close()

	// Explicit startup phase: every collaborator the engine needs is
	// constructed here, before the server accepts a single request.
	retriever := retrieval.NewClient(cfg.RetrieverURL, tracer, meter)
	completer := completion.NewGroqClient(
		cfg.GroqAPIKey, cfg.GroqBaseURL, cfg.Model,
		cfg.Temperature, cfg.MaxTokens,
		tracer, meter,
	)
	eng := engine.New(retriever, completer, logger, tracer)
	store := conversation.NewStore(eng, logger)

	server := api.NewServer(store, sessions, cfg.NumSources, true, logger)

	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: server.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", cfg.Addr, "model", cfg.Model)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}
