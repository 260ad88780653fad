package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/chriszimbizi/study-buddy/internal/api"
	"github.com/chriszimbizi/study-buddy/internal/assistant"
	"github.com/chriszimbizi/study-buddy/internal/config"
	"github.com/chriszimbizi/study-buddy/internal/core"
	"github.com/chriszimbizi/study-buddy/internal/store"
	"github.com/chriszimbizi/study-buddy/internal/web"
)

func main() {
	// Load configuration. A missing credential is fatal before any UI
	// action is reachable.
	if err := config.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}
	cfg := config.AppConfig

	// Setup logging
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// Initialize session storage
	var dbStore store.Storage
	if cfg.UseInMemoryStore {
		logger.Info("Using in-memory session store")
		dbStore = store.NewMemoryStorage()
	} else {
		logger.Info("Using SQLite session store", zap.String("path", cfg.DatabaseURL))
		dbStore, err = store.NewSQLiteStore(cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("Failed to initialize database", zap.Error(err))
		}
	}
	defer dbStore.Close()

	// Assistant manager over the OpenAI Assistants API
	client := openai.NewClient(cfg.OpenAIAPIKey)
	manager := assistant.NewManager(client, assistant.Options{
		Model:            cfg.AssistantModel,
		Name:             cfg.AssistantName,
		Instructions:     cfg.AssistantInstructions,
		AllowedFileTypes: cfg.AllowedFileTypes,
		MaxUploadBytes:   cfg.MaxUploadBytes,
		PollInterval:     cfg.RunPollInterval,
		RunTimeout:       cfg.RunTimeout,
	}, logger.Named("assistant"))

	// Session service
	sessionService := core.NewSessionService(dbStore, manager, logger.Named("session"))

	// Embedded UI
	ui, err := web.New()
	if err != nil {
		logger.Fatal("Failed to load embedded UI", zap.Error(err))
	}

	// API handler and router
	apiHandler := api.NewAPIHandler(sessionService, cfg.MaxUploadBytes, logger.Named("api"))
	router := api.NewRouter(apiHandler, ui, logger.Named("http"))

	// Start HTTP server
	serverAddr := fmt.Sprintf(":%s", cfg.HTTPPort)

	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		// Message posts block for the whole assistant run, so the write
		// timeout has to outlast the run timeout.
		WriteTimeout: cfg.RunTimeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown handling
	go func() {
		logger.Info("Starting server", zap.String("addr", serverAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Could not listen", zap.String("addr", serverAddr), zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	// Give active connections time to finish.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exiting gracefully")
}

func newLogger(level string) (*zap.Logger, error) {
	if level == "DEBUG" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
