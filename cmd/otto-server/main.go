// Package main provides the HTTP server for the OTTO assistant backend.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vimathss/otto-backend/internal/agent"
	"github.com/vimathss/otto-backend/internal/config"
	"github.com/vimathss/otto-backend/internal/knowledge"
	"github.com/vimathss/otto-backend/internal/llm"
	"github.com/vimathss/otto-backend/internal/memory"
	"github.com/vimathss/otto-backend/internal/metrics"
	"github.com/vimathss/otto-backend/internal/server"
	"github.com/vimathss/otto-backend/internal/tools"
)

func main() {
	cfg := config.Load()

	logger, closeLogger := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	slog.SetDefault(logger)
	defer func() {
		if err := closeLogger(); err != nil {
			slog.Error("failed to close log file", "error", err)
		}
	}()

	slog.Info("starting otto-server", "port", cfg.Port,
		"llm_provider", cfg.LLMProvider, "llm_model", cfg.LLMModel)

	collector := metrics.NewCollector()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	generator, err := llm.NewGenerator(ctx, cfg, collector)
	if err != nil {
		cancel()
		slog.Error("failed to create generator", "error", err)
		os.Exit(1)
	}
	embedder, err := llm.NewEmbedder(ctx, cfg, collector)
	cancel()
	if err != nil {
		slog.Error("failed to create embedder", "error", err)
		os.Exit(1)
	}

	manager, err := knowledge.NewManager(cfg.StoreDir, embedder, collector)
	if err != nil {
		slog.Error("failed to open knowledge store", "error", err)
		os.Exit(1)
	}

	store, err := memory.Open(cfg.DataDir, cfg.MaxTurns, collector)
	if err != nil {
		slog.Error("failed to open conversation store", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Error("failed to close conversation store", "error", err)
		}
	}()

	chatAgent := agent.New(generator, manager, store, agent.Options{
		MaxContextMessages: cfg.MaxContextMessages,
		SearchLimit:        cfg.SearchLimit,
		RelevanceThreshold: cfg.RelevanceThreshold,
	})

	handler := server.NewHandler(server.Deps{
		Agent:      chatAgent,
		Essay:      tools.NewEssayTool(generator, manager),
		LessonPlan: tools.NewLessonPlanTool(generator),
		Adapt:      tools.NewAdaptTool(generator),
		Collector:  collector,
	})

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 120 * time.Second, // Long for LLM responses
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}
	slog.Info("stopped")
}
