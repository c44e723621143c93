// Package main is the entry point for the API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/pleszr/skyegpt/internal/agent"
	"github.com/pleszr/skyegpt/internal/config"
	"github.com/pleszr/skyegpt/internal/handler"
	"github.com/pleszr/skyegpt/internal/history"
	"github.com/pleszr/skyegpt/internal/middleware"
	"github.com/pleszr/skyegpt/internal/retriever"
	"github.com/pleszr/skyegpt/internal/service"
	"github.com/pleszr/skyegpt/internal/store"
	"github.com/pleszr/skyegpt/internal/stream"
	"github.com/pleszr/skyegpt/pkg/logger"
	"github.com/pleszr/skyegpt/pkg/tracing"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting API server")

	// Initialize tracing if enabled
	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "skyegpt", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// Connect to the conversation store
	natsStore, err := store.ConnectNATS(ctx, store.NATSConfig{
		URL:      cfg.NATSURL,
		CAFile:   cfg.NATSCAFile,
		CertFile: cfg.NATSCertFile,
		KeyFile:  cfg.NATSKeyFile,
		Token:    cfg.NATSToken,
	}, log)
	if err != nil {
		log.Error("failed to connect to NATS", zap.Error(err))
		os.Exit(1)
	}
	defer natsStore.Close()

	// History manager owns conversation documents
	historyManager := history.NewManager(natsStore, log)

	// Document retriever for the answer agent's search tool
	docRetriever := retriever.NewChromaRetriever(cfg.ChromaURL, cfg.RetrieverCollection, cfg.RetrieverResultCount)

	// Initialize producers
	var answers agent.AnswerProducer
	switch cfg.DefaultProvider {
	case "anthropic":
		answers, err = agent.NewAnthropicProducer(cfg.AnthropicAPIKey, cfg.ResponderModel, log)
	default:
		answers, err = agent.NewOpenAIProducer(cfg.OpenAIAPIKey, cfg.ResponderModel, docRetriever, historyManager, log)
	}
	if err != nil {
		log.Error("failed to create answer producer", zap.Error(err))
		os.Exit(1)
	}

	progress, err := agent.NewOpenAIProgressProducer(cfg.OpenAIAPIKey, cfg.ProgressModel)
	if err != nil {
		log.Error("failed to create progress producer", zap.Error(err))
		os.Exit(1)
	}

	// Initialize services
	multiplexer := stream.NewMultiplexer(answers, progress, historyManager, log)
	askSvc := service.NewAskService(multiplexer, log)
	aggregateSvc := service.NewAggregateService(answers, historyManager, log)
	conversationSvc := service.NewConversationService(historyManager, log)

	// Initialize handlers
	healthHandler := handler.NewHealthHandler(natsStore)
	askHandler := handler.NewAskHandler(askSvc, conversationSvc, log)
	evaluateHandler := handler.NewEvaluateHandler(aggregateSvc, conversationSvc, log)

	// Create router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"X-Correlation-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health endpoints
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	// Asker endpoints
	r.Route("/ask", func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		r.Post("/conversation", askHandler.CreateConversation)
		r.Get("/conversation/{id}", askHandler.GetConversation)
		r.Post("/response/stream", askHandler.StreamResponse)
		r.Post("/feedback", askHandler.CreateFeedback)
	})

	// Evaluator endpoints
	r.Route("/evaluate", func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		r.Post("/response", evaluateHandler.Response)
		r.Get("/conversations", evaluateHandler.Conversations)
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}
