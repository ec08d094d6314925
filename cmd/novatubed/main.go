// cmd/novatubed/main.go
// Package main implements the entry point for the NovaTube service.
// It initializes all components and starts the HTTP server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/RegistryAccord/registryaccord-novatube-go/internal/ai"
	"github.com/RegistryAccord/registryaccord-novatube-go/internal/app"
	"github.com/RegistryAccord/registryaccord-novatube-go/internal/cache"
	"github.com/RegistryAccord/registryaccord-novatube-go/internal/catalog"
	"github.com/RegistryAccord/registryaccord-novatube-go/internal/config"
	"github.com/RegistryAccord/registryaccord-novatube-go/internal/event"
	"github.com/RegistryAccord/registryaccord-novatube-go/internal/media"
	"github.com/RegistryAccord/registryaccord-novatube-go/internal/metrics"
	"github.com/RegistryAccord/registryaccord-novatube-go/internal/schema"
	"github.com/RegistryAccord/registryaccord-novatube-go/internal/server"
	"github.com/RegistryAccord/registryaccord-novatube-go/internal/studio"
	"github.com/RegistryAccord/registryaccord-novatube-go/internal/telemetry"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// summaryCacheEntries bounds the L1 summary cache.
const summaryCacheEntries = 1000

// main is the entry point for the NovaTube service.
// It initializes all components, starts the HTTP server, and handles graceful shutdown.
func main() {
	// Load configuration from environment variables
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	// Configure structured logging for the application
	logLevel := slog.LevelInfo
	if cfg.Env == "dev" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Initialize OpenTelemetry
	if cfg.TraceStdout {
		if _, err := telemetry.InitTracer(telemetry.ServiceName, version); err != nil {
			logger.Error("failed to initialize OpenTelemetry tracer", "error", err)
			os.Exit(1)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			telemetry.ShutdownTracer(ctx)
		}()
	}

	m := metrics.NewMetrics()

	// Generative collaborator (Gemini or offline fallbacks)
	var gen ai.Generator = ai.Offline{}
	if cfg.AIAPIKey != "" {
		gemini, err := ai.NewGeminiGenerator(context.Background(), cfg.AIAPIKey, cfg.AIModel)
		if err != nil {
			logger.Warn("gemini client unavailable, running offline", "error", err)
		} else {
			gen = gemini
			logger.Info("generative collaborator enabled", "model", cfg.AIModel)
		}
	} else {
		logger.Info("NOVA_AI_API_KEY not set, running with offline fallbacks")
	}
	validator, err := schema.NewValidator()
	if err != nil {
		logger.Error("failed to compile response schemas", "error", err)
		os.Exit(1)
	}
	aiOpts := ai.DefaultOptions
	aiOpts.RequestsPerSecond = cfg.AIRequestsPerSecond
	collab := ai.NewCollaborator(gen, validator, m, aiOpts)

	// Summary cache (L1 memory, optional L2 Redis)
	summaries := cache.New(cfg.RedisURL, cfg.CacheTTL, summaryCacheEntries, m)
	defer summaries.Close()

	// Initialize event publisher (NATS JetStream or no-op)
	pub := event.NewPublisher(cfg.NATSURL, m)
	defer pub.Close() // Ensure publisher is closed on exit

	// Video uploads go to S3 when a bucket is configured
	var uploader studio.Uploader = media.SimulatedUploader{}
	if cfg.S3Bucket != "" {
		s3Client, err := media.NewS3Client(cfg.S3Endpoint, cfg.S3Region, cfg.S3Bucket, cfg.S3AccessKey, cfg.S3SecretKey)
		if err != nil {
			logger.Error("failed to initialize S3 client", "error", err)
			os.Exit(1)
		}
		uploader = s3Client
		logger.Info("S3 uploads enabled", "bucket", cfg.S3Bucket)
	}

	controller := app.New(catalog.MockItems(), app.Deps{
		Collaborator:  collab,
		Uploader:      uploader,
		Cache:         summaries,
		Events:        pub,
		Metrics:       m,
		SearchTimeout: cfg.SearchTimeout,
	})

	// Create HTTP mux with all handlers and middleware
	mux := server.NewMux(controller, server.Options{
		MaxMediaSize:       cfg.MaxMediaSize,
		AllowedMimeTypes:   cfg.AllowedMimeTypes,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		Metrics:            m,
		Ready:              summaries.Ping,
	})

	// Create HTTP server with timeout configuration
	addr := fmt.Sprintf(":%s", cfg.Port)
	// Reads cover media attachments; writes cover the slowest collaborator round trip
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: writeTimeout(cfg.SearchTimeout, aiOpts),
	}

	// Start server in a separate goroutine
	go func() {
		logger.Info("server starting", "addr", addr, "env", cfg.Env, "version", version)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	// Handle graceful shutdown
	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
		os.Exit(1)
	}

	// Drop any in-flight draft or upload, release temporary media references and
	// flush pending catalog events
	controller.Close()

	logger.Info("server exited")
}

// writeTimeout bounds a response by the longer of the search deadline and a full
// collaborator call, plus a margin for encoding the reply.
func writeTimeout(searchTimeout time.Duration, opts ai.Options) time.Duration {
	return max(searchTimeout, opts.Budget()) + 10*time.Second
}
