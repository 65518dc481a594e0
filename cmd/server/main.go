// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

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

	httpAdapter "github.com/leseb/bedrock-gw/pkg/adapters/http"
	"github.com/leseb/bedrock-gw/pkg/app"
	"github.com/leseb/bedrock-gw/pkg/core/config"
	"github.com/leseb/bedrock-gw/pkg/observability/logging"
)

var (
	// Version is set via ldflags during build
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	port := flag.Int("port", 0, "HTTP port to listen on (overrides config and PORT)")
	version := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *version {
		fmt.Printf("Bedrock Gateway Server\nVersion: %s\nBuild Time: %s\n", Version, BuildTime)
		os.Exit(0)
	}

	// A missing .env file is not an error.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath, os.LookupEnv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}

	logger := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	logger.Info("Starting Bedrock Gateway Server",
		"version", Version,
		"build_time", BuildTime)

	initCtx, cancelInit := context.WithTimeout(context.Background(), time.Minute)
	components, err := app.New(initCtx, cfg, logger.Logger)
	cancelInit()
	if err != nil {
		logger.Error("Failed to initialize", "error", err)
		os.Exit(1)
	}
	defer components.Close(context.Background())

	handler := httpAdapter.New(httpAdapter.Services{
		Text:      components.Text,
		Images:    components.Images,
		Embedder:  components.Embedder,
		Vectors:   components.Vectors,
		RAG:       components.RAG,
		Models:    components.Models,
		Artifacts: components.Artifacts,
	}, logger, httpAdapter.Options{MaxUploadBytes: cfg.Server.MaxUploadBytes})
	logger.Info("Initialized HTTP adapter")

	addr := cfg.Server.Addr()
	srv := &http.Server{
		Addr:        addr,
		Handler:     handler,
		ReadTimeout: cfg.Server.Timeout,
		// Streamed generations may outlive a fixed write deadline.
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server listening", "address", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errCh:
		logger.Error("Server error", "error", err)
		components.Close(context.Background())
		os.Exit(1)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	logger.Info("Server stopped gracefully")
}
