// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/Stentelligence/services/llm"
	"github.com/AleutianAI/Stentelligence/services/policy_engine"
	"github.com/AleutianAI/Stentelligence/services/stencil"
	"github.com/AleutianAI/Stentelligence/services/stencil/config"
	"github.com/AleutianAI/Stentelligence/services/stencil/interpret"
	"github.com/AleutianAI/Stentelligence/services/stencil/observability"
	"github.com/AleutianAI/Stentelligence/services/stencil/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the stencil HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := newLogger(cfg.Logging, cfg.Telemetry.ServiceName)
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: stencil.ServiceVersion,
		TraceExporter:  cfg.Telemetry.Exporter,
		MetricExporter: cfg.Telemetry.MetricExporter,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure:   cfg.Telemetry.Insecure,
		Registerer:     prometheus.DefaultRegisterer,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			logger.Warn("Telemetry shutdown failed", "error", err)
		}
	}()

	client, err := llm.NewClient(cfg.LLM)
	if err != nil {
		return fmt.Errorf("create llm client: %w", err)
	}
	backend := cfg.LLM.Backend
	if client == nil {
		backend = llm.BackendNone
		logger.Info("No LLM backend configured, prompts use the local parser")
	}

	screener, err := policy_engine.NewPolicyEngine()
	if err != nil {
		return fmt.Errorf("load prompt policy: %w", err)
	}
	opts := []interpret.Option{interpret.WithScreener(screener)}
	if cfg.Server.InterpretRPS > 0 {
		burst := cfg.Server.InterpretBurst
		if burst < 1 {
			burst = 1
		}
		opts = append(opts, interpret.WithLimiter(rate.NewLimiter(rate.Limit(cfg.Server.InterpretRPS), burst)))
	}

	store := config.NewThresholdStore(cfg.Thresholds)
	if configPath != "" {
		watcher, err := config.NewWatcher(configPath, store, logger.Slog())
		if err != nil {
			logger.Warn("Config hot reload disabled", "error", err)
		} else if err := watcher.Start(ctx); err != nil {
			logger.Warn("Config hot reload disabled", "error", err)
			watcher.Stop()
		} else {
			defer watcher.Stop()
		}
	}

	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)
	svc := stencil.NewService(stencil.ServiceConfig{
		Thresholds:  store,
		Interpreter: interpret.New(client, logger.Slog(), opts...),
		Metrics:     metrics,
		LLMBackend:  backend,
		Logger:      logger.Slog(),
	})
	router := stencil.NewRouter(stencil.NewHandlers(svc), stencil.RouterConfig{
		ServiceName:  cfg.Telemetry.ServiceName,
		MaxBodyBytes: int64(cfg.Server.MaxUploadMB) << 20,
		Metrics:      metrics,
		Gatherer:     prometheus.DefaultGatherer,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting stencil server",
			"address", srv.Addr,
			"version", stencil.ServiceVersion,
			"llm_backend", backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down stencil server")
	timeout := cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
