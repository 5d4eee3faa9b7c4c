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
	"golang.org/x/sync/errgroup"

	// --- OpenTelemetry imports ---
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/AleutianAI/Patchbay/cmd/patchbay/config"
	"github.com/AleutianAI/Patchbay/pkg/logging"
	"github.com/AleutianAI/Patchbay/pkg/ux"
	"github.com/AleutianAI/Patchbay/services/patchbay"
	"github.com/AleutianAI/Patchbay/services/patchbay/observability"
	"github.com/AleutianAI/Patchbay/services/patchbay/routes"
)

// initTracer wires the OTLP trace exporter. The env var wins over the
// configured endpoint so container deployments can point at a collector
// without editing the config file.
func initTracer(endpoint string) (func(context.Context), error) {
	ctx := context.Background()

	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otelEndpoint == "" {
		otelEndpoint = endpoint
	}
	if otelEndpoint == "" {
		otelEndpoint = "localhost:4317"
	}
	conn, err := grpc.NewClient(otelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("patchbay-service")))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.
		TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

// newCommandLogger builds the logger every command shares, honoring the
// persistent cli overrides on top of the config file.
func newCommandLogger(cfg config.PatchbayConfig) *logging.Logger {
	level := cfg.Logging.GetLevel()
	if logLevel != "" {
		level = logLevel
	}
	return logging.New(logging.Config{
		Level:   logging.ParseLevel(level),
		LogDir:  cfg.Logging.Dir,
		Service: "patchbay",
		JSON:    logJSON || cfg.Logging.JSON,
	})
}

func runServe(cmd *cobra.Command, args []string) {
	cfg := config.Global

	logger := newCommandLogger(cfg)
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	if cfg.Telemetry.Enabled {
		cleanup, err := initTracer(cfg.Telemetry.Endpoint)
		if err != nil {
			ux.Errorf("Failed to set up the OTLP tracer: %v", err)
			os.Exit(1)
		}
		defer cleanup(context.Background())
	}

	if cfg.Storage.PresetDir != "" {
		if err := os.MkdirAll(cfg.Storage.PresetDir, 0755); err != nil {
			logger.Warn("could not create the preset directory", "dir", cfg.Storage.PresetDir, "error", err)
		}
	}

	metrics := observability.New(prometheus.DefaultRegisterer)

	svc, err := patchbay.New(patchbay.Config{
		SampleRate:   cfg.Audio.GetSampleRate(),
		HistoryLimit: cfg.Audio.GetHistoryLimit(),
		ProjectDir:   cfg.Storage.ProjectDir,
		PresetDir:    cfg.Storage.PresetDir,
		Metrics:      metrics,
		Log:          logger,
	})
	if err != nil {
		ux.Errorf("Failed to assemble the service: %v", err)
		os.Exit(1)
	}
	defer svc.Close()

	host := cfg.Server.GetHost()
	if serveHost != "" {
		host = serveHost
	}
	port := cfg.Server.GetPort()
	if servePort > 0 {
		port = servePort
	}
	addr := fmt.Sprintf("%s:%d", host, port)

	router := gin.Default()
	router.Use(otelgin.Middleware("patchbay-service"))
	routes.SetupRoutes(router, svc)

	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)

	// Preset hot reload is best effort; a missing directory downgrades to
	// built-ins only rather than refusing to serve.
	if err := svc.Presets.Watch(gCtx); err != nil {
		logger.Warn("preset watching disabled", "error", err)
	}

	g.Go(func() error {
		logger.Info("patchbay listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second*5)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		ux.Errorf("Server exited with an error: %v", err)
		os.Exit(1)
	}
	ux.Success("Patchbay stopped cleanly")
}
