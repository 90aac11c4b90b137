package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"google.golang.org/grpc"

	"github.com/tejusbharadwaj/reservoir/internal/aggregator"
	"github.com/tejusbharadwaj/reservoir/internal/api"
	"github.com/tejusbharadwaj/reservoir/internal/config"
	server "github.com/tejusbharadwaj/reservoir/internal/grpc"
	"github.com/tejusbharadwaj/reservoir/internal/rest"
	"github.com/tejusbharadwaj/reservoir/internal/scheduler"
	"github.com/tejusbharadwaj/reservoir/internal/stream"
)

// Command reservoir polls the level sensor of a reservoir and serves its
// state.
//
// The service provides:
//   - A background poll of the remote telemetry API (default every 4 minutes)
//   - GET /api/v1/snapshot and GET /api/v1/history over HTTP
//   - Live snapshots over a websocket at /ws
//   - Prometheus metrics at /metrics
//   - The standard gRPC health service, NOT_SERVING while there is no signal
//
// Usage:
//
//	reservoir [flags]
//
// The flags are:
//
//	--config string
//	      path to config file (default "config.yaml")
//	--log-level string
//	      log level (debug, info, warn, error)
//	--port int
//	      HTTP server port (default 8080)
//	--grpc-port int
//	      gRPC health server port (default 50051)
//	--poll-interval duration
//	      interval between background polls (default 4m)
//
// Every setting can also be given as an environment variable, for example
// RESERVOIR_API_PASSWORD.
func main() {
	flags := pflag.NewFlagSet("reservoir", pflag.ExitOnError)
	configPath := flags.String("config", "config.yaml", "path to config file")
	config.RegisterFlags(flags)
	_ = flags.Parse(os.Args[1:])

	// Load configuration
	appConfig, err := config.Load(*configPath, flags)
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := newLogger(appConfig.Logging)
	if err != nil {
		logrus.Fatalf("Failed to configure logging: %v", err)
	}

	location, err := appConfig.Site.Location()
	if err != nil {
		logger.Fatalf("Failed to load site timezone: %v", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// Create a context that will be canceled on shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize components
	client, err := api.NewClient(api.ClientConfig{
		BaseURL:        appConfig.API.BaseURL,
		Username:       appConfig.API.Username,
		Password:       appConfig.API.Password,
		DeviceID:       appConfig.API.DeviceID,
		RateLimit:      appConfig.API.RateLimit,
		RateLimitBurst: appConfig.API.RateLimitBurst,
		CacheSize:      appConfig.API.CacheSize,
	}, api.WithLogger(logger), api.WithMetrics(api.NewMetrics(registry)))
	if err != nil {
		logger.Fatalf("Failed to create telemetry client: %v", err)
	}

	// A failed login is not fatal; the first poll renews on 401.
	if err := client.Authenticate(ctx); err != nil {
		logger.WithError(err).Warn("Initial authentication failed")
	}

	agg := aggregator.New(client, aggregator.Config{
		User:      appConfig.Site.User,
		SiteLabel: appConfig.Site.Label,
		Location:  location,
	}, aggregator.WithLogger(logger))

	hub := stream.NewHub(logger)
	go hub.Run(ctx)

	health := server.NewHealthChecker()

	poller := scheduler.NewScheduler(agg, appConfig.Poll.Interval, logger,
		scheduler.WithSinks(hub, health),
		scheduler.WithRegisterer(registry),
	)

	// Create and setup gRPC server
	grpcServer, err := server.SetupServer(health, server.ServerConfig{
		RateLimit:      appConfig.Server.RateLimit,
		RateLimitBurst: appConfig.Server.RateLimitBurst,
		Logger:         logger,
		Registerer:     registry,
	})
	if err != nil {
		logger.Fatalf("Failed to setup gRPC server: %v", err)
	}

	httpServer := &http.Server{
		Addr: net.JoinHostPort(appConfig.Server.Host, fmt.Sprint(appConfig.Server.Port)),
		Handler: rest.NewRouter(agg, http.HandlerFunc(hub.ServeWS), rest.Config{
			Location:       location,
			MaxRange:       appConfig.Server.MaxRange,
			RateLimit:      appConfig.Server.RateLimit,
			RateLimitBurst: appConfig.Server.RateLimitBurst,
			Logger:         logger,
			Registerer:     registry,
			Gatherer:       registry,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	grpcListener, err := net.Listen("tcp", net.JoinHostPort(appConfig.Server.Host, fmt.Sprint(appConfig.Server.GRPCPort)))
	if err != nil {
		logger.Fatalf("Failed to listen: %v", err)
	}

	// Start background services
	errChan := make(chan error, 2)

	if err := poller.Start(); err != nil {
		logger.Fatalf("Failed to start scheduler: %v", err)
	}

	go func() {
		logger.WithField("addr", grpcListener.Addr().String()).Info("Starting gRPC server")
		if err := grpcServer.Serve(grpcListener); err != nil {
			errChan <- fmt.Errorf("grpc server error: %w", err)
		}
	}()

	go func() {
		logger.WithField("addr", httpServer.Addr).Info("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// Wait for a signal or any error
	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case err := <-errChan:
		logger.WithError(err).Error("Service error")
	}

	shutdown(logger, poller, httpServer, grpcServer, health, stop)
}

// shutdown stops the poller first so no snapshot is published into a
// closing hub, then drains both servers.
func shutdown(
	logger *logrus.Logger,
	poller *scheduler.Scheduler,
	httpServer *http.Server,
	grpcServer *grpc.Server,
	health *server.HealthChecker,
	cancel context.CancelFunc,
) {
	logger.Info("Gracefully stopping services...")

	poller.Stop()
	health.Shutdown()

	ctx, done := context.WithTimeout(context.Background(), 15*time.Second)
	defer done()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.WithError(err).Warn("HTTP server shutdown incomplete")
	}

	grpcServer.GracefulStop()

	// Stops the websocket hub.
	cancel()
	logger.Info("Services stopped")
}

func newLogger(cfg config.LoggingConfig) (*logrus.Logger, error) {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	logger.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "", "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	return logger, nil
}
