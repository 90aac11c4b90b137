package server

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	middleware "github.com/tejusbharadwaj/reservoir/internal/grpc/middlewares"
)

// ServerConfig holds configuration options for the gRPC server
type ServerConfig struct {
	RateLimit      float64 // Requests per second
	RateLimitBurst int     // Maximum burst size for rate limiting
	Logger         *logrus.Logger
	Registerer     prometheus.Registerer
}

// DefaultServerConfig returns a ServerConfig with sensible defaults
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		RateLimit:      5.0, // 5 requests per second
		RateLimitBurst: 10,  // Burst of 10 requests
		Logger:         logrus.StandardLogger(),
	}
}

// SetupServer initializes and configures the gRPC server with all middleware
// and registers health on it.
func SetupServer(health *HealthChecker, config ServerConfig) (*grpc.Server, error) {
	if health == nil {
		return nil, fmt.Errorf("health checker is required")
	}
	if config.RateLimit <= 0 || config.RateLimitBurst <= 0 {
		return nil, fmt.Errorf("invalid rate limit %v/%d", config.RateLimit, config.RateLimitBurst)
	}
	if config.Logger == nil {
		config.Logger = logrus.StandardLogger()
	}

	metrics := middleware.NewMetrics(config.Registerer)
	limiter := rate.NewLimiter(rate.Limit(config.RateLimit), config.RateLimitBurst)

	// Create server with chained interceptors
	server := grpc.NewServer(
		grpc.UnaryInterceptor(
			chainUnaryInterceptors(
				middleware.ContextMiddleware,                    // Add request ID first
				middleware.NewRateLimitingInterceptor(limiter),  // Rate limit early
				middleware.NewLoggingInterceptor(config.Logger), // Log all requests (with request ID)
				middleware.NewMetricsInterceptor(metrics),       // Collect metrics
			),
		),
	)

	grpc_health_v1.RegisterHealthServer(server, health)
	reflection.Register(server)

	return server, nil
}

// chainUnaryInterceptors creates a single interceptor from multiple interceptors
func chainUnaryInterceptors(interceptors ...grpc.UnaryServerInterceptor) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		chain := handler
		for i := len(interceptors) - 1; i >= 0; i-- {
			interceptor := interceptors[i]
			chainedInterceptor := chain
			chain = func(currentCtx context.Context, currentReq interface{}) (interface{}, error) {
				return interceptor(currentCtx, currentReq, info, chainedInterceptor)
			}
		}
		return chain(ctx, req)
	}
}
