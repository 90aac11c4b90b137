package middleware

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

var info = &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}

// Mock handler to simulate gRPC handler behavior.
func mockHandler(ctx context.Context, req interface{}) (interface{}, error) {
	return "response-" + req.(string), nil
}

func TestContextMiddleware(t *testing.T) {
	var seen string
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		seen = RequestIDFromContext(ctx)
		return nil, nil
	}

	_, err := ContextMiddleware(context.Background(), "req", info, handler)
	require.NoError(t, err)
	assert.Len(t, seen, 36)

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(RequestIDHeader, "abc-123"))
	_, err = ContextMiddleware(ctx, "req", info, handler)
	require.NoError(t, err)
	assert.Equal(t, "abc-123", seen)

	assert.Empty(t, RequestIDFromContext(context.Background()))
}

func TestRateLimitingInterceptor(t *testing.T) {
	interceptor := NewRateLimitingInterceptor(rate.NewLimiter(rate.Every(time.Hour), 2))

	for i := 0; i < 2; i++ {
		resp, err := interceptor(context.Background(), "a", info, mockHandler)
		require.NoError(t, err)
		assert.Equal(t, "response-a", resp)
	}

	_, err := interceptor(context.Background(), "a", info, mockHandler)
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))
}

func TestMetricsInterceptor(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	interceptor := NewMetricsInterceptor(m)

	_, err := interceptor(context.Background(), "a", info, mockHandler)
	require.NoError(t, err)

	failing := func(ctx context.Context, req interface{}) (interface{}, error) {
		return nil, status.Error(codes.NotFound, "unknown service")
	}
	_, err = interceptor(context.Background(), "a", info, failing)
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("Check", "OK")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("Check", "NotFound")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.Latency))
}

func TestLoggingInterceptor(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.DebugLevel)

	interceptor := NewLoggingInterceptor(logger)
	ctx := context.WithValue(context.Background(), requestIDKey, "req-1")

	resp, err := interceptor(ctx, "a", info, mockHandler)
	require.NoError(t, err)
	assert.Equal(t, "response-a", resp)
	assert.Contains(t, buf.String(), `"request_id":"req-1"`)
	assert.Contains(t, buf.String(), `"method":"/grpc.health.v1.Health/Check"`)

	buf.Reset()
	boom := errors.New("boom")
	_, err = interceptor(ctx, "a", info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, buf.String(), `"level":"warning"`)
	assert.Contains(t, buf.String(), `"code":"Unknown"`)
}
