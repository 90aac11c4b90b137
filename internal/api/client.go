package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/tejusbharadwaj/reservoir/internal/models"
)

var (
	ErrAuthentication = errors.New("authentication failed")
	ErrTransport      = errors.New("error making telemetry request")
	ErrTimeout        = errors.New("telemetry request timed out")
	ErrStatus         = errors.New("error status from telemetry API")
	ErrMalformed      = errors.New("malformed telemetry response")
	ErrInvalidRange   = errors.New("invalid range")
)

const (
	opLatest = "latest"
	opRange  = "range"
	opLogin  = "login"

	// LatestTTL and RangeTTL bound how long a response is served from cache.
	LatestTTL = 30 * time.Second
	RangeTTL  = 60 * time.Second

	seriesKey       = "ia"
	maxResponseSize = 10 << 20
)

// ClientConfig holds the remote endpoint, credentials and client limits.
type ClientConfig struct {
	BaseURL        string
	Username       string
	Password       string
	DeviceID       string
	RateLimit      float64
	RateLimitBurst int
	CacheSize      int
}

// Client reads the loop current of a single device from the remote telemetry
// API. It owns the session token and the response cache; all methods are safe
// for concurrent use.
type Client struct {
	baseURL  string
	deviceID string
	username string
	password string

	// authMu serializes logins; mu guards token.
	authMu sync.Mutex
	mu     sync.Mutex
	token  string

	cache   *responseCache
	point   *http.Client
	ranged  *http.Client
	limiter *rate.Limiter
	clock   Clock
	logger  *logrus.Logger
	metrics *Metrics
}

// Option customizes a Client.
type Option func(*Client)

func WithLogger(logger *logrus.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

func WithMetrics(m *Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

func WithClock(clock Clock) Option {
	return func(c *Client) { c.clock = clock }
}

// WithTimeouts replaces the default point and range timeouts.
func WithTimeouts(point, ranged Timeouts) Option {
	return func(c *Client) {
		c.point = newHTTPClient(point)
		c.ranged = newHTTPClient(ranged)
	}
}

func NewClient(cfg ClientConfig, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" || cfg.DeviceID == "" {
		return nil, fmt.Errorf("base url and device id are required")
	}

	limit := rate.Limit(cfg.RateLimit)
	if cfg.RateLimit <= 0 {
		limit = rate.Inf
	}
	burst := cfg.RateLimitBurst
	if burst <= 0 {
		burst = 1
	}

	c := &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		deviceID: cfg.DeviceID,
		username: cfg.Username,
		password: cfg.Password,
		point:    newHTTPClient(PointTimeouts),
		ranged:   newHTTPClient(RangeTimeouts),
		limiter:  rate.NewLimiter(limit, burst),
		clock:    realClock{},
		logger:   logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = NewMetrics(nil)
	}

	size := cfg.CacheSize
	if size <= 0 {
		size = 128
	}
	cache, err := newResponseCache(size, c.clock)
	if err != nil {
		return nil, err
	}
	c.cache = cache

	return c, nil
}

// Authenticate exchanges the credentials for a bearer token. On failure the
// previously held token is kept.
func (c *Client) Authenticate(ctx context.Context) error {
	c.authMu.Lock()
	defer c.authMu.Unlock()
	return c.login(ctx)
}

// FetchLatest returns the most recent sample. ok is false when no data is
// available for any reason.
func (c *Client) FetchLatest(ctx context.Context) (sample models.RawSample, ok bool) {
	endpoint := c.seriesURL(url.Values{"keys": {seriesKey}})

	samples, err := c.cachedFetch(ctx, cacheKey{operation: opLatest}, LatestTTL, c.point, endpoint)
	if err != nil || len(samples) == 0 {
		return models.RawSample{}, false
	}
	return samples[len(samples)-1], true
}

// FetchRange returns the samples between start and end in ascending order.
// The boundaries are widened to whole minutes. Failures yield an empty slice.
func (c *Client) FetchRange(ctx context.Context, start, end time.Time) []models.RawSample {
	from := start.Truncate(time.Minute)
	to := end.Truncate(time.Minute)
	if to.Before(end) {
		to = to.Add(time.Minute)
	}
	if to.Before(from) {
		return []models.RawSample{}
	}

	interval := aggregationInterval(to.Sub(from))
	endpoint := c.seriesURL(url.Values{
		"keys":     {seriesKey},
		"startTs":  {strconv.FormatInt(from.UnixMilli(), 10)},
		"endTs":    {strconv.FormatInt(to.UnixMilli(), 10)},
		"agg":      {"AVG"},
		"interval": {strconv.FormatInt(interval.Milliseconds(), 10)},
		"limit":    {strconv.FormatInt(int64(to.Sub(from)/interval)+1, 10)},
	})

	key := cacheKey{operation: opRange, start: from.UnixMilli(), end: to.UnixMilli()}
	samples, err := c.cachedFetch(ctx, key, RangeTTL, c.ranged, endpoint)
	if err != nil {
		return []models.RawSample{}
	}
	return samples
}

// aggregationInterval picks the remote averaging interval for a span so the
// returned series stays small without losing the resolution of its bucket.
func aggregationInterval(span time.Duration) time.Duration {
	switch {
	case span <= 24*time.Hour:
		return time.Minute
	case span <= 30*24*time.Hour:
		return time.Hour
	default:
		return 24 * time.Hour
	}
}

func (c *Client) seriesURL(query url.Values) string {
	return fmt.Sprintf("%s/telemetry/%s/values/timeseries?%s",
		c.baseURL, url.PathEscape(c.deviceID), query.Encode())
}

func (c *Client) cachedFetch(
	ctx context.Context,
	key cacheKey,
	ttl time.Duration,
	httpClient *http.Client,
	endpoint string,
) ([]models.RawSample, error) {
	if samples, ok := c.cache.get(key); ok {
		c.metrics.CacheLookups.WithLabelValues(key.operation, "hit").Inc()
		return samples, nil
	}
	c.metrics.CacheLookups.WithLabelValues(key.operation, "miss").Inc()

	samples, err := c.fetch(ctx, key.operation, httpClient, endpoint)
	if err != nil {
		c.logger.WithFields(logrus.Fields{
			"operation": key.operation,
			"error":     err,
		}).Warn("Telemetry fetch failed, reporting no data")
		return nil, err
	}

	// An abandoned call must not leave its result behind.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.cache.add(key, samples, ttl)
	return samples, nil
}

// fetch performs an authenticated GET, renewing the token and retrying once
// when the API answers 401.
func (c *Client) fetch(
	ctx context.Context,
	operation string,
	httpClient *http.Client,
	endpoint string,
) ([]models.RawSample, error) {
	token := c.currentToken()

	resp, err := c.get(ctx, operation, httpClient, endpoint, token)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		drain(resp)
		c.logger.WithField("operation", operation).Info("Telemetry API rejected token, renewing")

		if err := c.renew(ctx, token); err != nil {
			return nil, err
		}

		resp, err = c.get(ctx, operation, httpClient, endpoint, c.currentToken())
		if err != nil {
			return nil, err
		}
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: got %d", ErrStatus, resp.StatusCode)
	}

	var payload models.TelemetryResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if payload.IA == nil {
		return nil, fmt.Errorf("%w: missing %q series", ErrMalformed, seriesKey)
	}

	samples := make([]models.RawSample, len(payload.IA))
	for i, p := range payload.IA {
		samples[i] = models.RawSample{
			Time:    time.UnixMilli(p.TS),
			ValueMA: float64(p.Value),
		}
	}
	sort.SliceStable(samples, func(i, j int) bool {
		return samples[i].Time.Before(samples[j].Time)
	})

	return samples, nil
}

func (c *Client) get(
	ctx context.Context,
	operation string,
	httpClient *http.Client,
	endpoint string,
	token string,
) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return c.do(ctx, operation, httpClient, req)
}

// do sends req through the outbound limiter and records metrics.
func (c *Client) do(
	ctx context.Context,
	operation string,
	httpClient *http.Client,
	req *http.Request,
) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}

	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)

	start := time.Now()
	resp, err := httpClient.Do(req)
	c.metrics.Latency.WithLabelValues(operation).Observe(time.Since(start).Seconds())

	if err != nil {
		c.metrics.Requests.WithLabelValues(operation, "error").Inc()
		c.logger.WithFields(logrus.Fields{
			"operation":  operation,
			"request_id": requestID,
			"error":      err,
		}).Debug("Telemetry request failed")
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}

	c.metrics.Requests.WithLabelValues(operation, strconv.Itoa(resp.StatusCode)).Inc()
	c.logger.WithFields(logrus.Fields{
		"operation":  operation,
		"request_id": requestID,
		"status":     resp.StatusCode,
	}).Debug("Telemetry request completed")

	return resp, nil
}

// renew logs in again unless another caller already replaced the token that
// was rejected.
func (c *Client) renew(ctx context.Context, rejected string) error {
	c.authMu.Lock()
	defer c.authMu.Unlock()

	if current := c.currentToken(); current != "" && current != rejected {
		return nil
	}
	return c.login(ctx)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// login must be called with authMu held.
func (c *Client) login(ctx context.Context) error {
	body, err := json.Marshal(loginRequest{Username: c.username, Password: c.password})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAuthentication, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/login", bytes.NewReader(body))
	if err != nil {
		return c.loginFailed(fmt.Errorf("%w: %v", ErrAuthentication, err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.do(ctx, opLogin, c.point, req)
	if err != nil {
		return c.loginFailed(fmt.Errorf("%w: %v", ErrAuthentication, err))
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusOK {
		return c.loginFailed(fmt.Errorf("%w: got %d", ErrAuthentication, resp.StatusCode))
	}

	var payload loginResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&payload); err != nil {
		return c.loginFailed(fmt.Errorf("%w: %v", ErrAuthentication, err))
	}
	if payload.Token == "" {
		return c.loginFailed(fmt.Errorf("%w: empty token", ErrAuthentication))
	}

	c.mu.Lock()
	c.token = payload.Token
	c.mu.Unlock()

	c.metrics.Logins.WithLabelValues("success").Inc()
	c.logger.Info("Authenticated against telemetry API")
	return nil
}

func (c *Client) loginFailed(err error) error {
	c.metrics.Logins.WithLabelValues("failure").Inc()
	c.logger.WithError(err).Error("Telemetry API login failed")
	return err
}

func (c *Client) currentToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))
	resp.Body.Close()
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
