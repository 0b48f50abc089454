// Package dashboard is the consumer side of the prediction service: an HTTP
// client, the input form options and the submit-and-log flow.
package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/heart-risk-service/internal/domain"
)

// ErrUnreachable reports that the prediction service could not be contacted
var ErrUnreachable = errors.New("prediction service unreachable")

// maxResponseBytes caps how much of a response body is read
const maxResponseBytes = 1 << 20

// HealthStatus is the body of GET /health
type HealthStatus struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
}

// Client calls the prediction service over HTTP
type Client struct {
	baseURL        string
	httpClient     *http.Client
	rateLimit      *rate.Limiter
	circuitBreaker *gobreaker.CircuitBreaker
	logger         *logrus.Logger
}

// CircuitBreakerConfig represents circuit breaker configuration
type CircuitBreakerConfig struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
}

// NormalizeBaseURL accepts either the service root or its /predict endpoint
// and returns the root without a trailing slash.
func NormalizeBaseURL(raw string) (string, error) {
	s := strings.TrimRight(strings.TrimSpace(raw), "/")
	s = strings.TrimSuffix(s, "/predict")
	s = strings.TrimRight(s, "/")

	u, err := url.Parse(s)
	if err != nil {
		return "", fmt.Errorf("invalid API URL %q: %v: %w", raw, err, domain.ErrConfiguration)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("invalid API URL %q: need http(s)://host[:port]: %w", raw, domain.ErrConfiguration)
	}
	return s, nil
}

// NewClient creates a new prediction service client
func NewClient(config domain.DashboardConfig, logger *logrus.Logger) (*Client, error) {
	return NewClientWithBreaker(config, CircuitBreakerConfig{}, logger)
}

// NewClientWithBreaker creates a client with explicit circuit breaker settings
func NewClientWithBreaker(config domain.DashboardConfig, cb CircuitBreakerConfig, logger *logrus.Logger) (*Client, error) {
	baseURL, err := NormalizeBaseURL(config.APIURL)
	if err != nil {
		return nil, err
	}

	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	limit := rate.Inf
	if config.RateLimit > 0 {
		limit = rate.Limit(config.RateLimit)
	}

	if cb.MaxRequests == 0 {
		cb.MaxRequests = 1
	}
	if cb.Interval == 0 {
		cb.Interval = time.Minute
	}
	if cb.Timeout == 0 {
		cb.Timeout = 15 * time.Second
	}
	if cb.FailureThreshold == 0 {
		cb.FailureThreshold = 5
	}

	cbSettings := gobreaker.Settings{
		Name:        "PredictionService",
		MaxRequests: cb.MaxRequests,
		Interval:    cb.Interval,
		Timeout:     cb.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cb.FailureThreshold
		},
		// rejected input says nothing about the health of the service
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, domain.ErrValidation)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"circuit_breaker": name,
				"from_state":      from.String(),
				"to_state":        to.String(),
			}).Warn("Circuit breaker state changed")
		},
	}

	return &Client{
		baseURL:        baseURL,
		httpClient:     &http.Client{Timeout: config.Timeout},
		rateLimit:      rate.NewLimiter(limit, 1),
		circuitBreaker: gobreaker.NewCircuitBreaker(cbSettings),
		logger:         logger,
	}, nil
}

// BaseURL returns the normalized service root
func (c *Client) BaseURL() string {
	return c.baseURL
}

// PredictURL returns the prediction endpoint
func (c *Client) PredictURL() string {
	return c.baseURL + "/predict"
}

// Predict sends features to the prediction service.
func (c *Client) Predict(ctx context.Context, features domain.Features) (*domain.PredictionResult, error) {
	payload, err := json.Marshal(features)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	var result domain.PredictionResult
	if err := c.execute(ctx, http.MethodPost, c.PredictURL(), payload, &result); err != nil {
		return nil, err
	}

	if result.Prediction != 0 && result.Prediction != 1 {
		return nil, fmt.Errorf("service returned prediction %d: %w", result.Prediction, domain.ErrPrediction)
	}
	return &result, nil
}

// Health queries the service health endpoint
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	var status HealthStatus
	if err := c.execute(ctx, http.MethodGet, c.baseURL+"/health", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *Client) execute(ctx context.Context, method, endpoint string, body []byte, out interface{}) error {
	if err := c.rateLimit.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait failed: %w", err)
	}

	_, err := c.circuitBreaker.Execute(func() (interface{}, error) {
		return nil, c.do(ctx, method, endpoint, body, out)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("could not connect to API at %s: %v: %w", endpoint, err, ErrUnreachable)
	}
	return err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body []byte, out interface{}) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("could not connect to API at %s: %v: %w", endpoint, err, ErrUnreachable)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("reading response: %v: %w", err, ErrUnreachable)
	}

	c.logger.WithFields(logrus.Fields{
		"method":      method,
		"url":         endpoint,
		"status":      resp.StatusCode,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Debug("Prediction service call")

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnprocessableEntity:
		return fmt.Errorf("API error: %d - %s: %w", resp.StatusCode, detail(data), domain.ErrValidation)
	case http.StatusServiceUnavailable:
		return fmt.Errorf("API error: %d - %s: %w", resp.StatusCode, detail(data), domain.ErrModelUnavailable)
	default:
		return fmt.Errorf("API error: %d - %s: %w", resp.StatusCode, detail(data), domain.ErrPrediction)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding response: %v: %w", err, domain.ErrPrediction)
	}
	return nil
}

// detail extracts the "detail" field of an error body, or the raw text.
func detail(data []byte) string {
	var body struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(data, &body); err == nil && len(body.Detail) > 0 {
		var s string
		if json.Unmarshal(body.Detail, &s) == nil {
			return s
		}
		return string(body.Detail)
	}
	return strings.TrimSpace(string(data))
}
