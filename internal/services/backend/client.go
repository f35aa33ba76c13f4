package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/amaumene/chansync/internal/config"
	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName = "github.com/amaumene/chansync/internal/services/backend"
	userAgent  = "chansync/1.0"

	// Error bodies are only read for the message
	maxErrorBody = 64 * 1024
)

// Client handles communication with the content backend
type Client struct {
	baseURL         string
	userEmail       string
	authToken       string
	retryMaxElapsed time.Duration
	httpClient      *http.Client
	tracer          trace.Tracer
	logger          *logrus.Logger
}

// NewClient creates a new backend API client
func NewClient(cfg *config.Config, logger *logrus.Logger) (*Client, error) {
	if cfg.APIBaseURL == "" {
		return nil, fmt.Errorf("backend base URL is required")
	}
	if _, err := url.Parse(cfg.APIBaseURL); err != nil {
		return nil, fmt.Errorf("invalid backend base URL: %w", err)
	}

	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL:         cfg.APIBaseURL,
		userEmail:       cfg.UserEmail,
		authToken:       cfg.AuthToken,
		retryMaxElapsed: cfg.RetryMaxElapsed,
		httpClient:      &http.Client{Timeout: timeout},
		tracer:          otel.Tracer(tracerName),
		logger:          logger,
	}, nil
}

// UserEmail returns the identity requests are issued for
func (c *Client) UserEmail() string {
	return c.userEmail
}

func (c *Client) newBackOff(ctx context.Context) backoff.BackOff {
	if c.retryMaxElapsed <= 0 {
		return backoff.WithContext(&backoff.StopBackOff{}, ctx)
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	b.MaxElapsedTime = c.retryMaxElapsed
	return backoff.WithContext(b, ctx)
}

// doRequest performs a JSON request against the backend, retrying transient
// network failures with exponential backoff
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, body interface{}, result interface{}) error {
	ctx, span := c.tracer.Start(ctx, method+" "+path, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", method),
		attribute.String("http.path", path),
	)

	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		payload = data
	}

	fullURL := c.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	attempt := 0
	operation := func() error {
		attempt++
		err := c.send(ctx, method, fullURL, payload, result)
		if err == nil {
			return nil
		}
		var netErr *NetworkError
		if errors.As(err, &netErr) && netErr.Transient() {
			return err
		}
		return backoff.Permanent(err)
	}

	notify := func(err error, wait time.Duration) {
		c.logger.WithFields(logrus.Fields{
			"method":  method,
			"path":    path,
			"attempt": attempt,
			"wait":    wait,
		}).WithError(err).Debug("Backend request failed, retrying")
	}

	err := backoff.RetryNotify(operation, c.newBackOff(ctx), notify)
	span.SetAttributes(attribute.Int("http.attempts", attempt))
	if err != nil {
		if errors.Is(err, context.Canceled) {
			err = fmt.Errorf("%s %s cancelled: %w", method, path, err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// send performs a single attempt
func (c *Client) send(ctx context.Context, method, fullURL string, payload []byte, result interface{}) error {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	c.logger.WithFields(logrus.Fields{
		"method": method,
		"url":    fullURL,
	}).Debug("Making backend request")

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyTransportError(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &NetworkError{
			Kind:       NetworkServer,
			StatusCode: resp.StatusCode,
			Message:    serverMessage(bodyBytes),
		}
	}

	if result == nil {
		return nil
	}

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return classifyTransportError(ctx, err)
	}
	if len(bytes.TrimSpace(bodyBytes)) == 0 {
		return nil
	}
	if err := json.Unmarshal(bodyBytes, result); err != nil {
		return &DecodeError{Path: req.URL.Path, Err: err}
	}

	return nil
}
