/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package introspection

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/acronis/go-appkit/log"

	"github.com/acronis/go-authfilter/internal/idputil"
	"github.com/acronis/go-authfilter/internal/metrics"
)

// ClientOpts is a set of options for creating Client.
type ClientOpts struct {
	// HTTPClient is an HTTP client for doing requests to the introspection endpoint.
	// If not set, a client with retryable transport and default timeout is used.
	HTTPClient *http.Client

	// Authorization is a value of the "Authorization" header
	// that will be sent with each introspection request (e.g. "Basic <credentials>").
	Authorization string

	// LoggerProvider is a function that provides a logger for logging errors and debug information.
	LoggerProvider func(ctx context.Context) log.FieldLogger

	// PrometheusLibInstanceLabel is a label for Prometheus metrics.
	// It allows distinguishing metrics from different instances of the same library.
	PrometheusLibInstanceLabel string
}

// Client performs token introspection (RFC 7662) via HTTP.
// A single POST with a form-encoded body ("token=<token>") is issued per call,
// no retries are done at this level.
type Client struct {
	endpoint       string
	authorization  string
	httpClient     *http.Client
	loggerProvider func(ctx context.Context) log.FieldLogger
	promMetrics    *metrics.PrometheusMetrics
}

// NewClient creates a new Client for the given introspection endpoint URL.
func NewClient(endpoint string) (*Client, error) {
	return NewClientWithOpts(endpoint, ClientOpts{})
}

// NewClientWithOpts creates a new Client for the given introspection endpoint URL with options.
// See ClientOpts for more details.
func NewClientWithOpts(endpoint string, opts ClientOpts) (*Client, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("introspection endpoint is required")
	}
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return nil, fmt.Errorf("parse introspection endpoint URL: %w", err)
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = idputil.MakeDefaultHTTPClient(idputil.DefaultHTTPRequestTimeout, opts.LoggerProvider)
	}
	return &Client{
		endpoint:       endpoint,
		authorization:  opts.Authorization,
		httpClient:     opts.HTTPClient,
		loggerProvider: opts.LoggerProvider,
		promMetrics:    metrics.GetPrometheusMetrics(opts.PrometheusLibInstanceLabel, metrics.SourceIntrospectionClient),
	}, nil
}

// IntrospectToken introspects the given token.
// A transport-level failure is returned as *ClientError,
// a syntactically invalid response body as *NonParsableResponseError.
// A non-200 response is interpreted as an inactive token verdict.
func (c *Client) IntrospectToken(ctx context.Context, token string) (Result, error) {
	logger := idputil.GetLoggerFromProvider(ctx, c.loggerProvider)

	formEncoded := url.Values{"token": {token}}.Encode()
	req, err := http.NewRequest(http.MethodPost, c.endpoint, strings.NewReader(formEncoded))
	if err != nil {
		// The token is always serializable, so this path signals a logic defect, not a runtime condition.
		return Result{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if c.authorization != "" {
		req.Header.Set("Authorization", c.authorization)
	}

	startTime := time.Now()
	resp, err := c.httpClient.Do(req.WithContext(ctx))
	elapsed := time.Since(startTime)
	if err != nil {
		c.promMetrics.ObserveHTTPClientRequest(http.MethodPost, c.endpoint, 0, elapsed, metrics.HTTPRequestErrorDo)
		return Result{}, &ClientError{Inner: err, Endpoint: c.endpoint}
	}
	defer func() {
		if closeBodyErr := resp.Body.Close(); closeBodyErr != nil {
			logger.Error(fmt.Sprintf("closing response body error for POST %s", c.endpoint), log.Error(closeBodyErr))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		c.promMetrics.ObserveHTTPClientRequest(
			http.MethodPost, c.endpoint, resp.StatusCode, elapsed, metrics.HTTPRequestErrorUnexpectedStatusCode)
		logger.AtLevel(log.LevelDebug, func(logFunc log.LogFunc) {
			logFunc(fmt.Sprintf("introspection endpoint responded with code %d, token is treated as inactive",
				resp.StatusCode))
		})
		return Result{Active: false}, nil
	}

	var res Result
	if err = json.NewDecoder(resp.Body).Decode(&res); err != nil {
		c.promMetrics.ObserveHTTPClientRequest(
			http.MethodPost, c.endpoint, resp.StatusCode, elapsed, metrics.HTTPRequestErrorDecodeBody)
		return Result{}, &NonParsableResponseError{Inner: err, Endpoint: c.endpoint}
	}

	c.promMetrics.ObserveHTTPClientRequest(http.MethodPost, c.endpoint, resp.StatusCode, elapsed, "")
	return res, nil
}
