/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package authfilter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/acronis/go-appkit/log"
	"github.com/vasayxtx/go-glob"

	"github.com/acronis/go-authfilter/internal/idputil"
	"github.com/acronis/go-authfilter/introspection"
)

// DenyReason describes why the filter denied a request.
type DenyReason string

// Deny reasons. NoToken, InactiveToken, ExpiredToken and NotYetActive are security denials;
// ClientError, NonParsableResponse and Unexpected are filter-level (infrastructure) failures.
const (
	DenyReasonNoToken             DenyReason = "noToken"
	DenyReasonInactiveToken       DenyReason = "inactiveToken"
	DenyReasonExpiredToken        DenyReason = "expiredToken"
	DenyReasonNotYetActive        DenyReason = "notYetActive"
	DenyReasonClientError         DenyReason = "clientError"
	DenyReasonNonParsableResponse DenyReason = "nonParsableResponse"
	DenyReasonUnexpected          DenyReason = "unexpected"
)

// Outcome is the filter's decision for a single request.
// Exactly one Outcome is produced per request.
type Outcome struct {
	// Allow reports whether the request may proceed to the upstream.
	Allow bool

	// Reason is set when Allow is false.
	Reason DenyReason

	// Token is the extracted token. It is empty when Reason is DenyReasonNoToken.
	Token string

	// Verdict is the introspection verdict the decision was based on.
	// It is zero when the verdict could not be obtained.
	Verdict introspection.Result

	// Err carries the underlying error for infrastructure failures.
	Err error
}

// InfrastructureFailure reports whether the denial is a filter malfunction
// rather than a security decision. It lets operators alert on authority outages
// separately from legitimate auth rejections.
func (o Outcome) InfrastructureFailure() bool {
	switch o.Reason {
	case DenyReasonClientError, DenyReasonNonParsableResponse, DenyReasonUnexpected:
		return true
	}
	return false
}

// TokenIntrospector is an interface for introspecting tokens.
type TokenIntrospector interface {
	IntrospectToken(ctx context.Context, token string) (introspection.Result, error)
}

// Filter makes allow/deny decisions for incoming requests
// based on token introspection verdicts.
type Filter struct {
	extractor               TokenExtractor
	introspector            TokenIntrospector
	unprotectedPathMatchers []func(string) bool
}

type filterOptions struct {
	extractor                  TokenExtractor
	introspector               TokenIntrospector
	loggerProvider             func(ctx context.Context) log.FieldLogger
	prometheusLibInstanceLabel string
}

// FilterOption is an option for creating Filter.
type FilterOption func(options *filterOptions)

// WithFilterTokenExtractor is an option to set a custom token extractor for Filter.
func WithFilterTokenExtractor(extractor TokenExtractor) FilterOption {
	return func(options *filterOptions) {
		options.extractor = extractor
	}
}

// WithFilterTokenIntrospector is an option to set a custom token introspector for Filter.
// When it is used, cfg.Introspection and cfg.VerdictCache are ignored.
func WithFilterTokenIntrospector(introspector TokenIntrospector) FilterOption {
	return func(options *filterOptions) {
		options.introspector = introspector
	}
}

// WithFilterLoggerProvider is an option to set a logger provider for Filter.
func WithFilterLoggerProvider(loggerProvider func(ctx context.Context) log.FieldLogger) FilterOption {
	return func(options *filterOptions) {
		options.loggerProvider = loggerProvider
	}
}

// WithFilterPrometheusLibInstanceLabel is an option to set a label for Prometheus metrics
// that are used by Filter.
func WithFilterPrometheusLibInstanceLabel(label string) FilterOption {
	return func(options *filterOptions) {
		options.prometheusLibInstanceLabel = label
	}
}

// New creates a new Filter with the given configuration.
// If cfg.VerdictCache.Enabled is true, introspection.CachingClient is used,
// otherwise - introspection.Client.
func New(cfg *Config, opts ...FilterOption) (*Filter, error) {
	options := filterOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	extractor := options.extractor
	if extractor == nil {
		extractor = NewTokenExtractor(cfg.TokenExtractor)
	}

	introspector := options.introspector
	if introspector == nil {
		var err error
		if introspector, err = newIntrospectorForConfig(cfg, options); err != nil {
			return nil, err
		}
	}

	matchers := make([]func(string) bool, 0, len(cfg.UnprotectedPaths))
	for _, pattern := range cfg.UnprotectedPaths {
		matchers = append(matchers, glob.Compile(pattern))
	}

	return &Filter{
		extractor:               extractor,
		introspector:            introspector,
		unprotectedPathMatchers: matchers,
	}, nil
}

func newIntrospectorForConfig(cfg *Config, options filterOptions) (TokenIntrospector, error) {
	clientOpts := introspection.ClientOpts{
		HTTPClient:                 idputil.MakeDefaultHTTPClient(time.Duration(cfg.HTTPClient.RequestTimeout), options.loggerProvider),
		Authorization:              cfg.Introspection.Authorization,
		LoggerProvider:             options.loggerProvider,
		PrometheusLibInstanceLabel: options.prometheusLibInstanceLabel,
	}
	if cfg.VerdictCache.Enabled {
		cachingClient, err := introspection.NewCachingClientWithOpts(cfg.Introspection.Endpoint, introspection.CachingClientOpts{
			ClientOpts: clientOpts,
			Cache: introspection.VerdictCacheOpts{
				MaxEntries: cfg.VerdictCache.MaxEntries,
				DefaultTTL: time.Duration(cfg.VerdictCache.DefaultTTL),
			},
		})
		if err != nil {
			return nil, fmt.Errorf("new caching introspection client: %w", err)
		}
		return cachingClient, nil
	}
	client, err := introspection.NewClientWithOpts(cfg.Introspection.Endpoint, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("new introspection client: %w", err)
	}
	return client, nil
}

// Decide runs the filtering state machine for the request and returns exactly one Outcome.
// The request is never mutated. A request with no token never reaches the network.
func (f *Filter) Decide(r *http.Request) Outcome {
	for _, match := range f.unprotectedPathMatchers {
		if match(r.URL.Path) {
			return Outcome{Allow: true}
		}
	}

	token := f.extractor.ExtractToken(r)
	if token == "" {
		return Outcome{Reason: DenyReasonNoToken}
	}

	verdict, err := f.introspector.IntrospectToken(r.Context(), token)
	if err != nil {
		var clientError *introspection.ClientError
		if errors.As(err, &clientError) {
			return Outcome{Reason: DenyReasonClientError, Token: token, Err: err}
		}
		var nonParsableResponseError *introspection.NonParsableResponseError
		if errors.As(err, &nonParsableResponseError) {
			return Outcome{Reason: DenyReasonNonParsableResponse, Token: token, Err: err}
		}
		return Outcome{Reason: DenyReasonUnexpected, Token: token, Err: err}
	}

	// A single captured instant keeps the temporal checks consistent
	// even if they straddle a clock tick.
	now := time.Now()

	if !verdict.Active {
		return Outcome{Reason: DenyReasonInactiveToken, Token: token, Verdict: verdict}
	}
	if verdict.ExpiresAt != nil && now.After(verdict.ExpiresAt.Time) {
		return Outcome{Reason: DenyReasonExpiredToken, Token: token, Verdict: verdict}
	}
	if verdict.NotBefore != nil && now.Before(verdict.NotBefore.Time) {
		return Outcome{Reason: DenyReasonNotYetActive, Token: token, Verdict: verdict}
	}

	return Outcome{Allow: true, Token: token, Verdict: verdict}
}
