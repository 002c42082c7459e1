/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package authfilter

import (
	"fmt"
	"net/url"
	"time"

	"github.com/acronis/go-appkit/config"

	"github.com/acronis/go-authfilter/internal/idputil"
	"github.com/acronis/go-authfilter/introspection"
)

const cfgDefaultKeyPrefix = "authFilter"

const (
	cfgKeyHTTPClientRequestTimeout   = "httpClient.requestTimeout"
	cfgKeyIntrospectionEndpoint      = "introspection.endpoint"
	cfgKeyIntrospectionAuthorization = "introspection.authorization"
	cfgKeyTokenExtractorHeader       = "tokenExtractor.header"
	cfgKeyTokenExtractorScheme       = "tokenExtractor.scheme"
	cfgKeyVerdictCacheEnabled        = "verdictCache.enabled"
	cfgKeyVerdictCacheMaxEntries     = "verdictCache.maxEntries"
	cfgKeyVerdictCacheDefaultTTL     = "verdictCache.defaultTtl"
	cfgKeyUnprotectedPaths           = "unprotectedPaths"
)

// Config represents a set of configuration parameters for the token introspection filter.
// It is constructed once by the host and passed by reference into component constructors;
// the filter never re-reads configuration mid-flight.
type Config struct {
	HTTPClient HTTPClientConfig `mapstructure:"httpClient" yaml:"httpClient" json:"httpClient"`

	Introspection  IntrospectionConfig  `mapstructure:"introspection" yaml:"introspection" json:"introspection"`
	TokenExtractor TokenExtractorConfig `mapstructure:"tokenExtractor" yaml:"tokenExtractor" json:"tokenExtractor"`
	VerdictCache   VerdictCacheConfig   `mapstructure:"verdictCache" yaml:"verdictCache" json:"verdictCache"`

	// UnprotectedPaths is a list of glob patterns for request paths
	// that are let through without a token.
	UnprotectedPaths []string `mapstructure:"unprotectedPaths" yaml:"unprotectedPaths" json:"unprotectedPaths"`

	keyPrefix string
}

var _ config.Config = (*Config)(nil)
var _ config.KeyPrefixProvider = (*Config)(nil)

// ConfigOption is a type for functional options for the Config.
type ConfigOption func(*configOptions)

type configOptions struct {
	keyPrefix string
}

// WithKeyPrefix returns a ConfigOption that sets a key prefix for parsing configuration parameters.
// This prefix will be used by config.Loader.
func WithKeyPrefix(keyPrefix string) ConfigOption {
	return func(o *configOptions) {
		o.keyPrefix = keyPrefix
	}
}

// NewConfig creates a new instance of the Config.
func NewConfig(options ...ConfigOption) *Config {
	opts := configOptions{keyPrefix: cfgDefaultKeyPrefix}
	for _, opt := range options {
		opt(&opts)
	}
	return &Config{keyPrefix: opts.keyPrefix}
}

// NewDefaultConfig creates a new instance of the Config with default values.
func NewDefaultConfig(options ...ConfigOption) *Config {
	opts := configOptions{keyPrefix: cfgDefaultKeyPrefix}
	for _, opt := range options {
		opt(&opts)
	}
	return &Config{
		keyPrefix: opts.keyPrefix,
		HTTPClient: HTTPClientConfig{
			RequestTimeout: config.TimeDuration(idputil.DefaultHTTPRequestTimeout),
		},
		TokenExtractor: TokenExtractorConfig{
			Header: HeaderAuthorization,
			Scheme: TokenSchemeBearer,
		},
		VerdictCache: VerdictCacheConfig{
			Enabled:    true,
			MaxEntries: introspection.DefaultVerdictCacheMaxEntries,
			DefaultTTL: config.TimeDuration(introspection.DefaultVerdictCacheTTL),
		},
	}
}

// KeyPrefix returns a key prefix with which all configuration parameters should be presented.
// Implements config.KeyPrefixProvider interface.
func (c *Config) KeyPrefix() string {
	if c.keyPrefix == "" {
		return cfgDefaultKeyPrefix
	}
	return c.keyPrefix
}

// SetProviderDefaults sets default configuration values for the filter in config.DataProvider.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyHTTPClientRequestTimeout, idputil.DefaultHTTPRequestTimeout.String())
	dp.SetDefault(cfgKeyTokenExtractorHeader, HeaderAuthorization)
	dp.SetDefault(cfgKeyTokenExtractorScheme, TokenSchemeBearer)
	dp.SetDefault(cfgKeyVerdictCacheEnabled, true)
	dp.SetDefault(cfgKeyVerdictCacheMaxEntries, introspection.DefaultVerdictCacheMaxEntries)
	dp.SetDefault(cfgKeyVerdictCacheDefaultTTL, introspection.DefaultVerdictCacheTTL.String())
}

// HTTPClientConfig is a configuration of the HTTP client used for introspection requests.
type HTTPClientConfig struct {
	RequestTimeout config.TimeDuration `mapstructure:"requestTimeout" yaml:"requestTimeout" json:"requestTimeout"`
}

// IntrospectionConfig is a configuration of the introspection endpoint.
type IntrospectionConfig struct {
	// Endpoint is a URL of the token introspection endpoint.
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint" json:"endpoint"`

	// Authorization is a value of the "Authorization" header
	// that will be sent with each introspection request. Treated as a secret.
	Authorization string `mapstructure:"authorization" yaml:"authorization" json:"authorization"`
}

// TokenExtractorConfig is a configuration of how a token is extracted from an incoming request.
type TokenExtractorConfig struct {
	Header string `mapstructure:"header" yaml:"header" json:"header"`
	Scheme string `mapstructure:"scheme" yaml:"scheme" json:"scheme"`
}

// VerdictCacheConfig is a configuration of how introspection verdicts will be cached.
type VerdictCacheConfig struct {
	Enabled    bool                `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	MaxEntries int                 `mapstructure:"maxEntries" yaml:"maxEntries" json:"maxEntries"`
	DefaultTTL config.TimeDuration `mapstructure:"defaultTtl" yaml:"defaultTtl" json:"defaultTtl"`
}

// Set sets filter configuration values from config.DataProvider.
func (c *Config) Set(dp config.DataProvider) error {
	var err error

	var reqDuration time.Duration
	if reqDuration, err = dp.GetDuration(cfgKeyHTTPClientRequestTimeout); err != nil {
		return err
	}
	c.HTTPClient.RequestTimeout = config.TimeDuration(reqDuration)

	if c.Introspection.Endpoint, err = dp.GetString(cfgKeyIntrospectionEndpoint); err != nil {
		return err
	}
	if c.Introspection.Endpoint == "" {
		return dp.WrapKeyErr(cfgKeyIntrospectionEndpoint, fmt.Errorf("introspection endpoint is required"))
	}
	if _, err = url.ParseRequestURI(c.Introspection.Endpoint); err != nil {
		return dp.WrapKeyErr(cfgKeyIntrospectionEndpoint, err)
	}
	if c.Introspection.Authorization, err = dp.GetString(cfgKeyIntrospectionAuthorization); err != nil {
		return err
	}

	if c.TokenExtractor.Header, err = dp.GetString(cfgKeyTokenExtractorHeader); err != nil {
		return err
	}
	if c.TokenExtractor.Header == "" {
		return dp.WrapKeyErr(cfgKeyTokenExtractorHeader, fmt.Errorf("token extractor header is required"))
	}
	if c.TokenExtractor.Scheme, err = dp.GetString(cfgKeyTokenExtractorScheme); err != nil {
		return err
	}

	if c.VerdictCache.Enabled, err = dp.GetBool(cfgKeyVerdictCacheEnabled); err != nil {
		return err
	}
	if c.VerdictCache.MaxEntries, err = dp.GetInt(cfgKeyVerdictCacheMaxEntries); err != nil {
		return err
	}
	if c.VerdictCache.MaxEntries < 0 {
		return dp.WrapKeyErr(cfgKeyVerdictCacheMaxEntries, fmt.Errorf("max entries should be non-negative"))
	}
	var cacheTTL time.Duration
	if cacheTTL, err = dp.GetDuration(cfgKeyVerdictCacheDefaultTTL); err != nil {
		return err
	}
	c.VerdictCache.DefaultTTL = config.TimeDuration(cacheTTL)

	if c.UnprotectedPaths, err = dp.GetStringSlice(cfgKeyUnprotectedPaths); err != nil {
		return err
	}

	return nil
}
