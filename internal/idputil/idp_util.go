/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package idputil

import (
	"context"
	"net/http"
	"time"

	"github.com/acronis/go-appkit/httpclient"
	"github.com/acronis/go-appkit/log"

	"github.com/acronis/go-authfilter/internal/libinfo"
)

const (
	DefaultHTTPRequestTimeout          = 30 * time.Second
	DefaultHTTPRequestMaxRetryAttempts = 3
)

// DefaultLogger is used when no logger provider is configured.
var DefaultLogger log.FieldLogger = log.NewDisabledLogger()

func MakeDefaultHTTPClient(reqTimeout time.Duration, loggerProvider func(ctx context.Context) log.FieldLogger) *http.Client {
	if reqTimeout == 0 {
		reqTimeout = DefaultHTTPRequestTimeout
	}
	var tr http.RoundTripper = http.DefaultTransport.(*http.Transport).Clone()
	tr, _ = httpclient.NewRetryableRoundTripperWithOpts(tr, httpclient.RetryableRoundTripperOpts{
		MaxRetryAttempts: DefaultHTTPRequestMaxRetryAttempts,
		LoggerProvider:   loggerProvider,
	}) // error is always nil
	tr = httpclient.NewUserAgentRoundTripper(tr, libinfo.UserAgent())
	return &http.Client{Timeout: reqTimeout, Transport: tr}
}

func GetLoggerFromProvider(ctx context.Context, provider func(ctx context.Context) log.FieldLogger) log.FieldLogger {
	if provider != nil {
		if logger := provider(ctx); logger != nil {
			return log.NewPrefixedLogger(logger, libinfo.LogPrefix())
		}
	}
	return DefaultLogger
}
