/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package authfilter

import (
	"context"
	"fmt"
	"net/http"

	"github.com/acronis/go-appkit/httpserver/middleware"
	"github.com/acronis/go-appkit/log"
	"github.com/acronis/go-appkit/restapi"

	"github.com/acronis/go-authfilter/internal/idputil"
	"github.com/acronis/go-authfilter/internal/metrics"
	"github.com/acronis/go-authfilter/introspection"
)

// Authentication error codes.
// We are using "var" here because some services may want to use different error codes.
var (
	ErrCodeBearerTokenMissing   = "bearerTokenMissing"
	ErrCodeAuthenticationFailed = "authenticationFailed"
	ErrCodeIntrospectionFailed  = "introspectionFailed"
	ErrCodeInternalError        = "internalError"
)

// Authentication error messages.
// We are using "var" here because some services may want to use different error messages.
var (
	ErrMessageBearerTokenMissing   = "Authorization bearer token is missing."
	ErrMessageAuthenticationFailed = "Authentication is failed."
	ErrMessageIntrospectionFailed  = "Token introspection is failed."
	ErrMessageInternalError        = "Internal server error."
)

const headerWWWAuthenticate = "WWW-Authenticate"

const wwwAuthenticateBearerRealm = `Bearer realm="oauth2"`

type ctxKey int

const (
	ctxKeyBearerToken ctxKey = iota
	ctxKeyVerdict
)

type filterHandler struct {
	next           http.Handler
	errorDomain    string
	filter         *Filter
	loggerProvider func(ctx context.Context) log.FieldLogger
	promMetrics    *metrics.PrometheusMetrics
}

type filterMiddlewareOpts struct {
	loggerProvider             func(ctx context.Context) log.FieldLogger
	prometheusLibInstanceLabel string
}

// FilterMiddlewareOption is an option for FilterMiddleware.
type FilterMiddlewareOption func(options *filterMiddlewareOpts)

// WithFilterMiddlewareLoggerProvider is an option to set a logger provider for FilterMiddleware.
func WithFilterMiddlewareLoggerProvider(loggerProvider func(ctx context.Context) log.FieldLogger) FilterMiddlewareOption {
	return func(options *filterMiddlewareOpts) {
		options.loggerProvider = loggerProvider
	}
}

// WithFilterMiddlewarePrometheusLibInstanceLabel is an option to set a label for Prometheus metrics
// that are used by FilterMiddleware.
func WithFilterMiddlewarePrometheusLibInstanceLabel(label string) FilterMiddlewareOption {
	return func(options *filterMiddlewareOpts) {
		options.prometheusLibInstanceLabel = label
	}
}

// FilterMiddleware is a middleware that intercepts each incoming request before it reaches
// the next handler and either lets it proceed or short-circuits it with a rejection,
// based on the Filter's decision.
// Security denials are responded with 401, infrastructure failures with 500;
// in both cases the response body is a REST error with the given errorDomain.
// The middleware always produces a definite response, errors never propagate to the host.
func FilterMiddleware(errorDomain string, filter *Filter, opts ...FilterMiddlewareOption) func(next http.Handler) http.Handler {
	options := filterMiddlewareOpts{loggerProvider: middleware.GetLoggerFromContext}
	for _, opt := range opts {
		opt(&options)
	}
	return func(next http.Handler) http.Handler {
		return &filterHandler{
			next:           next,
			errorDomain:    errorDomain,
			filter:         filter,
			loggerProvider: options.loggerProvider,
			promMetrics:    metrics.GetPrometheusMetrics(options.prometheusLibInstanceLabel, metrics.SourceHTTPMiddleware),
		}
	}
}

func (h *filterHandler) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	logger := idputil.GetLoggerFromProvider(r.Context(), h.loggerProvider)

	outcome := h.filter.Decide(r)
	h.promMetrics.IncFilterDecisionsTotal(decisionMetricsReason(outcome))

	if outcome.Allow {
		ctx := r.Context()
		if outcome.Token != "" {
			ctx = NewContextWithBearerToken(ctx, outcome.Token)
			ctx = NewContextWithVerdict(ctx, outcome.Verdict)
		}
		h.next.ServeHTTP(rw, r.WithContext(ctx))
		return
	}

	switch outcome.Reason {
	case DenyReasonNoToken:
		logger.AtLevel(log.LevelDebug, func(logFunc log.LogFunc) {
			logFunc("no authorization token was provided")
		})
		h.respondUnauthorized(rw, logger, ErrCodeBearerTokenMissing, ErrMessageBearerTokenMissing)
	case DenyReasonInactiveToken:
		logger.AtLevel(log.LevelDebug, func(logFunc log.LogFunc) {
			logFunc("token is marked as inactive by the introspection endpoint")
		})
		h.respondUnauthorized(rw, logger, ErrCodeAuthenticationFailed, ErrMessageAuthenticationFailed)
	case DenyReasonExpiredToken:
		logger.AtLevel(log.LevelDebug, func(logFunc log.LogFunc) {
			logFunc("expiration time on the token has been exceeded")
		})
		h.respondUnauthorized(rw, logger, ErrCodeAuthenticationFailed, ErrMessageAuthenticationFailed)
	case DenyReasonNotYetActive:
		logger.AtLevel(log.LevelDebug, func(logFunc log.LogFunc) {
			logFunc("token is not yet valid, time set in the nbf claim has not been reached")
		})
		h.respondUnauthorized(rw, logger, ErrCodeAuthenticationFailed, ErrMessageAuthenticationFailed)
	case DenyReasonClientError:
		logger.Error("error while sending request to the introspection endpoint", log.Error(outcome.Err))
		h.respondInternalError(rw, logger, ErrCodeIntrospectionFailed, ErrMessageIntrospectionFailed)
	case DenyReasonNonParsableResponse:
		logger.Error("error while parsing response from the introspection endpoint", log.Error(outcome.Err))
		h.respondInternalError(rw, logger, ErrCodeIntrospectionFailed, ErrMessageIntrospectionFailed)
	default:
		logger.Error(fmt.Sprintf("unexpected error occurred while filtering the request (reason %q)", outcome.Reason),
			log.Error(outcome.Err))
		h.respondInternalError(rw, logger, ErrCodeInternalError, ErrMessageInternalError)
	}
}

func (h *filterHandler) respondUnauthorized(rw http.ResponseWriter, logger log.FieldLogger, code, message string) {
	rw.Header().Set(headerWWWAuthenticate, wwwAuthenticateBearerRealm)
	apiErr := restapi.NewError(h.errorDomain, code, message)
	restapi.RespondError(rw, http.StatusUnauthorized, apiErr, logger)
}

func (h *filterHandler) respondInternalError(rw http.ResponseWriter, logger log.FieldLogger, code, message string) {
	apiErr := restapi.NewError(h.errorDomain, code, message)
	restapi.RespondError(rw, http.StatusInternalServerError, apiErr, logger)
}

func decisionMetricsReason(outcome Outcome) string {
	if outcome.Allow {
		return metrics.FilterDecisionAllowed
	}
	switch outcome.Reason {
	case DenyReasonNoToken:
		return metrics.FilterDecisionNoToken
	case DenyReasonInactiveToken:
		return metrics.FilterDecisionInactiveToken
	case DenyReasonExpiredToken:
		return metrics.FilterDecisionExpiredToken
	case DenyReasonNotYetActive:
		return metrics.FilterDecisionNotYetActive
	case DenyReasonClientError:
		return metrics.FilterDecisionClientError
	case DenyReasonNonParsableResponse:
		return metrics.FilterDecisionNonParsableResponse
	default:
		return metrics.FilterDecisionUnexpected
	}
}

// NewContextWithBearerToken creates a new context with the bearer token.
func NewContextWithBearerToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, ctxKeyBearerToken, token)
}

// GetBearerTokenFromContext extracts the bearer token from the context.
func GetBearerTokenFromContext(ctx context.Context) string {
	value := ctx.Value(ctxKeyBearerToken)
	if value == nil {
		return ""
	}
	return value.(string)
}

// NewContextWithVerdict creates a new context with the introspection verdict.
func NewContextWithVerdict(ctx context.Context, verdict introspection.Result) context.Context {
	return context.WithValue(ctx, ctxKeyVerdict, verdict)
}

// GetVerdictFromContext extracts the introspection verdict from the context.
func GetVerdictFromContext(ctx context.Context) (introspection.Result, bool) {
	value := ctx.Value(ctxKeyVerdict)
	if value == nil {
		return introspection.Result{}, false
	}
	return value.(introspection.Result), true
}
