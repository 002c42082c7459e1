/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/acronis/go-appkit/lrucache"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/acronis/go-authfilter/internal/libinfo"
)

const PrometheusNamespace = "go_authfilter"

const DefaultPrometheusLibInstanceLabel = "default"

const (
	PrometheusLibInstanceLabel = "lib_instance"
	PrometheusLibSourceLabel   = "lib_source"
)

const (
	SourceIntrospectionClient = "introspection_client"
	SourceHTTPMiddleware      = "http_middleware"
)

func PrometheusLabels() prometheus.Labels {
	return prometheus.Labels{"lib_version": libinfo.GetLibVersion()}
}

const (
	HTTPClientRequestLabelMethod     = "method"
	HTTPClientRequestLabelURL        = "url"
	HTTPClientRequestLabelStatusCode = "status_code"
	HTTPClientRequestLabelError      = "error"

	FilterDecisionLabelReason = "reason"
)

const (
	HTTPRequestErrorDo                   = "do_request_error"
	HTTPRequestErrorDecodeBody           = "decode_body_error"
	HTTPRequestErrorUnexpectedStatusCode = "unexpected_status_code"
)

// Filter decision reasons reported via the filter_decisions_total counter.
const (
	FilterDecisionAllowed             = "allowed"
	FilterDecisionNoToken             = "no_token"
	FilterDecisionInactiveToken       = "inactive_token"
	FilterDecisionExpiredToken        = "expired_token"
	FilterDecisionNotYetActive        = "not_yet_active"
	FilterDecisionClientError         = "client_error"
	FilterDecisionNonParsableResponse = "non_parsable_response"
	FilterDecisionUnexpected          = "unexpected"
)

var requestDurationBuckets = []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

var (
	prometheusMetrics     *PrometheusMetrics
	prometheusMetricsOnce sync.Once
)

// PrometheusMetrics represents the collector of metrics.
type PrometheusMetrics struct {
	HTTPClientRequestDuration *prometheus.HistogramVec
	FilterDecisionsTotal      *prometheus.CounterVec
	VerdictCache              *lrucache.PrometheusMetrics
}

func GetPrometheusMetrics(instance string, source string) *PrometheusMetrics {
	prometheusMetricsOnce.Do(func() {
		prometheusMetrics = newPrometheusMetrics()
		prometheusMetrics.MustRegister()
	})
	if instance == "" {
		instance = DefaultPrometheusLibInstanceLabel
	}
	return prometheusMetrics.MustCurryWith(map[string]string{
		PrometheusLibInstanceLabel: instance,
		PrometheusLibSourceLabel:   source,
	})
}

func newPrometheusMetrics() *PrometheusMetrics {
	curriedLabelNames := []string{PrometheusLibInstanceLabel, PrometheusLibSourceLabel}
	makeLabelNames := func(names ...string) []string {
		l := append(make([]string, 0, len(curriedLabelNames)+len(names)), curriedLabelNames...)
		return append(l, names...)
	}

	httpClientReqDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   PrometheusNamespace,
			Name:        "http_client_request_duration_seconds",
			Help:        "A histogram of the http client request durations to the introspection endpoint.",
			Buckets:     requestDurationBuckets,
			ConstLabels: PrometheusLabels(),
		},
		makeLabelNames(HTTPClientRequestLabelMethod, HTTPClientRequestLabelURL,
			HTTPClientRequestLabelStatusCode, HTTPClientRequestLabelError),
	)
	filterDecisionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   PrometheusNamespace,
			Name:        "filter_decisions_total",
			Help:        "A counter of the filter allow/deny decisions by reason.",
			ConstLabels: PrometheusLabels(),
		},
		makeLabelNames(FilterDecisionLabelReason),
	)

	verdictCache := lrucache.NewPrometheusMetricsWithOpts(lrucache.PrometheusMetricsOpts{
		Namespace:         PrometheusNamespace + "_verdict",
		ConstLabels:       PrometheusLabels(),
		CurriedLabelNames: curriedLabelNames,
	})

	return &PrometheusMetrics{
		HTTPClientRequestDuration: httpClientReqDuration,
		FilterDecisionsTotal:      filterDecisionsTotal,
		VerdictCache:              verdictCache,
	}
}

// MustCurryWith curries the metrics collector with the provided labels.
func (pm *PrometheusMetrics) MustCurryWith(labels prometheus.Labels) *PrometheusMetrics {
	return &PrometheusMetrics{
		HTTPClientRequestDuration: pm.HTTPClientRequestDuration.MustCurryWith(labels).(*prometheus.HistogramVec),
		FilterDecisionsTotal:      pm.FilterDecisionsTotal.MustCurryWith(labels),
		VerdictCache:              pm.VerdictCache.MustCurryWith(labels),
	}
}

// MustRegister does registration of metrics collector in Prometheus and panics if any error occurs.
func (pm *PrometheusMetrics) MustRegister() {
	prometheus.MustRegister(
		pm.HTTPClientRequestDuration,
		pm.FilterDecisionsTotal,
	)
	pm.VerdictCache.MustRegister()
}

// Unregister cancels registration of metrics collector in Prometheus.
func (pm *PrometheusMetrics) Unregister() {
	prometheus.Unregister(pm.HTTPClientRequestDuration)
	prometheus.Unregister(pm.FilterDecisionsTotal)
	pm.VerdictCache.Unregister()
}

func (pm *PrometheusMetrics) ObserveHTTPClientRequest(
	method string, targetURL string, statusCode int, elapsed time.Duration, errorType string,
) {
	pm.HTTPClientRequestDuration.With(prometheus.Labels{
		HTTPClientRequestLabelMethod:     method,
		HTTPClientRequestLabelURL:        targetURL,
		HTTPClientRequestLabelStatusCode: strconv.Itoa(statusCode),
		HTTPClientRequestLabelError:      errorType,
	}).Observe(elapsed.Seconds())
}

func (pm *PrometheusMetrics) IncFilterDecisionsTotal(reason string) {
	pm.FilterDecisionsTotal.With(prometheus.Labels{FilterDecisionLabelReason: reason}).Inc()
}
