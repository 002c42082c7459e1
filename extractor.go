/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package authfilter

import (
	"net/http"
	"strings"
)

// HeaderAuthorization contains the name of HTTP header with data that is used for authentication.
const HeaderAuthorization = "Authorization"

// TokenSchemeBearer is the default authorization scheme for the extracted token.
const TokenSchemeBearer = "Bearer"

// TokenExtractor pulls a candidate token out of an inbound request's headers.
// An empty string means "no token present". Implementations must not mutate the request.
type TokenExtractor interface {
	ExtractToken(r *http.Request) string
}

// HeaderTokenExtractor extracts a token from the configured request header.
// If Scheme is not empty, the header value must start with the scheme
// (matched case-insensitively) followed by a single space.
// Malformed header syntax (e.g. a wrong scheme) is deliberately treated
// the same as an absent token so that callers cannot probe which schemes
// the filter understands.
type HeaderTokenExtractor struct {
	Header string
	Scheme string
}

// NewTokenExtractor creates a HeaderTokenExtractor from the configuration.
func NewTokenExtractor(cfg TokenExtractorConfig) HeaderTokenExtractor {
	extractor := HeaderTokenExtractor{Header: cfg.Header, Scheme: cfg.Scheme}
	if extractor.Header == "" {
		extractor.Header = HeaderAuthorization
		extractor.Scheme = TokenSchemeBearer
	}
	return extractor
}

// ExtractToken implements TokenExtractor interface.
func (e HeaderTokenExtractor) ExtractToken(r *http.Request) string {
	headerVal := strings.TrimSpace(r.Header.Get(e.Header))
	if e.Scheme == "" {
		return headerVal
	}
	if len(headerVal) <= len(e.Scheme)+1 {
		return ""
	}
	if !strings.EqualFold(headerVal[:len(e.Scheme)], e.Scheme) || headerVal[len(e.Scheme)] != ' ' {
		return ""
	}
	return headerVal[len(e.Scheme)+1:]
}
