/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package authfilter

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHeaderTokenExtractor_ExtractToken(t *testing.T) {
	tests := []struct {
		name      string
		extractor HeaderTokenExtractor
		headers   map[string]string
		wantToken string
	}{
		{
			name:      "bearer token",
			extractor: HeaderTokenExtractor{Header: HeaderAuthorization, Scheme: TokenSchemeBearer},
			headers:   map[string]string{"Authorization": "Bearer a.b.c"},
			wantToken: "a.b.c",
		},
		{
			name:      "scheme is matched case-insensitively",
			extractor: HeaderTokenExtractor{Header: HeaderAuthorization, Scheme: TokenSchemeBearer},
			headers:   map[string]string{"Authorization": "bEaReR a.b.c"},
			wantToken: "a.b.c",
		},
		{
			name:      "no header",
			extractor: HeaderTokenExtractor{Header: HeaderAuthorization, Scheme: TokenSchemeBearer},
			wantToken: "",
		},
		{
			name:      "empty header value",
			extractor: HeaderTokenExtractor{Header: HeaderAuthorization, Scheme: TokenSchemeBearer},
			headers:   map[string]string{"Authorization": ""},
			wantToken: "",
		},
		{
			name:      "wrong scheme",
			extractor: HeaderTokenExtractor{Header: HeaderAuthorization, Scheme: TokenSchemeBearer},
			headers:   map[string]string{"Authorization": "Basic dXNlcjpwYXNz"},
			wantToken: "",
		},
		{
			name:      "scheme without token",
			extractor: HeaderTokenExtractor{Header: HeaderAuthorization, Scheme: TokenSchemeBearer},
			headers:   map[string]string{"Authorization": "Bearer"},
			wantToken: "",
		},
		{
			name:      "scheme with trailing space only",
			extractor: HeaderTokenExtractor{Header: HeaderAuthorization, Scheme: TokenSchemeBearer},
			headers:   map[string]string{"Authorization": "Bearer "},
			wantToken: "",
		},
		{
			name:      "custom header and scheme",
			extractor: HeaderTokenExtractor{Header: "X-Custom-Authorization", Scheme: "Token"},
			headers:   map[string]string{"X-Custom-Authorization": "Token opaque-value"},
			wantToken: "opaque-value",
		},
		{
			name:      "no scheme takes whole header value",
			extractor: HeaderTokenExtractor{Header: "X-Api-Token"},
			headers:   map[string]string{"X-Api-Token": "opaque-value"},
			wantToken: "opaque-value",
		},
		{
			name:      "surrounding whitespace is trimmed",
			extractor: HeaderTokenExtractor{Header: HeaderAuthorization, Scheme: TokenSchemeBearer},
			headers:   map[string]string{"Authorization": "  Bearer a.b.c  "},
			wantToken: "a.b.c",
		},
	}
	for i := range tests {
		tt := tests[i]
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			for name, val := range tt.headers {
				req.Header.Set(name, val)
			}
			require.Equal(t, tt.wantToken, tt.extractor.ExtractToken(req))
		})
	}
}

func TestNewTokenExtractor(t *testing.T) {
	t.Run("empty config falls back to bearer authorization", func(t *testing.T) {
		extractor := NewTokenExtractor(TokenExtractorConfig{})
		require.Equal(t, HeaderTokenExtractor{Header: HeaderAuthorization, Scheme: TokenSchemeBearer}, extractor)
	})
	t.Run("configured header and scheme", func(t *testing.T) {
		extractor := NewTokenExtractor(TokenExtractorConfig{Header: "X-Custom-Authorization", Scheme: "Token"})
		require.Equal(t, HeaderTokenExtractor{Header: "X-Custom-Authorization", Scheme: "Token"}, extractor)
	})
}
