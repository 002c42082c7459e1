/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package authfilter

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/acronis/go-appkit/testutil"
	jwtgo "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/acronis/go-authfilter/introspection"
)

type mockFilterMiddlewareNextHandler struct {
	called      int
	bearerToken string
	verdict     introspection.Result
	verdictOK   bool
}

func (h *mockFilterMiddlewareNextHandler) ServeHTTP(_ http.ResponseWriter, r *http.Request) {
	h.called++
	h.bearerToken = GetBearerTokenFromContext(r.Context())
	h.verdict, h.verdictOK = GetVerdictFromContext(r.Context())
}

func TestFilterMiddleware(t *testing.T) {
	const errDomain = "TestDomain"

	makeFilter := func(t *testing.T, introspector TokenIntrospector) *Filter {
		t.Helper()
		f, err := New(NewDefaultConfig(), WithFilterTokenIntrospector(introspector))
		require.NoError(t, err)
		return f
	}

	t.Run("bearer token is missing", func(t *testing.T) {
		for _, headerVal := range []string{"", "foobar", "Bearer", "Bearer "} {
			introspector := &mockTokenIntrospector{}
			next := &mockFilterMiddlewareNextHandler{}
			req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
			if headerVal != "" {
				req.Header.Set(HeaderAuthorization, headerVal)
			}
			resp := httptest.NewRecorder()

			FilterMiddleware(errDomain, makeFilter(t, introspector))(next).ServeHTTP(resp, req)

			testutil.RequireErrorInRecorder(t, resp, http.StatusUnauthorized, errDomain, ErrCodeBearerTokenMissing)
			require.Equal(t, `Bearer realm="oauth2"`, resp.Header().Get("WWW-Authenticate"))
			require.Equal(t, 0, introspector.introspectionCallCount)
			require.Equal(t, 0, next.called)
		}
	})

	t.Run("inactive token", func(t *testing.T) {
		introspector := &mockTokenIntrospector{result: introspection.Result{Active: false}}
		next := &mockFilterMiddlewareNextHandler{}
		req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
		req.Header.Set(HeaderAuthorization, "Bearer revoked-token")
		resp := httptest.NewRecorder()

		FilterMiddleware(errDomain, makeFilter(t, introspector))(next).ServeHTTP(resp, req)

		testutil.RequireErrorInRecorder(t, resp, http.StatusUnauthorized, errDomain, ErrCodeAuthenticationFailed)
		require.Equal(t, `Bearer realm="oauth2"`, resp.Header().Get("WWW-Authenticate"))
		require.Equal(t, 1, introspector.introspectionCallCount)
		require.Equal(t, 0, next.called)
	})

	t.Run("expired token", func(t *testing.T) {
		introspector := &mockTokenIntrospector{result: introspection.Result{
			Active:    true,
			ExpiresAt: jwtgo.NewNumericDate(time.Now().Add(-time.Minute)),
		}}
		next := &mockFilterMiddlewareNextHandler{}
		req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
		req.Header.Set(HeaderAuthorization, "Bearer expired-token")
		resp := httptest.NewRecorder()

		FilterMiddleware(errDomain, makeFilter(t, introspector))(next).ServeHTTP(resp, req)

		testutil.RequireErrorInRecorder(t, resp, http.StatusUnauthorized, errDomain, ErrCodeAuthenticationFailed)
		require.Equal(t, 0, next.called)
	})

	t.Run("not yet active token", func(t *testing.T) {
		introspector := &mockTokenIntrospector{result: introspection.Result{
			Active:    true,
			NotBefore: jwtgo.NewNumericDate(time.Now().Add(time.Minute)),
		}}
		next := &mockFilterMiddlewareNextHandler{}
		req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
		req.Header.Set(HeaderAuthorization, "Bearer future-token")
		resp := httptest.NewRecorder()

		FilterMiddleware(errDomain, makeFilter(t, introspector))(next).ServeHTTP(resp, req)

		testutil.RequireErrorInRecorder(t, resp, http.StatusUnauthorized, errDomain, ErrCodeAuthenticationFailed)
		require.Equal(t, 0, next.called)
	})

	t.Run("introspection transport error", func(t *testing.T) {
		introspector := &mockTokenIntrospector{err: &introspection.ClientError{
			Inner: errors.New("connection refused"), Endpoint: "https://my-idp.com/introspect"}}
		next := &mockFilterMiddlewareNextHandler{}
		req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
		req.Header.Set(HeaderAuthorization, "Bearer access-token")
		resp := httptest.NewRecorder()

		FilterMiddleware(errDomain, makeFilter(t, introspector))(next).ServeHTTP(resp, req)

		testutil.RequireErrorInRecorder(t, resp, http.StatusInternalServerError, errDomain, ErrCodeIntrospectionFailed)
		require.Empty(t, resp.Header().Get("WWW-Authenticate"))
		require.Equal(t, 0, next.called)
	})

	t.Run("introspection unexpected error", func(t *testing.T) {
		introspector := &mockTokenIntrospector{err: errors.New("something went wrong")}
		next := &mockFilterMiddlewareNextHandler{}
		req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
		req.Header.Set(HeaderAuthorization, "Bearer access-token")
		resp := httptest.NewRecorder()

		FilterMiddleware(errDomain, makeFilter(t, introspector))(next).ServeHTTP(resp, req)

		testutil.RequireErrorInRecorder(t, resp, http.StatusInternalServerError, errDomain, ErrCodeInternalError)
		require.Equal(t, 0, next.called)
	})

	t.Run("ok", func(t *testing.T) {
		verdict := introspection.Result{
			Active:    true,
			TokenType: "Bearer",
			ExpiresAt: jwtgo.NewNumericDate(time.Now().Add(time.Hour)),
			Extra:     map[string]interface{}{"sub": "user-1"},
		}
		introspector := &mockTokenIntrospector{result: verdict}
		next := &mockFilterMiddlewareNextHandler{}
		req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
		req.Header.Set(HeaderAuthorization, "Bearer a.b.c")
		resp := httptest.NewRecorder()

		FilterMiddleware(errDomain, makeFilter(t, introspector))(next).ServeHTTP(resp, req)

		require.Equal(t, http.StatusOK, resp.Code)
		require.Equal(t, 1, introspector.introspectionCallCount)
		require.Equal(t, 1, next.called)
		require.Equal(t, "a.b.c", next.bearerToken)
		require.True(t, next.verdictOK)
		require.Equal(t, verdict, next.verdict)
	})

	t.Run("unprotected path, nothing is injected into context", func(t *testing.T) {
		introspector := &mockTokenIntrospector{}
		cfg := NewDefaultConfig()
		cfg.UnprotectedPaths = []string{"/healthz"}
		f, err := New(cfg, WithFilterTokenIntrospector(introspector))
		require.NoError(t, err)
		next := &mockFilterMiddlewareNextHandler{}
		req := httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody)
		resp := httptest.NewRecorder()

		FilterMiddleware(errDomain, f)(next).ServeHTTP(resp, req)

		require.Equal(t, http.StatusOK, resp.Code)
		require.Equal(t, 1, next.called)
		require.Empty(t, next.bearerToken)
		require.False(t, next.verdictOK)
	})
}
