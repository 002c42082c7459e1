/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package authfilter_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	jwtgo "github.com/golang-jwt/jwt/v5"

	"github.com/acronis/go-authfilter"
	"github.com/acronis/go-authfilter/idptest"
	"github.com/acronis/go-authfilter/introspection"
)

func ExampleFilterMiddleware() {
	// Mock introspection authority knowing a single active token.
	idpServer := idptest.NewHTTPServer()
	_ = idpServer.StartAndWaitForReady(time.Second)
	defer func() { _ = idpServer.Close() }()
	introspectionHandler := idpServer.TokenIntrospectionHandler.(*idptest.IntrospectionHandler)
	introspectionHandler.SetResultForToken("valid-token", introspection.Result{
		Active:    true,
		ExpiresAt: jwtgo.NewNumericDate(time.Now().Add(time.Hour)),
	})

	cfg := authfilter.NewDefaultConfig()
	cfg.Introspection.Endpoint = idpServer.IntrospectionEndpointURL()
	filter, _ := authfilter.New(cfg)
	filterMw := authfilter.FilterMiddleware("MyGateway", filter)

	upstream := http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		token := authfilter.GetBearerTokenFromContext(r.Context())
		_, _ = rw.Write([]byte("Hello, " + token))
	})
	gateway := httptest.NewServer(filterMw(upstream))
	defer gateway.Close()

	client := &http.Client{Timeout: time.Second * 30}

	resp, _ := client.Get(gateway.URL)
	_ = resp.Body.Close()
	fmt.Println("request without token, status code:", resp.StatusCode)

	req, _ := http.NewRequest(http.MethodGet, gateway.URL, http.NoBody)
	req.Header.Set("Authorization", "Bearer unknown-token")
	resp, _ = client.Do(req)
	_ = resp.Body.Close()
	fmt.Println("request with unknown token, status code:", resp.StatusCode)

	req, _ = http.NewRequest(http.MethodGet, gateway.URL, http.NoBody)
	req.Header.Set("Authorization", "Bearer valid-token")
	resp, _ = client.Do(req)
	_ = resp.Body.Close()
	fmt.Println("request with valid token, status code:", resp.StatusCode)

	// Output:
	// request without token, status code: 401
	// request with unknown token, status code: 401
	// request with valid token, status code: 200
}
