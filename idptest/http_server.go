/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package idptest

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/acronis/go-appkit/testutil"

	"github.com/acronis/go-authfilter/introspection"
)

// IntrospectionEndpointPath is the default path of the token introspection endpoint.
const IntrospectionEndpointPath = "/idp/introspect_token" // nolint:gosec // This server is used for testing purposes only.

const localhostWithDynamicPortAddr = "127.0.0.1:0"

var ErrUnauthorized = errors.New("unauthorized")

// HTTPTokenIntrospector is an interface for introspecting tokens via HTTP.
type HTTPTokenIntrospector interface {
	IntrospectToken(r *http.Request, token string) (introspection.Result, error)
}

// HTTPTokenIntrospectorFunc is a function that implements HTTPTokenIntrospector interface.
type HTTPTokenIntrospectorFunc func(r *http.Request, token string) (introspection.Result, error)

// IntrospectToken implements HTTPTokenIntrospector interface.
func (f HTTPTokenIntrospectorFunc) IntrospectToken(r *http.Request, token string) (introspection.Result, error) {
	return f(r, token)
}

// HTTPServerOption is an option for HTTPServer.
type HTTPServerOption func(s *HTTPServer)

// WithHTTPAddress is an option to set HTTP server address.
func WithHTTPAddress(addr string) HTTPServerOption {
	return func(s *HTTPServer) {
		s.addr.Store(addr)
	}
}

// WithHTTPIntrospectionEndpointPath is an option to set a custom path for the token introspection endpoint.
func WithHTTPIntrospectionEndpointPath(path string) HTTPServerOption {
	return func(s *HTTPServer) {
		s.introspectionEndpointPath = path
	}
}

// WithHTTPIntrospectTokenHandler is an option to set custom handler for POST /idp/introspect_token.
// Otherwise, IntrospectionHandler will be used.
func WithHTTPIntrospectTokenHandler(handler http.Handler) HTTPServerOption {
	return func(s *HTTPServer) {
		s.TokenIntrospectionHandler = handler
	}
}

// WithHTTPTokenIntrospector is an option to set HTTPTokenIntrospector for IntrospectionHandler
// which will be used for POST /idp/introspect_token.
func WithHTTPTokenIntrospector(introspector HTTPTokenIntrospector) HTTPServerOption {
	return func(s *HTTPServer) {
		s.TokenIntrospectionHandler = &IntrospectionHandler{TokenIntrospector: introspector}
	}
}

func WithHTTPMiddleware(mw func(http.Handler) http.Handler) HTTPServerOption {
	return func(s *HTTPServer) {
		s.middleware = mw
	}
}

// HTTPServer is a mock token introspection authority for testing purposes.
type HTTPServer struct {
	*http.Server
	addr                      atomic.Value
	middleware                func(http.Handler) http.Handler
	introspectionEndpointPath string
	TokenIntrospectionHandler http.Handler
	Router                    *http.ServeMux
}

// NewHTTPServer creates a new HTTPServer with provided options.
func NewHTTPServer(options ...HTTPServerOption) *HTTPServer {
	s := &HTTPServer{}
	for _, opt := range options {
		opt(s)
	}

	if s.TokenIntrospectionHandler == nil {
		s.TokenIntrospectionHandler = &IntrospectionHandler{}
	}
	if s.introspectionEndpointPath == "" {
		s.introspectionEndpointPath = IntrospectionEndpointPath
	}

	s.Router = http.NewServeMux()
	s.Router.Handle(s.introspectionEndpointPath, s.TokenIntrospectionHandler)

	// nolint:gosec // This server is used for testing purposes only.
	s.Server = &http.Server{Handler: s.Router}
	if s.middleware != nil {
		s.Server.Handler = s.middleware(s.Router)
	}

	return s
}

// URL method returns the URL of the server.
func (s *HTTPServer) URL() string {
	if srvURL := s.addr.Load(); srvURL != nil {
		return "http://" + srvURL.(string)
	}
	return ""
}

// IntrospectionEndpointURL returns the full URL of the token introspection endpoint.
func (s *HTTPServer) IntrospectionEndpointURL() string {
	return s.URL() + s.introspectionEndpointPath
}

// Start starts the HTTPServer.
func (s *HTTPServer) Start() error {
	addr, ok := s.addr.Load().(string)
	if !ok {
		addr = localhostWithDynamicPortAddr
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen tcp: %w", err)
	}
	s.addr.Store(ln.Addr().String())

	go func() { _ = s.Server.Serve(ln) }()

	return nil
}

// StartAndWaitForReady starts the server waits for the server to start listening.
func (s *HTTPServer) StartAndWaitForReady(timeout time.Duration) error {
	if err := s.Start(); err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	return testutil.WaitListeningServer(s.addr.Load().(string), timeout)
}
