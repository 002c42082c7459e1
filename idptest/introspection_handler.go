/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package idptest

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/acronis/go-authfilter/introspection"
)

// IntrospectionHandler is an implementation of a handler responding with OAuth 2.0 token introspection result.
type IntrospectionHandler struct {
	servedCount atomic.Uint64

	// RequiredAuthorization, if not empty, is the exact value the Authorization header
	// of each introspection request must carry. Requests with a different value are rejected with 401.
	RequiredAuthorization string

	// TokenIntrospector, if set, produces the introspection result for each request.
	// Otherwise, results registered via SetResultForToken are served.
	TokenIntrospector HTTPTokenIntrospector

	mu             sync.RWMutex
	resultsByToken map[string]introspection.Result
}

func (h *IntrospectionHandler) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(rw, "Only POST method is allowed", http.StatusMethodNotAllowed)
		return
	}

	h.servedCount.Add(1)

	if h.RequiredAuthorization != "" && r.Header.Get("Authorization") != h.RequiredAuthorization {
		http.Error(rw, "Unauthorized", http.StatusUnauthorized)
		return
	}

	token := r.FormValue("token")
	if token == "" {
		http.Error(rw, "Token is missing", http.StatusBadRequest)
		return
	}

	result, err := h.introspectToken(r, token)
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			http.Error(rw, "Unauthorized", http.StatusUnauthorized)
			return
		}
		http.Error(rw, fmt.Sprintf("Token introspector failed to introspect token: %v", err), http.StatusInternalServerError)
		return
	}

	rw.Header().Set("Content-Type", "application/json")
	if err = json.NewEncoder(rw).Encode(result); err != nil {
		http.Error(rw, fmt.Sprintf("Error encoding response: %v", err), http.StatusInternalServerError)
		return
	}
}

func (h *IntrospectionHandler) introspectToken(r *http.Request, token string) (introspection.Result, error) {
	if h.TokenIntrospector != nil {
		return h.TokenIntrospector.IntrospectToken(r, token)
	}
	h.mu.RLock()
	result, found := h.resultsByToken[token]
	h.mu.RUnlock()
	if !found {
		// An unknown token is reported as inactive, as the authority would do.
		return introspection.Result{Active: false}, nil
	}
	return result, nil
}

// SetResultForToken registers the introspection result to be served for the given token.
func (h *IntrospectionHandler) SetResultForToken(token string, result introspection.Result) {
	h.mu.Lock()
	if h.resultsByToken == nil {
		h.resultsByToken = make(map[string]introspection.Result)
	}
	h.resultsByToken[token] = result
	h.mu.Unlock()
}

// ServedCount returns the number of times the handler has been served.
func (h *IntrospectionHandler) ServedCount() uint64 {
	return h.servedCount.Load()
}

// ResetServedCount resets the number of times the handler has been served.
func (h *IntrospectionHandler) ResetServedCount() {
	h.servedCount.Store(0)
}
