/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package introspection provides a client for the OAuth2 token introspection endpoint (RFC 7662)
// and a verdict cache on top of it.
// Client is to be used for plain, uncached introspection.
// CachingClient is to be used when introspection verdicts should be cached and
// concurrent lookups for the same token should be coalesced into a single call.
package introspection
