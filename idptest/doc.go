/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package idptest provides a simple HTTP server mocking an OAuth 2.0
// token introspection authority for testing purposes.
package idptest
