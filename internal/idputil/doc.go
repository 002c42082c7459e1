/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package idputil provides utilities for working with the token introspection authority.
// It's used in the internal code and not exposed to the public API.
package idputil
