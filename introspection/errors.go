/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package introspection

import "fmt"

// ClientError is an error that occurs when the request to the introspection endpoint
// fails at the transport level. It lets callers distinguish "authority unreachable"
// from a negative introspection verdict.
type ClientError struct {
	Inner    error
	Endpoint string
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("error while doing request to introspection endpoint (URL: %q): %s", e.Endpoint, e.Inner.Error())
}

func (e *ClientError) Unwrap() error {
	return e.Inner
}

// NonParsableResponseError is an error that occurs when the introspection endpoint
// responds with a syntactically invalid body.
type NonParsableResponseError struct {
	Inner    error
	Endpoint string
}

func (e *NonParsableResponseError) Error() string {
	return fmt.Sprintf("error while parsing response from introspection endpoint (URL: %q): %s",
		e.Endpoint, e.Inner.Error())
}

func (e *NonParsableResponseError) Unwrap() error {
	return e.Inner
}
