/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package introspection

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"time"

	jwtgo "github.com/golang-jwt/jwt/v5"
)

// Result is a verdict of the introspection endpoint for a single token.
// It is immutable once created.
type Result struct {
	// Active reports whether the authority considers the token active.
	Active bool

	// TokenType is an optional token type hint ("bearer" in most cases).
	TokenType string

	// ExpiresAt is the "exp" claim. Nil means the token never expires;
	// the absence is a first-class state, not an error.
	ExpiresAt *jwtgo.NumericDate

	// NotBefore is the "nbf" claim. Nil means the token is valid from the moment it was issued.
	NotBefore *jwtgo.NumericDate

	// Extra holds all other claims the authority returned.
	// They are preserved as is and not interpreted.
	Extra map[string]interface{}
}

const (
	claimActive    = "active"
	claimTokenType = "token_type"
	claimExp       = "exp"
	claimNbf       = "nbf"
)

// UnmarshalJSON implements json.Unmarshaler.
// Unknown fields are kept in Extra, never treated as errors
// (forward compatibility with the authority's schema evolution).
func (r *Result) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	claims := make(map[string]interface{})
	if err := dec.Decode(&claims); err != nil {
		return err
	}

	*r = Result{}
	if active, ok := claims[claimActive].(bool); ok {
		r.Active = active
		delete(claims, claimActive)
	}
	if tokenType, ok := claims[claimTokenType].(string); ok {
		r.TokenType = tokenType
		delete(claims, claimTokenType)
	}
	var err error
	if r.ExpiresAt, err = popNumericDateClaim(claims, claimExp); err != nil {
		return err
	}
	if r.NotBefore, err = popNumericDateClaim(claims, claimNbf); err != nil {
		return err
	}
	if len(claims) != 0 {
		r.Extra = claims
	}
	return nil
}

// MarshalJSON implements json.Marshaler. It is the inverse of UnmarshalJSON
// and is mostly useful for test servers responding with canned verdicts.
func (r Result) MarshalJSON() ([]byte, error) {
	claims := make(map[string]interface{}, len(r.Extra)+4)
	for k, v := range r.Extra {
		claims[k] = v
	}
	claims[claimActive] = r.Active
	if r.TokenType != "" {
		claims[claimTokenType] = r.TokenType
	}
	if r.ExpiresAt != nil {
		claims[claimExp] = r.ExpiresAt.Unix()
	}
	if r.NotBefore != nil {
		claims[claimNbf] = r.NotBefore.Unix()
	}
	return json.Marshal(claims)
}

func popNumericDateClaim(claims map[string]interface{}, name string) (*jwtgo.NumericDate, error) {
	rawVal, ok := claims[name]
	if !ok {
		return nil, nil
	}
	num, ok := rawVal.(json.Number)
	if !ok {
		return nil, fmt.Errorf("%q claim has unexpected type %T", name, rawVal)
	}
	epochSeconds, err := num.Float64()
	if err != nil {
		return nil, fmt.Errorf("parse %q claim: %w", name, err)
	}
	sec, frac := math.Modf(epochSeconds)
	delete(claims, name)
	return jwtgo.NewNumericDate(time.Unix(int64(sec), int64(frac*float64(time.Second)))), nil
}
