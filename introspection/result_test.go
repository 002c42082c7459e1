/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package introspection

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestResult_UnmarshalJSON(t *testing.T) {
	t.Run("known claims are extracted, the rest are kept as is", func(t *testing.T) {
		body := `{
			"active": true,
			"token_type": "Bearer",
			"exp": 1718719058,
			"nbf": 1718715458,
			"sub": "user-1",
			"scope": "vault:read vault:write",
			"custom_count": 42
		}`
		var res Result
		require.NoError(t, json.Unmarshal([]byte(body), &res))
		require.True(t, res.Active)
		require.Equal(t, "Bearer", res.TokenType)
		require.Equal(t, int64(1718719058), res.ExpiresAt.Unix())
		require.Equal(t, int64(1718715458), res.NotBefore.Unix())
		require.Equal(t, "user-1", res.Extra["sub"])
		require.Equal(t, "vault:read vault:write", res.Extra["scope"])
		require.Equal(t, json.Number("42"), res.Extra["custom_count"])
		// Extracted claims must not leak into Extra.
		require.NotContains(t, res.Extra, "active")
		require.NotContains(t, res.Extra, "exp")
		require.NotContains(t, res.Extra, "nbf")
	})

	t.Run("minimal inactive verdict", func(t *testing.T) {
		var res Result
		require.NoError(t, json.Unmarshal([]byte(`{"active": false}`), &res))
		require.False(t, res.Active)
		require.Nil(t, res.ExpiresAt)
		require.Nil(t, res.NotBefore)
		require.Empty(t, res.Extra)
	})

	t.Run("fractional epoch seconds", func(t *testing.T) {
		var res Result
		require.NoError(t, json.Unmarshal([]byte(`{"active": true, "exp": 1718719058.5}`), &res))
		require.Equal(t, time.Unix(1718719058, int64(500*time.Millisecond)).Unix(), res.ExpiresAt.Unix())
	})

	t.Run("wrongly typed claim", func(t *testing.T) {
		var res Result
		err := json.Unmarshal([]byte(`{"active": true, "exp": "tomorrow"}`), &res)
		require.ErrorContains(t, err, `"exp" claim has unexpected type`)
	})

	t.Run("wrongly typed active claim is not interpreted", func(t *testing.T) {
		var res Result
		require.NoError(t, json.Unmarshal([]byte(`{"active": "yes"}`), &res))
		require.False(t, res.Active)
		require.Equal(t, "yes", res.Extra["active"])
	})
}
