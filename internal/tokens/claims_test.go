// ABOUTME: Unit tests for unverified token claims inspection
// ABOUTME: Covers subject/expiry extraction, malformed tokens, and expiry reporting

package tokens

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mintToken(t *testing.T, sub string, expiresIn time.Duration) string {
	t.Helper()
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": sub,
		"iat": now.Unix(),
		"exp": now.Add(expiresIn).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func TestInspectExtractsClaims(t *testing.T) {
	token := mintToken(t, "user-123", time.Hour)

	tc, err := Inspect(token)
	require.NoError(t, err)

	assert.Equal(t, "user-123", tc.Subject)
	assert.WithinDuration(t, time.Now().Add(time.Hour), tc.ExpiresAt, 5*time.Second)
	assert.False(t, tc.Expired())
}

func TestInspectExpiredToken(t *testing.T) {
	token := mintToken(t, "user-123", -time.Hour)

	tc, err := Inspect(token)
	require.NoError(t, err)
	assert.True(t, tc.Expired())
}

func TestInspectMalformedToken(t *testing.T) {
	for _, token := range []string{"", "not-a-jwt", "a.b"} {
		_, err := Inspect(token)
		assert.ErrorIs(t, err, ErrMalformedToken, "token %q", token)
	}
}

func TestExpiredWithoutExpiryClaim(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "u"}).
		SignedString([]byte("test-secret"))
	require.NoError(t, err)

	tc, err := Inspect(token)
	require.NoError(t, err)
	assert.True(t, tc.ExpiresAt.IsZero())
	assert.False(t, tc.Expired())
}
