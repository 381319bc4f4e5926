package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "keygate/pkg/domain"
)

const testKey = "test-signing-key"

func signToken(t *testing.T, key string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	require.NoError(t, err)
	return token
}

func TestValidateToken(t *testing.T) {
	validator := NewValidator(testKey)

	t.Run("valid token yields the subject as caller", func(t *testing.T) {
		token := signToken(t, testKey, jwt.MapClaims{"sub": "alice"})
		claims, err := validator.ValidateToken(token)
		require.NoError(t, err)
		assert.Equal(t, id.Principal("alice"), claims.Caller)
	})

	t.Run("wrong key is rejected", func(t *testing.T) {
		token := signToken(t, "other-key", jwt.MapClaims{"sub": "alice"})
		_, err := validator.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("expired token is rejected", func(t *testing.T) {
		token := signToken(t, testKey, jwt.MapClaims{
			"sub": "alice",
			"exp": time.Now().Add(-time.Hour).Unix(),
		})
		_, err := validator.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("missing subject is rejected", func(t *testing.T) {
		token := signToken(t, testKey, jwt.MapClaims{"aud": "keygate"})
		_, err := validator.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("garbage is rejected", func(t *testing.T) {
		_, err := validator.ValidateToken("not-a-token")
		assert.Error(t, err)
	})
}
