package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "keygate/pkg/domain"
)

func TestDeriveContextID(t *testing.T) {
	root := RootIdentity{
		ID:    "root-1",
		Owner: id.Principal("alice"),
		Salt:  []byte("0123456789abcdef0123456789abcdef"),
	}

	t.Run("deterministic for identical inputs", func(t *testing.T) {
		first := DeriveContextID(root, id.AppID("social"))
		second := DeriveContextID(root, id.AppID("social"))
		assert.Equal(t, first, second)
	})

	t.Run("distinct application ids yield distinct ids", func(t *testing.T) {
		social := DeriveContextID(root, id.AppID("social"))
		storage := DeriveContextID(root, id.AppID("storage"))
		assert.NotEqual(t, social, storage)
	})

	t.Run("distinct salts yield distinct ids for the same app", func(t *testing.T) {
		other := root
		other.Salt = []byte("fedcba9876543210fedcba9876543210")
		assert.NotEqual(t,
			DeriveContextID(root, id.AppID("social")),
			DeriveContextID(other, id.AppID("social")),
		)
	})

	t.Run("distinct owners yield distinct ids", func(t *testing.T) {
		other := root
		other.Owner = id.Principal("bob")
		assert.NotEqual(t,
			DeriveContextID(root, id.AppID("social")),
			DeriveContextID(other, id.AppID("social")),
		)
	})
}

func TestNewSalt(t *testing.T) {
	t.Run("distinct counters yield distinct salts", func(t *testing.T) {
		first, err := newSalt(id.Principal("alice"), 0)
		require.NoError(t, err)
		second, err := newSalt(id.Principal("alice"), 1)
		require.NoError(t, err)
		assert.NotEqual(t, first, second)
	})

	t.Run("salt has hash-sized output", func(t *testing.T) {
		salt, err := newSalt(id.Principal("alice"), 0)
		require.NoError(t, err)
		assert.Len(t, salt, 32)
	})
}
