package hashing

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func testParams() Argon2Params {
	return Argon2Params{Memory: 1024, Iterations: 1, Parallelism: 1}
}

func TestHasher_HashAndCompare(t *testing.T) {
	h := NewHasher(testParams())

	t.Run("matches the original secret", func(t *testing.T) {
		encoded, err := h.Hash("s3cret-token")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(encoded, "$argon2id$v=19$m=1024,t=1,p=1$"))
		assert.NotContains(t, encoded, "s3cret-token")

		ok, err := h.Compare("s3cret-token", encoded)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("rejects a different secret", func(t *testing.T) {
		encoded, err := h.Hash("s3cret-token")
		require.NoError(t, err)

		ok, err := h.Compare("s3cret-tokeN", encoded)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("salts every hash", func(t *testing.T) {
		a, err := h.Hash("same")
		require.NoError(t, err)
		b, err := h.Hash("same")
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	})

	t.Run("uses parameters stored in the hash", func(t *testing.T) {
		other := NewHasher(Argon2Params{Memory: 2048, Iterations: 2, Parallelism: 1})
		encoded, err := other.Hash("rotated")
		require.NoError(t, err)

		ok, err := h.Compare("rotated", encoded)
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestHasher_MalformedHash(t *testing.T) {
	h := NewHasher(testParams())

	for _, encoded := range []string{
		"",
		"plaintext",
		"$argon2id$v=19$m=1024,t=1,p=1$onlysalt",
		"$argon2i$v=19$m=1024,t=1,p=1$c2FsdA$a2V5",
		"$argon2id$v=19$m=0,t=1,p=1$c2FsdA$a2V5",
		"$argon2id$v=19$m=1024,t=1,p=1$!!!$a2V5",
	} {
		ok, err := h.Compare("anything", encoded)
		assert.ErrorIs(t, err, ErrInvalidHash, "hash %q", encoded)
		assert.False(t, ok)
	}

	_, err := h.Compare("anything", "$argon2id$v=16$m=1024,t=1,p=1$c2FsdA$a2V5")
	assert.ErrorIs(t, err, ErrIncompatibleVersion)
}

func TestHasher_LegacyBcrypt(t *testing.T) {
	h := NewHasher(testParams())

	legacy, err := bcrypt.GenerateFromPassword([]byte("legacy-token"), bcrypt.MinCost)
	require.NoError(t, err)

	ok, err := h.Compare("legacy-token", string(legacy))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Compare("wrong", string(legacy))
	require.NoError(t, err)
	assert.False(t, ok)

	// PHP's password_hash writes the $2y$ prefix.
	phpStyle := "$2y$" + strings.TrimPrefix(string(legacy), "$2a$")
	ok, err = h.Compare("legacy-token", phpStyle)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestHasher_DummyHashNeverMatches(t *testing.T) {
	h := NewHasher(testParams())

	dummy, err := h.DummyHash()
	require.NoError(t, err)

	for _, secret := range []string{"", "token", dummy} {
		ok, err := h.Compare(secret, dummy)
		require.NoError(t, err)
		assert.False(t, ok)
	}
}
