package auth_test

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"go.pilab.hu/deviceauth/internal/auth"
)

func TestSecretHasher(t *testing.T) {
	hasher := auth.NewBcryptSecretHasher(bcrypt.MinCost)

	hash, err := hasher.Hash("s3cret")
	require.NoError(t, err)
	assert.NoError(t, hasher.Verify(hash, "s3cret"))
	assert.ErrorIs(t, hasher.Verify(hash, "wrong"), bcrypt.ErrMismatchedHashAndPassword)

	t.Run("TestTooLongSecret", func(t *testing.T) {
		tooLong := make([]byte, 73)
		_, _ = rand.Read(tooLong)

		_, err := hasher.Hash(string(tooLong))
		assert.Error(t, err)
	})
}

func TestNewBcryptSecretHasher_DefaultCost(t *testing.T) {
	assert.Equal(t, bcrypt.DefaultCost, auth.NewBcryptSecretHasher(0).Cost)
}
