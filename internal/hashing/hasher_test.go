package hashing

import (
	"strings"
	"testing"

	"identity-service/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func testConfig(algorithm string) config.HashingConfig {
	return config.HashingConfig{
		Algorithm:         algorithm,
		BcryptCost:        bcrypt.MinCost,
		Argon2MemoryCost:  1024,
		Argon2TimeCost:    1,
		Argon2Parallelism: 1,
	}
}

func TestHasher_Bcrypt(t *testing.T) {
	h := NewHasher(testConfig(AlgorithmBcrypt))

	digest, err := h.Hash("Abc12345!")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(digest, "$2"))
	assert.NotContains(t, digest, "Abc12345!")

	assert.True(t, h.Compare("Abc12345!", digest))
	assert.False(t, h.Compare("wrong", digest))
}

func TestHasher_DefaultCostWhenOutOfRange(t *testing.T) {
	h := NewHasher(config.HashingConfig{BcryptCost: 99})
	assert.Equal(t, bcrypt.DefaultCost, h.bcryptCost)
	assert.Equal(t, AlgorithmBcrypt, h.algorithm)
}

func TestHasher_Argon2id(t *testing.T) {
	h := NewHasher(testConfig(AlgorithmArgon2id))

	digest, err := h.Hash("Abc12345!")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(digest, "$argon2id$v=19$m=1024,t=1,p=1$"))

	assert.True(t, h.Compare("Abc12345!", digest))
	assert.False(t, h.Compare("Abc12345?", digest))
}

func TestHasher_CompareAcrossAlgorithms(t *testing.T) {
	argon := NewHasher(testConfig(AlgorithmArgon2id))
	bc := NewHasher(testConfig(AlgorithmBcrypt))

	digest, err := argon.Hash("pw")
	require.NoError(t, err)
	assert.True(t, bc.Compare("pw", digest))

	digest, err = bc.Hash("pw")
	require.NoError(t, err)
	assert.True(t, argon.Compare("pw", digest))
}

func TestHasher_MalformedDigest(t *testing.T) {
	h := NewHasher(testConfig(AlgorithmBcrypt))

	assert.False(t, h.Compare("pw", ""))
	assert.False(t, h.Compare("pw", "plaintext"))
	assert.False(t, h.Compare("pw", "$argon2id$v=19$garbage"))
	assert.False(t, h.Compare("pw", "$argon2id$v=18$m=1,t=1,p=1$AAAA$AAAA"))
}
