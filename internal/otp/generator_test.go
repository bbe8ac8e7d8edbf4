package otp

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	for i := 0; i < 200; i++ {
		code, value, err := Generate()
		require.NoError(t, err)
		assert.Len(t, code, Digits)

		parsed, err := strconv.Atoi(code)
		require.NoError(t, err)
		assert.Equal(t, value, parsed)
		assert.GreaterOrEqual(t, value, 0)
		assert.Less(t, value, 1_000_000)
	}
}

func TestGenerate_Varies(t *testing.T) {
	seen := make(map[int]struct{})
	for i := 0; i < 50; i++ {
		_, v, err := Generate()
		require.NoError(t, err)
		seen[v] = struct{}{}
	}
	assert.Greater(t, len(seen), 1)
}
