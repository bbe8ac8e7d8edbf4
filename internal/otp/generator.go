package otp

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// Digits is the length of every generated code.
const Digits = 6

var upperBound = big.NewInt(1_000_000)

// Generate returns a uniformly random 6-digit code, both in its zero-padded
// wire form and as the integer that is stored on the account.
func Generate() (string, int, error) {
	n, err := rand.Int(rand.Reader, upperBound)
	if err != nil {
		return "", 0, fmt.Errorf("failed to generate otp: %w", err)
	}
	v := int(n.Int64())
	return fmt.Sprintf("%0*d", Digits, v), v, nil
}
