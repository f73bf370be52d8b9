package utils

import (
	"crypto/rand"
	"math/big"
)

// joinCodeAlphabet leaves out 0/O/1/I/L so codes survive being read aloud
// or copied off a projector
const joinCodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// GenerateJoinCode produces a session join code of the given length
func GenerateJoinCode(length int) (string, error) {
	if length <= 0 {
		length = 6
	}
	max := big.NewInt(int64(len(joinCodeAlphabet)))
	code := make([]byte, length)
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		code[i] = joinCodeAlphabet[n.Int64()]
	}
	return string(code), nil
}
