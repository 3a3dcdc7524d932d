package services

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	refCodePrefix   = "LW-"
	refCodeLength   = 6
	refCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

// GenerateRefCode returns a code like LW-7KQ2MX. Ambiguous characters (0/O, 1/I) are left out.
func GenerateRefCode() (string, error) {
	buf := make([]byte, refCodeLength)
	max := big.NewInt(int64(len(refCodeAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate ref code: %w", err)
		}
		buf[i] = refCodeAlphabet[n.Int64()]
	}
	return refCodePrefix + string(buf), nil
}
