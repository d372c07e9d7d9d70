package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// NewOTP returns a uniformly random numeric code of the given length.
func NewOTP(digits int) (string, error) {
	if digits < 6 || digits > 10 {
		return "", errors.New("invalid otp digits")
	}

	var b strings.Builder
	b.Grow(digits)

	max := big.NewInt(10)
	for i := 0; i < digits; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}

	otp := b.String()
	if len(otp) != digits {
		return "", fmt.Errorf("invalid otp generation length")
	}
	return otp, nil
}

// HashToken digests an opaque token for storage. Records hold only the
// digest so a cache dump never yields usable tokens.
func HashToken(token string) [32]byte {
	return sha256.Sum256([]byte(token))
}
