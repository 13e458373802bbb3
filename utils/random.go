package utils

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
)

// GenerateCode returns an uppercase hex string from n random bytes, used
// for order confirmation codes.
func GenerateCode(n int) (string, error) {
	byt := make([]byte, n)

	if _, err := rand.Read(byt); err != nil {
		return "", err
	}

	return strings.ToUpper(hex.EncodeToString(byt)), nil
}

// GenerateReference returns a numeric reference of the given length, used
// as the payment-provider reference number of one checkout attempt.
func GenerateReference(length int) (string, error) {
	const charset = "0123456789"

	code := make([]byte, length)

	if _, err := rand.Read(code); err != nil {
		return "", err
	}

	for i := 0; i < length; i++ {
		code[i] = charset[int(code[i])%len(charset)]
	}

	return string(code), nil
}
