package yespay

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

func randomNumber() (string, error) {
	min := big.NewInt(100000000000000000)
	max := big.NewInt(999999999999999999)
	n, err := rand.Int(rand.Reader, new(big.Int).Sub(max, min))
	if err != nil {
		return "", err
	}

	n.Add(n, min)
	return n.String(), nil
}

// CompareHash verifies a bcrypt hash against the shared secret carried in
// provider notifications.
func CompareHash(hash, secret []byte) bool {
	if err := bcrypt.CompareHashAndPassword(hash, secret); err != nil {
		return false
	}
	return true
}

// GenerateHash bcrypt-hashes a secret, used when provisioning credentials.
func GenerateHash(secret []byte) (string, error) {
	hash, err := bcrypt.GenerateFromPassword(secret, bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Hmac256 is a function to generate HMAC256 hash.
func Hmac256(body, key []byte) string {
	hash := hmac.New(sha256.New, key)
	hash.Write(body)
	return hex.EncodeToString(hash.Sum(nil))
}
