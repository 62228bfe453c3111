package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	pbkdf2Iterations = 10000
	saltSize         = 16
)

var ErrEmptyPassword = errors.New("password required")

// HashPassword derives a PBKDF2-HMAC-SHA256 key with a fresh 16-byte salt.
// Both values are returned base64-encoded; the hash encodes the hex digest.
func HashPassword(password string) (hash string, salt string, err error) {
	if password == "" {
		return "", "", ErrEmptyPassword
	}
	raw := make([]byte, saltSize)
	if _, err := rand.Read(raw); err != nil {
		return "", "", fmt.Errorf("generate salt: %w", err)
	}
	return HashPasswordWithSalt(password, raw), base64.StdEncoding.EncodeToString(raw), nil
}

// HashPasswordWithSalt is the deterministic part of HashPassword.
func HashPasswordWithSalt(password string, salt []byte) string {
	dk := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, sha256.Size, sha256.New)
	return base64.StdEncoding.EncodeToString([]byte(hex.EncodeToString(dk)))
}

// CheckPassword validates a password against a stored hash and salt.
func CheckPassword(password, hash, salt string) bool {
	if password == "" || hash == "" || salt == "" {
		return false
	}
	raw, err := base64.StdEncoding.DecodeString(salt)
	if err != nil {
		return false
	}
	candidate := HashPasswordWithSalt(password, raw)
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(hash)) == 1
}
