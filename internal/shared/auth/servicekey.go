package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidServiceKey = errors.New("invalid service key")

// ServiceKeyVerifier checks elevated service credentials against a bcrypt
// hash. An empty hash rejects every key.
type ServiceKeyVerifier struct {
	hash []byte
}

func NewServiceKeyVerifier(hash string) *ServiceKeyVerifier {
	return &ServiceKeyVerifier{hash: []byte(hash)}
}

// Enabled reports whether a hash is configured.
func (v *ServiceKeyVerifier) Enabled() bool {
	return len(v.hash) > 0
}

func (v *ServiceKeyVerifier) Verify(key string) error {
	if !v.Enabled() || key == "" {
		return ErrInvalidServiceKey
	}
	if err := bcrypt.CompareHashAndPassword(v.hash, []byte(key)); err != nil {
		return ErrInvalidServiceKey
	}
	return nil
}

// HashServiceKey hashes a plaintext service key for SERVICE_KEY_HASH.
func HashServiceKey(key string) (string, error) {
	if key == "" {
		return "", errors.New("key is required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
