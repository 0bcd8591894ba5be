// pkg/crypto/bcrypt.go

package crypto

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword hashes the given password using bcrypt at the default cost
// (10). nginx on libxcrypt systems verifies $2a/$2b hashes natively, so the
// result drops straight into an htpasswd file.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", errors.New("bcrypt hash failed: " + err.Error())
	}
	return string(hash), nil
}

// ComparePassword checks if password matches the bcrypt hash.
func ComparePassword(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// ComparePasswordBool returns true if password matches hash.
func ComparePasswordBool(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
