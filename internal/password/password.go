// Package password is the hashing service boundary: adaptive hashing with
// constant-time verification, safe for concurrent use.
package password

import (
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// hashedMark prefixes every stored hash so a plaintext can never be mistaken
// for one. Kept for compatibility with existing room data.
const hashedMark = "hashed:"

const cost = 10

// Hash returns an opaque value suitable for storage.
func Hash(plain string) (string, error) {
	raw, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return hashedMark + string(raw), nil
}

// Verify reports whether plain matches the stored hash. A mismatch is not an
// error; errors mean the stored value is not a usable hash.
func Verify(hashed, plain string) (bool, error) {
	raw := strings.TrimPrefix(hashed, hashedMark)
	err := bcrypt.CompareHashAndPassword([]byte(raw), []byte(plain))
	if err == nil {
		return true, nil
	}
	if err == bcrypt.ErrMismatchedHashAndPassword {
		return false, nil
	}
	return false, err
}
