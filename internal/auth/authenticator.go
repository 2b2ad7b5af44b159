// Package auth hashes plaintext passwords for storage and verifies
// candidates against stored hashes. Plaintext is never stored or logged.
package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/tradechamp/tradechamp-server/pkg/apperrors"
)

// DefaultCost is the bcrypt work factor used when none is configured.
const DefaultCost = 10

// Authenticator performs one-way password hashing and verification.
// The work factor is fixed at construction; hashes created under an
// older cost keep verifying because bcrypt embeds the cost in the hash.
type Authenticator struct {
	cost int
}

func New(cost int) *Authenticator {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return &Authenticator{cost: cost}
}

// Cost returns the configured work factor.
func (a *Authenticator) Cost() int { return a.cost }

// Hash computes a salted one-way hash of the plaintext.
func (a *Authenticator) Hash(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), a.cost)
	if err != nil {
		return "", apperrors.Hashing(err)
	}
	return string(hash), nil
}

// Verify reports whether candidate matches the stored hash. A mismatch
// yields (false, nil); only a failure of the comparison primitive itself,
// such as a malformed stored hash, yields an error.
func (a *Authenticator) Verify(storedHash, candidate string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(candidate))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, apperrors.AuthCompare(err)
	}
}
