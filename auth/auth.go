package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

var ErrEmptyCredentials = errors.New("username and password must not be empty")

// bcrypt ignores input past this length, so longer passwords never match.
const maxPasswordBytes = 72

// Checker verifies Basic credentials against the single configured account.
type Checker struct {
	usernameSum  [sha256.Size]byte
	passwordHash []byte
}

// NewChecker hashes the expected password once; cost 0 means bcrypt.DefaultCost.
func NewChecker(username, password string, cost int) (*Checker, error) {
	if username == "" || password == "" {
		return nil, ErrEmptyCredentials
	}
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	return &Checker{
		usernameSum:  sha256.Sum256([]byte(username)),
		passwordHash: passwordHash,
	}, nil
}

// Check reports whether both values match. Both comparisons always run and
// neither time depends on where the first differing byte is.
func (c *Checker) Check(username, password string) bool {
	sum := sha256.Sum256([]byte(username))
	usernameOK := subtle.ConstantTimeCompare(sum[:], c.usernameSum[:]) == 1
	passwordOK := bcrypt.CompareHashAndPassword(c.passwordHash, []byte(password)) == nil &&
		len(password) <= maxPasswordBytes
	return usernameOK && passwordOK
}
