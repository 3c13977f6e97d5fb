package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// MaxPasswordBytes is bcrypt's input limit. Longer inputs are truncated before
// both hashing and verifying, so two passwords sharing the first 72 bytes are
// indistinguishable.
const MaxPasswordBytes = 72

// DefaultCost is the bcrypt work factor used when none is configured.
const DefaultCost = 12

// PasswordHasher is what the login and registration flows need from a credential hasher.
type PasswordHasher interface {
	Hash(pw string) (string, error)
	Verify(pw, hash string) bool
	NeedsRehash(hash string) bool
}

// BcryptHasher hashes with bcrypt at a fixed cost.
type BcryptHasher struct{ Cost int }

// NewBcryptHasher validates the cost against bcrypt's accepted range.
func NewBcryptHasher(cost int) (BcryptHasher, error) {
	if cost == 0 {
		cost = DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return BcryptHasher{}, fmt.Errorf("bcrypt cost %d out of range [%d,%d]", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	return BcryptHasher{Cost: cost}, nil
}

func (b BcryptHasher) cost() int {
	if b.Cost == 0 {
		return DefaultCost
	}
	return b.Cost
}

// Hash returns a self-describing digest ($2a$<cost>$<salt+hash>).
func (b BcryptHasher) Hash(pw string) (string, error) {
	h, err := bcrypt.GenerateFromPassword(truncate(pw), b.cost())
	if err != nil {
		return "", err
	}
	return string(h), nil
}

func (b BcryptHasher) Verify(pw, hash string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), truncate(pw)) == nil
}

// NeedsRehash reports digests produced with a lower cost than configured.
// Unparseable digests are left alone; Verify already rejects them.
func (b BcryptHasher) NeedsRehash(hash string) bool {
	c, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		return false
	}
	return c < b.cost()
}

func truncate(pw string) []byte {
	p := []byte(pw)
	if len(p) > MaxPasswordBytes {
		p = p[:MaxPasswordBytes]
	}
	return p
}
