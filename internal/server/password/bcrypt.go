// Package password hashes and verifies account secrets with bcrypt.
package password

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost matches the cost used by the existing account records.
const DefaultCost = 10

// maxBytes is the bcrypt input limit; longer inputs are rejected rather
// than silently truncated.
const maxBytes = 72

var ErrTooLong = errors.New("password exceeds 72 bytes")

// Bcrypt hashes with a fixed cost. It is safe for concurrent use.
type Bcrypt struct {
	cost  int
	dummy []byte
}

func NewBcrypt(cost int) (*Bcrypt, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range [%d, %d]", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}

	// A hash of random bytes at the same cost lets VerifyDummy spend the
	// same time as a real comparison.
	seed := make([]byte, 16)
	if _, err := rand.Read(seed); err != nil {
		return nil, err
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte(hex.EncodeToString(seed)), cost)
	if err != nil {
		return nil, err
	}

	return &Bcrypt{cost: cost, dummy: dummy}, nil
}

func (b *Bcrypt) Hash(password string) (string, error) {
	if len(password) > maxBytes {
		return "", ErrTooLong
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), b.cost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// Verify reports whether password matches the encoded hash. Malformed
// hashes never verify.
func (b *Bcrypt) Verify(password, encoded string) bool {
	return bcrypt.CompareHashAndPassword([]byte(encoded), []byte(password)) == nil
}

// VerifyDummy burns one comparison and always reports false. Callers use it
// when the account does not exist so the response time does not reveal that.
func (b *Bcrypt) VerifyDummy(password string) bool {
	_ = bcrypt.CompareHashAndPassword(b.dummy, []byte(password))
	return false
}

// NeedsUpgrade reports whether encoded was produced with a lower cost.
func (b *Bcrypt) NeedsUpgrade(encoded string) (bool, error) {
	cost, err := bcrypt.Cost([]byte(encoded))
	if err != nil {
		return false, err
	}
	return cost < b.cost, nil
}
