package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"

	"scrooge-bank/apperr"
)

// MaxSecretBytes is bcrypt's input limit.
const MaxSecretBytes = 72

var ErrSecretTooLong = apperr.New(apperr.Validation, `"password" length must be less than or equal to 72 bytes long`)

// DefaultCost is the bcrypt work factor used when none is configured.
const DefaultCost = 8

type Hasher struct {
	cost int
}

func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return &Hasher{cost: cost}
}

func (h *Hasher) HashSecret(plaintext string) (string, error) {
	if len(plaintext) > MaxSecretBytes {
		return "", ErrSecretTooLong
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", ErrSecretTooLong
	}
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// VerifySecret reports whether plaintext matches hash. A malformed hash is an
// error; a plain mismatch is not.
func (h *Hasher) VerifySecret(plaintext, hash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, err
}
