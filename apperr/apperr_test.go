package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	err := New(InsufficientFunds, "Insufficient funds")
	assert.Equal(t, InsufficientFunds, KindOf(err))
	assert.Equal(t, InsufficientFunds, KindOf(fmt.Errorf("withdraw: %w", err)))
	assert.Equal(t, Internal, KindOf(errors.New("boom")))
	assert.Equal(t, Internal, KindOf(nil))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("duplicate key")
	err := Wrap(cause, DuplicateIdentity, "Email already in use")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "Email already in use", MessageOf(err))
	assert.Equal(t, "Email already in use: duplicate key", err.Error())
}

func TestMessageOfUnclassified(t *testing.T) {
	assert.Empty(t, MessageOf(errors.New("db down")))
	assert.Equal(t, "Account not found", MessageOf(Newf(NotFound, "%s not found", "Account")))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "bank_insufficient_capacity", BankInsufficientCapacity.String())
	assert.Equal(t, "internal", Kind(99).String())
}
