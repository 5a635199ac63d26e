// Package service runs the banking operations: it resolves ownership, asks
// the ledger for the new state and persists it with its transaction row in a
// single atomic store unit.
package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"scrooge-bank/apperr"
	"scrooge-bank/database"
	"scrooge-bank/ledger"
	"scrooge-bank/models"
)

var (
	ErrEmailInUse        = apperr.New(apperr.DuplicateIdentity, "Email already in use")
	ErrUserNotFound      = apperr.New(apperr.NotFound, "User not found")
	ErrAccountNotFound   = apperr.New(apperr.NotFound, "Account not found")
	ErrLoanNotFound      = apperr.New(apperr.NotFound, "Loan not found")
	ErrOpenAccountExists = apperr.New(apperr.Validation, "User already has an open account")
	ErrAccountExists     = apperr.New(apperr.Validation, "User already has an account")
	ErrUnsupportedType   = apperr.New(apperr.Validation, `"type" must be [checking]`)
	ErrNotDepositOwner   = apperr.New(apperr.Forbidden, "Cannot deposit to others accounts")
	ErrNotWithdrawOwner  = apperr.New(apperr.Forbidden, "Cannot withdraw from others accounts")
)

type Bank struct {
	store  database.Store
	policy ledger.Policy
	log    *zap.Logger
}

func NewBank(store database.Store, policy ledger.Policy, log *zap.Logger) *Bank {
	return &Bank{store: store, policy: policy, log: log}
}

func (b *Bank) Policy() ledger.Policy {
	return b.policy
}

// NormalizeEmail is applied before every email write and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// internal marks storage failures that have no caller-facing meaning.
func internal(err error) error {
	var e *apperr.Error
	if errors.As(err, &e) {
		return err
	}
	return apperr.Wrap(err, apperr.Internal, "Internal Server Error")
}

func (b *Bank) RegisterUser(ctx context.Context, name, email, passwordHash string, role models.Role) (*models.User, error) {
	if role == "" {
		role = models.RoleUser
	}
	u := &models.User{
		Name:         strings.TrimSpace(name),
		Email:        NormalizeEmail(email),
		PasswordHash: passwordHash,
		Role:         role,
	}
	err := b.store.Atomic(ctx, func(q database.Querier) error {
		return q.CreateUser(ctx, u)
	})
	if errors.Is(err, database.ErrDuplicateEmail) {
		return nil, ErrEmailInUse
	}
	if err != nil {
		return nil, internal(err)
	}
	b.log.Info("user registered", zap.Int64("user_id", u.ID), zap.String("role", string(u.Role)))
	return u, nil
}

func (b *Bank) UserByID(ctx context.Context, id int64) (*models.User, error) {
	var u *models.User
	err := b.store.View(ctx, func(q database.Querier) error {
		var err error
		u, err = q.GetUserByID(ctx, id)
		return err
	})
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, internal(err)
	}
	return u, nil
}

func (b *Bank) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u *models.User
	err := b.store.View(ctx, func(q database.Querier) error {
		var err error
		u, err = q.GetUserByEmail(ctx, NormalizeEmail(email))
		return err
	})
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, internal(err)
	}
	return u, nil
}

// Status is the admin solvency view.
func (b *Bank) Status(ctx context.Context) (models.BankStatus, error) {
	var deposits, loans int64
	err := b.store.View(ctx, func(q database.Querier) error {
		var err error
		if deposits, err = q.SumAccountBalances(ctx); err != nil {
			return err
		}
		loans, err = q.SumLoanOutstanding(ctx)
		return err
	})
	if err != nil {
		return models.BankStatus{}, internal(err)
	}
	return b.policy.Status(deposits, loans), nil
}
