// Package database is the ledger store: users, accounts, loans and the
// append-only transaction log, behind one Store interface with an in-process
// backend and a MySQL backend.
package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"scrooge-bank/models"
)

var (
	ErrNotFound         = errors.New("record not found")
	ErrDuplicateEmail   = errors.New("email already in use")
	ErrDuplicateAccount = errors.New("user already has an account")
)

// Querier is the set of record operations available inside a View or Atomic
// unit.
type Querier interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	CreateAccount(ctx context.Context, a *models.Account) error
	GetAccount(ctx context.Context, id int64) (*models.Account, error)
	ListAccountsByUser(ctx context.Context, userID int64) ([]models.Account, error)
	UpdateAccountBalance(ctx context.Context, id, balance int64) error
	CloseAccount(ctx context.Context, id int64) error

	CreateLoan(ctx context.Context, l *models.Loan) error
	GetLoan(ctx context.Context, id int64) (*models.Loan, error)
	ListLoansByUser(ctx context.Context, userID int64) ([]models.Loan, error)
	UpdateLoan(ctx context.Context, id, outstanding int64, status models.Status) error

	InsertTransaction(ctx context.Context, t *models.Transaction) error
	ListTransactionsByUser(ctx context.Context, userID int64, f TransactionFilter) ([]models.Transaction, error)

	// Totals saturate at math.MaxInt64.
	SumAccountBalances(ctx context.Context) (int64, error)
	SumLoanOutstanding(ctx context.Context) (int64, error)
}

// Store hands out Queriers. View gives a consistent read; Atomic serializes a
// read-decide-write unit against every other Atomic call and discards all of
// its writes when fn returns an error.
type Store interface {
	View(ctx context.Context, fn func(q Querier) error) error
	Atomic(ctx context.Context, fn func(q Querier) error) error
	Ping(ctx context.Context) error
	Close() error
}

// TransactionFilter bounds a listing by creation time. Zero values are open
// ends; To is inclusive.
type TransactionFilter struct {
	From time.Time
	To   time.Time
}

func (f TransactionFilter) Match(t time.Time) bool {
	if !f.From.IsZero() && t.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && t.After(f.To) {
		return false
	}
	return true
}

const (
	DriverMemory = "memory"
	DriverMySQL  = "mysql"
)

type Options struct {
	Driver string

	// memory
	DataFile string

	// mysql
	MySQLAddr     string
	MySQLUser     string
	MySQLPassword string
	MySQLDatabase string
}

func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Driver {
	case DriverMemory, "":
		return OpenMemory(opts.DataFile)
	case DriverMySQL:
		return OpenMySQL(ctx, MySQLDSN(opts))
	default:
		return nil, fmt.Errorf("unknown store driver %q", opts.Driver)
	}
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}
