package service

import (
	"context"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"scrooge-bank/apperr"
	"scrooge-bank/database"
	"scrooge-bank/ledger"
	"scrooge-bank/models"
)

func newBank(t *testing.T) *Bank {
	t.Helper()
	store, err := database.OpenMemory("")
	require.NoError(t, err)
	return NewBank(store, ledger.DefaultPolicy(), zaptest.NewLogger(t))
}

func register(t *testing.T, b *Bank, email string) *models.User {
	t.Helper()
	u, err := b.RegisterUser(context.Background(), "Alice", email, "hash", "")
	require.NoError(t, err)
	return u
}

func TestRegisterUser(t *testing.T) {
	ctx := context.Background()
	b := newBank(t)

	u := register(t, b, "  Alice@Example.com ")
	assert.Equal(t, "alice@example.com", u.Email)
	assert.Equal(t, models.RoleUser, u.Role)

	_, err := b.RegisterUser(ctx, "Again", "ALICE@example.com", "hash", "")
	assert.ErrorIs(t, err, ErrEmailInUse)
	assert.Equal(t, apperr.DuplicateIdentity, apperr.KindOf(err))

	got, err := b.UserByEmail(ctx, "alice@EXAMPLE.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = b.UserByID(ctx, 99)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestConcurrentDuplicateRegistration(t *testing.T) {
	b := newBank(t)
	ctx := context.Background()

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := b.RegisterUser(ctx, "Racer", "race@example.com", "hash", "")
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
			} else {
				assert.ErrorIs(t, err, ErrEmailInUse)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, successes)
}

func TestScenarioAlice(t *testing.T) {
	ctx := context.Background()
	b := newBank(t)
	alice := register(t, b, "alice@example.com")

	acc, err := b.OpenAccount(ctx, alice.ID, models.AccountChecking)
	require.NoError(t, err)
	assert.Equal(t, models.StatusOpen, acc.Status)
	assert.Equal(t, "USD", acc.Currency)

	res, err := b.Deposit(ctx, alice.ID, acc.ID, 1000)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), res.Account.Balance)
	assert.Equal(t, int64(1000), *res.Transaction.BalanceAfter)
	assert.Equal(t, models.TxDeposit, res.Transaction.Type)

	res, err = b.Withdraw(ctx, alice.ID, acc.ID, 200)
	require.NoError(t, err)
	assert.Equal(t, int64(800), res.Account.Balance)

	loan, err := b.ApplyLoan(ctx, alice.ID, 50000)
	require.NoError(t, err)
	assert.Equal(t, int64(50000), loan.Principal)
	assert.Equal(t, int64(50000), loan.Outstanding)

	loan, err = b.PayLoan(ctx, alice.ID, loan.ID, 10000)
	require.NoError(t, err)
	assert.Equal(t, int64(40000), loan.Outstanding)
	assert.Equal(t, models.StatusOpen, loan.Status)

	txs, err := b.ListTransactions(ctx, alice.ID, database.TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, txs, 4)
	types := []models.TransactionType{txs[0].Type, txs[1].Type, txs[2].Type, txs[3].Type}
	assert.Equal(t, []models.TransactionType{
		models.TxDeposit, models.TxWithdrawal, models.TxLoanDisbursement, models.TxLoanPayment,
	}, types)
	assert.Nil(t, txs[2].BalanceAfter)
	assert.Nil(t, txs[3].AccountID)

	status, err := b.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.BankStatus{BankOnHand: 250200, TotalLoans: 40000, TotalDeposits: 800}, status)
}

func TestWithdrawInsufficientLeavesBalance(t *testing.T) {
	ctx := context.Background()
	b := newBank(t)
	u := register(t, b, "alice@example.com")
	acc, err := b.OpenAccount(ctx, u.ID, models.AccountChecking)
	require.NoError(t, err)
	_, err = b.Deposit(ctx, u.ID, acc.ID, 800)
	require.NoError(t, err)

	_, err = b.Withdraw(ctx, u.ID, acc.ID, 999999)
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)

	got, err := b.GetAccount(ctx, u.ID, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(800), got.Balance)

	txs, err := b.ListTransactions(ctx, u.ID, database.TransactionFilter{})
	require.NoError(t, err)
	assert.Len(t, txs, 1, "rejected withdrawal writes no ledger row")
}

func TestAccountOwnership(t *testing.T) {
	ctx := context.Background()
	b := newBank(t)
	alice := register(t, b, "alice@example.com")
	bob := register(t, b, "bob@example.com")
	acc, err := b.OpenAccount(ctx, alice.ID, models.AccountChecking)
	require.NoError(t, err)

	_, err = b.Deposit(ctx, bob.ID, 999, 10)
	assert.ErrorIs(t, err, ErrAccountNotFound)

	_, err = b.Deposit(ctx, bob.ID, acc.ID, 10)
	assert.ErrorIs(t, err, ErrNotDepositOwner)
	assert.Equal(t, apperr.Forbidden, apperr.KindOf(err))

	_, err = b.Withdraw(ctx, bob.ID, acc.ID, 10)
	assert.ErrorIs(t, err, ErrNotWithdrawOwner)

	_, err = b.GetAccount(ctx, bob.ID, acc.ID)
	assert.ErrorIs(t, err, ErrAccountNotFound)

	assert.ErrorIs(t, b.CloseAccount(ctx, bob.ID, acc.ID), ErrAccountNotFound)

	list, err := b.ListAccounts(ctx, bob.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestOneAccountPerUser(t *testing.T) {
	ctx := context.Background()
	b := newBank(t)
	u := register(t, b, "alice@example.com")

	_, err := b.OpenAccount(ctx, u.ID, "savings")
	assert.ErrorIs(t, err, ErrUnsupportedType)

	first, err := b.OpenAccount(ctx, u.ID, models.AccountChecking)
	require.NoError(t, err)
	_, err = b.OpenAccount(ctx, u.ID, models.AccountChecking)
	assert.ErrorIs(t, err, ErrOpenAccountExists)

	require.NoError(t, b.CloseAccount(ctx, u.ID, first.ID))
	require.NoError(t, b.CloseAccount(ctx, u.ID, first.ID), "closing twice is a no-op")

	_, err = b.Deposit(ctx, u.ID, first.ID, 10)
	assert.ErrorIs(t, err, ledger.ErrAccountClosed)

	_, err = b.OpenAccount(ctx, u.ID, models.AccountChecking)
	assert.ErrorIs(t, err, ErrAccountExists, "a closed account is not replaced")

	list, err := b.ListAccounts(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, models.StatusClosed, list[0].Status)
}

func TestConcurrentOpenAccount(t *testing.T) {
	ctx := context.Background()
	b := newBank(t)
	u := register(t, b, "alice@example.com")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = b.OpenAccount(ctx, u.ID, models.AccountChecking)
		}()
	}
	wg.Wait()

	list, err := b.ListAccounts(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestLoanCapacity(t *testing.T) {
	ctx := context.Background()
	b := newBank(t)
	u := register(t, b, "alice@example.com")

	_, err := b.ApplyLoan(ctx, u.ID, 250001)
	assert.ErrorIs(t, err, ledger.ErrBankCapacity)

	_, err = b.ApplyLoan(ctx, u.ID, 200000)
	require.NoError(t, err)
	_, err = b.ApplyLoan(ctx, u.ID, 50001)
	assert.ErrorIs(t, err, ledger.ErrBankCapacity)
	_, err = b.ApplyLoan(ctx, u.ID, 50000)
	require.NoError(t, err)

	txs, err := b.ListTransactions(ctx, u.ID, database.TransactionFilter{})
	require.NoError(t, err)
	assert.Len(t, txs, 2)
}

func TestHugeDepositsKeepTotalsNonNegative(t *testing.T) {
	ctx := context.Background()
	b := newBank(t)

	for _, email := range []string{"alice@example.com", "bob@example.com"} {
		u := register(t, b, email)
		acc, err := b.OpenAccount(ctx, u.ID, models.AccountChecking)
		require.NoError(t, err)
		_, err = b.Deposit(ctx, u.ID, acc.ID, 9000000000000000000)
		require.NoError(t, err)
	}

	status, err := b.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), status.TotalDeposits)
	assert.GreaterOrEqual(t, status.BankOnHand, ledger.DefaultStartingReserve)

	borrower := register(t, b, "carol@example.com")
	_, err = b.ApplyLoan(ctx, borrower.ID, 1)
	assert.NoError(t, err)
}

func TestConcurrentLoansNeverOverdraw(t *testing.T) {
	ctx := context.Background()
	b := newBank(t)
	u := register(t, b, "alice@example.com")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = b.ApplyLoan(ctx, u.ID, 12000)
		}()
	}
	wg.Wait()

	status, err := b.Status(ctx)
	require.NoError(t, err)
	assert.LessOrEqual(t, status.TotalLoans, status.BankOnHand)

	loans, err := b.ListLoans(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, loans, 20)
}

func TestConcurrentDepositsNoLostUpdates(t *testing.T) {
	ctx := context.Background()
	b := newBank(t)
	u := register(t, b, "alice@example.com")
	acc, err := b.OpenAccount(ctx, u.ID, models.AccountChecking)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := b.Deposit(ctx, u.ID, acc.ID, 10)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := b.GetAccount(ctx, u.ID, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), got.Balance)
}

func TestPayLoan(t *testing.T) {
	ctx := context.Background()
	b := newBank(t)
	alice := register(t, b, "alice@example.com")
	bob := register(t, b, "bob@example.com")

	loan, err := b.ApplyLoan(ctx, alice.ID, 1000)
	require.NoError(t, err)

	_, err = b.PayLoan(ctx, bob.ID, loan.ID, 100)
	assert.ErrorIs(t, err, ErrLoanNotFound)
	_, err = b.GetLoan(ctx, bob.ID, loan.ID)
	assert.ErrorIs(t, err, ErrLoanNotFound)
	_, err = b.PayLoan(ctx, alice.ID, 12345, 100)
	assert.ErrorIs(t, err, ErrLoanNotFound)

	paid, err := b.PayLoan(ctx, alice.ID, loan.ID, 5000)
	require.NoError(t, err)
	assert.Zero(t, paid.Outstanding)
	assert.Equal(t, models.StatusClosed, paid.Status)
	assert.Equal(t, int64(1000), paid.Principal)

	again, err := b.PayLoan(ctx, alice.ID, loan.ID, 1)
	require.NoError(t, err)
	assert.Zero(t, again.Outstanding)
	assert.Equal(t, models.StatusClosed, again.Status)

	got, err := b.GetLoan(ctx, alice.ID, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusClosed, got.Status)

	txs, err := b.ListTransactions(ctx, alice.ID, database.TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, txs, 3)
	assert.Equal(t, int64(5000), txs[1].Amount)
	assert.Equal(t, models.TxLoanPayment, txs[2].Type)
	assert.Equal(t, int64(1), txs[2].Amount)
}

func TestSeedAdmin(t *testing.T) {
	ctx := context.Background()
	b := newBank(t)

	require.NoError(t, b.SeedAdmin(ctx, "Admin", "admin@local", "hash"))
	require.NoError(t, b.SeedAdmin(ctx, "Admin", "admin@local", "other"))

	u, err := b.UserByEmail(ctx, "admin@local")
	require.NoError(t, err)
	assert.True(t, u.IsAdmin())
	assert.Equal(t, "hash", u.PasswordHash)
}
