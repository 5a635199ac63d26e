// Package ledger holds the balance rules. Nothing here performs I/O: callers
// load the records, ask the ledger what the new state is, and persist it.
package ledger

import (
	"math"

	"github.com/shopspring/decimal"

	"scrooge-bank/apperr"
	"scrooge-bank/models"
)

var (
	ErrInvalidAmount     = apperr.New(apperr.Validation, `"amount" must be greater than or equal to 1`)
	ErrAmountTooLarge    = apperr.New(apperr.Validation, `"amount" is too large`)
	ErrAccountClosed     = apperr.New(apperr.Validation, "Account is closed")
	ErrInsufficientFunds = apperr.New(apperr.InsufficientFunds, "Insufficient funds")
	ErrBankCapacity      = apperr.New(apperr.BankInsufficientCapacity, "Bank cannot cover this loan")
)

const DefaultStartingReserve int64 = 250000

var DefaultReserveRatio = decimal.RequireFromString("0.25")

// Policy is the fractional-reserve rule: the bank holds StartingReserve plus
// ReserveRatio of all customer deposits.
type Policy struct {
	StartingReserve int64
	ReserveRatio    decimal.Decimal
}

func DefaultPolicy() Policy {
	return Policy{StartingReserve: DefaultStartingReserve, ReserveRatio: DefaultReserveRatio}
}

var maxAmount = decimal.NewFromInt(math.MaxInt64)

// BankOnHand is StartingReserve + floor(ReserveRatio * totalDeposits),
// capped at math.MaxInt64.
func (p Policy) BankOnHand(totalDeposits int64) int64 {
	held := decimal.NewFromInt(totalDeposits).Mul(p.ReserveRatio).Floor()
	onHand := held.Add(decimal.NewFromInt(p.StartingReserve))
	if onHand.GreaterThan(maxAmount) {
		return math.MaxInt64
	}
	return onHand.IntPart()
}

// Available is what is left for new loans after current outstanding balances.
func (p Policy) Available(totalDeposits, totalOutstanding int64) int64 {
	return p.BankOnHand(totalDeposits) - totalOutstanding
}

// ApproveLoan rejects a request the bank cannot cover.
func (p Policy) ApproveLoan(requested, totalDeposits, totalOutstanding int64) error {
	if err := ValidateAmount(requested); err != nil {
		return err
	}
	if requested > p.Available(totalDeposits, totalOutstanding) {
		return ErrBankCapacity
	}
	return nil
}

func (p Policy) Status(totalDeposits, totalOutstanding int64) models.BankStatus {
	return models.BankStatus{
		BankOnHand:    p.BankOnHand(totalDeposits),
		TotalLoans:    totalOutstanding,
		TotalDeposits: totalDeposits,
	}
}

func ValidateAmount(amount int64) error {
	if amount < 1 {
		return ErrInvalidAmount
	}
	return nil
}

// Deposit returns the balance after adding amount to an open account.
func Deposit(acc models.Account, amount int64) (int64, error) {
	if err := ValidateAmount(amount); err != nil {
		return 0, err
	}
	if !acc.IsOpen() {
		return 0, ErrAccountClosed
	}
	if acc.Balance > math.MaxInt64-amount {
		return 0, ErrAmountTooLarge
	}
	return acc.Balance + amount, nil
}

// Withdraw returns the balance after removing amount. The balance never goes
// below zero.
func Withdraw(acc models.Account, amount int64) (int64, error) {
	if err := ValidateAmount(amount); err != nil {
		return 0, err
	}
	if !acc.IsOpen() {
		return 0, ErrAccountClosed
	}
	if amount > acc.Balance {
		return 0, ErrInsufficientFunds
	}
	return acc.Balance - amount, nil
}

// NewLoan builds an approved loan; principal and outstanding both start at the
// requested amount.
func NewLoan(userID, amount int64) models.Loan {
	return models.Loan{
		UserID:       userID,
		Principal:    amount,
		Outstanding:  amount,
		InterestRate: 0,
		Status:       models.StatusOpen,
	}
}

// Pay returns the outstanding balance and status after a payment. Paying more
// than is owed caps the outstanding balance at zero and the excess is dropped;
// a closed loan accepts payments and stays closed at zero.
func Pay(loan models.Loan, amount int64) (int64, models.Status, error) {
	if err := ValidateAmount(amount); err != nil {
		return 0, "", err
	}
	outstanding := loan.Outstanding - amount
	if outstanding <= 0 {
		return 0, models.StatusClosed, nil
	}
	return outstanding, models.StatusOpen, nil
}
