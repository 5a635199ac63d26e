package models

import "time"

type AccountType string

const AccountChecking AccountType = "checking"

// Status is shared by accounts and loans.
type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

const DefaultCurrency = "USD"

// Account balances are integer minor units and never negative.
type Account struct {
	ID        int64       `json:"id"`
	UserID    int64       `json:"user_id"`
	Type      AccountType `json:"type"`
	Balance   int64       `json:"balance"`
	Currency  string      `json:"currency"`
	Status    Status      `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
}

func (a Account) IsOpen() bool {
	return a.Status == StatusOpen
}

// Loan keeps 0 <= Outstanding <= Principal. InterestRate is stored but not
// applied anywhere.
type Loan struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	Principal    int64     `json:"principal"`
	Outstanding  int64     `json:"outstanding"`
	InterestRate float64   `json:"interest_rate"`
	Status       Status    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

func (l Loan) IsOpen() bool {
	return l.Status == StatusOpen
}

type TransactionType string

const (
	TxDeposit          TransactionType = "deposit"
	TxWithdrawal       TransactionType = "withdrawal"
	TxLoanDisbursement TransactionType = "loan_disbursement"
	TxLoanPayment      TransactionType = "loan_payment"
)

// Transaction is an append-only ledger row. Exactly one of AccountID and
// LoanID is set; BalanceAfter is set only for account entries.
type Transaction struct {
	ID           int64           `json:"id"`
	AccountID    *int64          `json:"account_id"`
	LoanID       *int64          `json:"loan_id"`
	Type         TransactionType `json:"type"`
	Amount       int64           `json:"amount"`
	BalanceAfter *int64          `json:"balance_after"`
	Description  string          `json:"description"`
	CreatedAt    time.Time       `json:"created_at"`
}

// BankStatus is the admin solvency view.
type BankStatus struct {
	BankOnHand    int64 `json:"bankOnHand"`
	TotalLoans    int64 `json:"totalLoans"`
	TotalDeposits int64 `json:"totalDeposits"`
}
