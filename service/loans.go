package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"scrooge-bank/database"
	"scrooge-bank/ledger"
	"scrooge-bank/models"
)

// ApplyLoan reads both aggregates and inserts the loan inside one atomic unit
// so concurrent applications cannot jointly overdraw the bank.
func (b *Bank) ApplyLoan(ctx context.Context, userID, amount int64) (*models.Loan, error) {
	var loan models.Loan
	err := b.store.Atomic(ctx, func(q database.Querier) error {
		deposits, err := q.SumAccountBalances(ctx)
		if err != nil {
			return err
		}
		outstanding, err := q.SumLoanOutstanding(ctx)
		if err != nil {
			return err
		}
		if err := b.policy.ApproveLoan(amount, deposits, outstanding); err != nil {
			return err
		}

		loan = ledger.NewLoan(userID, amount)
		if err := q.CreateLoan(ctx, &loan); err != nil {
			return err
		}
		return q.InsertTransaction(ctx, &models.Transaction{
			LoanID:      &loan.ID,
			Type:        models.TxLoanDisbursement,
			Amount:      amount,
			Description: "loan disbursed",
		})
	})
	if err != nil {
		return nil, internal(err)
	}
	b.log.Info("loan disbursed", zap.Int64("user_id", userID), zap.Int64("loan_id", loan.ID), zap.Int64("amount", amount))
	return &loan, nil
}

func ownedLoan(ctx context.Context, q database.Querier, userID, id int64) (*models.Loan, error) {
	loan, err := q.GetLoan(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrLoanNotFound
	}
	if err != nil {
		return nil, err
	}
	if loan.UserID != userID {
		return nil, ErrLoanNotFound
	}
	return loan, nil
}

// PayLoan records the amount the customer sent; anything above the
// outstanding balance is not refunded.
func (b *Bank) PayLoan(ctx context.Context, userID, id, amount int64) (*models.Loan, error) {
	var loan *models.Loan
	err := b.store.Atomic(ctx, func(q database.Querier) error {
		var err error
		loan, err = ownedLoan(ctx, q, userID, id)
		if err != nil {
			return err
		}
		outstanding, status, err := ledger.Pay(*loan, amount)
		if err != nil {
			return err
		}
		if err := q.UpdateLoan(ctx, loan.ID, outstanding, status); err != nil {
			return err
		}
		loan.Outstanding, loan.Status = outstanding, status

		return q.InsertTransaction(ctx, &models.Transaction{
			LoanID:      &loan.ID,
			Type:        models.TxLoanPayment,
			Amount:      amount,
			Description: "loan payment",
		})
	})
	if err != nil {
		return nil, internal(err)
	}
	b.log.Info("loan payment",
		zap.Int64("loan_id", id),
		zap.Int64("amount", amount),
		zap.Int64("outstanding", loan.Outstanding),
	)
	return loan, nil
}

func (b *Bank) ListLoans(ctx context.Context, userID int64) ([]models.Loan, error) {
	var out []models.Loan
	err := b.store.View(ctx, func(q database.Querier) error {
		var err error
		out, err = q.ListLoansByUser(ctx, userID)
		return err
	})
	if err != nil {
		return nil, internal(err)
	}
	return out, nil
}

func (b *Bank) GetLoan(ctx context.Context, userID, id int64) (*models.Loan, error) {
	var loan *models.Loan
	err := b.store.View(ctx, func(q database.Querier) error {
		var err error
		loan, err = ownedLoan(ctx, q, userID, id)
		return err
	})
	if err != nil {
		return nil, internal(err)
	}
	return loan, nil
}

// ListTransactions returns every ledger row tied to the user's accounts or
// loans, oldest first.
func (b *Bank) ListTransactions(ctx context.Context, userID int64, f database.TransactionFilter) ([]models.Transaction, error) {
	var out []models.Transaction
	err := b.store.View(ctx, func(q database.Querier) error {
		var err error
		out, err = q.ListTransactionsByUser(ctx, userID, f)
		return err
	})
	if err != nil {
		return nil, internal(err)
	}
	return out, nil
}
