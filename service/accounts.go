package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"scrooge-bank/database"
	"scrooge-bank/ledger"
	"scrooge-bank/models"
)

// AccountResult is an account after a balance change together with the
// ledger row that recorded it.
type AccountResult struct {
	Account     *models.Account     `json:"account"`
	Transaction *models.Transaction `json:"transaction"`
}

// OpenAccount creates the user's only account. A closed account is not
// replaced.
func (b *Bank) OpenAccount(ctx context.Context, userID int64, typ models.AccountType) (*models.Account, error) {
	if typ != models.AccountChecking {
		return nil, ErrUnsupportedType
	}
	acc := &models.Account{
		UserID:   userID,
		Type:     typ,
		Balance:  0,
		Currency: models.DefaultCurrency,
		Status:   models.StatusOpen,
	}
	err := b.store.Atomic(ctx, func(q database.Querier) error {
		existing, err := q.ListAccountsByUser(ctx, userID)
		if err != nil {
			return err
		}
		for _, a := range existing {
			if a.IsOpen() {
				return ErrOpenAccountExists
			}
		}
		if len(existing) > 0 {
			return ErrAccountExists
		}
		err = q.CreateAccount(ctx, acc)
		if errors.Is(err, database.ErrDuplicateAccount) {
			return ErrAccountExists
		}
		return err
	})
	if err != nil {
		return nil, internal(err)
	}
	b.log.Info("account opened", zap.Int64("user_id", userID), zap.Int64("account_id", acc.ID))
	return acc, nil
}

func (b *Bank) ListAccounts(ctx context.Context, userID int64) ([]models.Account, error) {
	var out []models.Account
	err := b.store.View(ctx, func(q database.Querier) error {
		var err error
		out, err = q.ListAccountsByUser(ctx, userID)
		return err
	})
	if err != nil {
		return nil, internal(err)
	}
	return out, nil
}

// ownedAccount hides accounts that belong to someone else.
func ownedAccount(ctx context.Context, q database.Querier, userID, id int64) (*models.Account, error) {
	acc, err := q.GetAccount(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	if acc.UserID != userID {
		return nil, ErrAccountNotFound
	}
	return acc, nil
}

func (b *Bank) GetAccount(ctx context.Context, userID, id int64) (*models.Account, error) {
	var acc *models.Account
	err := b.store.View(ctx, func(q database.Querier) error {
		var err error
		acc, err = ownedAccount(ctx, q, userID, id)
		return err
	})
	if err != nil {
		return nil, internal(err)
	}
	return acc, nil
}

// CloseAccount is idempotent on an already-closed account.
func (b *Bank) CloseAccount(ctx context.Context, userID, id int64) error {
	err := b.store.Atomic(ctx, func(q database.Querier) error {
		acc, err := ownedAccount(ctx, q, userID, id)
		if err != nil {
			return err
		}
		if !acc.IsOpen() {
			return nil
		}
		return q.CloseAccount(ctx, id)
	})
	if err != nil {
		return internal(err)
	}
	b.log.Info("account closed", zap.Int64("user_id", userID), zap.Int64("account_id", id))
	return nil
}

func (b *Bank) Deposit(ctx context.Context, userID, id, amount int64) (*AccountResult, error) {
	return b.move(ctx, userID, id, amount, models.TxDeposit)
}

func (b *Bank) Withdraw(ctx context.Context, userID, id, amount int64) (*AccountResult, error) {
	return b.move(ctx, userID, id, amount, models.TxWithdrawal)
}

// move applies a deposit or withdrawal. The account row is missing → 404,
// owned by someone else → 403, then the ledger decides.
func (b *Bank) move(ctx context.Context, userID, id, amount int64, typ models.TransactionType) (*AccountResult, error) {
	var res *AccountResult
	err := b.store.Atomic(ctx, func(q database.Querier) error {
		acc, err := q.GetAccount(ctx, id)
		if errors.Is(err, database.ErrNotFound) {
			return ErrAccountNotFound
		}
		if err != nil {
			return err
		}

		var balance int64
		if typ == models.TxDeposit {
			if acc.UserID != userID {
				return ErrNotDepositOwner
			}
			balance, err = ledger.Deposit(*acc, amount)
		} else {
			if acc.UserID != userID {
				return ErrNotWithdrawOwner
			}
			balance, err = ledger.Withdraw(*acc, amount)
		}
		if err != nil {
			return err
		}

		if err := q.UpdateAccountBalance(ctx, acc.ID, balance); err != nil {
			return err
		}
		acc.Balance = balance

		tx := &models.Transaction{
			AccountID:    &acc.ID,
			Type:         typ,
			Amount:       amount,
			BalanceAfter: &balance,
			Description:  string(typ),
		}
		if err := q.InsertTransaction(ctx, tx); err != nil {
			return err
		}
		res = &AccountResult{Account: acc, Transaction: tx}
		return nil
	})
	if err != nil {
		return nil, internal(err)
	}
	b.log.Info("balance changed",
		zap.String("type", string(typ)),
		zap.Int64("account_id", id),
		zap.Int64("amount", amount),
		zap.Int64("balance", res.Account.Balance),
	)
	return res, nil
}
