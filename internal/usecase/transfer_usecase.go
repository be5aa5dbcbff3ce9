package usecase

import (
	"context"
	"time"

	"github.com/iho/memledger/internal/domain"
)

// Deposit credits amount to an open account.
func (uc *BankUseCase) Deposit(ctx context.Context, id string, amount int64) (*domain.TransactionResult, error) {
	return uc.run(ctx, domain.OperationDeposit, amount, func() (*domain.TransactionResult, error) {
		if err := domain.ValidateAmount(amount); err != nil {
			return nil, err
		}

		var result *domain.TransactionResult

		err := uc.ledger.WithLock(ctx, id, func(account *domain.Account) error {
			if err := account.ValidateCredit(amount); err != nil {
				return err
			}

			now := uc.now()
			entry := uc.credit(account, amount, now)
			entry.Operation = domain.OperationDeposit
			entry.Sequence = uc.ledger.NextSequence()

			if err := uc.journal.Append(ctx, entry); err != nil {
				return err
			}

			result = &domain.TransactionResult{
				Kind:      domain.ResultSuccess,
				Operation: domain.OperationDeposit,
				Sequence:  entry.Sequence,
				AccountID: account.ID,
				Amount:    amount,
				Balance:   account.Balance,
				CreatedAt: now,
			}

			return nil
		})
		if err != nil {
			return nil, err
		}

		return result, nil
	})
}

// Withdraw debits amount from an open account that holds at least amount.
func (uc *BankUseCase) Withdraw(ctx context.Context, id string, amount int64) (*domain.TransactionResult, error) {
	return uc.run(ctx, domain.OperationWithdraw, amount, func() (*domain.TransactionResult, error) {
		if err := domain.ValidateAmount(amount); err != nil {
			return nil, err
		}

		var result *domain.TransactionResult

		err := uc.ledger.WithLock(ctx, id, func(account *domain.Account) error {
			if err := account.ValidateDebit(amount); err != nil {
				return err
			}

			now := uc.now()
			entry := uc.debit(account, amount, now)
			entry.Operation = domain.OperationWithdraw
			entry.Sequence = uc.ledger.NextSequence()

			if err := uc.journal.Append(ctx, entry); err != nil {
				return err
			}

			result = &domain.TransactionResult{
				Kind:      domain.ResultSuccess,
				Operation: domain.OperationWithdraw,
				Sequence:  entry.Sequence,
				AccountID: account.ID,
				Amount:    amount,
				Balance:   account.Balance,
				CreatedAt: now,
			}

			return nil
		})
		if err != nil {
			return nil, err
		}

		return result, nil
	})
}

// Transfer moves amount from one account to another as a single atomic unit.
func (uc *BankUseCase) Transfer(ctx context.Context, fromID, toID string, amount int64) (*domain.TransactionResult, error) {
	return uc.run(ctx, domain.OperationTransfer, amount, func() (*domain.TransactionResult, error) {
		// 0. Validate inputs before taking any lock
		if fromID == toID {
			return nil, domain.ErrSameAccount
		}

		if err := domain.ValidateAmount(amount); err != nil {
			return nil, err
		}

		var result *domain.TransactionResult

		// 1. Lock both accounts in id order, verify everything, then apply
		err := uc.ledger.WithLockPair(ctx, fromID, toID, func(from, to *domain.Account) error {
			if err := from.EnsureOpen(); err != nil {
				return err
			}

			if err := to.EnsureOpen(); err != nil {
				return err
			}

			if err := from.ValidateDebit(amount); err != nil {
				return err
			}

			if err := to.ValidateCredit(amount); err != nil {
				return err
			}

			now := uc.now()
			seq := uc.ledger.NextSequence()

			fromEntry := uc.debit(from, amount, now)
			fromEntry.CounterpartyID = to.ID

			toEntry := uc.credit(to, amount, now)
			toEntry.CounterpartyID = from.ID

			for _, e := range []*domain.Entry{fromEntry, toEntry} {
				e.Operation = domain.OperationTransfer
				e.Sequence = seq
			}

			if err := uc.journal.Append(ctx, fromEntry, toEntry); err != nil {
				return err
			}

			result = &domain.TransactionResult{
				Kind:                domain.ResultSuccess,
				Operation:           domain.OperationTransfer,
				Sequence:            seq,
				AccountID:           from.ID,
				CounterpartyID:      to.ID,
				Amount:              amount,
				Balance:             from.Balance,
				CounterpartyBalance: to.Balance,
				CreatedAt:           now,
			}

			return nil
		})
		if err != nil {
			return nil, err
		}

		return result, nil
	})
}

func (uc *BankUseCase) credit(account *domain.Account, amount int64, now time.Time) *domain.Entry {
	previous := account.Balance
	account.ApplyCredit(amount, now)

	return &domain.Entry{
		AccountID:       account.ID,
		Amount:          amount,
		PreviousBalance: previous,
		CurrentBalance:  account.Balance,
		AccountVersion:  account.Version,
		CreatedAt:       now,
	}
}

func (uc *BankUseCase) debit(account *domain.Account, amount int64, now time.Time) *domain.Entry {
	previous := account.Balance
	account.ApplyDebit(amount, now)

	return &domain.Entry{
		AccountID:       account.ID,
		Amount:          -amount,
		PreviousBalance: previous,
		CurrentBalance:  account.Balance,
		AccountVersion:  account.Version,
		CreatedAt:       now,
	}
}
