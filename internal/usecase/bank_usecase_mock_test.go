package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	"github.com/iho/memledger/internal/domain"
	"github.com/iho/memledger/internal/usecase"
	"github.com/iho/memledger/internal/usecase/mocks"
)

// lockWith makes the mocked WithLock run fn against a copy of account.
func lockWith(account *domain.Account) func(context.Context, string, func(*domain.Account) error) error {
	return func(_ context.Context, _ string, fn func(*domain.Account) error) error {
		return fn(account.Clone())
	}
}

func TestBankUseCase_DepositJournalFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ledger := mocks.NewMockLedger(ctrl)
	journal := mocks.NewMockJournal(ctrl)
	observer := mocks.NewMockObserver(ctrl)

	account := &domain.Account{ID: "acc-1", Owner: "alice", Status: domain.AccountStatusOpen, Balance: 10}
	journalErr := errors.New("journal unavailable")

	ledger.EXPECT().WithLock(gomock.Any(), "acc-1", gomock.Any()).DoAndReturn(lockWith(account))
	ledger.EXPECT().NextSequence().Return(uint64(7))
	journal.EXPECT().Append(gomock.Any(), gomock.Any()).Return(journalErr)
	observer.EXPECT().TransactionFailed(domain.OperationDeposit, domain.KindInternal, gomock.Any())

	uc := usecase.NewBankUseCase(ledger, journal, usecase.WithObserver(observer))

	res, err := uc.Deposit(context.Background(), "acc-1", 5)
	if !errors.Is(err, journalErr) {
		t.Fatalf("expected journal error, got %v", err)
	}
	if res != nil {
		t.Fatalf("expected nil result, got %+v", res)
	}
	if account.Balance != 10 {
		t.Fatalf("expected original account untouched, got %d", account.Balance)
	}
}

func TestBankUseCase_DepositWritesEntry(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ledger := mocks.NewMockLedger(ctrl)
	journal := mocks.NewMockJournal(ctrl)

	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	account := &domain.Account{ID: "acc-1", Owner: "alice", Status: domain.AccountStatusOpen, Balance: 10, Version: 3}

	ledger.EXPECT().WithLock(gomock.Any(), "acc-1", gomock.Any()).DoAndReturn(lockWith(account))
	ledger.EXPECT().NextSequence().Return(uint64(42))
	journal.EXPECT().Append(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, entries ...*domain.Entry) error {
			if len(entries) != 1 {
				t.Fatalf("expected one entry, got %d", len(entries))
			}
			e := entries[0]
			if e.Sequence != 42 || e.Amount != 5 || e.PreviousBalance != 10 || e.CurrentBalance != 15 {
				t.Errorf("unexpected entry %+v", e)
			}
			if e.AccountVersion != 4 {
				t.Errorf("expected version 4, got %d", e.AccountVersion)
			}
			if !e.CreatedAt.Equal(fixed) {
				t.Errorf("expected fixed clock, got %v", e.CreatedAt)
			}
			return nil
		},
	)

	uc := usecase.NewBankUseCase(ledger, journal, usecase.WithClock(func() time.Time { return fixed }))

	res, err := uc.Deposit(context.Background(), "acc-1", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Sequence != 42 || res.Balance != 15 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestBankUseCase_TransferWritesBalancedEntries(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ledger := mocks.NewMockLedger(ctrl)
	journal := mocks.NewMockJournal(ctrl)

	from := &domain.Account{ID: "acc-1", Status: domain.AccountStatusOpen, Balance: 100}
	to := &domain.Account{ID: "acc-2", Status: domain.AccountStatusOpen, Balance: 1}

	ledger.EXPECT().WithLockPair(gomock.Any(), "acc-1", "acc-2", gomock.Any()).DoAndReturn(
		func(_ context.Context, _, _ string, fn func(a, b *domain.Account) error) error {
			return fn(from.Clone(), to.Clone())
		},
	)
	ledger.EXPECT().NextSequence().Return(uint64(9)).Times(1)
	journal.EXPECT().Append(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, entries ...*domain.Entry) error {
			var net int64
			for _, e := range entries {
				net += e.Amount
				if e.Sequence != 9 {
					t.Errorf("expected shared sequence 9, got %d", e.Sequence)
				}
			}
			if net != 0 {
				t.Errorf("transfer entries do not balance: %d", net)
			}
			if entries[0].CounterpartyID != "acc-2" || entries[1].CounterpartyID != "acc-1" {
				t.Errorf("unexpected counterparties %q %q", entries[0].CounterpartyID, entries[1].CounterpartyID)
			}
			return nil
		},
	)

	uc := usecase.NewBankUseCase(ledger, journal)

	res, err := uc.Transfer(context.Background(), "acc-1", "acc-2", 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Balance != 70 || res.CounterpartyBalance != 31 {
		t.Fatalf("unexpected balances %+v", res)
	}
}

func TestBankUseCase_RejectsBeforeLocking(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	// No ledger or journal calls are expected: validation fails first.
	ledger := mocks.NewMockLedger(ctrl)
	journal := mocks.NewMockJournal(ctrl)
	observer := mocks.NewMockObserver(ctrl)

	observer.EXPECT().TransactionFailed(domain.OperationTransfer, domain.KindSameAccount, gomock.Any())
	observer.EXPECT().TransactionFailed(domain.OperationDeposit, domain.KindInvalidAmount, gomock.Any())
	observer.EXPECT().TransactionFailed(domain.OperationWithdraw, domain.KindInvalidAmount, gomock.Any())

	uc := usecase.NewBankUseCase(ledger, journal, usecase.WithObserver(observer))
	ctx := context.Background()

	if _, err := uc.Transfer(ctx, "acc-1", "acc-1", 10); !errors.Is(err, domain.ErrSameAccount) {
		t.Errorf("expected ErrSameAccount, got %v", err)
	}
	if _, err := uc.Deposit(ctx, "acc-1", 0); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount, got %v", err)
	}
	if _, err := uc.Withdraw(ctx, "acc-1", -3); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestBankUseCase_ObserverOnSuccess(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ledger := mocks.NewMockLedger(ctrl)
	journal := mocks.NewMockJournal(ctrl)
	observer := mocks.NewMockObserver(ctrl)

	account := &domain.Account{ID: "acc-1", Owner: "alice", Status: domain.AccountStatusOpen}

	ledger.EXPECT().Open(gomock.Any(), "alice").Return(account, nil)
	ledger.EXPECT().WithLock(gomock.Any(), "acc-1", gomock.Any()).DoAndReturn(lockWith(account))
	ledger.EXPECT().NextSequence().Return(uint64(1))
	journal.EXPECT().Append(gomock.Any(), gomock.Any()).Return(nil)

	gomock.InOrder(
		observer.EXPECT().AccountOpened(),
		observer.EXPECT().TransactionSucceeded(domain.OperationDeposit, int64(25), gomock.Any()),
	)

	uc := usecase.NewBankUseCase(ledger, journal, usecase.WithObserver(observer))
	ctx := context.Background()

	if _, err := uc.CreateAccount(ctx, "alice"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := uc.Deposit(ctx, "acc-1", 25); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestBankUseCase_CreateAccountError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ledger := mocks.NewMockLedger(ctrl)
	journal := mocks.NewMockJournal(ctrl)
	observer := mocks.NewMockObserver(ctrl)

	openErr := errors.New("id collision")
	ledger.EXPECT().Open(gomock.Any(), "alice").Return(nil, openErr)

	uc := usecase.NewBankUseCase(ledger, journal, usecase.WithObserver(observer))

	if _, err := uc.CreateAccount(context.Background(), "alice"); !errors.Is(err, openErr) {
		t.Fatalf("expected open error, got %v", err)
	}
}
