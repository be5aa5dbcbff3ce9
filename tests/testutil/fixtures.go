package testutil

import (
	"context"
	"testing"

	"github.com/iho/memledger/internal/adapter/repository/memory"
	"github.com/iho/memledger/internal/domain"
	"github.com/iho/memledger/internal/usecase"
)

// TestBank bundles an isolated ledger with the use cases built on it.
type TestBank struct {
	Ledger      *memory.Ledger
	Journal     *memory.Journal
	Bank        *usecase.BankUseCase
	Entries     *usecase.EntryUseCase
	Consistency *usecase.LedgerUseCase
	Reconciler  *usecase.ReconciliationUseCase
	t           *testing.T
}

// NewTestBank creates a fresh in-memory ledger and wires the use cases to it.
func NewTestBank(t *testing.T, opts ...usecase.Option) *TestBank {
	t.Helper()

	ledger := memory.NewLedger(memory.NewULIDGenerator())
	journal := memory.NewJournal()

	return &TestBank{
		Ledger:      ledger,
		Journal:     journal,
		Bank:        usecase.NewBankUseCase(ledger, journal, opts...),
		Entries:     usecase.NewEntryUseCase(ledger, journal),
		Consistency: usecase.NewLedgerUseCase(ledger, journal),
		Reconciler:  usecase.NewReconciliationUseCase(ledger, journal),
		t:           t,
	}
}

// CreateTestAccount opens an empty account.
func (b *TestBank) CreateTestAccount(ctx context.Context, owner string) *domain.Account {
	b.t.Helper()

	account, err := b.Bank.CreateAccount(ctx, owner)
	if err != nil {
		b.t.Fatalf("failed to create test account: %v", err)
	}

	return account
}

// CreateTestAccountWithBalance opens an account and deposits balance into it.
func (b *TestBank) CreateTestAccountWithBalance(ctx context.Context, owner string, balance int64) *domain.Account {
	b.t.Helper()

	account := b.CreateTestAccount(ctx, owner)
	if balance > 0 {
		if _, err := b.Bank.Deposit(ctx, account.ID, balance); err != nil {
			b.t.Fatalf("failed to fund test account: %v", err)
		}
	}

	return b.MustGet(ctx, account.ID)
}

// MustGet returns the current snapshot of an account or fails the test.
func (b *TestBank) MustGet(ctx context.Context, id string) *domain.Account {
	b.t.Helper()

	account, err := b.Bank.GetAccount(ctx, id)
	if err != nil {
		b.t.Fatalf("failed to get account %s: %v", id, err)
	}

	return account
}

// MustBalance returns the current balance of an account or fails the test.
func (b *TestBank) MustBalance(ctx context.Context, id string) int64 {
	b.t.Helper()

	balance, err := b.Bank.CheckBalance(ctx, id)
	if err != nil {
		b.t.Fatalf("failed to check balance of %s: %v", id, err)
	}

	return balance
}

// AssertConsistent fails the test if the ledger does not reconcile.
func (b *TestBank) AssertConsistent(ctx context.Context) *usecase.ConsistencyReport {
	b.t.Helper()

	report, err := b.Consistency.CheckConsistency(ctx)
	if err != nil {
		b.t.Fatalf("ledger is not consistent: %v", err)
	}

	return report
}
