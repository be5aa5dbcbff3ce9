package usecase

import (
	"context"
	"time"

	"github.com/iho/memledger/internal/domain"
)

// Ledger owns account storage and per-account serialization of mutations.
type Ledger interface {
	// Open allocates a new open account with a zero balance.
	Open(ctx context.Context, owner string) (*domain.Account, error)
	// Get returns a consistent snapshot of the account.
	Get(ctx context.Context, id string) (*domain.Account, error)
	// List returns account snapshots ordered by id.
	List(ctx context.Context, limit, offset int) ([]*domain.Account, error)
	// WithLock runs fn on a working copy of the account under its exclusive lock.
	// The copy is committed only when fn returns nil.
	WithLock(ctx context.Context, id string, fn func(account *domain.Account) error) error
	// WithLockPair is WithLock for two distinct accounts, locked in ascending id order.
	WithLockPair(ctx context.Context, idA, idB string, fn func(a, b *domain.Account) error) error
	// WithReadLockAll read-locks every account in ascending id order and passes snapshots to fn.
	WithReadLockAll(ctx context.Context, fn func(accounts []*domain.Account) error) error
	// NextSequence returns the next per-ledger transaction sequence number.
	NextSequence() uint64
}

// Journal records entries for successful mutations.
type Journal interface {
	Append(ctx context.Context, entries ...*domain.Entry) error
	// ByAccount returns an account's entries oldest first. A limit <= 0 returns all of them.
	ByAccount(ctx context.Context, accountID string, limit, offset int) ([]*domain.Entry, error)
	// Totals returns the sum of credit amounts and the sum of debit amounts (debits <= 0).
	Totals(ctx context.Context) (credits, debits int64, err error)
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// Observer receives operation outcomes, typically for metrics.
type Observer interface {
	AccountOpened()
	TransactionSucceeded(op domain.Operation, amount int64, elapsed time.Duration)
	TransactionFailed(op domain.Operation, kind domain.ErrorKind, elapsed time.Duration)
}

// NopObserver discards all observations.
type NopObserver struct{}

func (NopObserver) AccountOpened() {}

func (NopObserver) TransactionSucceeded(domain.Operation, int64, time.Duration) {}

func (NopObserver) TransactionFailed(domain.Operation, domain.ErrorKind, time.Duration) {}
