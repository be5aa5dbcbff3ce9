package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/iho/memledger/internal/domain"
	"github.com/iho/memledger/internal/usecase"
)

var _ usecase.Ledger = (*Ledger)(nil)

var (
	// ErrDuplicateAccountID is returned when the ID generator repeats itself.
	ErrDuplicateAccountID = errors.New("duplicate account id")
	// ErrInvariantViolation is returned when a mutation would break an account invariant.
	ErrInvariantViolation = errors.New("account invariant violated")
)

// record pairs an account with the lock that serializes its mutations.
type record struct {
	id      string
	mu      sync.RWMutex
	account domain.Account
}

// Ledger is an in-memory usecase.Ledger. The account map is guarded by its own lock,
// separate from the per-account locks held during mutations.
type Ledger struct {
	mu       sync.RWMutex
	accounts map[string]*record
	idGen    usecase.IDGenerator
	seq      atomic.Uint64
	now      func() time.Time
}

// NewLedger creates an empty Ledger.
func NewLedger(idGen usecase.IDGenerator) *Ledger {
	return &Ledger{
		accounts: make(map[string]*record),
		idGen:    idGen,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Open creates a new open account with a zero balance.
func (l *Ledger) Open(ctx context.Context, owner string) (*domain.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := l.now()
	id := l.idGen.Generate()
	rec := &record{
		id: id,
		account: domain.Account{
			ID:        id,
			Owner:     owner,
			Status:    domain.AccountStatusOpen,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.accounts[id]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateAccountID, id)
	}

	l.accounts[id] = rec

	return rec.account.Clone(), nil
}

// Get returns a snapshot of the account taken under its read lock.
func (l *Ledger) Get(ctx context.Context, id string) (*domain.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rec, err := l.lookup(id)
	if err != nil {
		return nil, err
	}

	rec.mu.RLock()
	defer rec.mu.RUnlock()

	return rec.account.Clone(), nil
}

// List returns account snapshots ordered by id.
func (l *Ledger) List(ctx context.Context, limit, offset int) ([]*domain.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	records := l.sortedRecords()

	if offset >= len(records) {
		return []*domain.Account{}, nil
	}

	end := len(records)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}

	result := make([]*domain.Account, 0, end-offset)
	for _, rec := range records[offset:end] {
		rec.mu.RLock()
		result = append(result, rec.account.Clone())
		rec.mu.RUnlock()
	}

	return result, nil
}

// WithLock runs fn against a working copy of the account under its exclusive lock and
// commits the copy only when fn succeeds. The lock is released on every exit path.
func (l *Ledger) WithLock(ctx context.Context, id string, fn func(account *domain.Account) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	rec, err := l.lookup(id)
	if err != nil {
		return err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	working := rec.account.Clone()
	if err := fn(working); err != nil {
		return err
	}

	if err := checkTransition(&rec.account, working); err != nil {
		return err
	}

	rec.account = *working

	return nil
}

// WithLockPair locks two distinct accounts in ascending id order, runs fn against working
// copies (a for idA, b for idB) and commits both only when fn succeeds.
func (l *Ledger) WithLockPair(ctx context.Context, idA, idB string, fn func(a, b *domain.Account) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if idA == idB {
		return fmt.Errorf("%w: %s", domain.ErrSameAccount, idA)
	}

	recA, err := l.lookup(idA)
	if err != nil {
		return err
	}

	recB, err := l.lookup(idB)
	if err != nil {
		return err
	}

	first, second := recA, recB
	if recB.id < recA.id {
		first, second = recB, recA
	}

	first.mu.Lock()
	defer first.mu.Unlock()

	second.mu.Lock()
	defer second.mu.Unlock()

	workingA := recA.account.Clone()
	workingB := recB.account.Clone()

	if err := fn(workingA, workingB); err != nil {
		return err
	}

	if err := checkTransition(&recA.account, workingA); err != nil {
		return err
	}

	if err := checkTransition(&recB.account, workingB); err != nil {
		return err
	}

	recA.account = *workingA
	recB.account = *workingB

	return nil
}

// WithReadLockAll read-locks every account in ascending id order and hands fn a
// consistent set of snapshots. Account creation waits until fn returns.
func (l *Ledger) WithReadLockAll(ctx context.Context, fn func(accounts []*domain.Account) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	records := make([]*record, 0, len(l.accounts))
	for _, rec := range l.accounts {
		records = append(records, rec)
	}
	sortRecords(records)

	snapshots := make([]*domain.Account, 0, len(records))
	for _, rec := range records {
		rec.mu.RLock()
		defer rec.mu.RUnlock()

		snapshots = append(snapshots, rec.account.Clone())
	}

	return fn(snapshots)
}

// NextSequence returns the next transaction sequence number, starting at 1.
func (l *Ledger) NextSequence() uint64 {
	return l.seq.Add(1)
}

// Len returns the number of accounts ever opened.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return len(l.accounts)
}

func (l *Ledger) lookup(id string) (*record, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	rec, ok := l.accounts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrAccountNotFound, id)
	}

	return rec, nil
}

func (l *Ledger) sortedRecords() []*record {
	l.mu.RLock()
	records := make([]*record, 0, len(l.accounts))
	for _, rec := range l.accounts {
		records = append(records, rec)
	}
	l.mu.RUnlock()

	sortRecords(records)

	return records
}

func sortRecords(records []*record) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].id < records[j].id
	})
}

// checkTransition rejects working copies that would break account invariants.
func checkTransition(current, next *domain.Account) error {
	switch {
	case next.ID != current.ID || next.Owner != current.Owner:
		return fmt.Errorf("%w: identity of %s changed", ErrInvariantViolation, current.ID)
	case next.Balance < 0:
		return fmt.Errorf("%w: negative balance on %s", ErrInvariantViolation, current.ID)
	case !current.IsOpen() && (next.Balance != current.Balance || next.Status != current.Status):
		return fmt.Errorf("%w: closed account %s mutated", ErrInvariantViolation, current.ID)
	case !next.IsOpen() && next.Balance != 0:
		return fmt.Errorf("%w: closed account %s holds funds", ErrInvariantViolation, current.ID)
	}

	return nil
}
