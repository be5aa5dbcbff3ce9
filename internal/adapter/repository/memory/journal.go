package memory

import (
	"context"
	"sync"

	"github.com/iho/memledger/internal/domain"
	"github.com/iho/memledger/internal/usecase"
)

var _ usecase.Journal = (*Journal)(nil)

// Journal is an append-only in-memory entry log implementing usecase.Journal.
type Journal struct {
	mu        sync.RWMutex
	entries   []domain.Entry
	byAccount map[string][]int
	credits   int64
	debits    int64
}

// NewJournal creates an empty Journal.
func NewJournal() *Journal {
	return &Journal{
		byAccount: make(map[string][]int),
	}
}

// Append records entries in order.
func (j *Journal) Append(ctx context.Context, entries ...*domain.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	for _, e := range entries {
		j.byAccount[e.AccountID] = append(j.byAccount[e.AccountID], len(j.entries))
		j.entries = append(j.entries, *e)

		if e.Amount > 0 {
			j.credits += e.Amount
		} else {
			j.debits += e.Amount
		}
	}

	return nil
}

// ByAccount returns copies of an account's entries, oldest first.
func (j *Journal) ByAccount(ctx context.Context, accountID string, limit, offset int) ([]*domain.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	j.mu.RLock()
	defer j.mu.RUnlock()

	idx := j.byAccount[accountID]
	if offset >= len(idx) {
		return []*domain.Entry{}, nil
	}

	end := len(idx)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}

	result := make([]*domain.Entry, 0, end-offset)
	for _, i := range idx[offset:end] {
		e := j.entries[i]
		result = append(result, &e)
	}

	return result, nil
}

// Totals returns the running sums of credits and debits.
func (j *Journal) Totals(ctx context.Context) (int64, int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}

	j.mu.RLock()
	defer j.mu.RUnlock()

	return j.credits, j.debits, nil
}

// Len returns the number of recorded entries.
func (j *Journal) Len() int {
	j.mu.RLock()
	defer j.mu.RUnlock()

	return len(j.entries)
}
