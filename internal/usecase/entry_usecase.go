package usecase

import (
	"context"

	"github.com/iho/memledger/internal/domain"
)

// EntryUseCase handles account history.
type EntryUseCase struct {
	ledger  Ledger
	journal Journal
}

// NewEntryUseCase creates a new EntryUseCase.
func NewEntryUseCase(ledger Ledger, journal Journal) *EntryUseCase {
	return &EntryUseCase{
		ledger:  ledger,
		journal: journal,
	}
}

// HistoryInput represents input for listing an account's entries.
type HistoryInput struct {
	AccountID string
	Limit     int
	Offset    int
}

// History lists journal entries for an account, oldest first.
func (uc *EntryUseCase) History(ctx context.Context, input HistoryInput) ([]*domain.Entry, error) {
	if _, err := uc.ledger.Get(ctx, input.AccountID); err != nil {
		return nil, err
	}

	if input.Limit <= 0 {
		input.Limit = DefaultHistoryLimit
	}

	if input.Limit > MaxListLimit {
		input.Limit = MaxListLimit
	}

	if input.Offset < 0 {
		input.Offset = 0
	}

	return uc.journal.ByAccount(ctx, input.AccountID, input.Limit, input.Offset)
}
