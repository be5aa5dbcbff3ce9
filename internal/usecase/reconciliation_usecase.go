package usecase

import (
	"context"
	"time"

	"github.com/iho/memledger/internal/domain"
)

// ReconciliationUseCase replays the journal of each account and compares the result
// with the recorded balance.
type ReconciliationUseCase struct {
	ledger  Ledger
	journal Journal
	now     func() time.Time
}

// NewReconciliationUseCase creates a new reconciliation use case
func NewReconciliationUseCase(ledger Ledger, journal Journal) *ReconciliationUseCase {
	return &ReconciliationUseCase{
		ledger:  ledger,
		journal: journal,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// ReconciliationResult represents the result of a reconciliation check
type ReconciliationResult struct {
	AccountID         string
	RecordedBalance   int64
	CalculatedBalance int64
	Difference        int64
	Entries           int
	IsReconciled      bool
	LastChecked       time.Time
}

// ReconcileAccount sums the account's journal entries while holding its lock, so no
// mutation can land between reading the balance and reading the entries.
func (uc *ReconciliationUseCase) ReconcileAccount(ctx context.Context, accountID string) (*ReconciliationResult, error) {
	var result *ReconciliationResult

	err := uc.ledger.WithLock(ctx, accountID, func(account *domain.Account) error {
		r, err := uc.reconcile(ctx, account)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// ReconciliationReport represents a full reconciliation report
type ReconciliationReport struct {
	TotalAccounts      int
	ReconciledAccounts int
	Discrepancies      []*ReconciliationResult
	CheckedAt          time.Time
}

// GenerateReconciliationReport reconciles every account under a consistent cut.
func (uc *ReconciliationUseCase) GenerateReconciliationReport(ctx context.Context) (*ReconciliationReport, error) {
	report := &ReconciliationReport{
		Discrepancies: make([]*ReconciliationResult, 0),
		CheckedAt:     uc.now(),
	}

	err := uc.ledger.WithReadLockAll(ctx, func(accounts []*domain.Account) error {
		for _, account := range accounts {
			result, err := uc.reconcile(ctx, account)
			if err != nil {
				return err
			}

			report.TotalAccounts++
			if result.IsReconciled {
				report.ReconciledAccounts++
			} else {
				report.Discrepancies = append(report.Discrepancies, result)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return report, nil
}

func (uc *ReconciliationUseCase) reconcile(ctx context.Context, account *domain.Account) (*ReconciliationResult, error) {
	entries, err := uc.journal.ByAccount(ctx, account.ID, 0, 0)
	if err != nil {
		return nil, err
	}

	var calculated int64
	for _, e := range entries {
		calculated += e.Amount
	}

	return &ReconciliationResult{
		AccountID:         account.ID,
		RecordedBalance:   account.Balance,
		CalculatedBalance: calculated,
		Difference:        account.Balance - calculated,
		Entries:           len(entries),
		IsReconciled:      account.Balance == calculated,
		LastChecked:       uc.now(),
	}, nil
}
