package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iho/memledger/internal/domain"
)

var (
	// ErrInconsistentLedger is returned when balances and journal totals disagree.
	ErrInconsistentLedger = errors.New("ledger is inconsistent")
)

// LedgerUseCase handles ledger-wide operations.
type LedgerUseCase struct {
	ledger  Ledger
	journal Journal
	now     func() time.Time
}

// NewLedgerUseCase creates a new LedgerUseCase.
func NewLedgerUseCase(ledger Ledger, journal Journal) *LedgerUseCase {
	return &LedgerUseCase{
		ledger:  ledger,
		journal: journal,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// ConsistencyReport summarises a consistency check.
type ConsistencyReport struct {
	CheckedAt    time.Time
	Accounts     int
	OpenAccounts int
	TotalBalance int64
	TotalCredits int64
	TotalDebits  int64
	Consistent   bool
}

// Difference is the amount by which balances exceed the journal net.
func (r *ConsistencyReport) Difference() int64 {
	return r.TotalBalance - (r.TotalCredits + r.TotalDebits)
}

// CheckConsistency verifies, under a consistent cut of all accounts, that the sum of
// balances equals the journal's net movement, that no balance is negative and that no
// closed account holds funds. On failure the report is returned along with
// ErrInconsistentLedger.
func (uc *LedgerUseCase) CheckConsistency(ctx context.Context) (*ConsistencyReport, error) {
	report := &ConsistencyReport{CheckedAt: uc.now()}

	var violation error

	err := uc.ledger.WithReadLockAll(ctx, func(accounts []*domain.Account) error {
		for _, a := range accounts {
			report.Accounts++
			report.TotalBalance += a.Balance

			if a.IsOpen() {
				report.OpenAccounts++
			}

			switch {
			case a.Balance < 0:
				violation = fmt.Errorf("%w: account %s has negative balance %d", ErrInconsistentLedger, a.ID, a.Balance)
			case !a.IsOpen() && a.Balance != 0:
				violation = fmt.Errorf("%w: closed account %s holds %d", ErrInconsistentLedger, a.ID, a.Balance)
			}
		}

		credits, debits, err := uc.journal.Totals(ctx)
		if err != nil {
			return err
		}

		report.TotalCredits = credits
		report.TotalDebits = debits

		return nil
	})
	if err != nil {
		return nil, err
	}

	if violation == nil && report.Difference() != 0 {
		violation = fmt.Errorf(
			"%w: balances=%d credits=%d debits=%d difference=%d",
			ErrInconsistentLedger,
			report.TotalBalance,
			report.TotalCredits,
			report.TotalDebits,
			report.Difference(),
		)
	}

	report.Consistent = violation == nil

	return report, violation
}
