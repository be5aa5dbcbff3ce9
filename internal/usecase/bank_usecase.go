package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/memledger/internal/domain"
)

// BankUseCase is the transaction engine: every user-facing ledger operation goes through it.
type BankUseCase struct {
	ledger   Ledger
	journal  Journal
	observer Observer
	logger   zerolog.Logger
	now      func() time.Time
}

// Option configures a BankUseCase.
type Option func(*BankUseCase)

// WithObserver sets the observer notified after every operation.
func WithObserver(o Observer) Option {
	return func(uc *BankUseCase) {
		if o != nil {
			uc.observer = o
		}
	}
}

// WithLogger sets the logger used for per-operation debug logs.
func WithLogger(logger zerolog.Logger) Option {
	return func(uc *BankUseCase) {
		uc.logger = logger
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(uc *BankUseCase) {
		if now != nil {
			uc.now = now
		}
	}
}

// NewBankUseCase creates a new BankUseCase.
func NewBankUseCase(ledger Ledger, journal Journal, opts ...Option) *BankUseCase {
	uc := &BankUseCase{
		ledger:   ledger,
		journal:  journal,
		observer: NopObserver{},
		logger:   zerolog.Nop(),
		now:      func() time.Time { return time.Now().UTC() },
	}

	for _, opt := range opts {
		opt(uc)
	}

	return uc
}

// CreateAccount opens a new account for owner with a zero balance.
func (uc *BankUseCase) CreateAccount(ctx context.Context, owner string) (*domain.Account, error) {
	account, err := uc.ledger.Open(ctx, owner)
	if err != nil {
		return nil, err
	}

	uc.observer.AccountOpened()
	uc.logger.Debug().
		Str("account_id", account.ID).
		Str("owner", account.Owner).
		Msg("account opened")

	return account, nil
}

// GetAccount retrieves an account snapshot by ID.
func (uc *BankUseCase) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	return uc.ledger.Get(ctx, id)
}

// ListAccountsInput represents input for listing accounts.
type ListAccountsInput struct {
	Limit  int
	Offset int
}

// ListAccounts lists accounts with pagination.
func (uc *BankUseCase) ListAccounts(ctx context.Context, input ListAccountsInput) ([]*domain.Account, error) {
	limit, offset, _ := domain.ValidatePagination(input.Limit, input.Offset)
	return uc.ledger.List(ctx, limit, offset)
}

// CheckBalance returns the current balance. Closed accounts report zero.
func (uc *BankUseCase) CheckBalance(ctx context.Context, id string) (int64, error) {
	account, err := uc.ledger.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	return account.Balance, nil
}

// CloseAccount moves an empty open account to the closed state.
func (uc *BankUseCase) CloseAccount(ctx context.Context, id string) (*domain.TransactionResult, error) {
	return uc.run(ctx, domain.OperationClose, 0, func() (*domain.TransactionResult, error) {
		var result *domain.TransactionResult

		err := uc.ledger.WithLock(ctx, id, func(account *domain.Account) error {
			if err := account.ValidateClose(); err != nil {
				return err
			}

			now := uc.now()
			account.ApplyClose(now)
			seq := uc.ledger.NextSequence()

			err := uc.journal.Append(ctx, &domain.Entry{
				Sequence:        seq,
				Operation:       domain.OperationClose,
				AccountID:       account.ID,
				PreviousBalance: 0,
				CurrentBalance:  0,
				AccountVersion:  account.Version,
				CreatedAt:       now,
			})
			if err != nil {
				return err
			}

			result = &domain.TransactionResult{
				Kind:      domain.ResultSuccess,
				Operation: domain.OperationClose,
				Sequence:  seq,
				AccountID: account.ID,
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

// run times op, reports it to the observer and logs the outcome.
func (uc *BankUseCase) run(
	ctx context.Context,
	op domain.Operation,
	amount int64,
	fn func() (*domain.TransactionResult, error),
) (*domain.TransactionResult, error) {
	start := time.Now()

	if err := ctx.Err(); err != nil {
		uc.observer.TransactionFailed(op, domain.KindOf(err), time.Since(start))
		return nil, err
	}

	result, err := fn()
	elapsed := time.Since(start)

	if err != nil {
		kind := domain.KindOf(err)
		uc.observer.TransactionFailed(op, kind, elapsed)

		event := uc.logger.Debug()
		if kind == domain.KindInternal {
			event = uc.logger.Error()
		}
		event.Err(err).
			Str("operation", string(op)).
			Str("error_kind", string(kind)).
			Int64("amount", amount).
			Msg("transaction rejected")

		return nil, err
	}

	uc.observer.TransactionSucceeded(op, amount, elapsed)
	uc.logger.Debug().
		Str("operation", string(op)).
		Str("account_id", result.AccountID).
		Str("counterparty_id", result.CounterpartyID).
		Uint64("sequence", result.Sequence).
		Int64("amount", amount).
		Dur("elapsed", elapsed).
		Msg("transaction applied")

	return result, nil
}
