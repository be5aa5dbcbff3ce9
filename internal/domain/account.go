package domain

import (
	"fmt"
	"math"
	"time"
)

// AccountStatus is the lifecycle state of an account.
type AccountStatus string

const (
	AccountStatusOpen   AccountStatus = "open"
	AccountStatusClosed AccountStatus = "closed"
)

// Account represents a ledger account holding a balance in minor currency units.
type Account struct {
	ID        string
	Owner     string
	Balance   int64
	Status    AccountStatus
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
	ClosedAt  *time.Time
}

// IsOpen reports whether the account still accepts mutations.
func (a *Account) IsOpen() bool {
	return a.Status == AccountStatusOpen
}

// EnsureOpen returns ErrAccountClosed for closed accounts.
func (a *Account) EnsureOpen() error {
	if !a.IsOpen() {
		return fmt.Errorf("%w: %s", ErrAccountClosed, a.ID)
	}
	return nil
}

// ValidateDebit checks if account can be debited by amount.
func (a *Account) ValidateDebit(amount int64) error {
	if err := a.EnsureOpen(); err != nil {
		return err
	}
	if amount > a.Balance {
		return fmt.Errorf("%w: account %s has %d, requested %d", ErrInsufficientFunds, a.ID, a.Balance, amount)
	}
	return nil
}

// ValidateCredit checks if account can be credited by amount.
func (a *Account) ValidateCredit(amount int64) error {
	if err := a.EnsureOpen(); err != nil {
		return err
	}
	if a.Balance > math.MaxInt64-amount {
		return fmt.Errorf("%w: balance of %s would overflow", ErrInvalidAmount, a.ID)
	}
	return nil
}

// ValidateClose checks if account can be closed.
func (a *Account) ValidateClose() error {
	if err := a.EnsureOpen(); err != nil {
		return err
	}
	if a.Balance != 0 {
		return fmt.Errorf("%w: %s holds %d", ErrAccountNotEmpty, a.ID, a.Balance)
	}
	return nil
}

// ApplyDebit subtracts amount and bumps the version.
func (a *Account) ApplyDebit(amount int64, at time.Time) {
	a.Balance -= amount
	a.touch(at)
}

// ApplyCredit adds amount and bumps the version.
func (a *Account) ApplyCredit(amount int64, at time.Time) {
	a.Balance += amount
	a.touch(at)
}

// ApplyClose marks the account closed. Terminal.
func (a *Account) ApplyClose(at time.Time) {
	a.Status = AccountStatusClosed
	a.ClosedAt = &at
	a.touch(at)
}

func (a *Account) touch(at time.Time) {
	a.Version++
	a.UpdatedAt = at
}

// Clone returns a deep copy safe to hand out of a lock.
func (a *Account) Clone() *Account {
	cp := *a
	if a.ClosedAt != nil {
		closedAt := *a.ClosedAt
		cp.ClosedAt = &closedAt
	}
	return &cp
}
