package domain

import "errors"

var (
	// Account errors
	ErrAccountNotFound = errors.New("account not found")
	ErrAccountClosed   = errors.New("account is closed")
	ErrAccountNotEmpty = errors.New("account balance is not zero")

	// Transaction errors
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrSameAccount       = errors.New("cannot transfer to same account")
)

// ErrorKind classifies a failed operation for callers that render results.
type ErrorKind string

const (
	KindAccountNotFound   ErrorKind = "AccountNotFound"
	KindAccountClosed     ErrorKind = "AccountClosed"
	KindInvalidAmount     ErrorKind = "InvalidAmount"
	KindInsufficientFunds ErrorKind = "InsufficientFunds"
	KindSameAccount       ErrorKind = "SameAccount"
	KindAccountNotEmpty   ErrorKind = "AccountNotEmpty"
	KindInternal          ErrorKind = "Internal"
)

// KindOf maps an error to its ErrorKind. Nil maps to the empty kind.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAccountNotFound):
		return KindAccountNotFound
	case errors.Is(err, ErrAccountClosed):
		return KindAccountClosed
	case errors.Is(err, ErrInvalidAmount):
		return KindInvalidAmount
	case errors.Is(err, ErrInsufficientFunds):
		return KindInsufficientFunds
	case errors.Is(err, ErrSameAccount):
		return KindSameAccount
	case errors.Is(err, ErrAccountNotEmpty):
		return KindAccountNotEmpty
	default:
		return KindInternal
	}
}
