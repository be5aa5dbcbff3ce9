package domain

import "time"

// Operation names a ledger mutation.
type Operation string

const (
	OperationOpen     Operation = "open"
	OperationDeposit  Operation = "deposit"
	OperationWithdraw Operation = "withdraw"
	OperationTransfer Operation = "transfer"
	OperationClose    Operation = "close"
)

// ResultKind tells success from failure.
type ResultKind string

const (
	ResultSuccess ResultKind = "success"
	ResultFailure ResultKind = "failure"
)

// TransactionResult is the outcome of one mutating operation.
type TransactionResult struct {
	CreatedAt           time.Time
	Kind                ResultKind
	Operation           Operation
	ErrorKind           ErrorKind
	Err                 error
	AccountID           string
	CounterpartyID      string
	Sequence            uint64
	Amount              int64
	Balance             int64
	CounterpartyBalance int64
}

// Succeeded reports whether the operation was applied.
func (r *TransactionResult) Succeeded() bool {
	return r.Kind == ResultSuccess
}

// FailureResult wraps err into a failure result for op.
func FailureResult(op Operation, err error) *TransactionResult {
	return &TransactionResult{
		Kind:      ResultFailure,
		Operation: op,
		ErrorKind: KindOf(err),
		Err:       err,
		CreatedAt: time.Now().UTC(),
	}
}

// Entry is a single journal line recording a balance change on one account.
// Credits are positive, debits negative.
type Entry struct {
	CreatedAt       time.Time
	Operation       Operation
	AccountID       string
	CounterpartyID  string
	Sequence        uint64
	Amount          int64
	PreviousBalance int64
	CurrentBalance  int64
	AccountVersion  int64
}

// IsCredit reports whether the entry increased the balance.
func (e *Entry) IsCredit() bool {
	return e.Amount > 0
}
