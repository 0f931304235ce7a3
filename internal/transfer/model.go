package transfer

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status enumerates transaction pipeline states. The graph is forward-only:
// once a terminal status is reached no further transition is accepted.
type Status string

const (
	StatusInitiated         Status = "INITIATED"
	StatusPendingFraudCheck Status = "PENDING_FRAUD_CHECK"
	StatusPendingReview     Status = "PENDING_REVIEW"
	StatusProcessing        Status = "PROCESSING"
	StatusCompleted         Status = "COMPLETED"
	StatusFailed            Status = "FAILED"
	StatusReversed          Status = "REVERSED"
	StatusCancelled         Status = "CANCELLED"
)

// Type enumerates transaction kinds. Transfer types require distinct source
// and target accounts; DEPOSIT and WITHDRAWAL settle a single leg.
type Type string

const (
	TypeInternalTransfer Type = "INTERNAL_TRANSFER"
	TypeExternalTransfer Type = "EXTERNAL_TRANSFER"
	TypeDeposit          Type = "DEPOSIT"
	TypeWithdrawal       Type = "WITHDRAWAL"
	TypePayment          Type = "PAYMENT"
	TypeLoanDisbursement Type = "LOAN_DISBURSEMENT"
	TypeLoanRepayment    Type = "LOAN_REPAYMENT"
	TypeInterestCredit   Type = "INTEREST_CREDIT"
	TypeFeeDeduction     Type = "FEE_DEDUCTION"
)

// ValidType reports whether t is a known transaction type.
func ValidType(t Type) bool {
	switch t {
	case TypeInternalTransfer, TypeExternalTransfer, TypeDeposit, TypeWithdrawal,
		TypePayment, TypeLoanDisbursement, TypeLoanRepayment, TypeInterestCredit, TypeFeeDeduction:
		return true
	}
	return false
}

// TwoLegged reports whether the type moves funds between two accounts.
func TwoLegged(t Type) bool {
	switch t {
	case TypeDeposit, TypeWithdrawal:
		return false
	}
	return true
}

// CreditsTarget reports whether a single-leg type credits (true) or debits
// (false) the account it touches.
func CreditsTarget(t Type) bool {
	return t == TypeDeposit
}

// statusTransitions is the allowed transaction state graph. REVERSED is only
// reachable from COMPLETED via the external reversal collaborator; CANCELLED
// only before settlement begins.
var statusTransitions = map[Status][]Status{
	StatusInitiated:         {StatusPendingFraudCheck, StatusCancelled},
	StatusPendingFraudCheck: {StatusPendingReview, StatusProcessing, StatusFailed, StatusCancelled},
	StatusPendingReview:     {StatusProcessing, StatusFailed, StatusCancelled},
	StatusProcessing:        {StatusCompleted, StatusFailed},
	StatusCompleted:         {StatusReversed},
	StatusFailed:            {},
	StatusReversed:          {},
	StatusCancelled:         {},
}

// CanTransition reports whether a transaction may move between two statuses.
func CanTransition(from, to Status) bool {
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are accepted from s.
// COMPLETED still admits the external reversal, so it is not terminal here.
func Terminal(s Status) bool {
	return len(statusTransitions[s]) == 0
}

// Transaction is the transfer aggregate. Amount is fixed at creation; status
// moves forward only, driven exclusively by the coordinator.
type Transaction struct {
	ID              string          `json:"id"`
	ReferenceNumber string          `json:"referenceNumber"`
	SourceAccountID string          `json:"sourceAccountId,omitempty"`
	TargetAccountID string          `json:"targetAccountId,omitempty"`
	TransactionType Type            `json:"transactionType"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	Description     string          `json:"description,omitempty"`
	Status          Status          `json:"status"`
	RiskScore       *float64        `json:"riskScore,omitempty"`
	// ExternalReference is the caller-supplied idempotency key.
	ExternalReference string     `json:"externalReference,omitempty"`
	FailureReason     string     `json:"failureReason,omitempty"`
	InitiatedAt       time.Time  `json:"initiatedAt"`
	CompletedAt       *time.Time `json:"completedAt,omitempty"`
	FailedAt          *time.Time `json:"failedAt,omitempty"`
}
