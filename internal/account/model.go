package account

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status enumerates the account lifecycle states.
type Status string

const (
	StatusPendingActivation Status = "PENDING_ACTIVATION"
	StatusActive            Status = "ACTIVE"
	StatusFrozen            Status = "FROZEN"
	StatusDormant           Status = "DORMANT"
	StatusClosed            Status = "CLOSED"
)

// Type enumerates the supported account products.
type Type string

const (
	TypeChecking             Type = "CHECKING"
	TypeSavings              Type = "SAVINGS"
	TypeBusiness             Type = "BUSINESS"
	TypeMoneyMarket          Type = "MONEY_MARKET"
	TypeCertificateOfDeposit Type = "CERTIFICATE_OF_DEPOSIT"
)

// ValidType reports whether t is a known account type.
func ValidType(t Type) bool {
	switch t {
	case TypeChecking, TypeSavings, TypeBusiness, TypeMoneyMarket, TypeCertificateOfDeposit:
		return true
	}
	return false
}

// Account is the ledger aggregate. Balance never goes negative, currency is
// immutable after creation, and Version increases by exactly one per committed
// mutation.
type Account struct {
	ID            string          `json:"id"`
	AccountNumber string          `json:"accountNumber"`
	OwnerName     string          `json:"ownerName"`
	OwnerEmail    string          `json:"ownerEmail"`
	AccountType   Type            `json:"accountType"`
	Currency      string          `json:"currency"`
	Balance       decimal.Decimal `json:"balance"`
	Status        Status          `json:"status"`
	Version       int64           `json:"version"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
	ClosedAt      *time.Time      `json:"closedAt,omitempty"`
}

// statusTransitions is the allowed account state graph. CLOSED is terminal.
// DORMANT is entered by the inactivity collaborator and only leaves via
// explicit reactivation.
var statusTransitions = map[Status][]Status{
	StatusPendingActivation: {StatusActive},
	StatusActive:            {StatusFrozen, StatusDormant, StatusClosed},
	StatusFrozen:            {StatusActive, StatusClosed},
	StatusDormant:           {StatusActive},
	StatusClosed:            {},
}

// CanTransition reports whether an account may move from one status to another.
func CanTransition(from, to Status) bool {
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CanDebit reports whether the balance covers the amount.
func (a Account) CanDebit(amount decimal.Decimal) bool {
	return a.Balance.GreaterThanOrEqual(amount)
}

// IsActive reports whether ledger mutations are permitted.
func (a Account) IsActive() bool {
	return a.Status == StatusActive
}
