package models

import "time"

// Account types
const (
	AccountChecking = "CHECKING"
	AccountSavings  = "SAVINGS"
	AccountLoan     = "LOAN"
)

// Account statuses
const (
	AccountActive = "ACTIVE"
	AccountFrozen = "FROZEN"
	AccountClosed = "CLOSED"
)

// Account represents a customer account. Monetary amounts are in cents.
type Account struct {
	ID               string     `json:"id" db:"id"`
	CustomerID       int        `json:"customerId" db:"customer_id"`
	AccountType      string     `json:"accountType" db:"account_type"`
	Balance          int64      `json:"balance" db:"balance"`
	AvailableBalance int64      `json:"availableBalance" db:"available_balance"`
	OverdraftAllowed bool       `json:"overdraftAllowed" db:"overdraft_allowed"`
	OverdraftLimit   int64      `json:"overdraftLimit" db:"overdraft_limit"`
	InterestRateBP   int        `json:"interestRateBp" db:"interest_rate_bp"` // annual rate in basis points
	Status           string     `json:"status" db:"status"`
	Version          int        `json:"version" db:"version"` // for optimistic locking
	CreatedAt        time.Time  `json:"createdAt" db:"created_at"`
	CreatedBy        string     `json:"createdBy" db:"created_by"`
	UpdatedAt        *time.Time `json:"updatedAt,omitempty" db:"updated_at"`
}
