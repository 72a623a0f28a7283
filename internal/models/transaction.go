package models

import "time"

// Transaction types
const (
	TxDeposit    = "DEPOSIT"
	TxWithdrawal = "WITHDRAWAL"
	TxTransfer   = "TRANSFER"
	TxInterest   = "INTEREST"
)

// Transaction statuses
const (
	TxPending   = "PENDING"
	TxCompleted = "COMPLETED"
	TxReversed  = "REVERSED"
)

// Transaction represents a posted account transaction. Amounts are in cents.
type Transaction struct {
	ID               int        `json:"id" db:"id"`
	TransactionID    string     `json:"transactionId" db:"transaction_id"`
	AccountID        string     `json:"accountId" db:"account_id"`
	CounterpartyID   string     `json:"counterpartyId,omitempty" db:"counterparty_id"` // other leg of a transfer
	Type             string     `json:"type" db:"type"`
	Amount           int64      `json:"amount" db:"amount"`
	ResultingBalance int64      `json:"resultingBalance" db:"resulting_balance"`
	Currency         string     `json:"currency" db:"currency"`
	Narration        string     `json:"narration,omitempty" db:"narration"`
	Status           string     `json:"status" db:"status"`
	CreatedAt        time.Time  `json:"createdAt" db:"created_at"`
	CreatedBy        string     `json:"createdBy" db:"created_by"`
	ReversedAt       *time.Time `json:"reversedAt,omitempty" db:"reversed_at"`
}

// TransferRequest is the payload for an account-to-account transfer
type TransferRequest struct {
	FromAccount string `json:"fromAccount" validate:"required,max=20"`
	ToAccount   string `json:"toAccount" validate:"required,max=20"`
	Amount      int64  `json:"amount" validate:"required,gt=0"`
	Currency    string `json:"currency" validate:"required,len=3"`
	Reference   string `json:"reference"`
	Narration   string `json:"narration" validate:"max=200"`
}
