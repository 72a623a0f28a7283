package audit

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"
)

// Event is a single audit-trail record. Rows are insert-only: once written
// they are never updated.
type Event struct {
	Timestamp     time.Time `json:"timestamp"`
	EventType     string    `json:"event_type"`
	TransactionID string    `json:"transaction_id"`
	AccountID     string    `json:"account_id"`
	Amount        int64     `json:"amount"`
	Status        string    `json:"status"`
	Actor         string    `json:"actor"`
	Details       any       `json:"details"`
}

type Logger struct {
	db *sql.DB
}

func NewLogger(db *sql.DB) *Logger {
	return &Logger{db: db}
}

// RecordTx inserts the audit row inside the caller's database transaction so
// the trail commits atomically with the operation it describes. Transactions
// are not considered complete until their audit row is in place.
func (a *Logger) RecordTx(tx *sql.Tx, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	details, _ := json.Marshal(event.Details)

	_, err := tx.Exec(`
		INSERT INTO audit_events (event_type, transaction_id, account_id, amount, status, actor, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		event.EventType, event.TransactionID, event.AccountID, event.Amount,
		event.Status, event.Actor, details, event.Timestamp)
	if err != nil {
		return err
	}

	a.log(event)
	return nil
}

func (a *Logger) LogTransfer(transactionID, fromAccount, toAccount string, amount int64, status string) {
	a.log(Event{
		Timestamp:     time.Now(),
		EventType:     "TRANSFER",
		TransactionID: transactionID,
		Amount:        amount,
		Status:        status,
		Details: map[string]string{
			"from_account": fromAccount,
			"to_account":   toAccount,
		},
	})
}

func (a *Logger) LogError(transactionID, accountID string, err error) {
	a.log(Event{
		Timestamp:     time.Now(),
		EventType:     "ERROR",
		TransactionID: transactionID,
		AccountID:     accountID,
		Status:        "FAILED",
		Details:       map[string]string{"error": err.Error()},
	})
}

func (a *Logger) LogOperation(transactionID, accountID, operation, details string) {
	a.log(Event{
		Timestamp:     time.Now(),
		EventType:     operation,
		TransactionID: transactionID,
		AccountID:     accountID,
		Status:        "SUCCESS",
		Details:       map[string]string{"details": details},
	})
}

func (a *Logger) log(event Event) {
	logrus.WithFields(logrus.Fields{
		"event_type":     event.EventType,
		"transaction_id": event.TransactionID,
		"account_id":     event.AccountID,
		"amount":         event.Amount,
		"status":         event.Status,
	}).Info("AUDIT")
}
