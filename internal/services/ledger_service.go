package services

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/meridianbank/core/internal/models"
)

var (
	ErrAccountNotFound   = errors.New("account not found")
	ErrAccountNotActive  = errors.New("account not active")
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// LedgerService posts double-entry ledger rows and maintains account
// balances under optimistic locking.
type LedgerService struct {
	db *sql.DB
}

func NewLedgerService(db *sql.DB) *LedgerService {
	return &LedgerService{db: db}
}

// CreditTx adds funds to an account inside the caller's transaction and
// returns the resulting balance.
func (s *LedgerService) CreditTx(tx *sql.Tx, accountID, transactionID string, amount int64) (int64, error) {
	account, err := s.lockAccount(tx, accountID)
	if err != nil {
		return 0, err
	}
	if account.Status != models.AccountActive {
		return 0, ErrAccountNotActive
	}

	newBalance := account.Balance + amount
	if err := s.createLedgerEntry(tx, transactionID, account.ID, amount, "CREDIT", newBalance); err != nil {
		return 0, err
	}
	if err := s.updateAccountBalance(tx, account.ID, newBalance, account.Version); err != nil {
		return 0, err
	}
	return newBalance, nil
}

// DebitTx removes funds from an account. The withdrawal rule: the amount may
// not exceed the available balance plus the overdraft limit, and the limit
// only counts when overdraft is enabled on the account.
func (s *LedgerService) DebitTx(tx *sql.Tx, accountID, transactionID string, amount int64) (int64, error) {
	account, err := s.lockAccount(tx, accountID)
	if err != nil {
		return 0, err
	}
	if account.Status != models.AccountActive {
		return 0, ErrAccountNotActive
	}
	if amount > availableFunds(account) {
		return 0, ErrInsufficientFunds
	}

	newBalance := account.Balance - amount
	if err := s.createLedgerEntry(tx, transactionID, account.ID, -amount, "DEBIT", newBalance); err != nil {
		return 0, err
	}
	if err := s.updateAccountBalance(tx, account.ID, newBalance, account.Version); err != nil {
		return 0, err
	}
	return newBalance, nil
}

// TransferTx moves funds between two accounts. Both accounts must be ACTIVE.
// Returns the resulting balances of the source and destination accounts.
func (s *LedgerService) TransferTx(tx *sql.Tx, fromAccountID, toAccountID, transactionID string, amount int64) (int64, int64, error) {
	// Lock accounts in consistent order to prevent deadlocks
	firstLock, secondLock := fromAccountID, toAccountID
	if fromAccountID > toAccountID {
		firstLock, secondLock = toAccountID, fromAccountID
	}

	fromAccount, err := s.lockAccount(tx, firstLock)
	if err != nil {
		return 0, 0, err
	}

	toAccount, err := s.lockAccount(tx, secondLock)
	if err != nil {
		return 0, 0, err
	}

	// Determine which locked account is sender/receiver
	if firstLock != fromAccountID {
		fromAccount, toAccount = toAccount, fromAccount
	}

	if fromAccount.Status != models.AccountActive || toAccount.Status != models.AccountActive {
		return 0, 0, ErrAccountNotActive
	}

	if amount > availableFunds(fromAccount) {
		return 0, 0, ErrInsufficientFunds
	}

	fromBalance := fromAccount.Balance - amount
	toBalance := toAccount.Balance + amount

	if err := s.createLedgerEntry(tx, transactionID, fromAccount.ID, -amount, "DEBIT", fromBalance); err != nil {
		return 0, 0, err
	}
	if err := s.createLedgerEntry(tx, transactionID, toAccount.ID, amount, "CREDIT", toBalance); err != nil {
		return 0, 0, err
	}
	if err := s.updateAccountBalance(tx, fromAccount.ID, fromBalance, fromAccount.Version); err != nil {
		return 0, 0, err
	}
	if err := s.updateAccountBalance(tx, toAccount.ID, toBalance, toAccount.Version); err != nil {
		return 0, 0, err
	}

	return fromBalance, toBalance, nil
}

func availableFunds(account *models.Account) int64 {
	funds := account.AvailableBalance
	if account.OverdraftAllowed {
		funds += account.OverdraftLimit
	}
	return funds
}

func (s *LedgerService) lockAccount(tx *sql.Tx, accountID string) (*models.Account, error) {
	var account models.Account
	err := tx.QueryRow(`
		SELECT id, status, balance, available_balance, overdraft_allowed, overdraft_limit, version
		FROM accounts
		WHERE id = $1
		FOR UPDATE`, accountID).Scan(
		&account.ID, &account.Status, &account.Balance, &account.AvailableBalance,
		&account.OverdraftAllowed, &account.OverdraftLimit, &account.Version)

	if err == sql.ErrNoRows {
		return nil, ErrAccountNotFound
	}
	return &account, err
}

func (s *LedgerService) createLedgerEntry(tx *sql.Tx, transactionID, accountID string, amount int64, entryType string, balance int64) error {
	_, err := tx.Exec(`
		INSERT INTO ledger_entries (transaction_id, account_id, amount, entry_type, balance, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		transactionID, accountID, amount, entryType, balance, time.Now())
	return err
}

func (s *LedgerService) updateAccountBalance(tx *sql.Tx, accountID string, newBalance int64, version int) error {
	result, err := tx.Exec(`
		UPDATE accounts
		SET balance = $1, available_balance = $1, version = version + 1, updated_at = $2
		WHERE id = $3 AND version = $4`,
		newBalance, time.Now(), accountID, version)

	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return fmt.Errorf("optimistic lock failed for account %s", accountID)
	}

	return nil
}
