package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/meridianbank/core/internal/audit"
	"github.com/meridianbank/core/internal/models"
)

// Notifier delivers out-of-band customer notifications after commit.
type Notifier interface {
	TransactionCompleted(tx *models.Transaction)
}

type TransactionService struct {
	db        *sql.DB
	redis     *redis.Client
	ledger    *LedgerService
	audit     *audit.Logger
	notifier  Notifier
	validator *ValidationHelper
}

func NewTransactionService(db *sql.DB, redisClient *redis.Client, notifier Notifier) *TransactionService {
	return &TransactionService{
		db:        db,
		redis:     redisClient,
		ledger:    NewLedgerService(db),
		audit:     audit.NewLogger(db),
		notifier:  notifier,
		validator: NewValidationHelper(),
	}
}

// DepositRequest is the payload for deposits and withdrawals
type DepositRequest struct {
	Amount    int64  `json:"amount" validate:"required,gt=0"`
	Currency  string `json:"currency" validate:"required,len=3"`
	Reference string `json:"reference"`
	Narration string `json:"narration" validate:"max=200"`
}

// Deposit credits an account
// @Summary Deposit funds
// @Description Credit an account with the given amount
// @Tags transactions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param accountId path string true "Account ID"
// @Param request body DepositRequest true "Deposit request"
// @Success 201 {object} models.Transaction
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /accounts/{accountId}/deposit [post]
func (ts *TransactionService) Deposit(w http.ResponseWriter, r *http.Request) {
	ts.postSingleLeg(w, r, models.TxDeposit)
}

// Withdraw debits an account
// @Summary Withdraw funds
// @Description Debit an account; the amount may not exceed the available balance plus the overdraft limit
// @Tags transactions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param accountId path string true "Account ID"
// @Param request body DepositRequest true "Withdrawal request"
// @Success 201 {object} models.Transaction
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /accounts/{accountId}/withdraw [post]
func (ts *TransactionService) Withdraw(w http.ResponseWriter, r *http.Request) {
	ts.postSingleLeg(w, r, models.TxWithdrawal)
}

func (ts *TransactionService) postSingleLeg(w http.ResponseWriter, r *http.Request, txType string) {
	accountID := chi.URLParam(r, "accountId")
	actor := actorFromContext(r.Context())

	var req DepositRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}

	if err := ts.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	txID := req.Reference
	if txID == "" {
		txID = "TXN-" + uuid.New().String()
	}

	// Idempotency: a reference that was already processed returns the
	// recorded outcome instead of posting twice
	if existing, ok := ts.existingTransaction(txID); ok {
		logrus.Infof("[TRANSACTION] Duplicate transaction detected: %s, status: %s", txID, existing.Status)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"success":     existing.Status == models.TxCompleted,
			"transaction": existing,
			"message":     "Transaction already processed",
		})
		return
	}

	dbTx, err := ts.db.Begin()
	if err != nil {
		logrus.Errorf("[TRANSACTION] Failed to begin transaction: %v", err)
		SendErrorResponse(w, "Failed to process transaction", http.StatusInternalServerError, nil)
		return
	}
	defer dbTx.Rollback()

	var newBalance int64
	if txType == models.TxDeposit {
		newBalance, err = ts.ledger.CreditTx(dbTx, accountID, txID, req.Amount)
	} else {
		newBalance, err = ts.ledger.DebitTx(dbTx, accountID, txID, req.Amount)
	}
	if err != nil {
		ts.failPosting(w, dbTx, txID, accountID, "", txType, &req, actor, err)
		return
	}

	tx := &models.Transaction{
		TransactionID:    txID,
		AccountID:        accountID,
		Type:             txType,
		Amount:           req.Amount,
		ResultingBalance: newBalance,
		Currency:         req.Currency,
		Narration:        req.Narration,
		Status:           models.TxCompleted,
		CreatedAt:        time.Now(),
		CreatedBy:        actor,
	}

	// Audit row goes in before the transaction is marked complete
	if err := ts.audit.RecordTx(dbTx, audit.Event{
		EventType:     txType,
		TransactionID: txID,
		AccountID:     accountID,
		Amount:        req.Amount,
		Status:        models.TxCompleted,
		Actor:         actor,
	}); err != nil {
		logrus.Errorf("[TRANSACTION] Failed to write audit row for %s: %v", txID, err)
		SendErrorResponse(w, "Failed to process transaction", http.StatusInternalServerError, nil)
		return
	}

	if err := ts.storeTransactionTx(dbTx, tx); err != nil {
		ts.audit.LogError(txID, accountID, err)
		SendErrorResponse(w, "Failed to store transaction", http.StatusInternalServerError, nil)
		return
	}

	if err := dbTx.Commit(); err != nil {
		logrus.Errorf("[TRANSACTION] Failed to commit transaction: %v", err)
		ts.audit.LogError(txID, accountID, err)
		SendErrorResponse(w, "Failed to process transaction", http.StatusInternalServerError, nil)
		return
	}

	if ts.notifier != nil {
		go ts.notifier.TransactionCompleted(tx)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"success":     true,
		"transaction": tx,
	})
}

// Transfer moves funds between two accounts
// @Summary Transfer funds
// @Description Transfer between two active accounts
// @Tags transactions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.TransferRequest true "Transfer request"
// @Success 201 {object} models.Transaction
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /transfers [post]
func (ts *TransactionService) Transfer(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())

	var req models.TransferRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}

	if err := ts.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	if req.FromAccount == req.ToAccount {
		logrus.Warnf("[TRANSFER] Same account transfer attempt: %s", req.FromAccount)
		SendErrorResponse(w, "Cannot transfer to same account", http.StatusBadRequest, nil)
		return
	}

	txID := req.Reference
	if txID == "" {
		txID = "TXN-" + uuid.New().String()
	}
	logrus.Infof("[TRANSFER] Transfer request: from=%s, to=%s, amount=%d %s, id=%s",
		req.FromAccount, req.ToAccount, req.Amount, req.Currency, txID)

	if existing, ok := ts.existingTransaction(txID); ok {
		logrus.Infof("[TRANSFER] Duplicate transaction detected: %s, status: %s", txID, existing.Status)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"success":     existing.Status == models.TxCompleted,
			"transaction": existing,
			"message":     "Transaction already processed",
		})
		return
	}

	dbTx, err := ts.db.Begin()
	if err != nil {
		logrus.Errorf("[TRANSFER] Failed to begin transaction: %v", err)
		SendErrorResponse(w, "Failed to process transfer", http.StatusInternalServerError, nil)
		return
	}
	defer dbTx.Rollback()

	fromBalance, _, err := ts.ledger.TransferTx(dbTx, req.FromAccount, req.ToAccount, txID, req.Amount)
	if err != nil {
		ts.failPosting(w, dbTx, txID, req.FromAccount, req.ToAccount, models.TxTransfer, &DepositRequest{
			Amount: req.Amount, Currency: req.Currency, Narration: req.Narration,
		}, actor, err)
		return
	}

	tx := &models.Transaction{
		TransactionID:    txID,
		AccountID:        req.FromAccount,
		CounterpartyID:   req.ToAccount,
		Type:             models.TxTransfer,
		Amount:           req.Amount,
		ResultingBalance: fromBalance,
		Currency:         req.Currency,
		Narration:        req.Narration,
		Status:           models.TxCompleted,
		CreatedAt:        time.Now(),
		CreatedBy:        actor,
	}

	if err := ts.audit.RecordTx(dbTx, audit.Event{
		EventType:     models.TxTransfer,
		TransactionID: txID,
		AccountID:     req.FromAccount,
		Amount:        req.Amount,
		Status:        models.TxCompleted,
		Actor:         actor,
		Details: map[string]string{
			"from_account": req.FromAccount,
			"to_account":   req.ToAccount,
		},
	}); err != nil {
		logrus.Errorf("[TRANSFER] Failed to write audit row for %s: %v", txID, err)
		SendErrorResponse(w, "Failed to process transfer", http.StatusInternalServerError, nil)
		return
	}

	if err := ts.storeTransactionTx(dbTx, tx); err != nil {
		ts.audit.LogError(txID, req.FromAccount, err)
		SendErrorResponse(w, "Failed to store transaction", http.StatusInternalServerError, nil)
		return
	}

	if err := dbTx.Commit(); err != nil {
		logrus.Errorf("[TRANSFER] Failed to commit transaction: %v", err)
		ts.audit.LogError(txID, req.FromAccount, err)
		SendErrorResponse(w, "Failed to process transfer", http.StatusInternalServerError, nil)
		return
	}

	ts.audit.LogTransfer(txID, req.FromAccount, req.ToAccount, req.Amount, models.TxCompleted)

	// Queue for settlement export (after commit)
	if err := ts.queueForSettlement(tx); err != nil {
		logrus.Warnf("[TRANSFER] Failed to queue transaction for settlement: %v", err)
	}

	if ts.notifier != nil {
		go ts.notifier.TransactionCompleted(tx)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"success":     true,
		"transaction": tx,
	})
}

// Reverse backs out a completed transaction with compensating entries
// @Summary Reverse a transaction
// @Description Reverse a completed transaction
// @Tags transactions
// @Produce json
// @Security BearerAuth
// @Param txId path string true "Transaction ID"
// @Success 200 {object} models.Transaction
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /transactions/{txId}/reverse [post]
func (ts *TransactionService) Reverse(w http.ResponseWriter, r *http.Request) {
	txID := chi.URLParam(r, "txId")
	actor := actorFromContext(r.Context())
	logrus.Infof("[REVERSAL] Reversal request for %s by %s", txID, actor)

	dbTx, err := ts.db.Begin()
	if err != nil {
		logrus.Errorf("[REVERSAL] Failed to begin transaction: %v", err)
		SendErrorResponse(w, "Failed to process reversal", http.StatusInternalServerError, nil)
		return
	}
	defer dbTx.Rollback()

	var tx models.Transaction
	err = dbTx.QueryRow(`
		SELECT transaction_id, account_id, COALESCE(counterparty_id, ''), type, amount, currency, status
		FROM transactions
		WHERE transaction_id = $1
		FOR UPDATE`, txID).Scan(
		&tx.TransactionID, &tx.AccountID, &tx.CounterpartyID, &tx.Type, &tx.Amount, &tx.Currency, &tx.Status)
	if err != nil {
		if err == sql.ErrNoRows {
			SendErrorResponse(w, "Transaction not found", http.StatusNotFound, nil)
		} else {
			logrus.Errorf("[REVERSAL] Failed to fetch transaction %s: %v", txID, err)
			SendErrorResponse(w, "Failed to process reversal", http.StatusInternalServerError, nil)
		}
		return
	}

	if tx.Status != models.TxCompleted {
		SendErrorResponse(w, fmt.Sprintf("Transaction is %s, only completed transactions can be reversed", tx.Status),
			http.StatusConflict, nil)
		return
	}

	revID := "REV-" + txID
	switch tx.Type {
	case models.TxDeposit, models.TxInterest:
		_, err = ts.ledger.DebitTx(dbTx, tx.AccountID, revID, tx.Amount)
	case models.TxWithdrawal:
		_, err = ts.ledger.CreditTx(dbTx, tx.AccountID, revID, tx.Amount)
	case models.TxTransfer:
		_, _, err = ts.ledger.TransferTx(dbTx, tx.CounterpartyID, tx.AccountID, revID, tx.Amount)
	default:
		err = fmt.Errorf("unsupported transaction type %s", tx.Type)
	}
	if err != nil {
		logrus.Errorf("[REVERSAL] Compensating entries failed for %s: %v", txID, err)
		ts.audit.LogError(txID, tx.AccountID, err)
		status := http.StatusInternalServerError
		if errors.Is(err, ErrInsufficientFunds) || errors.Is(err, ErrAccountNotActive) {
			status = http.StatusConflict
		}
		SendErrorResponse(w, "Failed to reverse transaction", status, nil)
		return
	}

	if err := ts.audit.RecordTx(dbTx, audit.Event{
		EventType:     "REVERSAL",
		TransactionID: txID,
		AccountID:     tx.AccountID,
		Amount:        tx.Amount,
		Status:        models.TxReversed,
		Actor:         actor,
	}); err != nil {
		logrus.Errorf("[REVERSAL] Failed to write audit row for %s: %v", txID, err)
		SendErrorResponse(w, "Failed to process reversal", http.StatusInternalServerError, nil)
		return
	}

	if _, err := dbTx.Exec(`
		UPDATE transactions SET status = $1, reversed_at = NOW() WHERE transaction_id = $2`,
		models.TxReversed, txID); err != nil {
		logrus.Errorf("[REVERSAL] Failed to mark transaction reversed: %v", err)
		SendErrorResponse(w, "Failed to process reversal", http.StatusInternalServerError, nil)
		return
	}

	if err := dbTx.Commit(); err != nil {
		logrus.Errorf("[REVERSAL] Failed to commit reversal of %s: %v", txID, err)
		SendErrorResponse(w, "Failed to process reversal", http.StatusInternalServerError, nil)
		return
	}

	logrus.Infof("[REVERSAL] Transaction %s reversed", txID)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success":       true,
		"transactionId": txID,
		"status":        models.TxReversed,
	})
}

// GetTransaction retrieves a specific transaction
// @Summary Get transaction by ID
// @Description Retrieve a transaction by its ID
// @Tags transactions
// @Produce json
// @Security BearerAuth
// @Param txId path string true "Transaction ID"
// @Success 200 {object} models.Transaction
// @Failure 404 {object} ErrorResponse
// @Router /transactions/{txId} [get]
func (ts *TransactionService) GetTransaction(w http.ResponseWriter, r *http.Request) {
	txID := chi.URLParam(r, "txId")

	tx, err := ts.fetchTransaction(txID)
	if err != nil {
		if err == sql.ErrNoRows {
			SendErrorResponse(w, "Transaction not found", http.StatusNotFound, nil)
		} else {
			SendErrorResponse(w, "Failed to fetch transaction", http.StatusInternalServerError, nil)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(tx)
}

// ListTransactions retrieves transactions with optional filters
// @Summary List transactions
// @Description Get a list of transactions with optional filtering
// @Tags transactions
// @Produce json
// @Security BearerAuth
// @Param accountId query string false "Filter by account ID"
// @Param status query string false "Filter by status"
// @Param limit query int false "Maximum number of rows (default: 50)"
// @Success 200 {object} object{transactions=[]models.Transaction,count=int}
// @Router /transactions [get]
func (ts *TransactionService) ListTransactions(w http.ResponseWriter, r *http.Request) {
	accountID := r.URL.Query().Get("accountId")
	status := r.URL.Query().Get("status")
	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 500 {
			limit = l
		}
	}

	transactions, err := ts.fetchTransactions(accountID, status, limit)
	if err != nil {
		logrus.Errorf("[TRANSACTION] Failed to fetch transactions: %v", err)
		SendErrorResponse(w, "Failed to fetch transactions", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"transactions": transactions,
		"count":        len(transactions),
	})
}

// GetRecentTransactions retrieves recent transactions for the caller's accounts
// @Summary Get recent transactions
// @Description Get a list of recent transactions with configurable limit
// @Tags transactions
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Number of transactions to return (default: 10, max: 100)"
// @Success 200 {array} models.Transaction
// @Failure 401 {object} ErrorResponse
// @Router /transactions/recent [get]
func (ts *TransactionService) GetRecentTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req struct {
		Limit int `validate:"omitempty,min=1,max=100"`
	}
	req.Limit = 10

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil {
			req.Limit = l
		}
	}

	if err := ts.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	transactions, err := ts.fetchRecentTransactions(userID, req.Limit)
	if err != nil {
		logrus.Errorf("[TRANSACTION] Failed to fetch recent transactions: %v", err)
		SendErrorResponse(w, "Failed to fetch recent transactions", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(transactions)
}

// failPosting records a rejected posting as a FAILED transaction row so the
// attempt is visible in the trail, then answers with the mapped status code.
func (ts *TransactionService) failPosting(w http.ResponseWriter, dbTx *sql.Tx, txID, accountID, counterparty, txType string, req *DepositRequest, actor string, cause error) {
	var failStatus string
	var httpStatus int
	var message string

	switch {
	case errors.Is(cause, ErrAccountNotFound):
		failStatus, httpStatus, message = "FAILED_ACCOUNT_NOT_FOUND", http.StatusNotFound, "Account not found"
	case errors.Is(cause, ErrAccountNotActive):
		failStatus, httpStatus, message = "FAILED_ACCOUNT_NOT_ACTIVE", http.StatusForbidden, "Account not active"
	case errors.Is(cause, ErrInsufficientFunds):
		failStatus, httpStatus, message = "FAILED_INSUFFICIENT_FUNDS", http.StatusBadRequest, "Insufficient funds"
	default:
		logrus.Errorf("[TRANSACTION] Posting failed for %s: %v", txID, cause)
		ts.audit.LogError(txID, accountID, cause)
		SendErrorResponse(w, "Failed to process transaction", http.StatusInternalServerError, nil)
		return
	}

	logrus.Warnf("[TRANSACTION] %s for %s (account %s)", failStatus, txID, accountID)

	var cp any
	if counterparty != "" {
		cp = counterparty
	}
	_, _ = dbTx.Exec(`
		INSERT INTO transactions
		(transaction_id, account_id, counterparty_id, type, amount, resulting_balance, currency, narration, status, created_at, created_by)
		VALUES ($1, $2, $3, $4, $5, 0, $6, $7, $8, NOW(), $9)`,
		txID, accountID, cp, txType, req.Amount, req.Currency, req.Narration, failStatus, actor)
	_ = dbTx.Commit()

	ts.audit.LogError(txID, accountID, cause)
	SendErrorResponse(w, message, httpStatus, nil)
}

func (ts *TransactionService) existingTransaction(txID string) (*models.Transaction, bool) {
	tx, err := ts.fetchTransaction(txID)
	if err != nil {
		return nil, false
	}
	return tx, true
}

func (ts *TransactionService) storeTransactionTx(dbTx *sql.Tx, tx *models.Transaction) error {
	var cp any
	if tx.CounterpartyID != "" {
		cp = tx.CounterpartyID
	}
	_, err := dbTx.Exec(`
		INSERT INTO transactions
		(transaction_id, account_id, counterparty_id, type, amount, resulting_balance, currency, narration, status, created_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		tx.TransactionID, tx.AccountID, cp, tx.Type, tx.Amount, tx.ResultingBalance,
		tx.Currency, tx.Narration, tx.Status, tx.CreatedAt, tx.CreatedBy)
	return err
}

func (ts *TransactionService) queueForSettlement(tx *models.Transaction) error {
	if ts.redis == nil {
		return nil
	}
	data, err := json.Marshal(tx)
	if err != nil {
		return err
	}
	return ts.redis.RPush(context.Background(), settlementQueue, data).Err()
}

func (ts *TransactionService) fetchTransaction(txID string) (*models.Transaction, error) {
	tx := &models.Transaction{}
	err := ts.db.QueryRow(`
		SELECT id, transaction_id, account_id, COALESCE(counterparty_id, ''), type, amount,
		       resulting_balance, currency, COALESCE(narration, ''), status, created_at, created_by
		FROM transactions
		WHERE transaction_id = $1`, txID).Scan(
		&tx.ID, &tx.TransactionID, &tx.AccountID, &tx.CounterpartyID, &tx.Type, &tx.Amount,
		&tx.ResultingBalance, &tx.Currency, &tx.Narration, &tx.Status, &tx.CreatedAt, &tx.CreatedBy)
	if err != nil {
		return nil, err
	}
	return tx, nil
}

func (ts *TransactionService) fetchTransactions(accountID, status string, limit int) ([]models.Transaction, error) {
	var conditions []string
	var args []interface{}
	argIndex := 1

	baseQuery := `
		SELECT id, transaction_id, account_id, COALESCE(counterparty_id, ''), type, amount,
		       resulting_balance, currency, COALESCE(narration, ''), status, created_at, created_by
		FROM transactions
	`

	if accountID != "" {
		conditions = append(conditions, fmt.Sprintf("(account_id = $%d OR counterparty_id = $%d)", argIndex, argIndex))
		args = append(args, accountID)
		argIndex++
	}

	if status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, status)
		argIndex++
	}

	query := baseQuery
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY created_at DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIndex)
	args = append(args, limit)

	rows, err := ts.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	transactions := []models.Transaction{}
	for rows.Next() {
		var tx models.Transaction
		err := rows.Scan(
			&tx.ID, &tx.TransactionID, &tx.AccountID, &tx.CounterpartyID, &tx.Type, &tx.Amount,
			&tx.ResultingBalance, &tx.Currency, &tx.Narration, &tx.Status, &tx.CreatedAt, &tx.CreatedBy)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}

	return transactions, rows.Err()
}

func (ts *TransactionService) fetchRecentTransactions(userID string, limit int) ([]models.Transaction, error) {
	// DISTINCT: a transfer between two of the caller's own accounts joins
	// on both legs and would otherwise come back twice
	query := `
		SELECT DISTINCT t.id, t.transaction_id, t.account_id, COALESCE(t.counterparty_id, ''), t.type, t.amount,
		       t.resulting_balance, t.currency, COALESCE(t.narration, ''), t.status, t.created_at, t.created_by
		FROM transactions t
		INNER JOIN accounts a ON t.account_id = a.id OR t.counterparty_id = a.id
		INNER JOIN users u ON a.customer_id = u.customer_id
		WHERE u.id = $1::integer
		ORDER BY t.created_at DESC
		LIMIT $2
	`

	rows, err := ts.db.Query(query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	transactions := []models.Transaction{}
	for rows.Next() {
		var tx models.Transaction
		err := rows.Scan(
			&tx.ID, &tx.TransactionID, &tx.AccountID, &tx.CounterpartyID, &tx.Type, &tx.Amount,
			&tx.ResultingBalance, &tx.Currency, &tx.Narration, &tx.Status, &tx.CreatedAt, &tx.CreatedBy)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}

	return transactions, rows.Err()
}

func actorFromContext(ctx context.Context) string {
	if userID, ok := ctx.Value("userID").(string); ok && userID != "" {
		return userID
	}
	return "system"
}
