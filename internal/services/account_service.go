package services

import (
	"database/sql"
	"encoding/json"
	"math/rand"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/meridianbank/core/internal/models"
)

type AccountService struct {
	db        *sql.DB
	validator *ValidationHelper
}

func NewAccountService(db *sql.DB) *AccountService {
	return &AccountService{
		db:        db,
		validator: NewValidationHelper(),
	}
}

// OpenAccountRequest is the payload for opening an account
type OpenAccountRequest struct {
	CustomerID       int    `json:"customerId" validate:"required,gt=0"`
	AccountType      string `json:"accountType" validate:"required,oneof=CHECKING SAVINGS LOAN"`
	OverdraftAllowed bool   `json:"overdraftAllowed"`
	OverdraftLimit   int64  `json:"overdraftLimit" validate:"min=0"`
	InterestRateBP   int    `json:"interestRateBp" validate:"min=0"`
}

// OpenAccount opens a new account for a customer
// @Summary Open account
// @Description Open a new account for an active customer
// @Tags accounts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body OpenAccountRequest true "Account data"
// @Success 201 {object} models.Account
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /accounts [post]
func (as *AccountService) OpenAccount(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())

	var req OpenAccountRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}
	if err := as.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	var customerStatus string
	err := as.db.QueryRow(`SELECT status FROM customers WHERE id = $1`, req.CustomerID).Scan(&customerStatus)
	if err != nil {
		if err == sql.ErrNoRows {
			SendErrorResponse(w, "Customer not found", http.StatusNotFound, nil)
		} else {
			logrus.Errorf("[ACCOUNT] Failed to look up customer %d: %v", req.CustomerID, err)
			SendErrorResponse(w, "Failed to open account", http.StatusInternalServerError, nil)
		}
		return
	}
	if customerStatus != models.CustomerActive {
		SendErrorResponse(w, "Customer not active", http.StatusForbidden, nil)
		return
	}

	account := models.Account{
		ID:               generateAccountID(),
		CustomerID:       req.CustomerID,
		AccountType:      req.AccountType,
		OverdraftAllowed: req.OverdraftAllowed,
		OverdraftLimit:   req.OverdraftLimit,
		InterestRateBP:   req.InterestRateBP,
		Status:           models.AccountActive,
		Version:          1,
		CreatedBy:        actor,
	}

	err = as.db.QueryRow(`
		INSERT INTO accounts (id, customer_id, account_type, balance, available_balance, overdraft_allowed, overdraft_limit, interest_rate_bp, status, version, created_at, created_by)
		VALUES ($1, $2, $3, 0, 0, $4, $5, $6, $7, 1, NOW(), $8)
		RETURNING created_at`,
		account.ID, account.CustomerID, account.AccountType, account.OverdraftAllowed,
		account.OverdraftLimit, account.InterestRateBP, account.Status, actor).
		Scan(&account.CreatedAt)
	if err != nil {
		logrus.Errorf("[ACCOUNT] Failed to open account for customer %d: %v", req.CustomerID, err)
		SendErrorResponse(w, "Failed to open account", http.StatusInternalServerError, nil)
		return
	}

	logrus.Infof("[ACCOUNT] Account %s opened for customer %d", account.ID, account.CustomerID)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(account)
}

// GetAccount retrieves an account by ID
// @Summary Get account
// @Description Retrieve an account by ID
// @Tags accounts
// @Produce json
// @Security BearerAuth
// @Param accountId path string true "Account ID"
// @Success 200 {object} models.Account
// @Failure 404 {object} ErrorResponse
// @Router /accounts/{accountId} [get]
func (as *AccountService) GetAccount(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountId")

	account, err := as.fetchAccount(accountID)
	if err != nil {
		if err == sql.ErrNoRows {
			SendErrorResponse(w, "Account not found", http.StatusNotFound, nil)
		} else {
			logrus.Errorf("[ACCOUNT] Failed to fetch account %s: %v", accountID, err)
			SendErrorResponse(w, "Failed to fetch account", http.StatusInternalServerError, nil)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(account)
}

// BalanceEnquiry retrieves account balance
// @Summary Get account balance
// @Description Retrieve balance and available balance for an account
// @Tags accounts
// @Produce json
// @Security BearerAuth
// @Param accountId path string true "Account ID"
// @Success 200 {object} object{responseCode=string,accountId=string,balance=int64,availableBalance=int64,status=string}
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /accounts/{accountId}/balance [get]
func (as *AccountService) BalanceEnquiry(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountId")
	logrus.Infof("[ACCOUNT_ENQUIRY] Balance enquiry for account %s from IP: %s", accountID, r.RemoteAddr)

	account, err := as.fetchAccount(accountID)
	if err != nil {
		if err == sql.ErrNoRows {
			SendErrorResponse(w, "Account not found", http.StatusNotFound, nil)
		} else {
			SendErrorResponse(w, "Failed to fetch account", http.StatusInternalServerError, nil)
		}
		return
	}

	if account.Status != models.AccountActive {
		logrus.Warnf("[ACCOUNT_ENQUIRY] Account not active: %s, status: %s", accountID, account.Status)
		SendErrorResponse(w, "Account not active", http.StatusForbidden, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"responseCode":     "00",
		"accountId":        account.ID,
		"balance":          account.Balance,
		"availableBalance": account.AvailableBalance,
		"status":           "SUCCESS",
	})
}

// UpdateAccountStatus freezes, unfreezes or closes an account
// @Summary Update account status
// @Description Set account status to ACTIVE, FROZEN or CLOSED; closing requires a zero balance
// @Tags accounts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param accountId path string true "Account ID"
// @Param request body object{status=string} true "New status"
// @Success 200 {object} models.Account
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /accounts/{accountId}/status [put]
func (as *AccountService) UpdateAccountStatus(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountId")

	var req struct {
		Status string `json:"status" validate:"required,oneof=ACTIVE FROZEN CLOSED"`
	}
	if err := DecodeJSON(w, r, &req); err != nil {
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}
	if err := as.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	account, err := as.fetchAccount(accountID)
	if err != nil {
		if err == sql.ErrNoRows {
			SendErrorResponse(w, "Account not found", http.StatusNotFound, nil)
		} else {
			SendErrorResponse(w, "Failed to fetch account", http.StatusInternalServerError, nil)
		}
		return
	}

	if req.Status == models.AccountClosed && account.Balance != 0 {
		SendErrorResponse(w, "Account balance must be zero before closing", http.StatusConflict, nil)
		return
	}

	if _, err := as.db.Exec(`
		UPDATE accounts SET status = $1, updated_at = NOW() WHERE id = $2`,
		req.Status, accountID); err != nil {
		logrus.Errorf("[ACCOUNT] Failed to update status for %s: %v", accountID, err)
		SendErrorResponse(w, "Failed to update account", http.StatusInternalServerError, nil)
		return
	}

	logrus.Infof("[ACCOUNT] Status of account %s set to %s", accountID, req.Status)
	account.Status = req.Status

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(account)
}

// ConfigureOverdraft updates the overdraft settings of an account
// @Summary Configure overdraft
// @Description Enable or disable overdraft and set its limit
// @Tags accounts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param accountId path string true "Account ID"
// @Param request body object{overdraftAllowed=bool,overdraftLimit=int64} true "Overdraft settings"
// @Success 200 {object} models.Account
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /accounts/{accountId}/overdraft [put]
func (as *AccountService) ConfigureOverdraft(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountId")

	var req struct {
		OverdraftAllowed bool  `json:"overdraftAllowed"`
		OverdraftLimit   int64 `json:"overdraftLimit" validate:"min=0"`
	}
	if err := DecodeJSON(w, r, &req); err != nil {
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}
	if err := as.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	result, err := as.db.Exec(`
		UPDATE accounts SET overdraft_allowed = $1, overdraft_limit = $2, updated_at = NOW() WHERE id = $3`,
		req.OverdraftAllowed, req.OverdraftLimit, accountID)
	if err != nil {
		logrus.Errorf("[ACCOUNT] Failed to configure overdraft for %s: %v", accountID, err)
		SendErrorResponse(w, "Failed to update account", http.StatusInternalServerError, nil)
		return
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		SendErrorResponse(w, "Account not found", http.StatusNotFound, nil)
		return
	}

	account, err := as.fetchAccount(accountID)
	if err != nil {
		SendErrorResponse(w, "Failed to fetch account", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(account)
}

func (as *AccountService) fetchAccount(accountID string) (*models.Account, error) {
	var a models.Account
	err := as.db.QueryRow(`
		SELECT id, customer_id, account_type, balance, available_balance, overdraft_allowed,
		       overdraft_limit, interest_rate_bp, status, version, created_at, created_by, updated_at
		FROM accounts
		WHERE id = $1`, accountID).Scan(
		&a.ID, &a.CustomerID, &a.AccountType, &a.Balance, &a.AvailableBalance, &a.OverdraftAllowed,
		&a.OverdraftLimit, &a.InterestRateBP, &a.Status, &a.Version, &a.CreatedAt, &a.CreatedBy, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func generateAccountID() string {
	const digits = "0123456789"
	b := make([]byte, 10)
	for i := range b {
		b[i] = digits[rand.Intn(len(digits))]
	}
	return string(b)
}
