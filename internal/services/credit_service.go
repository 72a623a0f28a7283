package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/meridianbank/core/internal/audit"
	"github.com/meridianbank/core/internal/scoring"
)

const scoreCacheTTL = 15 * time.Minute

// CreditService scores customers and keeps the stored score and risk level
// in sync with their credit profile.
type CreditService struct {
	db        *sql.DB
	redis     *redis.Client
	audit     *audit.Logger
	validator *ValidationHelper
}

func NewCreditService(db *sql.DB, redisClient *redis.Client) *CreditService {
	return &CreditService{
		db:        db,
		redis:     redisClient,
		audit:     audit.NewLogger(db),
		validator: NewValidationHelper(),
	}
}

// ScoreCustomer records a credit profile and scores the customer
// @Summary Score customer
// @Description Store the customer's credit profile and compute score, risk level, loan recommendation and rate tier
// @Tags credit
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param customerId path int true "Customer ID"
// @Param request body scoring.Input true "Credit profile"
// @Success 200 {object} scoring.Result
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /customers/{customerId}/score [post]
func (cs *CreditService) ScoreCustomer(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())

	customerID, err := strconv.Atoi(chi.URLParam(r, "customerId"))
	if err != nil {
		SendErrorResponse(w, "Invalid customer ID", http.StatusBadRequest, nil)
		return
	}

	var input scoring.Input
	if err := DecodeJSON(w, r, &input); err != nil {
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}
	if err := cs.validator.ValidateStruct(&input); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	result, err := scoring.Calculate(input)
	if err != nil {
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}

	dbTx, err := cs.db.Begin()
	if err != nil {
		logrus.Errorf("[CREDIT] Failed to begin transaction: %v", err)
		SendErrorResponse(w, "Failed to score customer", http.StatusInternalServerError, nil)
		return
	}
	defer dbTx.Rollback()

	if _, err := dbTx.Exec(`
		INSERT INTO credit_profiles (customer_id, on_time_payment_rate, debt_to_income_ratio, credit_age_months, annual_income, employment_years, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (customer_id) DO UPDATE SET
			on_time_payment_rate = EXCLUDED.on_time_payment_rate,
			debt_to_income_ratio = EXCLUDED.debt_to_income_ratio,
			credit_age_months = EXCLUDED.credit_age_months,
			annual_income = EXCLUDED.annual_income,
			employment_years = EXCLUDED.employment_years,
			updated_at = NOW()`,
		customerID, input.OnTimePaymentRate, input.DebtToIncomeRatio,
		input.CreditAgeMonths, input.AnnualIncome, input.EmploymentYears); err != nil {
		logrus.Errorf("[CREDIT] Failed to store credit profile for %d: %v", customerID, err)
		SendErrorResponse(w, "Failed to score customer", http.StatusInternalServerError, nil)
		return
	}

	updated, err := cs.applyScoreTx(dbTx, customerID, result, actor)
	if err != nil {
		logrus.Errorf("[CREDIT] Failed to apply score for %d: %v", customerID, err)
		SendErrorResponse(w, "Failed to score customer", http.StatusInternalServerError, nil)
		return
	}
	if !updated {
		SendErrorResponse(w, "Customer not found", http.StatusNotFound, nil)
		return
	}

	if err := dbTx.Commit(); err != nil {
		logrus.Errorf("[CREDIT] Failed to commit score for %d: %v", customerID, err)
		SendErrorResponse(w, "Failed to score customer", http.StatusInternalServerError, nil)
		return
	}

	cs.cacheResult(r.Context(), customerID, result)

	logrus.Infof("[CREDIT] Customer %d scored %d (%s)", customerID, result.Score, result.RiskLevel)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// GetCreditDecision returns the current score and loan decision
// @Summary Get credit decision
// @Description Compute score, risk level, recommendation and rate tier from the stored credit profile
// @Tags credit
// @Produce json
// @Security BearerAuth
// @Param customerId path int true "Customer ID"
// @Success 200 {object} scoring.Result
// @Failure 404 {object} ErrorResponse
// @Router /customers/{customerId}/credit-decision [get]
func (cs *CreditService) GetCreditDecision(w http.ResponseWriter, r *http.Request) {
	customerID, err := strconv.Atoi(chi.URLParam(r, "customerId"))
	if err != nil {
		SendErrorResponse(w, "Invalid customer ID", http.StatusBadRequest, nil)
		return
	}

	if result, ok := cs.cachedResult(r.Context(), customerID); ok {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(result)
		return
	}

	input, err := cs.fetchProfile(customerID)
	if err != nil {
		if err == sql.ErrNoRows {
			SendErrorResponse(w, "No credit profile for customer", http.StatusNotFound, nil)
		} else {
			logrus.Errorf("[CREDIT] Failed to fetch profile for %d: %v", customerID, err)
			SendErrorResponse(w, "Failed to fetch credit decision", http.StatusInternalServerError, nil)
		}
		return
	}

	result, err := scoring.Calculate(*input)
	if err != nil {
		logrus.Errorf("[CREDIT] Stored profile for %d failed scoring: %v", customerID, err)
		SendErrorResponse(w, "Failed to compute credit decision", http.StatusInternalServerError, nil)
		return
	}

	cs.cacheResult(r.Context(), customerID, result)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// RefreshAllScores recomputes every customer's score from the stored
// profiles. Used by the nightly batch job.
func (cs *CreditService) RefreshAllScores(ctx context.Context) (int, error) {
	rows, err := cs.db.QueryContext(ctx, `
		SELECT customer_id, on_time_payment_rate, debt_to_income_ratio, credit_age_months, annual_income, employment_years
		FROM credit_profiles`)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	type profile struct {
		customerID int
		input      scoring.Input
	}
	var profiles []profile
	for rows.Next() {
		var p profile
		if err := rows.Scan(&p.customerID, &p.input.OnTimePaymentRate, &p.input.DebtToIncomeRatio,
			&p.input.CreditAgeMonths, &p.input.AnnualIncome, &p.input.EmploymentYears); err != nil {
			return 0, err
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	refreshed := 0
	for _, p := range profiles {
		result, err := scoring.Calculate(p.input)
		if err != nil {
			logrus.Warnf("[CREDIT] Skipping customer %d, profile failed scoring: %v", p.customerID, err)
			continue
		}

		dbTx, err := cs.db.Begin()
		if err != nil {
			return refreshed, err
		}
		if _, err := cs.applyScoreTx(dbTx, p.customerID, result, "system"); err != nil {
			dbTx.Rollback()
			return refreshed, fmt.Errorf("refresh customer %d: %w", p.customerID, err)
		}
		if err := dbTx.Commit(); err != nil {
			return refreshed, err
		}

		cs.invalidateCache(ctx, p.customerID)
		refreshed++
	}

	return refreshed, nil
}

// applyScoreTx persists the score and derived risk level on the customer
// row and records the change in the audit trail.
func (cs *CreditService) applyScoreTx(dbTx *sql.Tx, customerID int, result *scoring.Result, actor string) (bool, error) {
	res, err := dbTx.Exec(`
		UPDATE customers SET credit_score = $1, risk_level = $2, updated_at = NOW(), updated_by = $3 WHERE id = $4`,
		result.Score, result.RiskLevel, actor, customerID)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if rows == 0 {
		return false, nil
	}

	err = cs.audit.RecordTx(dbTx, audit.Event{
		EventType: "CREDIT_SCORE",
		AccountID: strconv.Itoa(customerID),
		Amount:    int64(result.Score),
		Status:    result.RiskLevel,
		Actor:     actor,
		Details: map[string]any{
			"recommendation": result.Recommendation,
			"interest_rate":  result.InterestRate,
		},
	})
	return err == nil, err
}

func (cs *CreditService) fetchProfile(customerID int) (*scoring.Input, error) {
	var input scoring.Input
	err := cs.db.QueryRow(`
		SELECT on_time_payment_rate, debt_to_income_ratio, credit_age_months, annual_income, employment_years
		FROM credit_profiles
		WHERE customer_id = $1`, customerID).Scan(
		&input.OnTimePaymentRate, &input.DebtToIncomeRatio, &input.CreditAgeMonths,
		&input.AnnualIncome, &input.EmploymentYears)
	if err != nil {
		return nil, err
	}
	return &input, nil
}

func (cs *CreditService) cacheResult(ctx context.Context, customerID int, result *scoring.Result) {
	if cs.redis == nil {
		return
	}
	data, err := json.Marshal(result)
	if err != nil {
		return
	}
	key := fmt.Sprintf("credit_score:%d", customerID)
	if err := cs.redis.Set(ctx, key, data, scoreCacheTTL).Err(); err != nil {
		logrus.Warnf("[CREDIT] Failed to cache score for %d: %v", customerID, err)
	}
}

func (cs *CreditService) cachedResult(ctx context.Context, customerID int) (*scoring.Result, bool) {
	if cs.redis == nil {
		return nil, false
	}
	key := fmt.Sprintf("credit_score:%d", customerID)
	data, err := cs.redis.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var result scoring.Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, false
	}
	return &result, true
}

func (cs *CreditService) invalidateCache(ctx context.Context, customerID int) {
	if cs.redis == nil {
		return
	}
	cs.redis.Del(ctx, fmt.Sprintf("credit_score:%d", customerID))
}
