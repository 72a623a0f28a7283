package services

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/meridianbank/core/internal/models"
	"github.com/meridianbank/core/internal/scoring"
)

type CustomerService struct {
	db        *sql.DB
	validator *ValidationHelper
}

func NewCustomerService(db *sql.DB) *CustomerService {
	return &CustomerService{
		db:        db,
		validator: NewValidationHelper(),
	}
}

// CreateCustomerRequest is the payload for customer creation
type CreateCustomerRequest struct {
	SSN         string `json:"ssn" validate:"required,len=11"`
	FirstName   string `json:"firstName" validate:"required,min=2"`
	LastName    string `json:"lastName" validate:"required,min=2"`
	Email       string `json:"email" validate:"required,email"`
	PhoneNumber string `json:"phoneNumber" validate:"required"`
}

// CreateCustomer registers a new customer
// @Summary Create customer
// @Description Register a new customer; SSN must be unique
// @Tags customers
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateCustomerRequest true "Customer data"
// @Success 201 {object} models.Customer
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /customers [post]
func (cs *CustomerService) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())

	var req CreateCustomerRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}

	if err := cs.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	customer := models.Customer{
		SSN:         req.SSN,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Email:       req.Email,
		PhoneNumber: req.PhoneNumber,
		CreditScore: scoring.BaseScore,
		RiskLevel:   scoring.RiskLevel(scoring.BaseScore),
		Status:      models.CustomerActive,
		CreatedBy:   actor,
	}

	// Audit creation fields are written here once and never touched again
	err := cs.db.QueryRow(`
		INSERT INTO customers (ssn, first_name, last_name, email, phone_number, credit_score, risk_level, status, created_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), $9)
		RETURNING id, created_at`,
		customer.SSN, customer.FirstName, customer.LastName, customer.Email, customer.PhoneNumber,
		customer.CreditScore, customer.RiskLevel, customer.Status, actor).
		Scan(&customer.ID, &customer.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			logrus.Warnf("[CUSTOMER] Duplicate SSN on create: %v", err)
			SendErrorResponse(w, "Customer with this SSN already exists", http.StatusConflict, nil)
			return
		}
		logrus.Errorf("[CUSTOMER] Failed to create customer: %v", err)
		SendErrorResponse(w, "Failed to create customer", http.StatusInternalServerError, nil)
		return
	}

	logrus.Infof("[CUSTOMER] Customer created - ID: %d", customer.ID)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(customer)
}

// GetCustomer retrieves a customer by ID
// @Summary Get customer
// @Description Retrieve a customer by ID
// @Tags customers
// @Produce json
// @Security BearerAuth
// @Param customerId path int true "Customer ID"
// @Success 200 {object} models.Customer
// @Failure 404 {object} ErrorResponse
// @Router /customers/{customerId} [get]
func (cs *CustomerService) GetCustomer(w http.ResponseWriter, r *http.Request) {
	customerID, err := strconv.Atoi(chi.URLParam(r, "customerId"))
	if err != nil {
		SendErrorResponse(w, "Invalid customer ID", http.StatusBadRequest, nil)
		return
	}

	customer, err := cs.fetchCustomer(customerID)
	if err != nil {
		if err == sql.ErrNoRows {
			SendErrorResponse(w, "Customer not found", http.StatusNotFound, nil)
		} else {
			logrus.Errorf("[CUSTOMER] Failed to fetch customer %d: %v", customerID, err)
			SendErrorResponse(w, "Failed to fetch customer", http.StatusInternalServerError, nil)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(customer)
}

// ListCustomers lists customers with optional status filter
// @Summary List customers
// @Description Get a list of customers
// @Tags customers
// @Produce json
// @Security BearerAuth
// @Param status query string false "Filter by status"
// @Param limit query int false "Maximum number of rows (default: 50)"
// @Success 200 {object} object{customers=[]models.Customer,count=int}
// @Router /customers [get]
func (cs *CustomerService) ListCustomers(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 500 {
			limit = l
		}
	}

	query := `
		SELECT id, ssn, first_name, last_name, email, phone_number, credit_score, risk_level, status,
		       created_at, created_by, updated_at, COALESCE(updated_by, '')
		FROM customers`
	args := []interface{}{}
	if status != "" {
		query += " WHERE status = $1 ORDER BY id LIMIT $2"
		args = append(args, status, limit)
	} else {
		query += " ORDER BY id LIMIT $1"
		args = append(args, limit)
	}

	rows, err := cs.db.Query(query, args...)
	if err != nil {
		logrus.Errorf("[CUSTOMER] Failed to list customers: %v", err)
		SendErrorResponse(w, "Failed to fetch customers", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	customers := []models.Customer{}
	for rows.Next() {
		var c models.Customer
		if err := rows.Scan(&c.ID, &c.SSN, &c.FirstName, &c.LastName, &c.Email, &c.PhoneNumber,
			&c.CreditScore, &c.RiskLevel, &c.Status, &c.CreatedAt, &c.CreatedBy, &c.UpdatedAt, &c.UpdatedBy); err != nil {
			logrus.Errorf("[CUSTOMER] Failed to scan customer row: %v", err)
			SendErrorResponse(w, "Failed to fetch customers", http.StatusInternalServerError, nil)
			return
		}
		customers = append(customers, c)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"customers": customers,
		"count":     len(customers),
	})
}

// UpdateCustomerStatus activates or deactivates a customer
// @Summary Update customer status
// @Description Set customer status to ACTIVE or INACTIVE
// @Tags customers
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param customerId path int true "Customer ID"
// @Param request body object{status=string} true "New status"
// @Success 200 {object} models.Customer
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /customers/{customerId}/status [put]
func (cs *CustomerService) UpdateCustomerStatus(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())

	customerID, err := strconv.Atoi(chi.URLParam(r, "customerId"))
	if err != nil {
		SendErrorResponse(w, "Invalid customer ID", http.StatusBadRequest, nil)
		return
	}

	var req struct {
		Status string `json:"status" validate:"required,oneof=ACTIVE INACTIVE"`
	}
	if err := DecodeJSON(w, r, &req); err != nil {
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}
	if err := cs.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	// created_at/created_by never change; status updates only move updated_*
	result, err := cs.db.Exec(`
		UPDATE customers SET status = $1, updated_at = NOW(), updated_by = $2 WHERE id = $3`,
		req.Status, actor, customerID)
	if err != nil {
		logrus.Errorf("[CUSTOMER] Failed to update status for %d: %v", customerID, err)
		SendErrorResponse(w, "Failed to update customer", http.StatusInternalServerError, nil)
		return
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		SendErrorResponse(w, "Customer not found", http.StatusNotFound, nil)
		return
	}

	logrus.Infof("[CUSTOMER] Status of customer %d set to %s by %s", customerID, req.Status, actor)

	customer, err := cs.fetchCustomer(customerID)
	if err != nil {
		SendErrorResponse(w, "Failed to fetch customer", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(customer)
}

func (cs *CustomerService) fetchCustomer(customerID int) (*models.Customer, error) {
	var c models.Customer
	err := cs.db.QueryRow(`
		SELECT id, ssn, first_name, last_name, email, phone_number, credit_score, risk_level, status,
		       created_at, created_by, updated_at, COALESCE(updated_by, '')
		FROM customers
		WHERE id = $1`, customerID).Scan(
		&c.ID, &c.SSN, &c.FirstName, &c.LastName, &c.Email, &c.PhoneNumber,
		&c.CreditScore, &c.RiskLevel, &c.Status, &c.CreatedAt, &c.CreatedBy, &c.UpdatedAt, &c.UpdatedBy)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
