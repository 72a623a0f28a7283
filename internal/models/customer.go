package models

import "time"

// Customer statuses
const (
	CustomerActive   = "ACTIVE"
	CustomerInactive = "INACTIVE"
)

// Risk levels derived from the credit score
const (
	RiskLow    = "LOW"
	RiskMedium = "MEDIUM"
	RiskHigh   = "HIGH"
)

// Customer represents a bank customer
type Customer struct {
	ID          int        `json:"id" db:"id"`
	SSN         string     `json:"ssn" db:"ssn"` // unique
	FirstName   string     `json:"firstName" db:"first_name"`
	LastName    string     `json:"lastName" db:"last_name"`
	Email       string     `json:"email" db:"email"`
	PhoneNumber string     `json:"phoneNumber" db:"phone_number"`
	CreditScore int        `json:"creditScore" db:"credit_score"` // 300-850
	RiskLevel   string     `json:"riskLevel" db:"risk_level"`
	Status      string     `json:"status" db:"status"`
	CreatedAt   time.Time  `json:"createdAt" db:"created_at"` // immutable once set
	CreatedBy   string     `json:"createdBy" db:"created_by"` // immutable once set
	UpdatedAt   *time.Time `json:"updatedAt,omitempty" db:"updated_at"`
	UpdatedBy   string     `json:"updatedBy,omitempty" db:"updated_by"`
}

// CreditProfile holds the financial attributes a customer is scored on
type CreditProfile struct {
	CustomerID        int        `json:"customerId" db:"customer_id"`
	OnTimePaymentRate float64    `json:"onTimePaymentRate" db:"on_time_payment_rate"` // share of payments made on time, 0..1
	DebtToIncomeRatio float64    `json:"debtToIncomeRatio" db:"debt_to_income_ratio"`
	CreditAgeMonths   int        `json:"creditAgeMonths" db:"credit_age_months"`
	AnnualIncome      int64      `json:"annualIncome" db:"annual_income"` // in cents
	EmploymentYears   float64    `json:"employmentYears" db:"employment_years"`
	UpdatedAt         *time.Time `json:"updatedAt,omitempty" db:"updated_at"`
}
