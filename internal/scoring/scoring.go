package scoring

import (
	"errors"
	"fmt"
	"math"
)

// Score bounds
const (
	BaseScore = 600
	MinScore  = 300
	MaxScore  = 850
)

// Risk levels
const (
	RiskLow    = "LOW"
	RiskMedium = "MEDIUM"
	RiskHigh   = "HIGH"
)

// Loan recommendations
const (
	RecommendApprove = "APPROVE"
	RecommendReview  = "REVIEW"
	RecommendDeny    = "DENY"
)

// Scaling ceilings for the open-ended factors
const (
	creditAgeCeilingMonths = 240        // 20 years of history earns the full age score
	incomeCeilingCents     = 12_000_000 // $120,000/yr earns the full income score
	employmentCeilingYears = 10.0
)

var ErrInvalidInput = errors.New("invalid scoring input")

// Input holds the financial attributes a customer is scored on.
// Monetary values are in cents.
type Input struct {
	OnTimePaymentRate float64 `json:"onTimePaymentRate" validate:"min=0,max=1"`
	DebtToIncomeRatio float64 `json:"debtToIncomeRatio" validate:"min=0"`
	CreditAgeMonths   int     `json:"creditAgeMonths" validate:"min=0"`
	AnnualIncome      int64   `json:"annualIncome" validate:"min=0"`
	EmploymentYears   float64 `json:"employmentYears" validate:"min=0"`
}

// Factors are the per-attribute contributions added to the base score.
type Factors struct {
	Payment    int `json:"payment"`    // 0-150
	Debt       int `json:"debt"`       // 0-100
	Age        int `json:"age"`        // 0 or 20-100
	Income     int `json:"income"`     // 0 or 20-100
	Employment int `json:"employment"` // 0 or 20-100
}

// Result is the full scoring outcome for one customer.
type Result struct {
	Score          int     `json:"score"`
	RiskLevel      string  `json:"riskLevel"`
	Recommendation string  `json:"recommendation"`
	InterestRate   float64 `json:"interestRate"` // annual percentage
	Factors        Factors `json:"factors"`
}

// Calculate produces a credit score and the decisions derived from it.
// The factor sum can exceed the valid range, so the final score is
// clamped to [300, 850].
func Calculate(in Input) (*Result, error) {
	if err := validate(in); err != nil {
		return nil, err
	}

	f := Factors{
		Payment:    paymentScore(in.OnTimePaymentRate),
		Debt:       debtScore(in.DebtToIncomeRatio),
		Age:        ageScore(in.CreditAgeMonths),
		Income:     incomeScore(in.AnnualIncome),
		Employment: employmentScore(in.EmploymentYears),
	}

	score := clamp(BaseScore+f.Payment+f.Debt+f.Age+f.Income+f.Employment, MinScore, MaxScore)

	return &Result{
		Score:          score,
		RiskLevel:      RiskLevel(score),
		Recommendation: Recommendation(score),
		InterestRate:   InterestRate(score),
		Factors:        f,
	}, nil
}

// RiskLevel classifies a score. Boundaries are inclusive: 720 is LOW,
// 719 is MEDIUM, 639 is HIGH.
func RiskLevel(score int) string {
	switch {
	case score >= 720:
		return RiskLow
	case score >= 640:
		return RiskMedium
	default:
		return RiskHigh
	}
}

// Recommendation maps a score to a loan decision.
func Recommendation(score int) string {
	switch {
	case score >= 680:
		return RecommendApprove
	case score >= 620:
		return RecommendReview
	default:
		return RecommendDeny
	}
}

// InterestRate returns the annual loan rate tier for a score.
func InterestRate(score int) float64 {
	switch {
	case score >= 760:
		return 3.5
	case score >= 720:
		return 4.0
	case score >= 680:
		return 5.0
	case score >= 640:
		return 6.5
	default:
		return 8.5
	}
}

func validate(in Input) error {
	if in.OnTimePaymentRate < 0 || in.OnTimePaymentRate > 1 {
		return fmt.Errorf("%w: on-time payment rate %.2f outside [0,1]", ErrInvalidInput, in.OnTimePaymentRate)
	}
	if in.DebtToIncomeRatio < 0 {
		return fmt.Errorf("%w: negative debt-to-income ratio", ErrInvalidInput)
	}
	if in.CreditAgeMonths < 0 {
		return fmt.Errorf("%w: negative credit age", ErrInvalidInput)
	}
	if in.AnnualIncome < 0 {
		return fmt.Errorf("%w: negative annual income", ErrInvalidInput)
	}
	if in.EmploymentYears < 0 {
		return fmt.Errorf("%w: negative employment years", ErrInvalidInput)
	}
	return nil
}

// paymentScore: payment history, 0-150 points (35% nominal weight).
func paymentScore(rate float64) int {
	return int(math.Round(rate * 150))
}

// debtScore: debt ratio, 0-100 points (30% nominal weight). A ratio at or
// above 1 earns nothing.
func debtScore(ratio float64) int {
	if ratio >= 1 {
		return 0
	}
	return int(math.Round((1 - ratio) * 100))
}

// ageScore: credit age, 20-100 points (15% nominal weight). No history at
// all earns nothing, bypassing the 20-point floor.
func ageScore(months int) int {
	if months <= 0 {
		return 0
	}
	if months > creditAgeCeilingMonths {
		months = creditAgeCeilingMonths
	}
	return 20 + int(math.Round(float64(months)/creditAgeCeilingMonths*80))
}

// incomeScore: income level, 20-100 points (10% nominal weight).
func incomeScore(annual int64) int {
	if annual <= 0 {
		return 0
	}
	if annual > incomeCeilingCents {
		annual = incomeCeilingCents
	}
	return 20 + int(math.Round(float64(annual)/incomeCeilingCents*80))
}

// employmentScore: employment stability, 20-100 points (10% nominal weight).
func employmentScore(years float64) int {
	if years <= 0 {
		return 0
	}
	if years > employmentCeilingYears {
		years = employmentCeilingYears
	}
	return 20 + int(math.Round(years/employmentCeilingYears*80))
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
