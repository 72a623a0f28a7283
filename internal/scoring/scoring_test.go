package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculate(t *testing.T) {
	t.Run("all factors zero yields base score", func(t *testing.T) {
		// rate 0, ratio 1, no history, no income, no employment: every
		// factor contributes zero
		result, err := Calculate(Input{
			OnTimePaymentRate: 0,
			DebtToIncomeRatio: 1,
		})
		require.NoError(t, err)

		assert.Equal(t, 600, result.Score)
		assert.Equal(t, Factors{}, result.Factors)
		assert.Equal(t, RiskHigh, result.RiskLevel)
		assert.Equal(t, RecommendDeny, result.Recommendation)
		assert.Equal(t, 8.5, result.InterestRate)
	})

	t.Run("perfect inputs clamp to max score", func(t *testing.T) {
		// factor sum is 550, nominal total 1150, clamped to 850
		result, err := Calculate(Input{
			OnTimePaymentRate: 1,
			DebtToIncomeRatio: 0,
			CreditAgeMonths:   240,
			AnnualIncome:      12_000_000,
			EmploymentYears:   10,
		})
		require.NoError(t, err)

		assert.Equal(t, 850, result.Score)
		assert.Equal(t, Factors{Payment: 150, Debt: 100, Age: 100, Income: 100, Employment: 100}, result.Factors)
		assert.Equal(t, RiskLow, result.RiskLevel)
		assert.Equal(t, RecommendApprove, result.Recommendation)
		assert.Equal(t, 3.5, result.InterestRate)
	})

	t.Run("score never leaves valid range", func(t *testing.T) {
		inputs := []Input{
			{},
			{OnTimePaymentRate: 0.5, DebtToIncomeRatio: 0.45, CreditAgeMonths: 36, AnnualIncome: 4_500_000, EmploymentYears: 2},
			{OnTimePaymentRate: 1, DebtToIncomeRatio: 5, CreditAgeMonths: 1, AnnualIncome: 1, EmploymentYears: 0.1},
			{OnTimePaymentRate: 0.99, DebtToIncomeRatio: 0.01, CreditAgeMonths: 600, AnnualIncome: 99_000_000, EmploymentYears: 40},
		}
		for _, in := range inputs {
			result, err := Calculate(in)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, result.Score, MinScore)
			assert.LessOrEqual(t, result.Score, MaxScore)
		}
	})

	t.Run("invalid inputs", func(t *testing.T) {
		cases := map[string]Input{
			"payment rate above one": {OnTimePaymentRate: 1.1},
			"negative payment rate":  {OnTimePaymentRate: -0.1},
			"negative debt ratio":    {DebtToIncomeRatio: -0.5},
			"negative credit age":    {CreditAgeMonths: -1},
			"negative income":        {AnnualIncome: -100},
			"negative employment":    {EmploymentYears: -2},
		}
		for name, in := range cases {
			t.Run(name, func(t *testing.T) {
				_, err := Calculate(in)
				assert.ErrorIs(t, err, ErrInvalidInput)
			})
		}
	})
}

func TestRiskLevel(t *testing.T) {
	assert.Equal(t, RiskLow, RiskLevel(850))
	assert.Equal(t, RiskLow, RiskLevel(720))
	assert.Equal(t, RiskMedium, RiskLevel(719))
	assert.Equal(t, RiskMedium, RiskLevel(640))
	assert.Equal(t, RiskHigh, RiskLevel(639))
	assert.Equal(t, RiskHigh, RiskLevel(300))
}

func TestRecommendation(t *testing.T) {
	assert.Equal(t, RecommendApprove, Recommendation(680))
	assert.Equal(t, RecommendReview, Recommendation(679))
	assert.Equal(t, RecommendReview, Recommendation(620))
	assert.Equal(t, RecommendDeny, Recommendation(619))
}

func TestInterestRate(t *testing.T) {
	assert.Equal(t, 3.5, InterestRate(760))
	assert.Equal(t, 4.0, InterestRate(759))
	assert.Equal(t, 4.0, InterestRate(720))
	assert.Equal(t, 5.0, InterestRate(719))
	assert.Equal(t, 5.0, InterestRate(680))
	assert.Equal(t, 6.5, InterestRate(679))
	assert.Equal(t, 6.5, InterestRate(640))
	assert.Equal(t, 8.5, InterestRate(639))
}

func TestFactorBounds(t *testing.T) {
	assert.Equal(t, 0, paymentScore(0))
	assert.Equal(t, 150, paymentScore(1))
	assert.Equal(t, 75, paymentScore(0.5))

	assert.Equal(t, 100, debtScore(0))
	assert.Equal(t, 0, debtScore(1))
	assert.Equal(t, 0, debtScore(2.5))
	assert.Equal(t, 55, debtScore(0.45))

	assert.Equal(t, 0, ageScore(0))
	assert.Equal(t, 100, ageScore(240))
	assert.Equal(t, 100, ageScore(600))
	assert.GreaterOrEqual(t, ageScore(1), 20)

	assert.Equal(t, 0, incomeScore(0))
	assert.Equal(t, 100, incomeScore(12_000_000))
	assert.Equal(t, 100, incomeScore(50_000_000))
	assert.GreaterOrEqual(t, incomeScore(1), 20)

	assert.Equal(t, 0, employmentScore(0))
	assert.Equal(t, 100, employmentScore(10))
	assert.Equal(t, 100, employmentScore(35))
	assert.GreaterOrEqual(t, employmentScore(0.5), 20)
}
