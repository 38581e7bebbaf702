// Package emi computes the equated monthly installment of a fixed-rate,
// fixed-term amortizing loan along with its aggregate totals.
//
// The engine is pure: it holds no state, performs no I/O and may be called
// concurrently. Inputs outside its domain yield a not-computable result rather
// than an error or a non-finite number. Range policy (minimum amounts, maximum
// rates) belongs to callers.
package emi

import (
	"errors"
	"math"

	"github.com/iwvelando/emi-calculator/pkg/constants"
	"github.com/iwvelando/emi-calculator/pkg/mathutil"
)

// ErrNotComputable is returned by callers that surface the not-computable
// result as an error.
var ErrNotComputable = errors.New("loan is not computable")

// LoanInput holds the user-entered loan terms.
type LoanInput struct {
	Principal         float64 `json:"principal" yaml:"principal"`
	AnnualRatePercent float64 `json:"rate" yaml:"rate"`
	TermYears         float64 `json:"term" yaml:"term"`
}

// LoanResult holds the installment and aggregate totals for a loan.
type LoanResult struct {
	MonthlyInstallment float64 `json:"monthlyInstallment"`
	TotalInterest      float64 `json:"totalInterest"`
	TotalPayment       float64 `json:"totalPayment"`
	TermMonths         int     `json:"termMonths"`
}

// MonthlyRate converts a nominal annual percentage into a monthly fraction.
func MonthlyRate(annualRatePercent float64) float64 {
	return annualRatePercent / constants.MonthsPerYear / constants.PercentageMultiplier
}

// TermMonths converts a term in years to whole months, rounding to the
// nearest month.
func TermMonths(termYears float64) int {
	months := math.Round(termYears * constants.MonthsPerYear)
	if math.IsNaN(months) || months > math.MaxInt32 || months < math.MinInt32 {
		return 0
	}
	return int(months)
}

// Compute is ComputeLoan applied to the receiver.
func (in LoanInput) Compute() (LoanResult, bool) {
	return ComputeLoan(in.Principal, in.AnnualRatePercent, in.TermYears)
}

// ComputeLoan returns the installment and totals for the given loan. The
// boolean is false, and the result zero, when the loan is not computable:
// non-positive principal or term, a negative rate, or any input or output
// that is not a finite number.
func ComputeLoan(principal, annualRatePercent, termYears float64) (LoanResult, bool) {
	if !mathutil.IsFinite(principal, annualRatePercent, termYears) {
		return LoanResult{}, false
	}
	n := TermMonths(termYears)
	if principal <= 0 || n <= 0 || annualRatePercent < 0 {
		return LoanResult{}, false
	}

	var result LoanResult
	result.TermMonths = n

	r := MonthlyRate(annualRatePercent)
	if r == 0 {
		result.MonthlyInstallment = principal / float64(n)
		result.TotalInterest = 0
		result.TotalPayment = principal
	} else {
		// P*r*(1+r)^n / ((1+r)^n - 1) rewritten as P*r / (1 - (1+r)^-n) so the
		// power never overflows; Expm1/Log1p keep tiny rates precise.
		discount := -math.Expm1(-float64(n) * math.Log1p(r))
		result.MonthlyInstallment = principal * r / discount
		result.TotalPayment = result.MonthlyInstallment * float64(n)
		result.TotalInterest = result.TotalPayment - principal
		if result.TotalInterest < 0 {
			// Rounding noise at vanishing rates.
			result.TotalInterest = 0
			result.TotalPayment = principal
		}
	}

	if !mathutil.IsFinite(result.MonthlyInstallment, result.TotalInterest, result.TotalPayment) ||
		result.MonthlyInstallment <= 0 {
		return LoanResult{}, false
	}
	return result, true
}
