// Package calculator applies the input policy around the EMI engine and
// shapes its result for presentation.
package calculator

import (
	"context"
	"fmt"

	"github.com/iwvelando/emi-calculator/pkg/constants"
	"github.com/iwvelando/emi-calculator/pkg/emi"
	"github.com/iwvelando/emi-calculator/pkg/mathutil"
	"go.uber.org/zap"
)

// Breakdown slice names.
const (
	SlicePrincipal = "principal"
	SliceInterest  = "interest"
)

// Slice is one labelled magnitude of the principal/interest breakdown.
type Slice struct {
	Name   string  `json:"name"`
	Label  string  `json:"label"`
	Amount float64 `json:"amount"`
	Share  float64 `json:"share"`
}

// Calculation is a validated input together with its engine result.
type Calculation struct {
	Input     emi.LoanInput  `json:"input"`
	Result    emi.LoanResult `json:"result"`
	Breakdown []Slice        `json:"breakdown"`
}

// Calculator validates loan input and runs the EMI engine.
type Calculator struct {
	logger *zap.Logger
	limits Limits
}

// New creates a Calculator enforcing limits.
func New(logger *zap.Logger, limits Limits) *Calculator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Calculator{logger: logger, limits: limits}
}

// Limits returns the policy this calculator enforces.
func (c *Calculator) Limits() Limits {
	return c.limits
}

// Calculate validates in and computes its installment and totals. It returns
// a *ValidationError for out-of-policy input and wraps emi.ErrNotComputable
// when the engine declines.
func (c *Calculator) Calculate(ctx context.Context, in emi.LoanInput) (Calculation, error) {
	if err := ctx.Err(); err != nil {
		return Calculation{}, err
	}

	if err := c.limits.Validate(in); err != nil {
		c.logger.Debug("rejected loan input",
			zap.String("op", "calculator.Calculate"),
			zap.Float64("principal", in.Principal),
			zap.Float64("rate", in.AnnualRatePercent),
			zap.Float64("term", in.TermYears),
			zap.Error(err),
		)
		return Calculation{}, err
	}

	result, ok := in.Compute()
	if !ok {
		c.logger.Warn("engine declined validated input",
			zap.String("op", "calculator.Calculate"),
			zap.Float64("principal", in.Principal),
			zap.Float64("rate", in.AnnualRatePercent),
			zap.Float64("term", in.TermYears),
		)
		return Calculation{}, fmt.Errorf("principal %.2f at %.2f%% over %g years: %w",
			in.Principal, in.AnnualRatePercent, in.TermYears, emi.ErrNotComputable)
	}

	c.logger.Debug(fmt.Sprintf("computed installment %.2f over %d months", result.MonthlyInstallment, result.TermMonths),
		zap.String("op", "calculator.Calculate"),
	)

	return Calculation{
		Input:     in,
		Result:    result,
		Breakdown: NewBreakdown(in.Principal, result),
	}, nil
}

// NewBreakdown splits the total payment into its principal and interest parts.
func NewBreakdown(principal float64, result emi.LoanResult) []Slice {
	return []Slice{
		{
			Name:   SlicePrincipal,
			Label:  "Principal Amount",
			Amount: principal,
			Share:  mathutil.Share(principal, result.TotalPayment),
		},
		{
			Name:   SliceInterest,
			Label:  "Total Interest",
			Amount: result.TotalInterest,
			Share:  mathutil.Share(result.TotalInterest, result.TotalPayment),
		},
	}
}

// Defaults returns the input the calculator form starts with.
func Defaults() emi.LoanInput {
	return emi.LoanInput{
		Principal:         constants.DefaultPrincipal,
		AnnualRatePercent: constants.DefaultAnnualRatePercent,
		TermYears:         constants.DefaultTermYears,
	}
}
