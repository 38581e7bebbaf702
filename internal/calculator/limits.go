package calculator

import (
	"fmt"
	"math"
	"strings"

	"github.com/iwvelando/emi-calculator/pkg/constants"
	"github.com/iwvelando/emi-calculator/pkg/emi"
	"github.com/iwvelando/emi-calculator/pkg/format"
)

// Field names used in FieldError, matching the JSON input keys.
const (
	FieldPrincipal = "principal"
	FieldRate      = "rate"
	FieldTerm      = "term"
)

// Limits is the input policy applied before the engine is invoked.
// A zero MaxPrincipal means no upper bound.
type Limits struct {
	MinPrincipal float64 `json:"minPrincipal"`
	MaxPrincipal float64 `json:"maxPrincipal,omitempty"`
	MinRate      float64 `json:"minRate"`
	MaxRate      float64 `json:"maxRate"`
	MinTermYears float64 `json:"minTermYears"`
	MaxTermYears float64 `json:"maxTermYears"`
	WholeYears   bool    `json:"wholeYears"`
}

// DefaultLimits returns the bounds the calculator form enforces.
func DefaultLimits() Limits {
	return Limits{
		MinPrincipal: constants.MinPrincipal,
		MinRate:      constants.MinAnnualRatePercent,
		MaxRate:      constants.MaxAnnualRatePercent,
		MinTermYears: constants.MinTermYears,
		MaxTermYears: constants.MaxTermYears,
		WholeYears:   true,
	}
}

// FieldError describes one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every rejected field of an input.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Field+": "+f.Message)
	}
	return "invalid loan input: " + strings.Join(msgs, "; ")
}

// Validate checks in against the limits. It returns nil or a *ValidationError.
func (l Limits) Validate(in emi.LoanInput) error {
	var fields []FieldError
	add := func(field, msg string) {
		fields = append(fields, FieldError{Field: field, Message: msg})
	}

	switch {
	case !finite(in.Principal):
		add(FieldPrincipal, "Please enter a valid amount.")
	case in.Principal <= 0:
		add(FieldPrincipal, "Loan amount must be positive.")
	case in.Principal < l.MinPrincipal:
		add(FieldPrincipal, fmt.Sprintf("Minimum loan amount is %s.", wholeAmount(l.MinPrincipal)))
	case l.MaxPrincipal > 0 && in.Principal > l.MaxPrincipal:
		add(FieldPrincipal, fmt.Sprintf("Maximum loan amount is %s.", wholeAmount(l.MaxPrincipal)))
	}

	switch {
	case !finite(in.AnnualRatePercent):
		add(FieldRate, "Please enter a valid rate.")
	case in.AnnualRatePercent < 0:
		add(FieldRate, "Interest rate must not be negative.")
	case in.AnnualRatePercent == 0 && l.MinRate > 0:
		add(FieldRate, "Interest rate must be positive.")
	case in.AnnualRatePercent < l.MinRate:
		add(FieldRate, fmt.Sprintf("Rate must be at least %g%%.", l.MinRate))
	case in.AnnualRatePercent > l.MaxRate:
		add(FieldRate, fmt.Sprintf("Rate seems too high (max %g%%).", l.MaxRate))
	}

	switch {
	case !finite(in.TermYears):
		add(FieldTerm, "Please enter a valid term.")
	case in.TermYears <= 0:
		add(FieldTerm, "Loan term must be positive.")
	case in.TermYears < l.MinTermYears:
		add(FieldTerm, fmt.Sprintf("Term must be at least %g %s.", l.MinTermYears, years(l.MinTermYears)))
	case in.TermYears > l.MaxTermYears:
		add(FieldTerm, fmt.Sprintf("Term seems too long (max %g years).", l.MaxTermYears))
	case l.WholeYears && in.TermYears != math.Trunc(in.TermYears):
		add(FieldTerm, "Term must be a whole number of years.")
	}

	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: fields}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func years(n float64) string {
	if n == 1 {
		return "year"
	}
	return "years"
}

// wholeAmount renders a limit the way the form shows it, e.g. "1,000".
func wholeAmount(v float64) string {
	return strings.TrimPrefix(format.WholeRupees(v), constants.RupeeSymbol)
}
