package calculator

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/iwvelando/emi-calculator/pkg/emi"
	"github.com/iwvelando/emi-calculator/pkg/mathutil"
	"go.uber.org/zap"
)

func TestCalculateDefaults(t *testing.T) {
	calc := New(zap.NewNop(), DefaultLimits())

	got, err := calc.Calculate(context.Background(), Defaults())
	if err != nil {
		t.Fatalf("Calculate() error = %v", err)
	}

	if got.Input != Defaults() {
		t.Errorf("Input = %+v, expected %+v", got.Input, Defaults())
	}
	if mathutil.Round(got.Result.MonthlyInstallment) != 2003.79 {
		t.Errorf("MonthlyInstallment = %.4f, expected 2003.79", got.Result.MonthlyInstallment)
	}
	if len(got.Breakdown) != 2 {
		t.Fatalf("expected 2 breakdown slices, got %d", len(got.Breakdown))
	}

	principal, interest := got.Breakdown[0], got.Breakdown[1]
	if principal.Name != SlicePrincipal || interest.Name != SliceInterest {
		t.Errorf("unexpected slice order: %s, %s", principal.Name, interest.Name)
	}
	if principal.Amount != 100000 {
		t.Errorf("principal slice = %.2f, expected 100000", principal.Amount)
	}
	if !mathutil.WithinTolerance(interest.Amount, got.Result.TotalInterest, 1e-9) {
		t.Errorf("interest slice = %.2f, expected %.2f", interest.Amount, got.Result.TotalInterest)
	}
	if !mathutil.WithinTolerance(principal.Share+interest.Share, 1, 1e-9) {
		t.Errorf("shares sum to %v, expected 1", principal.Share+interest.Share)
	}
}

func TestCalculateRejectsOutOfPolicyInput(t *testing.T) {
	calc := New(nil, DefaultLimits())

	tests := []struct {
		name   string
		input  emi.LoanInput
		fields []string
	}{
		{"Principal below minimum", emi.LoanInput{Principal: 999, AnnualRatePercent: 7.5, TermYears: 5}, []string{FieldPrincipal}},
		{"Zero principal", emi.LoanInput{Principal: 0, AnnualRatePercent: 7.5, TermYears: 5}, []string{FieldPrincipal}},
		{"Zero rate under default policy", emi.LoanInput{Principal: 100000, AnnualRatePercent: 0, TermYears: 5}, []string{FieldRate}},
		{"Rate too high", emi.LoanInput{Principal: 100000, AnnualRatePercent: 50.01, TermYears: 5}, []string{FieldRate}},
		{"Term too short", emi.LoanInput{Principal: 100000, AnnualRatePercent: 7.5, TermYears: 0.5}, []string{FieldTerm}},
		{"Term too long", emi.LoanInput{Principal: 100000, AnnualRatePercent: 7.5, TermYears: 51}, []string{FieldTerm}},
		{"Fractional years", emi.LoanInput{Principal: 100000, AnnualRatePercent: 7.5, TermYears: 5.5}, []string{FieldTerm}},
		{"NaN principal", emi.LoanInput{Principal: math.NaN(), AnnualRatePercent: 7.5, TermYears: 5}, []string{FieldPrincipal}},
		{"Everything wrong", emi.LoanInput{Principal: -1, AnnualRatePercent: -1, TermYears: 0}, []string{FieldPrincipal, FieldRate, FieldTerm}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := calc.Calculate(context.Background(), tt.input)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *ValidationError, got %v", err)
			}
			if len(verr.Fields) != len(tt.fields) {
				t.Fatalf("expected fields %v, got %+v", tt.fields, verr.Fields)
			}
			for i, field := range tt.fields {
				if verr.Fields[i].Field != field {
					t.Errorf("field %d = %s, expected %s", i, verr.Fields[i].Field, field)
				}
				if verr.Fields[i].Message == "" {
					t.Errorf("field %s has no message", field)
				}
			}
		})
	}
}

func TestValidationMessages(t *testing.T) {
	limits := DefaultLimits()

	tests := []struct {
		input   emi.LoanInput
		message string
	}{
		{emi.LoanInput{Principal: 500, AnnualRatePercent: 7.5, TermYears: 5}, "Minimum loan amount is 1,000."},
		{emi.LoanInput{Principal: 100000, AnnualRatePercent: 0.05, TermYears: 5}, "Rate must be at least 0.1%."},
		{emi.LoanInput{Principal: 100000, AnnualRatePercent: 60, TermYears: 5}, "Rate seems too high (max 50%)."},
		{emi.LoanInput{Principal: 100000, AnnualRatePercent: 7.5, TermYears: 0.5}, "Term must be at least 1 year."},
		{emi.LoanInput{Principal: 100000, AnnualRatePercent: 7.5, TermYears: 60}, "Term seems too long (max 50 years)."},
	}

	for _, tt := range tests {
		err := limits.Validate(tt.input)
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("Validate(%+v) expected *ValidationError, got %v", tt.input, err)
		}
		if verr.Fields[0].Message != tt.message {
			t.Errorf("Validate(%+v) message = %q, expected %q", tt.input, verr.Fields[0].Message, tt.message)
		}
	}
}

func TestCalculateZeroRateWhenPolicyAllows(t *testing.T) {
	limits := DefaultLimits()
	limits.MinRate = 0
	calc := New(zap.NewNop(), limits)

	got, err := calc.Calculate(context.Background(), emi.LoanInput{Principal: 500000, AnnualRatePercent: 0, TermYears: 10})
	if err != nil {
		t.Fatalf("Calculate() error = %v", err)
	}
	if mathutil.Round(got.Result.MonthlyInstallment) != 4166.67 {
		t.Errorf("MonthlyInstallment = %.4f, expected 4166.67", got.Result.MonthlyInstallment)
	}
	if got.Breakdown[1].Share != 0 {
		t.Errorf("interest share = %v, expected 0", got.Breakdown[1].Share)
	}
}

func TestCalculateFractionalYearsWhenPolicyAllows(t *testing.T) {
	limits := DefaultLimits()
	limits.WholeYears = false
	calc := New(zap.NewNop(), limits)

	got, err := calc.Calculate(context.Background(), emi.LoanInput{Principal: 100000, AnnualRatePercent: 7.5, TermYears: 5.5})
	if err != nil {
		t.Fatalf("Calculate() error = %v", err)
	}
	if got.Result.TermMonths != 66 {
		t.Errorf("TermMonths = %d, expected 66", got.Result.TermMonths)
	}
}

func TestCalculateSurfacesNotComputable(t *testing.T) {
	// A permissive policy lets degenerate input reach the engine.
	calc := New(zap.NewNop(), Limits{MaxRate: 100, MaxTermYears: 100})

	_, err := calc.Calculate(context.Background(), emi.LoanInput{Principal: 100000, AnnualRatePercent: 7.5, TermYears: 0.01})
	if !errors.Is(err, emi.ErrNotComputable) {
		t.Fatalf("expected emi.ErrNotComputable, got %v", err)
	}
}

func TestCalculateCancelledContext(t *testing.T) {
	calc := New(zap.NewNop(), DefaultLimits())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := calc.Calculate(ctx, Defaults()); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestMaxPrincipal(t *testing.T) {
	limits := DefaultLimits()
	limits.MaxPrincipal = 10000000

	if err := limits.Validate(emi.LoanInput{Principal: 10000000, AnnualRatePercent: 8, TermYears: 20}); err != nil {
		t.Errorf("principal at the maximum should pass, got %v", err)
	}
	err := limits.Validate(emi.LoanInput{Principal: 10000001, AnnualRatePercent: 8, TermYears: 20})
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Fields[0].Message != "Maximum loan amount is 1,00,00,000." {
		t.Errorf("unexpected result for principal above maximum: %v", err)
	}
}

func TestValidationErrorMessage(t *testing.T) {
	err := &ValidationError{Fields: []FieldError{
		{Field: FieldPrincipal, Message: "Loan amount must be positive."},
		{Field: FieldTerm, Message: "Loan term must be positive."},
	}}
	expected := "invalid loan input: principal: Loan amount must be positive.; term: Loan term must be positive."
	if err.Error() != expected {
		t.Errorf("Error() = %q, expected %q", err.Error(), expected)
	}
}
