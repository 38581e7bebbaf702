// Package output provides utilities for formatting and displaying EMI results.
package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/iwvelando/emi-calculator/internal/calculator"
	"github.com/iwvelando/emi-calculator/pkg/constants"
	"github.com/iwvelando/emi-calculator/pkg/format"
)

// Write renders c in the named output format.
func Write(w io.Writer, outputFormat string, c calculator.Calculation) error {
	switch outputFormat {
	case constants.OutputFormatPretty:
		return PrettyFormat(w, c)
	case constants.OutputFormatCSV:
		return CsvFormat(w, c)
	case constants.OutputFormatJSON:
		return JSONFormat(w, c)
	default:
		return fmt.Errorf("unsupported output format %q", outputFormat)
	}
}

// PrettyFormat outputs a human-readable rather than machine-readable summary.
func PrettyFormat(w io.Writer, c calculator.Calculation) error {
	p := format.Printer()
	in, res := c.Input, c.Result

	var b strings.Builder
	_, _ = p.Fprintf(&b, "--- EMI for ₹%.2f at %.2f%% over %v years ---\n",
		in.Principal, in.AnnualRatePercent, in.TermYears)
	_, _ = p.Fprintf(&b, "Monthly EMI    | ₹%.2f\n", res.MonthlyInstallment)
	_, _ = p.Fprintf(&b, "Total Interest | ₹%.2f\n", res.TotalInterest)
	_, _ = p.Fprintf(&b, "Total Payment  | ₹%.2f\n", res.TotalPayment)
	_, _ = p.Fprintf(&b, "Term           | %d months\n", res.TermMonths)

	b.WriteString("\nBreakdown\n")
	for _, slice := range c.Breakdown {
		_, _ = p.Fprintf(&b, "%-16s | ₹%.2f | %.1f%%\n",
			slice.Label, slice.Amount, slice.Share*constants.PercentageMultiplier)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// CsvFormat outputs a header row and one value row in comma-separated value format.
func CsvFormat(w io.Writer, c calculator.Calculation) error {
	cw := csv.NewWriter(w)
	records := [][]string{
		{"principal", "rate", "term", "termMonths", "monthlyInstallment", "totalInterest", "totalPayment"},
		{
			amount(c.Input.Principal),
			strconv.FormatFloat(c.Input.AnnualRatePercent, 'f', -1, 64),
			strconv.FormatFloat(c.Input.TermYears, 'f', -1, 64),
			strconv.Itoa(c.Result.TermMonths),
			amount(c.Result.MonthlyInstallment),
			amount(c.Result.TotalInterest),
			amount(c.Result.TotalPayment),
		},
	}
	if err := cw.WriteAll(records); err != nil {
		return fmt.Errorf("failed to write CSV: %w", err)
	}
	return nil
}

// JSONFormat outputs the calculation as indented JSON.
func JSONFormat(w io.Writer, c calculator.Calculation) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("failed to write JSON: %w", err)
	}
	return nil
}

func amount(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
