// Package format renders amounts the way Indian borrowers read them: a rupee
// sign and lakh/crore digit grouping (e.g. "₹1,20,227.69").
package format

import (
	"math"

	"github.com/iwvelando/emi-calculator/pkg/constants"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Locale groups digits in lakhs and crores.
var Locale = language.MustParse("en-IN")

// Printer returns a message printer for Locale.
func Printer() *message.Printer {
	return message.NewPrinter(Locale)
}

// Rupees returns a currency string with a rupee sign, Indian digit grouping and
// two decimals (e.g., "-₹12,34,567.89").
func Rupees(amount float64) string {
	return sign(amount) + Printer().Sprintf(constants.RupeeSymbol+"%.2f", math.Abs(amount))
}

// WholeRupees returns a currency string rounded to whole rupees (e.g., "₹20,228").
// Chart labels use this form.
func WholeRupees(amount float64) string {
	return sign(amount) + Printer().Sprintf(constants.RupeeSymbol+"%.0f", math.Abs(amount))
}

// Percent renders a rate with two decimals and a percent sign.
func Percent(rate float64) string {
	return Printer().Sprintf("%.2f%%", rate)
}

func sign(amount float64) string {
	// Values that round to zero are not shown as negative.
	if amount < 0 && math.Round(math.Abs(amount)*constants.DecimalPrecision) != 0 {
		return "-"
	}
	return ""
}
