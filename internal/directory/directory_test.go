package directory

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestDefaultCatalog(t *testing.T) {
	catalog, err := Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}

	loanTypes := catalog.LoanTypes()
	if len(loanTypes) != 8 {
		t.Fatalf("expected 8 loan types, got %d", len(loanTypes))
	}
	if loanTypes[0].ID != "personal-loan" {
		t.Errorf("first loan type = %s, expected personal-loan", loanTypes[0].ID)
	}
	for _, lt := range loanTypes {
		if len(lt.Providers) != 10 {
			t.Errorf("loan type %s has %d providers, expected 10", lt.ID, len(lt.Providers))
		}
		if lt.ShortDescription == "" {
			t.Errorf("loan type %s has no description", lt.ID)
		}
	}

	rates := catalog.BankRates(false)
	if len(rates) != 10 {
		t.Fatalf("expected 10 bank rates, got %d", len(rates))
	}
	if rates[0].ID != "sbi" || rates[0].StartingRate != 11.15 {
		t.Errorf("first bank rate = %+v, expected sbi at 11.15", rates[0])
	}
}

func TestLoanTypeLookup(t *testing.T) {
	catalog, err := Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}

	home, ok := catalog.LoanType("home-loan")
	if !ok {
		t.Fatal("expected home-loan to exist")
	}
	if home.Name != "Home Loan" {
		t.Errorf("Name = %s, expected Home Loan", home.Name)
	}

	if _, ok := catalog.LoanType("space-loan"); ok {
		t.Error("unexpected loan type space-loan")
	}

	// Callers must not be able to mutate the catalog.
	home.Providers[0].Name = "changed"
	again, _ := catalog.LoanType("home-loan")
	if again.Providers[0].Name == "changed" {
		t.Error("LoanType returned a slice aliasing catalog state")
	}
}

func TestProviders(t *testing.T) {
	catalog, err := Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}

	all, ok := catalog.Providers("gold-loan", false)
	if !ok || len(all) != 10 {
		t.Fatalf("expected 10 gold loan providers, got %d (ok=%v)", len(all), ok)
	}

	banks, ok := catalog.Providers("gold-loan", true)
	if !ok {
		t.Fatal("expected gold-loan to exist")
	}
	if len(banks) == 0 || len(banks) >= len(all) {
		t.Fatalf("expected a strict subset of banks, got %d of %d", len(banks), len(all))
	}
	for _, p := range banks {
		if !p.IsBank {
			t.Errorf("provider %s is not a bank", p.ID)
		}
	}

	if _, ok := catalog.Providers("missing", false); ok {
		t.Error("expected missing loan type to report not found")
	}
}

func TestBankRatesSorted(t *testing.T) {
	catalog, err := Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}

	rates := catalog.BankRates(true)
	for i := 1; i < len(rates); i++ {
		if rates[i].StartingRate < rates[i-1].StartingRate {
			t.Fatalf("rates not sorted at %d: %v after %v", i, rates[i].StartingRate, rates[i-1].StartingRate)
		}
	}

	cheapest, ok := catalog.CheapestBankRate()
	if !ok {
		t.Fatal("expected a cheapest rate")
	}
	if cheapest.ID != "hdfc" || cheapest.StartingRate != 10.5 {
		t.Errorf("cheapest = %+v, expected hdfc at 10.50", cheapest)
	}

	if unsorted := catalog.BankRates(false); unsorted[0].ID != "sbi" {
		t.Errorf("sorting must not reorder the catalog, first is %s", unsorted[0].ID)
	}
}

func TestParseRejectsInvalidCatalogs(t *testing.T) {
	tests := map[string]string{
		"duplicate loan type": `
loanTypes:
  - id: a
    name: A
  - id: a
    name: B
`,
		"missing name": `
loanTypes:
  - id: a
`,
		"relative apply url": `
loanTypes:
  - id: a
    name: A
    providers:
      - id: p
        name: P
        applyUrl: /apply
`,
		"duplicate provider": `
loanTypes:
  - id: a
    name: A
    providers:
      - id: p
        name: P
        applyUrl: https://example.com
      - id: p
        name: Q
        applyUrl: https://example.com
`,
		"rate without percentage": `
bankRates:
  - id: x
    name: X
    rate: call us
    applyUrl: https://example.com
`,
		"unknown field": `
loanTypes:
  - id: a
    name: A
    colour: blue
`,
	}

	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse(strings.NewReader(doc)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoadOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	contents := []byte(`loanTypes:
  - id: microloan
    name: Microloan
    shortDescription: Small loans for small needs.
    providers:
      - id: mf
        name: Microfinance Co
        applyUrl: https://example.com/apply
        isBank: false
bankRates:
  - id: mf
    name: Microfinance Co
    rate: "Starting at 18.5% p.a."
    applyUrl: https://example.com/apply
`)
	if err := os.WriteFile(path, contents, 0600); err != nil {
		t.Fatalf("failed to write catalog: %v", err)
	}

	catalog, err := Load(zap.NewNop(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(catalog.LoanTypes()) != 1 {
		t.Errorf("expected 1 loan type, got %d", len(catalog.LoanTypes()))
	}
	rates := catalog.BankRates(false)
	if len(rates) != 1 || rates[0].StartingRate != 18.5 {
		t.Errorf("unexpected bank rates %+v", rates)
	}
}

func TestLoadEmptyPathUsesDefault(t *testing.T) {
	catalog, err := Load(nil, "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(catalog.LoanTypes()) != 8 {
		t.Errorf("expected built-in catalog, got %d loan types", len(catalog.LoanTypes()))
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(zap.NewNop(), filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing catalog")
	}
}
