// Package directory holds the static catalog of loan types, the providers
// offering them, and the indicative bank interest rates.
package directory

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/iwvelando/emi-calculator/pkg/validation"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Provider is a bank or finance company offering a loan type.
type Provider struct {
	ID       string `yaml:"id" json:"id"`
	Name     string `yaml:"name" json:"name"`
	LogoURL  string `yaml:"logoUrl" json:"logoUrl,omitempty"`
	ApplyURL string `yaml:"applyUrl" json:"applyUrl"`
	IsBank   bool   `yaml:"isBank" json:"isBank"`
}

// LoanType is a kind of loan together with its providers.
type LoanType struct {
	ID               string     `yaml:"id" json:"id"`
	Name             string     `yaml:"name" json:"name"`
	ShortDescription string     `yaml:"shortDescription" json:"shortDescription"`
	IconURL          string     `yaml:"iconUrl" json:"iconUrl,omitempty"`
	Providers        []Provider `yaml:"providers" json:"providers"`
}

// BankRate is the indicative starting rate advertised by a lender.
type BankRate struct {
	ID           string  `yaml:"id" json:"id"`
	Name         string  `yaml:"name" json:"name"`
	RateText     string  `yaml:"rate" json:"rate"`
	StartingRate float64 `yaml:"-" json:"startingRate"`
	ApplyURL     string  `yaml:"applyUrl" json:"applyUrl"`
	LogoURL      string  `yaml:"logoUrl" json:"logoUrl,omitempty"`
}

// Catalog is an immutable, validated loan directory. It is safe for concurrent use.
type Catalog struct {
	loanTypes []LoanType
	bankRates []BankRate
	byID      map[string]int
}

type catalogFile struct {
	LoanTypes []LoanType `yaml:"loanTypes"`
	BankRates []BankRate `yaml:"bankRates"`
}

var rateRe = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*%`)

// Default returns the built-in catalog.
func Default() (*Catalog, error) {
	return Parse(bytes.NewReader(defaultCatalog))
}

// Load reads a catalog from path, or returns the built-in catalog when path is empty.
func Load(logger *zap.Logger, path string) (*Catalog, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if path == "" {
		return Default()
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open loan catalog: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			logger.Warn("failed to close loan catalog",
				zap.String("op", "directory.Load"),
				zap.Error(closeErr),
			)
		}
	}()

	catalog, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("loan catalog %s: %w", path, err)
	}
	logger.Info("loaded loan catalog",
		zap.String("op", "directory.Load"),
		zap.String("path", path),
		zap.Int("loanTypes", len(catalog.loanTypes)),
		zap.Int("bankRates", len(catalog.bankRates)),
	)
	return catalog, nil
}

// Parse decodes and validates a YAML catalog.
func Parse(r io.Reader) (*Catalog, error) {
	var file catalogFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to parse loan catalog: %w", err)
	}

	if err := validateLoanTypes(file.LoanTypes); err != nil {
		return nil, err
	}
	for i := range file.BankRates {
		rate, err := parseRate(file.BankRates[i])
		if err != nil {
			return nil, err
		}
		file.BankRates[i].StartingRate = rate
	}

	byID := make(map[string]int, len(file.LoanTypes))
	for i, lt := range file.LoanTypes {
		byID[lt.ID] = i
	}
	return &Catalog{loanTypes: file.LoanTypes, bankRates: file.BankRates, byID: byID}, nil
}

func validateLoanTypes(loanTypes []LoanType) error {
	seenTypes := make(map[string]struct{}, len(loanTypes))
	for _, lt := range loanTypes {
		if strings.TrimSpace(lt.ID) == "" || strings.TrimSpace(lt.Name) == "" {
			return fmt.Errorf("loan type %q must have an id and a name", lt.ID)
		}
		if _, dup := seenTypes[lt.ID]; dup {
			return fmt.Errorf("duplicate loan type id %q", lt.ID)
		}
		seenTypes[lt.ID] = struct{}{}

		seenProviders := make(map[string]struct{}, len(lt.Providers))
		for _, p := range lt.Providers {
			if strings.TrimSpace(p.ID) == "" || strings.TrimSpace(p.Name) == "" {
				return fmt.Errorf("loan type %s: provider %q must have an id and a name", lt.ID, p.ID)
			}
			if _, dup := seenProviders[p.ID]; dup {
				return fmt.Errorf("loan type %s: duplicate provider id %q", lt.ID, p.ID)
			}
			seenProviders[p.ID] = struct{}{}
			if err := validation.ValidateHTTPURL(p.ApplyURL); err != nil {
				return fmt.Errorf("loan type %s: provider %s: %w", lt.ID, p.ID, err)
			}
		}
	}
	return nil
}

func parseRate(br BankRate) (float64, error) {
	if strings.TrimSpace(br.ID) == "" || strings.TrimSpace(br.Name) == "" {
		return 0, fmt.Errorf("bank rate %q must have an id and a name", br.ID)
	}
	if err := validation.ValidateHTTPURL(br.ApplyURL); err != nil {
		return 0, fmt.Errorf("bank rate %s: %w", br.ID, err)
	}
	m := rateRe.FindStringSubmatch(br.RateText)
	if m == nil {
		return 0, fmt.Errorf("bank rate %s: no percentage in %q", br.ID, br.RateText)
	}
	return strconv.ParseFloat(m[1], 64)
}

// LoanTypes returns every loan type in catalog order.
func (c *Catalog) LoanTypes() []LoanType {
	out := make([]LoanType, len(c.loanTypes))
	for i, lt := range c.loanTypes {
		out[i] = lt.clone()
	}
	return out
}

// LoanType returns the loan type with the given id.
func (c *Catalog) LoanType(id string) (LoanType, bool) {
	i, ok := c.byID[id]
	if !ok {
		return LoanType{}, false
	}
	return c.loanTypes[i].clone(), true
}

// Providers returns the providers of a loan type, optionally only banks.
func (c *Catalog) Providers(loanTypeID string, banksOnly bool) ([]Provider, bool) {
	lt, ok := c.LoanType(loanTypeID)
	if !ok {
		return nil, false
	}
	if !banksOnly {
		return lt.Providers, true
	}
	banks := make([]Provider, 0, len(lt.Providers))
	for _, p := range lt.Providers {
		if p.IsBank {
			banks = append(banks, p)
		}
	}
	return banks, true
}

// BankRates returns the rate table, in catalog order or ascending by rate.
// Equal rates keep catalog order.
func (c *Catalog) BankRates(sortByRate bool) []BankRate {
	out := append([]BankRate(nil), c.bankRates...)
	if sortByRate {
		sort.SliceStable(out, func(i, j int) bool { return out[i].StartingRate < out[j].StartingRate })
	}
	return out
}

// CheapestBankRate returns the lender with the lowest starting rate.
func (c *Catalog) CheapestBankRate() (BankRate, bool) {
	rates := c.BankRates(true)
	if len(rates) == 0 {
		return BankRate{}, false
	}
	return rates[0], true
}

func (lt LoanType) clone() LoanType {
	lt.Providers = append([]Provider(nil), lt.Providers...)
	return lt
}
