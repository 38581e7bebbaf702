// Package config defines the data structures related to configuration and
// includes functions for loading and validating the config.
package config

import (
	"fmt"
	"io"
	"strings"

	"github.com/iwvelando/emi-calculator/internal/calculator"
	"github.com/iwvelando/emi-calculator/pkg/constants"
	"github.com/iwvelando/emi-calculator/pkg/emi"
	"github.com/iwvelando/emi-calculator/pkg/validation"
	"github.com/spf13/viper"
)

// Configuration holds all configuration for emi-calculator.
type Configuration struct {
	Logging   LoggingConfig   `yaml:"logging,omitempty"`
	Output    OutputConfig    `yaml:"output,omitempty"`
	Limits    LimitsConfig    `yaml:"limits,omitempty"`
	Defaults  DefaultsConfig  `yaml:"defaults,omitempty"`
	Directory DirectoryConfig `yaml:"directory,omitempty"`
	Forum     ForumConfig     `yaml:"forum,omitempty"`
}

// LoggingConfig holds logging configuration options
type LoggingConfig struct {
	Level      string `yaml:"level,omitempty"`      // debug, info, warn, error
	Format     string `yaml:"format,omitempty"`     // json, console
	OutputFile string `yaml:"outputFile,omitempty"` // optional file output
}

// OutputConfig holds output format configuration options
type OutputConfig struct {
	Format string `yaml:"format,omitempty"` // pretty, csv, json
}

// LimitsConfig bounds the inputs the calculator accepts. A zero MaxPrincipal
// means no upper bound.
type LimitsConfig struct {
	MinPrincipal float64 `yaml:"minPrincipal"`
	MaxPrincipal float64 `yaml:"maxPrincipal"`
	MinRate      float64 `yaml:"minRate"`
	MaxRate      float64 `yaml:"maxRate"`
	MinTermYears float64 `yaml:"minTermYears"`
	MaxTermYears float64 `yaml:"maxTermYears"`
	WholeYears   bool    `yaml:"wholeYears"`
}

// DefaultsConfig holds the values the calculator form starts with.
type DefaultsConfig struct {
	Principal float64 `yaml:"principal"`
	Rate      float64 `yaml:"rate"`
	Term      float64 `yaml:"term"`
}

// DirectoryConfig points at an optional loan catalog overriding the built-in one.
type DirectoryConfig struct {
	File string `yaml:"file,omitempty"`
}

// ForumConfig selects the community forum store.
type ForumConfig struct {
	Driver string `yaml:"driver"` // memory, sqlite
	Path   string `yaml:"path,omitempty"`
	Seed   bool   `yaml:"seed"`
}

// LoadConfiguration takes a file path as input and loads the YAML-formatted
// configuration there.
func LoadConfiguration(configPath string) (*Configuration, error) {
	v := newViper()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file, %s", err)
	}

	return decode(v)
}

// LoadConfigurationFromReader loads a YAML-formatted configuration from r.
func LoadConfigurationFromReader(r io.Reader) (*Configuration, error) {
	v := newViper()

	if err := v.ReadConfig(r); err != nil {
		return nil, fmt.Errorf("error reading config data, %s", err)
	}

	return decode(v)
}

// DefaultConfiguration returns the configuration used when no file is given.
func DefaultConfiguration() *Configuration {
	conf, err := decode(newViper())
	if err != nil {
		// Defaults always decode.
		panic(err)
	}
	return conf
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yml")
	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.outputFile", "")
	v.SetDefault("output.format", constants.OutputFormatPretty)

	v.SetDefault("limits.minPrincipal", constants.MinPrincipal)
	v.SetDefault("limits.maxPrincipal", 0.0)
	v.SetDefault("limits.minRate", constants.MinAnnualRatePercent)
	v.SetDefault("limits.maxRate", constants.MaxAnnualRatePercent)
	v.SetDefault("limits.minTermYears", constants.MinTermYears)
	v.SetDefault("limits.maxTermYears", constants.MaxTermYears)
	v.SetDefault("limits.wholeYears", true)

	v.SetDefault("defaults.principal", constants.DefaultPrincipal)
	v.SetDefault("defaults.rate", constants.DefaultAnnualRatePercent)
	v.SetDefault("defaults.term", constants.DefaultTermYears)

	v.SetDefault("directory.file", "")

	v.SetDefault("forum.driver", constants.ForumDriverMemory)
	v.SetDefault("forum.path", constants.DefaultForumPath)
	v.SetDefault("forum.seed", true)
	return v
}

func decode(v *viper.Viper) (*Configuration, error) {
	var configuration Configuration
	if err := v.Unmarshal(&configuration); err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %s", err)
	}
	return &configuration, nil
}

// CalculatorLimits converts the limits section into the calculator's policy.
func (c *Configuration) CalculatorLimits() calculator.Limits {
	return calculator.Limits{
		MinPrincipal: c.Limits.MinPrincipal,
		MaxPrincipal: c.Limits.MaxPrincipal,
		MinRate:      c.Limits.MinRate,
		MaxRate:      c.Limits.MaxRate,
		MinTermYears: c.Limits.MinTermYears,
		MaxTermYears: c.Limits.MaxTermYears,
		WholeYears:   c.Limits.WholeYears,
	}
}

// DefaultInput returns the configured form defaults as engine input.
func (c *Configuration) DefaultInput() emi.LoanInput {
	return emi.LoanInput{
		Principal:         c.Defaults.Principal,
		AnnualRatePercent: c.Defaults.Rate,
		TermYears:         c.Defaults.Term,
	}
}

// Validate returns an error for configuration that cannot be run.
func (c *Configuration) Validate() error {
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}
	if c.Output.Format != "" {
		if err := validation.ValidateOutputFormat(c.Output.Format); err != nil {
			return err
		}
	}

	l := c.Limits
	if l.MinPrincipal < 0 || l.MinRate < 0 || l.MinTermYears < 0 {
		return fmt.Errorf("limits must not be negative: %+v", l)
	}
	if l.MaxPrincipal > 0 && l.MaxPrincipal < l.MinPrincipal {
		return fmt.Errorf("limits.maxPrincipal %.2f is below limits.minPrincipal %.2f", l.MaxPrincipal, l.MinPrincipal)
	}
	if l.MaxRate < l.MinRate {
		return fmt.Errorf("limits.maxRate %.2f is below limits.minRate %.2f", l.MaxRate, l.MinRate)
	}
	if l.MaxTermYears <= 0 || l.MaxTermYears < l.MinTermYears {
		return fmt.Errorf("limits.maxTermYears %.2f must be positive and at least limits.minTermYears %.2f",
			l.MaxTermYears, l.MinTermYears)
	}

	switch c.Forum.Driver {
	case constants.ForumDriverMemory, constants.ForumDriverSQLite:
	default:
		return fmt.Errorf("unsupported forum driver %q", c.Forum.Driver)
	}
	if c.Forum.Driver == constants.ForumDriverSQLite && strings.TrimSpace(c.Forum.Path) == "" {
		return fmt.Errorf("forum.path is required for the %s driver", constants.ForumDriverSQLite)
	}
	return nil
}

// ValidateConfiguration performs general validation of the configuration and returns warnings
func (c *Configuration) ValidateConfiguration() []string {
	var warnings []string

	if err := c.CalculatorLimits().Validate(c.DefaultInput()); err != nil {
		warnings = append(warnings, fmt.Sprintf("default calculator input is outside the configured limits: %v", err))
	}
	if c.Limits.MinPrincipal <= 0 {
		warnings = append(warnings, "limits.minPrincipal is not positive; zero principal will be reported as not computable")
	}
	if c.Limits.MinTermYears <= 0 {
		warnings = append(warnings, "limits.minTermYears is not positive; terms under half a month will be reported as not computable")
	}
	if c.Limits.MaxRate > constants.MaxAnnualRatePercent {
		warnings = append(warnings, fmt.Sprintf("limits.maxRate %.2f exceeds the usual maximum of %.2f%%",
			c.Limits.MaxRate, constants.MaxAnnualRatePercent))
	}
	if c.Limits.MaxTermYears > constants.MaxTermYears {
		warnings = append(warnings, fmt.Sprintf("limits.maxTermYears %.0f exceeds the usual maximum of %.0f years",
			c.Limits.MaxTermYears, constants.MaxTermYears))
	}
	if c.Forum.Driver == constants.ForumDriverMemory && !c.Forum.Seed {
		warnings = append(warnings, "forum uses the memory driver without seeding; it will start empty on every restart")
	}

	return warnings
}
