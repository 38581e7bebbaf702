// Package constants provides shared constants for the emi-calculator application.
package constants

// Financial constants
const (
	// MonthsPerYear is the number of months in a year
	MonthsPerYear = 12

	// DecimalPrecision is the precision for currency rounding (2 decimal places)
	DecimalPrecision = 100

	// PercentageMultiplier is used for percentage conversions
	PercentageMultiplier = 100.0

	// RupeeSymbol prefixes formatted amounts
	RupeeSymbol = "₹"
)

// Calculator form defaults and input policy
const (
	// DefaultPrincipal is the loan amount the form starts with
	DefaultPrincipal = 100000.0

	// DefaultAnnualRatePercent is the interest rate the form starts with
	DefaultAnnualRatePercent = 7.5

	// DefaultTermYears is the loan term the form starts with
	DefaultTermYears = 5.0

	// MinPrincipal is the smallest loan amount accepted
	MinPrincipal = 1000.0

	// MinAnnualRatePercent is the smallest rate accepted
	MinAnnualRatePercent = 0.1

	// MaxAnnualRatePercent is the largest rate accepted
	MaxAnnualRatePercent = 50.0

	// MinTermYears is the shortest term accepted
	MinTermYears = 1.0

	// MaxTermYears is the longest term accepted
	MaxTermYears = 50.0
)

// Output format constants
const (
	// OutputFormatPretty is the human-readable output format
	OutputFormatPretty = "pretty"

	// OutputFormatCSV is the CSV output format
	OutputFormatCSV = "csv"

	// OutputFormatJSON is the JSON output format
	OutputFormatJSON = "json"
)

// Configuration file constants
const (
	// DefaultConfigFile is the default configuration file name
	DefaultConfigFile = "config.yaml"

	// ExampleConfigFile is the example configuration file name
	ExampleConfigFile = "config.yaml.example"

	// DefaultServerConfigFile is the default server configuration file name
	DefaultServerConfigFile = "server-config.yaml"

	// EnvPrefix prefixes environment overrides, e.g. EMI_LOGGING_LEVEL
	EnvPrefix = "EMI"
)

// Forum constants
const (
	// ForumDriverMemory keeps forum posts in process memory
	ForumDriverMemory = "memory"

	// ForumDriverSQLite persists forum posts to a SQLite file
	ForumDriverSQLite = "sqlite"

	// DefaultForumPath is the default SQLite database file
	DefaultForumPath = "forum.db"

	// AnonymousAuthor is used for questions posted without a name
	AnonymousAuthor = "Anonymous User"

	// CommunityAuthor is used for answers posted without a name
	CommunityAuthor = "Community Member"
)

// Server configuration defaults
const (
	// DefaultServerAddress is the default HTTP listen address
	DefaultServerAddress = ":8080"

	// DefaultMaxBodySizeBytes is the default maximum request body size (64 KB)
	DefaultMaxBodySizeBytes int64 = 64 * 1024

	// DefaultRateLimitRequests is the number of limited requests a client may make per window
	DefaultRateLimitRequests = 30

	// DefaultRateLimitWindow is the default rate limit window
	DefaultRateLimitWindow = "1m"
)
