// Package config defines run configuration structures and loading hooks.
//
// Conventions:
//   - Defaults live in New(); Load layers a YAML file and environment on top.
//   - API keys are optional; a missing key switches a source to its fallback.
//   - External errors are wrapped with this package's sentinel errors.
package config

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"oneof=debug info warn warning error"`

	// LogFormat selects the slog handler: text or json.
	LogFormat string `koanf:"log_format" validate:"oneof=text json"`

	// Company, Ticker and CIK identify the assessed company.
	Company string `koanf:"company" validate:"required"`
	Ticker  string `koanf:"ticker"`
	CIK     string `koanf:"cik" validate:"omitempty,numeric,max=10"`

	// Profile selects the scoring model: public or private.
	Profile string `koanf:"profile" validate:"oneof=public private"`

	// DataDir receives one file per source plus the assessment.
	DataDir string `koanf:"data_dir" validate:"required"`

	// ChartDir receives rendered PNG charts.
	ChartDir string `koanf:"chart_dir" validate:"required"`

	// FactsFile points at the curated facts YAML.
	FactsFile string `koanf:"facts_file" validate:"required"`

	// Sources lists enabled collectors in run order.
	Sources []string `koanf:"sources" validate:"min=1,dive,required"`

	// StockRange and StockInterval are passed to the chart API.
	StockRange    string `koanf:"stock_range"`
	StockInterval string `koanf:"stock_interval"`

	// FREDSeries lists macro series ids to download.
	FREDSeries []string `koanf:"fred_series"`

	// StartDate bounds time series requests (YYYY-MM-DD).
	StartDate string `koanf:"start_date" validate:"datetime=2006-01-02"`

	// HTTPTimeoutSec is the fixed per-call timeout.
	HTTPTimeoutSec int `koanf:"http_timeout_sec" validate:"gt=0"`

	// RequestDelayMS is the flat pause between outbound calls.
	RequestDelayMS int `koanf:"request_delay_ms" validate:"gte=0"`

	// UserAgent is sent on every request; SEC requires a contact address.
	UserAgent string `koanf:"user_agent" validate:"required"`

	// API keys. Empty means "use the fallback path".
	FREDAPIKey    string `koanf:"fred_api_key"`
	SAMAPIKey     string `koanf:"sam_api_key"`
	PatentsAPIKey string `koanf:"patents_api_key"`
	CensusAPIKey  string `koanf:"census_api_key"`

	// ShipmentsURL optionally serves a customs shipment profile as JSON.
	ShipmentsURL string `koanf:"shipments_url" validate:"omitempty,url"`

	// DimensionWeights overrides the profile's top-level weights.
	DimensionWeights map[string]float64 `koanf:"dimension_weights"`

	// HistoryDSN is the SQLite file holding assessment history. Empty disables history.
	HistoryDSN string `koanf:"history_dsn"`

	// AlertThreshold is the composite change that raises an alert.
	AlertThreshold float64 `koanf:"alert_threshold" validate:"gt=0"`

	// Schedule is the cron expression used by the schedule command.
	Schedule string `koanf:"schedule"`

	// MetricsFile, when set, receives a Prometheus textfile after each run.
	MetricsFile string `koanf:"metrics_file"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:      "info",
		LogFormat:     "text",
		Company:       "iRobot Corporation",
		Ticker:        "IRBT",
		CIK:           "1159167",
		Profile:       "public",
		DataDir:       "data",
		ChartDir:      "data/charts",
		FactsFile:     "facts.yaml",
		StockRange:    "1y",
		StockInterval: "1d",
		Sources: []string{
			"stock", "fred", "sec", "patents", "sam", "osha", "epa",
			"worldbank", "gscpi", "census", "shipments", "reviews", "news",
		},
		FREDSeries: []string{
			"UNRATE", "CPIAUCSL", "FEDFUNDS", "INDPRO", "UMCSENT",
			"ISRATIO", "MANEMP", "IMPGS",
		},
		StartDate:      "2020-01-01",
		HTTPTimeoutSec: 30,
		RequestDelayMS: 500,
		UserAgent:      "riskdiag research contact@example.com",
		HistoryDSN:     "data/history.db",
		AlertThreshold: 10,
		Schedule:       "0 8 * * *",
	}
}
