package config

import (
	"context"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix     = "RISKDIAG_"
	envConfigPath = "RISKDIAG_CONFIG"
	weightEpsilon = 1e-6
)

// listKeys are split on commas when they come from the environment.
var listKeys = map[string]bool{"sources": true, "fred_series": true}

// keyFallbacks maps config keys to the conventional variables the data providers document.
var keyFallbacks = map[string]string{
	"fred_api_key":    "FRED_API_KEY",
	"sam_api_key":     "SAM_API_KEY",
	"patents_api_key": "PATENTSVIEW_API_KEY",
	"census_api_key":  "CENSUS_API_KEY",
}

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) from path, or RISKDIAG_CONFIG when path is empty
//  3. env (prefix RISKDIAG_)
func Load(_ context.Context, path string) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path == "" {
		path = os.Getenv(envConfigPath)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// RISKDIAG_DATA_DIR -> data_dir, RISKDIAG_SOURCES=stock,fred -> sources
	envProvider := env.ProviderWithValue(envPrefix, ".", func(key, value string) (string, interface{}) {
		key = strings.TrimPrefix(strings.ToLower(key), strings.ToLower(envPrefix))
		if key == "config" {
			return "", nil
		}
		if listKeys[key] {
			return key, splitList(value)
		}
		return key, value
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *base
	// Lists replace the defaults instead of being merged element-wise.
	for key := range listKeys {
		if k.Exists(key) {
			switch key {
			case "sources":
				cfg.Sources = nil
			case "fred_series":
				cfg.FREDSeries = nil
			}
		}
	}
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	applyKeyFallbacks(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks struct tags and cross-field rules.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if len(cfg.DimensionWeights) > 0 {
		sum := 0.0
		for name, w := range cfg.DimensionWeights {
			if w < 0 {
				return fmt.Errorf("%w: dimension weight %q is negative", ErrInvalidConfig, name)
			}
			sum += w
		}
		if !(math.Abs(sum-1) <= weightEpsilon) {
			return fmt.Errorf("%w: dimension weights sum to %.6f, want 1", ErrInvalidConfig, sum)
		}
	}
	return nil
}

// HTTPTimeout returns the per-call timeout as a duration.
func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSec) * time.Second
}

// RequestDelay returns the pause between outbound calls.
func (c *Config) RequestDelay() time.Duration {
	return time.Duration(c.RequestDelayMS) * time.Millisecond
}

func applyKeyFallbacks(cfg *Config) {
	targets := map[string]*string{
		"fred_api_key":    &cfg.FREDAPIKey,
		"sam_api_key":     &cfg.SAMAPIKey,
		"patents_api_key": &cfg.PatentsAPIKey,
		"census_api_key":  &cfg.CensusAPIKey,
	}
	for key, dst := range targets {
		if *dst == "" {
			*dst = os.Getenv(keyFallbacks[key])
		}
	}
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
