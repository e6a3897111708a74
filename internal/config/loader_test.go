package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/riskdiag/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars(t)

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx, "")

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Company, convey.ShouldEqual, "iRobot Corporation")
				convey.So(cfg.Profile, convey.ShouldEqual, "public")
				convey.So(len(cfg.Sources), convey.ShouldEqual, 13)
				convey.So(cfg.HTTPTimeout().Seconds(), convey.ShouldEqual, 30)
				convey.So(cfg.RequestDelay().Milliseconds(), convey.ShouldEqual, 500)
				convey.So(cfg.AlertThreshold, convey.ShouldEqual, 10)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			t.Setenv("RISKDIAG_COMPANY", "Surpath Inc")
			t.Setenv("RISKDIAG_PROFILE", "private")
			t.Setenv("RISKDIAG_SOURCES", "fred, gscpi,news")
			t.Setenv("RISKDIAG_HTTP_TIMEOUT_SEC", "5")

			cfg, err := config.Load(ctx, "")

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Company, convey.ShouldEqual, "Surpath Inc")
				convey.So(cfg.Profile, convey.ShouldEqual, "private")
				convey.So(cfg.Sources, convey.ShouldResemble, []string{"fred", "gscpi", "news"})
				convey.So(cfg.HTTPTimeoutSec, convey.ShouldEqual, 5)
			})
		})

		convey.Convey("When loading config with a YAML file", func() {
			path := writeConfigFile(t, `
company: "Acme Robotics"
ticker: ACME
fred_series: [UNRATE]
dimension_weights:
  financial: 0.2
  market: 0.2
  sentiment: 0.2
  operational: 0.2
  supply_chain: 0.2
`)
			cfg, err := config.Load(ctx, path)

			convey.Convey("Then it should load from YAML file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Company, convey.ShouldEqual, "Acme Robotics")
				convey.So(cfg.Ticker, convey.ShouldEqual, "ACME")
				convey.So(cfg.FREDSeries, convey.ShouldResemble, []string{"UNRATE"})
				convey.So(cfg.DimensionWeights["market"], convey.ShouldEqual, 0.2)
			})
		})

		convey.Convey("When the file path comes from RISKDIAG_CONFIG and env overrides it", func() {
			path := writeConfigFile(t, "company: FromFile\nticker: FILE\n")
			t.Setenv("RISKDIAG_CONFIG", path)
			t.Setenv("RISKDIAG_TICKER", "ENV")

			cfg, err := config.Load(ctx, "")

			convey.Convey("Then env takes precedence over the file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Company, convey.ShouldEqual, "FromFile")
				convey.So(cfg.Ticker, convey.ShouldEqual, "ENV")
			})
		})

		convey.Convey("When a provider key is only set under its conventional name", func() {
			t.Setenv("FRED_API_KEY", "abc123")

			cfg, err := config.Load(ctx, "")

			convey.Convey("Then the key is picked up", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.FREDAPIKey, convey.ShouldEqual, "abc123")
			})
		})

		convey.Convey("When the config file does not exist", func() {
			_, err := config.Load(ctx, filepath.Join(t.TempDir(), "missing.yaml"))

			convey.Convey("Then a load error is returned", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When validation fails", func() {
			t.Setenv("RISKDIAG_PROFILE", "hedge-fund")

			_, err := config.Load(ctx, "")

			convey.Convey("Then an invalid config error is returned", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When dimension weights do not sum to one", func() {
			path := writeConfigFile(t, "dimension_weights:\n  financial: 0.7\n  market: 0.7\n")

			_, err := config.Load(ctx, path)

			convey.Convey("Then an invalid config error is returned", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When a dimension weight is NaN", func() {
			path := writeConfigFile(t, "dimension_weights:\n  financial: .nan\n  market: 1.0\n")

			_, err := config.Load(ctx, path)

			convey.Convey("Then an invalid config error is returned", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})
	})
}

func clearConfigEnvVars(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"RISKDIAG_CONFIG", "RISKDIAG_COMPANY", "RISKDIAG_PROFILE", "RISKDIAG_SOURCES",
		"RISKDIAG_TICKER", "RISKDIAG_HTTP_TIMEOUT_SEC",
		"FRED_API_KEY", "SAM_API_KEY", "PATENTSVIEW_API_KEY", "CENSUS_API_KEY",
	} {
		t.Setenv(name, "")
		_ = os.Unsetenv(name)
	}
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
