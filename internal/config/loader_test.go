package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/earnsignal/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("EARNSIGNAL_DATA_API_KEY", "data-key")
	t.Setenv("EARNSIGNAL_AI_KEY", "ai-key")
	t.Setenv("EARNSIGNAL_AI_ENDPOINT", "https://example.openai.azure.com/")
	t.Setenv("EARNSIGNAL_START_DATE", "2024-01-01")
	t.Setenv("EARNSIGNAL_END_DATE", "2024-03-31")
}

var optionalKeys = []string{
	"EARNSIGNAL_CONFIG",
	"EARNSIGNAL_MAX_CONCURRENT_TICKERS",
	"EARNSIGNAL_AI_TEMPERATURE",
	"EARNSIGNAL_USE_CACHE",
	"EARNSIGNAL_HTTP_TIMEOUT",
	"EARNSIGNAL_BLACKLIST",
	"EARNSIGNAL_TICKERS",
	"EARNSIGNAL_EPS_HISTORY_QUARTERS",
	"EARNSIGNAL_FAILURE_POLICY",
}

func TestConfigLoader(t *testing.T) {
	ctx := context.Background()
	// Load reads .env from the working directory; isolate from the repo root.
	t.Chdir(t.TempDir())

	convey.Convey("Given required settings in the environment", t, func() {
		setRequiredEnv(t)
		convey.Reset(func() {
			for _, key := range optionalKeys {
				_ = os.Unsetenv(key)
			}
		})

		convey.Convey("When loading with defaults otherwise", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then defaults are kept", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.DataAPIKey, convey.ShouldEqual, "data-key")
				convey.So(cfg.DataConcurrency, convey.ShouldEqual, 5)
				convey.So(cfg.Blacklist, convey.ShouldResemble, []string{"EXC", "COTY"})
			})
		})

		convey.Convey("When overriding values through the environment", func() {
			_ = os.Setenv("EARNSIGNAL_MAX_CONCURRENT_TICKERS", "6")
			_ = os.Setenv("EARNSIGNAL_AI_TEMPERATURE", "0.5")
			_ = os.Setenv("EARNSIGNAL_USE_CACHE", "false")
			_ = os.Setenv("EARNSIGNAL_HTTP_TIMEOUT", "45s")
			_ = os.Setenv("EARNSIGNAL_BLACKLIST", "AAPL")
			_ = os.Setenv("EARNSIGNAL_TICKERS", "MSFT, NVDA")

			cfg, err := config.Load(ctx)

			convey.Convey("Then env vars win over defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.MaxConcurrentTickers, convey.ShouldEqual, 6)
				convey.So(cfg.AITemperature, convey.ShouldAlmostEqual, 0.5, 1e-6)
				convey.So(cfg.UseCache, convey.ShouldBeFalse)
				convey.So(cfg.HTTPTimeout, convey.ShouldEqual, 45*time.Second)
				convey.So(cfg.Blacklist, convey.ShouldResemble, []string{"AAPL"})
				convey.So(cfg.Tickers, convey.ShouldResemble, []string{"MSFT", "NVDA"})
			})
		})

		convey.Convey("When a YAML file is provided", func() {
			path := filepath.Join(t.TempDir(), "config.yaml")
			yamlBody := "failure_policy: continue\ncache_backend: badger\neps_history_quarters: 4\n"
			convey.So(os.WriteFile(path, []byte(yamlBody), 0o600), convey.ShouldBeNil)
			_ = os.Setenv("EARNSIGNAL_CONFIG", path)
			_ = os.Setenv("EARNSIGNAL_EPS_HISTORY_QUARTERS", "6")

			cfg, err := config.Load(ctx)

			convey.Convey("Then file values apply and env still wins", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.FailurePolicy, convey.ShouldEqual, config.Continue)
				convey.So(cfg.CacheBackend, convey.ShouldEqual, config.CacheBadger)
				convey.So(cfg.EPSHistoryQuarters, convey.ShouldEqual, 6)
			})
		})

		convey.Convey("When the YAML file does not exist", func() {
			_ = os.Setenv("EARNSIGNAL_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
			_, err := config.Load(ctx)
			convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When validation fails", func() {
			_ = os.Setenv("EARNSIGNAL_FAILURE_POLICY", "ignore")
			_, err := config.Load(ctx)
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
		})
	})
}
