package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds runtime configuration for the application.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	AppAddr           string        `envconfig:"APP_ADDR" default:":8080"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"60s"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"45s"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`

	BackendURL     string        `envconfig:"BACKEND_URL" default:"http://127.0.0.1:5000"`
	BackendTimeout time.Duration `envconfig:"BACKEND_TIMEOUT" default:"30s"`

	RedisAddr  string        `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	SessionTTL time.Duration `envconfig:"SESSION_TTL" default:"12h"`
	CSRFSecret string        `envconfig:"CSRF_SECRET" required:"true"`

	ScreensFile string        `envconfig:"SCREENS_FILE"`
	ViewIdleTTL time.Duration `envconfig:"VIEW_IDLE_TTL" default:"30m"`

	DashboardRefreshInterval time.Duration `envconfig:"DASHBOARD_REFRESH_INTERVAL" default:"5m"`
	DashboardCacheTTL        time.Duration `envconfig:"DASHBOARD_CACHE_TTL" default:"4m"`

	WorkerConcurrency int    `envconfig:"WORKER_CONCURRENCY" default:"4"`
	WarmupCron        string `envconfig:"WARMUP_CRON" default:"*/5 * * * *"`
	WorkerMetricsAddr string `envconfig:"WORKER_METRICS_ADDR"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the relations between settings.
func (c *Config) Validate() error {
	if c.CSRFSecret == "" {
		return errors.New("csrf secret must be provided")
	}
	if c.BackendURL == "" {
		return errors.New("backend url must be provided")
	}
	if c.DashboardRefreshInterval <= 0 {
		return errors.New("dashboard refresh interval must be positive")
	}
	// A cached payload outliving the refresh interval would be served again by
	// the next automatic refresh.
	if c.DashboardCacheTTL >= c.DashboardRefreshInterval {
		return fmt.Errorf("dashboard cache ttl %s must be shorter than the refresh interval %s",
			c.DashboardCacheTTL, c.DashboardRefreshInterval)
	}
	return nil
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}

const testModeEnv = "BAKER_TEST_MODE"

var (
	testMode     atomic.Bool
	testModeOnce sync.Once
)

// InTestMode reports whether binaries should return from main before dialing
// Redis or binding ports. BAKER_TEST_MODE accepts any strconv.ParseBool value.
func InTestMode() bool {
	testModeOnce.Do(RefreshTestMode)
	return testMode.Load()
}

// RefreshTestMode re-reads BAKER_TEST_MODE after the environment changed.
func RefreshTestMode() {
	on, _ := strconv.ParseBool(os.Getenv(testModeEnv))
	testMode.Store(on)
}
