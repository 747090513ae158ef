package main

import (
	"time"

	"github.com/fatih/color"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/cobra"
)

// settings are read from the same environment as the server; flags win.
type settings struct {
	BackendURL     string        `envconfig:"BACKEND_URL" default:"http://127.0.0.1:5000"`
	BackendTimeout time.Duration `envconfig:"BACKEND_TIMEOUT" default:"30s"`
	RedisAddr      string        `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	ScreensFile    string        `envconfig:"SCREENS_FILE"`
}

var (
	cfg     settings
	noColor bool
)

var rootCmd = &cobra.Command{
	Use:           "bakerctl",
	Short:         "Inspect list screens, dashboards and background jobs from a terminal",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		if noColor {
			color.NoColor = true
		}
		return nil
	},
}

func init() {
	if err := envconfig.Process("", &cfg); err != nil {
		panic(err)
	}
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfg.BackendURL, "backend", cfg.BackendURL, "base URL of the metrics API")
	flags.DurationVar(&cfg.BackendTimeout, "timeout", cfg.BackendTimeout, "default backend request timeout")
	flags.StringVar(&cfg.RedisAddr, "redis", cfg.RedisAddr, "Redis address for the cache and job queue")
	flags.StringVar(&cfg.ScreensFile, "screens", cfg.ScreensFile, "YAML file overriding the built-in screens")
	flags.BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(listCmd, dashboardCmd, cacheCmd, jobsCmd)
}
