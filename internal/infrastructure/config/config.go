package config

import (
	"github.com/caarlos0/env/v10"
)

// Config holds all application configuration.
type Config struct {
	// Logging
	LogLevel  string `env:"LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"console"`

	// Amounts are stored as integers in minor units; AmountScale is the number of
	// decimal places the shell accepts and prints.
	AmountScale int32 `env:"AMOUNT_SCALE" envDefault:"2"`

	// Metrics textfile (empty disables export)
	MetricsFile string `env:"METRICS_FILE" envDefault:""`

	// Shell
	Prompt       string `env:"PROMPT"        envDefault:"bank> "`
	HistoryLimit int    `env:"HISTORY_LIMIT" envDefault:"20"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	err := env.Parse(cfg)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}
