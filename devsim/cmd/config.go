package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds the settings that can come from the environment. Command
// line flags override them.
type Config struct {
	LogLevel    string `env:"DEVSIM_LOG_LEVEL" envDefault:"warn"`
	TraceDB     string `env:"DEVSIM_TRACE_DB"`
	MonitorPort int    `env:"DEVSIM_MONITOR_PORT" envDefault:"0"`
	Parallel    bool   `env:"DEVSIM_PARALLEL" envDefault:"false"`
	Separator   string `env:"DEVSIM_SEPARATOR" envDefault:":"`
}

// LoadConfig reads the dotenv file, if it exists, into the environment and
// parses the configuration from the environment. Variables already set in
// the environment win over the file.
func LoadConfig(envFile string) (Config, error) {
	if envFile != "" {
		_, err := os.Stat(envFile)

		switch {
		case err == nil:
			if err := godotenv.Load(envFile); err != nil {
				return Config{}, fmt.Errorf("load %s: %w", envFile, err)
			}
		case !errors.Is(err, fs.ErrNotExist):
			return Config{}, fmt.Errorf("stat %s: %w", envFile, err)
		}
	}

	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if cfg.Separator == "" {
		return Config{}, errors.New("DEVSIM_SEPARATOR must not be empty")
	}

	return cfg, nil
}
