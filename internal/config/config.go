// Package config loads the server configuration from an optional HCL file
// and the environment.
//
//	listen       = ":3000"
//	store        = "postgres"
//	database_url = "postgres://localhost/neurons"
//	log_level    = "debug"
//
//	training {
//	  epochs        = 5
//	  learning_rate = 0.05
//	}
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/hashicorp/hcl/v2/hclsimple"
)

var ErrInvalid = errors.New("config: invalid")

const (
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

type Config struct {
	Listen      string    `hcl:"listen,optional"`
	Store       string    `hcl:"store,optional"`
	DatabaseURL string    `hcl:"database_url,optional"`
	SQLitePath  string    `hcl:"sqlite_path,optional"`
	LogLevel    string    `hcl:"log_level,optional"`
	Training    *Training `hcl:"training,block"`
}

type Training struct {
	Epochs       int     `hcl:"epochs,optional"`
	LearningRate float64 `hcl:"learning_rate,optional"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Listen:     ":3000",
		Store:      StoreSQLite,
		SQLitePath: "neurons.sqlite3",
		LogLevel:   "info",
		Training:   &Training{Epochs: 1, LearningRate: 0.01},
	}
}

// Load reads path when it is not empty, fills unset fields with defaults,
// applies environment overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Config{}
	if path != "" {
		if err := hclsimple.DecodeFile(path, nil, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: failed to load %s: %w", path, err)
		}
	}
	cfg.fill(Default())
	cfg.fromEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) fill(def Config) {
	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.Store == "" {
		c.Store = def.Store
	}
	if c.SQLitePath == "" {
		c.SQLitePath = def.SQLitePath
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.Training == nil {
		c.Training = &Training{}
	}
	if c.Training.Epochs == 0 {
		c.Training.Epochs = def.Training.Epochs
	}
	if c.Training.LearningRate == 0 {
		c.Training.LearningRate = def.Training.LearningRate
	}
}

func (c *Config) fromEnv(lookup func(string) (string, bool)) {
	for name, field := range map[string]*string{
		"NEURONS_LISTEN":      &c.Listen,
		"NEURONS_STORE":       &c.Store,
		"DATABASE_URL":        &c.DatabaseURL,
		"NEURONS_SQLITE_PATH": &c.SQLitePath,
		"NEURONS_LOG_LEVEL":   &c.LogLevel,
	} {
		if v, ok := lookup(name); ok && v != "" {
			*field = v
		}
	}
}

// Validate checks store selection, log level and training settings.
func (c Config) Validate() error {
	switch c.Store {
	case StoreSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("%w: sqlite_path is empty", ErrInvalid)
		}
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("%w: postgres store needs database_url or DATABASE_URL", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown store %q", ErrInvalid, c.Store)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	if c.Training == nil || c.Training.Epochs < 1 {
		return fmt.Errorf("%w: epochs must be at least 1", ErrInvalid)
	}
	if c.Training.LearningRate <= 0 {
		return fmt.Errorf("%w: learning_rate must be positive", ErrInvalid)
	}
	return nil
}

// Level parses LogLevel.
func (c Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); err != nil {
		return 0, fmt.Errorf("%w: log_level %q", ErrInvalid, c.LogLevel)
	}
	return l, nil
}
