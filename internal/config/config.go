package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix namespaces environment overrides, e.g. PERPSIM_SERVER_PORT.
const EnvPrefix = "PERPSIM"

type Config struct {
	Logging struct {
		Level    string `yaml:"level"`
		Encoding string `yaml:"encoding"`
		File     string `yaml:"file"`
	} `yaml:"logging"`
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`
	Storage struct {
		Path string `yaml:"path"`
	} `yaml:"storage"`
	Simulation Simulation `yaml:"simulation"`
}

type Simulation struct {
	TickInterval       time.Duration      `yaml:"tick_interval" split_words:"true"`
	CandleCount        int                `yaml:"candle_count" split_words:"true"`
	DefaultPair        string             `yaml:"default_pair" split_words:"true"`
	DefaultTimeframe   string             `yaml:"default_timeframe" split_words:"true"`
	BookDepth          int                `yaml:"book_depth" split_words:"true"`
	BookRebuildEvery   int                `yaml:"book_rebuild_every" split_words:"true"`
	EnforceLiquidation bool               `yaml:"enforce_liquidation" split_words:"true"`
	Seed               uint64             `yaml:"seed"`
	StartPrices        map[string]float64 `yaml:"start_prices" ignored:"true"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	var cfg Config
	cfg.Logging.Level = "info"
	cfg.Logging.Encoding = "json"
	cfg.Server.Port = 8080
	cfg.Storage.Path = "sim.db"
	cfg.Simulation = Simulation{
		TickInterval:     5 * time.Second,
		CandleCount:      100,
		DefaultPair:      "sui-usdt",
		DefaultTimeframe: "1h",
		BookDepth:        12,
		BookRebuildEvery: 3,
	}
	return &cfg
}

// Load reads the YAML file at path over the defaults, then applies .env and
// environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	f, err := os.Open(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	}

	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Storage.Path == "" {
		return errors.New("storage.path is required")
	}
	s := c.Simulation
	if s.TickInterval < 100*time.Millisecond {
		return fmt.Errorf("simulation.tick_interval must be at least 100ms, got %s", s.TickInterval)
	}
	if s.CandleCount < 1 {
		return fmt.Errorf("simulation.candle_count must be positive, got %d", s.CandleCount)
	}
	if s.BookDepth < 10 || s.BookDepth > 12 {
		return fmt.Errorf("simulation.book_depth must be between 10 and 12, got %d", s.BookDepth)
	}
	if s.BookRebuildEvery < 1 {
		return fmt.Errorf("simulation.book_rebuild_every must be at least 1, got %d", s.BookRebuildEvery)
	}
	for pair, p := range s.StartPrices {
		if p <= 0 {
			return fmt.Errorf("simulation.start_prices[%s] must be positive", pair)
		}
	}
	return nil
}
