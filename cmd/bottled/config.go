package main

import (
	"fmt"
	"io"

	"github.com/caarlos0/env/v11"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// config holds the settings read from the environment. Command-line flags
// override them.
type config struct {
	LogLevel  string  `env:"BOTTLED_LOG_LEVEL" envDefault:"info"`
	LogFormat string  `env:"BOTTLED_LOG_FORMAT" envDefault:"text"`
	Rate      float64 `env:"BOTTLED_RATE" envDefault:"0"`
	Burst     int     `env:"BOTTLED_BURST" envDefault:"1"`
}

func loadConfig() (config, error) {
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// newLogger builds a logger writing to w at the configured level and format.
func (c config) newLogger(w io.Writer) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}

	logger := logrus.New()
	logger.SetOutput(w)
	logger.SetLevel(level)

	switch c.LogFormat {
	case "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("unknown log format %q, want text or json", c.LogFormat)
	}
	return logger, nil
}

// newLimiter returns nil when no rate is configured.
func (c config) newLimiter() (*rate.Limiter, error) {
	if c.Rate <= 0 {
		return nil, nil
	}
	if c.Burst < 1 {
		return nil, fmt.Errorf("burst must be at least 1 when a rate is set, got %d", c.Burst)
	}
	return rate.NewLimiter(rate.Limit(c.Rate), c.Burst), nil
}
