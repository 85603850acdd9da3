// Package logging builds the process logger. Components receive the
// *log.Logger and prefix their own lines ("Component: message").
package logging

import (
	"io"
	"log"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls where log output goes. With an empty File the logger
// writes to the fallback writer.
type Config struct {
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// DefaultConfig returns rotation settings used when none are configured.
func DefaultConfig() Config {
	return Config{MaxSizeMB: 10, MaxBackups: 3, MaxAgeDays: 28, Compress: true}
}

const flags = log.LstdFlags | log.Lmicroseconds

// New returns a logger and a close function that flushes and releases the
// log file, if any.
func New(cfg Config, fallback io.Writer) (*log.Logger, func() error) {
	if cfg.File == "" {
		return log.New(fallback, "", flags), func() error { return nil }
	}
	rotator := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
	return log.New(rotator, "", flags), rotator.Close
}
