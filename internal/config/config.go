// Package config loads engine settings from defaults, an optional YAML file,
// TRAINER_* environment variables and command-line flags, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/lowaak/smart-trainer/trainer-engine/internal/ant"
	"github.com/lowaak/smart-trainer/trainer-engine/internal/filter"
	"github.com/lowaak/smart-trainer/trainer-engine/internal/logging"
	"github.com/lowaak/smart-trainer/trainer-engine/internal/store"
)

// EnvPrefix is prepended to every environment override, e.g. TRAINER_TRACKS.
const EnvPrefix = "TRAINER"

// Config is the complete engine configuration.
type Config struct {
	Tracks          int           `mapstructure:"tracks"`
	TickInterval    time.Duration `mapstructure:"tick_interval"`
	LivenessTimeout time.Duration `mapstructure:"liveness_timeout"`
	Countdown       time.Duration `mapstructure:"countdown"`
	AlertThresholds []int         `mapstructure:"alert_thresholds"`
	DefaultBaseline float64       `mapstructure:"default_baseline"`
	Verbose         bool          `mapstructure:"verbose"`
	Workout         string        `mapstructure:"workout"`

	Decoder DecoderConfig  `mapstructure:"decoder"`
	Filter  FilterConfig   `mapstructure:"filter"`
	Store   store.Config   `mapstructure:"store"`
	Log     logging.Config `mapstructure:"log"`
	HTTP    HTTPConfig     `mapstructure:"http"`
}

// DecoderConfig mirrors ant.DecoderConfig.
type DecoderConfig struct {
	MaxBuffer      int   `mapstructure:"max_buffer"`
	MaxPayload     int   `mapstructure:"max_payload"`
	VerifyChecksum bool  `mapstructure:"verify_checksum"`
	TunnelIDs      []int `mapstructure:"tunnel_ids"`
}

// FilterConfig holds the smoothing parameters as flat keys.
type FilterConfig struct {
	Alpha             float64 `mapstructure:"alpha"`
	RawWindow         int     `mapstructure:"raw_window"`
	MedianWindow      int     `mapstructure:"median_window"`
	ActivityThreshold float64 `mapstructure:"activity_threshold"`
	OutlierRun        int     `mapstructure:"outlier_run"`

	PrimaryMax       float64 `mapstructure:"primary_max"`
	CompanionMax     float64 `mapstructure:"companion_max"`
	HeartRateMax     float64 `mapstructure:"heart_rate_max"`
	PrimaryOutlier   float64 `mapstructure:"primary_outlier"`
	CompanionOutlier float64 `mapstructure:"companion_outlier"`
	HeartRateOutlier float64 `mapstructure:"heart_rate_outlier"`
}

// HTTPConfig configures the status and control API.
type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("tracks", 10)
	v.SetDefault("tick_interval", time.Second)
	v.SetDefault("liveness_timeout", 3*time.Second)
	v.SetDefault("countdown", 5*time.Second)
	v.SetDefault("alert_thresholds", []int{5, 4, 3, 2, 1, 0})
	v.SetDefault("default_baseline", 220.0)
	v.SetDefault("verbose", false)
	v.SetDefault("workout", "")

	dec := ant.DefaultDecoderConfig()
	tunnels := make([]int, 0, len(dec.TunnelIDs))
	for _, id := range dec.TunnelIDs {
		tunnels = append(tunnels, int(id))
	}
	v.SetDefault("decoder.max_buffer", dec.MaxBuffer)
	v.SetDefault("decoder.max_payload", dec.MaxPayload)
	v.SetDefault("decoder.verify_checksum", dec.VerifyChecksum)
	v.SetDefault("decoder.tunnel_ids", tunnels)

	f := filter.DefaultConfig()
	v.SetDefault("filter.alpha", f.Alpha)
	v.SetDefault("filter.raw_window", f.RawWindow)
	v.SetDefault("filter.median_window", f.MedianWindow)
	v.SetDefault("filter.activity_threshold", f.ActivityThreshold)
	v.SetDefault("filter.outlier_run", f.OutlierRun)
	v.SetDefault("filter.primary_max", f.Primary.Max)
	v.SetDefault("filter.companion_max", f.Companion.Max)
	v.SetDefault("filter.heart_rate_max", f.HeartRate.Max)
	v.SetDefault("filter.primary_outlier", f.Primary.OutlierThreshold)
	v.SetDefault("filter.companion_outlier", f.Companion.OutlierThreshold)
	v.SetDefault("filter.heart_rate_outlier", f.HeartRate.OutlierThreshold)

	v.SetDefault("store.driver", store.DriverNone)
	v.SetDefault("store.path", "")
	v.SetDefault("store.redis_addr", "localhost:6379")
	v.SetDefault("store.redis_db", 0)
	v.SetDefault("store.redis_prefix", store.DefaultRedisPrefix)

	l := logging.DefaultConfig()
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", l.MaxSizeMB)
	v.SetDefault("log.max_backups", l.MaxBackups)
	v.SetDefault("log.max_age_days", l.MaxAgeDays)
	v.SetDefault("log.compress", l.Compress)

	v.SetDefault("http.addr", ":8080")
}

// Load resolves the configuration. configFile may be empty. Flags whose
// names match configuration keys (e.g. "tracks", "http.addr") override
// every other source when set.
func Load(configFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", configFile, err)
		}
	}
	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("config: bind flags: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the engine cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Tracks <= 0 {
		errs = append(errs, fmt.Errorf("tracks must be positive, got %d", c.Tracks))
	}
	if c.TickInterval <= 0 {
		errs = append(errs, fmt.Errorf("tick_interval must be positive, got %v", c.TickInterval))
	}
	if c.LivenessTimeout <= 0 {
		errs = append(errs, fmt.Errorf("liveness_timeout must be positive, got %v", c.LivenessTimeout))
	}
	if c.Countdown < 0 {
		errs = append(errs, fmt.Errorf("countdown must not be negative, got %v", c.Countdown))
	}
	for _, t := range c.AlertThresholds {
		if t < 0 {
			errs = append(errs, fmt.Errorf("alert threshold %d is negative", t))
		}
	}
	if c.Filter.Alpha <= 0 || c.Filter.Alpha > 1 {
		errs = append(errs, fmt.Errorf("filter.alpha must be in (0, 1], got %v", c.Filter.Alpha))
	}
	if c.Decoder.MaxPayload <= 0 || c.Decoder.MaxPayload > 255 {
		errs = append(errs, fmt.Errorf("decoder.max_payload must be in [1, 255], got %d", c.Decoder.MaxPayload))
	}
	if c.Decoder.MaxBuffer < c.Decoder.MaxPayload+4 {
		errs = append(errs, fmt.Errorf("decoder.max_buffer must hold one frame (%d bytes), got %d", c.Decoder.MaxPayload+4, c.Decoder.MaxBuffer))
	}
	for _, id := range c.Decoder.TunnelIDs {
		if id < 0 || id > 0xFF {
			errs = append(errs, fmt.Errorf("decoder.tunnel_ids entry %d is not a message id", id))
		}
	}
	switch c.Store.Driver {
	case store.DriverNone, store.DriverFile, store.DriverRedis:
	case store.DriverSQLite:
		if c.Store.Path == "" {
			errs = append(errs, errors.New("store.path is required for the sqlite driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.driver %q is not one of none, file, sqlite, redis", c.Store.Driver))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// DecoderSettings converts to the decoder's configuration.
func (c Config) DecoderSettings() ant.DecoderConfig {
	ids := make([]byte, 0, len(c.Decoder.TunnelIDs))
	for _, id := range c.Decoder.TunnelIDs {
		ids = append(ids, byte(id))
	}
	return ant.DecoderConfig{
		MaxBuffer:      c.Decoder.MaxBuffer,
		MaxPayload:     c.Decoder.MaxPayload,
		VerifyChecksum: c.Decoder.VerifyChecksum,
		TunnelIDs:      ids,
	}
}

// FilterSettings converts to the signal processor's configuration.
func (c Config) FilterSettings() filter.Config {
	f := c.Filter
	return filter.Config{
		Alpha:             f.Alpha,
		RawWindow:         f.RawWindow,
		MedianWindow:      f.MedianWindow,
		ActivityThreshold: f.ActivityThreshold,
		OutlierRun:        f.OutlierRun,
		Primary:           filter.SeriesConfig{Min: 0, Max: f.PrimaryMax, OutlierThreshold: f.PrimaryOutlier},
		Companion:         filter.SeriesConfig{Min: 0, Max: f.CompanionMax, OutlierThreshold: f.CompanionOutlier},
		HeartRate:         filter.SeriesConfig{Min: 1, Max: f.HeartRateMax, OutlierThreshold: f.HeartRateOutlier},
	}
}
