package filter

// SeriesConfig bounds one measurement kind.
type SeriesConfig struct {
	Min              float64 `mapstructure:"min" yaml:"min"`
	Max              float64 `mapstructure:"max" yaml:"max"`
	OutlierThreshold float64 `mapstructure:"outlier_threshold" yaml:"outlier_threshold"` // 0 disables outlier tolerance
}

// Config holds the smoothing parameters shared by every channel.
type Config struct {
	Alpha             float64      `mapstructure:"alpha" yaml:"alpha"`
	RawWindow         int          `mapstructure:"raw_window" yaml:"raw_window"`
	MedianWindow      int          `mapstructure:"median_window" yaml:"median_window"`
	ActivityThreshold float64      `mapstructure:"activity_threshold" yaml:"activity_threshold"`
	OutlierRun        int          `mapstructure:"outlier_run" yaml:"outlier_run"`
	Primary           SeriesConfig `mapstructure:"primary" yaml:"primary"`
	Companion         SeriesConfig `mapstructure:"companion" yaml:"companion"`
	HeartRate         SeriesConfig `mapstructure:"heart_rate" yaml:"heart_rate"`
}

// Default values
const (
	DefaultAlpha             = 0.3
	DefaultRawWindow         = 10
	DefaultMedianWindow      = 5
	DefaultActivityThreshold = 10
	DefaultOutlierRun        = 3

	MaxPrimary   = 3000 // watts
	MaxCompanion = 254  // rpm, 255 is the protocol's invalid marker
	MaxHeartRate = 254  // bpm
)

// DefaultConfig returns the stock filter configuration.
func DefaultConfig() Config {
	return Config{
		Alpha:             DefaultAlpha,
		RawWindow:         DefaultRawWindow,
		MedianWindow:      DefaultMedianWindow,
		ActivityThreshold: DefaultActivityThreshold,
		OutlierRun:        DefaultOutlierRun,
		Primary:           SeriesConfig{Min: 0, Max: MaxPrimary, OutlierThreshold: 500},
		Companion:         SeriesConfig{Min: 0, Max: MaxCompanion, OutlierThreshold: 60},
		HeartRate:         SeriesConfig{Min: 1, Max: MaxHeartRate, OutlierThreshold: 50},
	}
}

// normalized fills zero values with defaults so a partially populated Config is usable.
func (c Config) normalized() Config {
	if c.Alpha <= 0 || c.Alpha > 1 {
		c.Alpha = DefaultAlpha
	}
	if c.RawWindow <= 0 {
		c.RawWindow = DefaultRawWindow
	}
	if c.MedianWindow <= 0 {
		c.MedianWindow = DefaultMedianWindow
	}
	if c.OutlierRun < 0 {
		c.OutlierRun = DefaultOutlierRun
	}
	return c
}
