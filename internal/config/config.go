// Package config holds runtime configuration: defaults, viper layering
// (defaults < config file < WEBPCONV_* env < flags), and validation.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/gobwas/glob"
	"github.com/spf13/viper"
)

// --- Enum types for validated string fields ---

// OutputFormat is the target image format.
type OutputFormat string

const (
	FormatGIF  OutputFormat = "gif"  // Single- or multi-frame GIF (default).
	FormatJPEG OutputFormat = "jpeg" // Single-frame baseline JPEG.
)

// ColorMode controls ANSI color output.
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"   // Enable colors when stdout is a TTY (default).
	ColorAlways ColorMode = "always" // Force colors on.
	ColorNever  ColorMode = "never"  // Disable colors entirely.
)

// Log levels accepted by --log-level.
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// ParseFormat normalizes user input ("JPEG", "jpg", "Gif") into an OutputFormat.
func ParseFormat(s string) (OutputFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "gif":
		return FormatGIF, nil
	case "jpeg", "jpg":
		return FormatJPEG, nil
	default:
		return "", fmt.Errorf("invalid format %q (use 'gif' or 'jpeg')", s)
	}
}

// ParseColorMode normalizes a --color value.
func ParseColorMode(s string) (ColorMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "auto":
		return ColorAuto, nil
	case "always", "on":
		return ColorAlways, nil
	case "never", "off":
		return ColorNever, nil
	default:
		return "", fmt.Errorf("invalid color mode %q (use 'auto', 'always' or 'never')", s)
	}
}

// Config holds all runtime settings. It is populated by [DefaultConfig] (or
// [Load] when viper is in play) and then passed by pointer to the packages
// that need it.
type Config struct {
	Convert   ConvertConfig   `mapstructure:"convert"`
	Discovery DiscoveryConfig `mapstructure:"discovery"`
	Watch     WatchConfig     `mapstructure:"watch"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ConvertConfig controls per-file conversion and the worker pool.
type ConvertConfig struct {
	Format         OutputFormat `mapstructure:"format"`          // Default: "gif".
	DeleteOriginal bool         `mapstructure:"delete_original"` // Remove the .webp after a successful conversion.
	Quality        int          `mapstructure:"quality"`         // JPEG quality 1-100. Default: 100.
	Dither         bool         `mapstructure:"dither"`          // Floyd-Steinberg remap of animated GIF frames. Default: true.
	Workers        int          `mapstructure:"workers"`         // 0 means one worker per hardware thread.
	SkipExisting   bool         `mapstructure:"skip_existing"`
	DryRun         bool         `mapstructure:"dry_run"`
	Report         string       `mapstructure:"report"` // Optional YAML report path.
}

// DiscoveryConfig controls how directory arguments expand into inputs.
type DiscoveryConfig struct {
	Recursive bool     `mapstructure:"recursive"`
	Exclude   []string `mapstructure:"exclude"` // Glob patterns matched against base names.
}

// WatchConfig controls the watch command.
type WatchConfig struct {
	// Settle is how long a file must go without events before it is converted.
	Settle time.Duration `mapstructure:"settle"`
}

// LoggingConfig controls console and file logging.
type LoggingConfig struct {
	Verbose bool      `mapstructure:"verbose"`
	Color   ColorMode `mapstructure:"color"`
	File    string    `mapstructure:"file"`
	Level   string    `mapstructure:"level"`
}

// DefaultConfig returns GIF output, originals kept, maximum JPEG quality and
// one worker per hardware thread.
func DefaultConfig() Config {
	return Config{
		Convert: ConvertConfig{
			Format:  FormatGIF,
			Quality: 100,
			Dither:  true,
		},
		Watch: WatchConfig{
			Settle: 2 * time.Second,
		},
		Logging: LoggingConfig{
			Color: ColorAuto,
			Level: LevelInfo,
		},
	}
}

// Validate checks and normalizes enum fields, numeric ranges and exclude
// patterns. Format and color mode are canonicalized in place.
func (c *Config) Validate() error {
	format, err := ParseFormat(string(c.Convert.Format))
	if err != nil {
		return err
	}
	c.Convert.Format = format

	if c.Convert.Quality < 1 || c.Convert.Quality > 100 {
		return fmt.Errorf("invalid quality %d (use 1-100)", c.Convert.Quality)
	}
	if c.Convert.Workers < 0 {
		return errors.New("workers must not be negative")
	}

	mode, err := ParseColorMode(string(c.Logging.Color))
	if err != nil {
		return err
	}
	c.Logging.Color = mode

	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	switch level {
	case LevelDebug, LevelInfo, LevelWarn, LevelError:
		c.Logging.Level = level
	case "":
		c.Logging.Level = LevelInfo
	default:
		return fmt.Errorf("invalid log level %q (use debug, info, warn or error)", c.Logging.Level)
	}

	for _, p := range c.Discovery.Exclude {
		if _, err := glob.Compile(p); err != nil {
			return fmt.Errorf("invalid exclude pattern %q: %w", p, err)
		}
	}

	if c.Watch.Settle <= 0 {
		return errors.New("watch settle time must be positive")
	}
	return nil
}

// ResolvedWorkers returns the worker pool size: the configured value, or
// one worker per hardware thread when unset.
func (c *Config) ResolvedWorkers() int {
	if c.Convert.Workers > 0 {
		return c.Convert.Workers
	}
	return runtime.NumCPU()
}

// SetDefaults registers every default with viper so that they apply even
// without a config file.
func SetDefaults() {
	d := DefaultConfig()

	viper.SetDefault("convert.format", string(d.Convert.Format))
	viper.SetDefault("convert.delete_original", d.Convert.DeleteOriginal)
	viper.SetDefault("convert.quality", d.Convert.Quality)
	viper.SetDefault("convert.dither", d.Convert.Dither)
	viper.SetDefault("convert.workers", d.Convert.Workers)
	viper.SetDefault("convert.skip_existing", d.Convert.SkipExisting)
	viper.SetDefault("convert.dry_run", d.Convert.DryRun)
	viper.SetDefault("convert.report", d.Convert.Report)

	viper.SetDefault("discovery.recursive", d.Discovery.Recursive)
	viper.SetDefault("discovery.exclude", []string{})

	viper.SetDefault("watch.settle", d.Watch.Settle)

	viper.SetDefault("logging.verbose", d.Logging.Verbose)
	viper.SetDefault("logging.color", string(d.Logging.Color))
	viper.SetDefault("logging.file", d.Logging.File)
	viper.SetDefault("logging.level", d.Logging.Level)
}

// Load unmarshals the merged viper state into a Config and validates it.
func Load() (*Config, error) {
	cfg := DefaultConfig()
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ConfigDir returns the directory searched for config.yaml, honoring
// XDG_CONFIG_HOME.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "webpconv")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "webpconv")
}
