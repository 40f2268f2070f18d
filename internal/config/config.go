// File: internal/config/config.go
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. GUIDEPOST_BROWSER_HEADLESS.
const EnvPrefix = "GUIDEPOST"

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Browser() BrowserConfig
	Player() PlayerConfig
	Tours() ToursConfig

	SetBrowserHeadless(bool)
	SetPlayerDebug(bool)
	SetPlayerMode(string)
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	BrowserCfg BrowserConfig `mapstructure:"browser" yaml:"browser"`
	PlayerCfg  PlayerConfig  `mapstructure:"player" yaml:"player"`
	ToursCfg   ToursConfig   `mapstructure:"tours" yaml:"tours"`
}

var _ Interface = (*Config)(nil)

func (c *Config) Logger() LoggerConfig   { return c.LoggerCfg }
func (c *Config) Browser() BrowserConfig { return c.BrowserCfg }
func (c *Config) Player() PlayerConfig   { return c.PlayerCfg }
func (c *Config) Tours() ToursConfig     { return c.ToursCfg }

// -- Setters, used by CLI flag overrides --

func (c *Config) SetBrowserHeadless(b bool) { c.BrowserCfg.Headless = b }
func (c *Config) SetPlayerDebug(b bool)     { c.PlayerCfg.Debug = b }
func (c *Config) SetPlayerMode(m string)    { c.PlayerCfg.Mode = m }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color names used for each log level.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig holds settings for the Chrome instance tours play in.
type BrowserConfig struct {
	Headless          bool           `mapstructure:"headless" yaml:"headless"`
	IgnoreTLSErrors   bool           `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	ExecPath          string         `mapstructure:"exec_path" yaml:"exec_path"`
	Args              []string       `mapstructure:"args" yaml:"args"`
	Viewport          map[string]int `mapstructure:"viewport" yaml:"viewport"`
	NavigationTimeout time.Duration  `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	StartupTimeout    time.Duration  `mapstructure:"startup_timeout" yaml:"startup_timeout"`
}

// ViewportSize returns the configured window size, zero when unset.
func (b BrowserConfig) ViewportSize() (width, height int) {
	return b.Viewport["width"], b.Viewport["height"]
}

// PlayerConfig holds playback timing, layout and diagnostics.
type PlayerConfig struct {
	Mode                   string        `mapstructure:"mode" yaml:"mode"`
	Debug                  bool          `mapstructure:"debug" yaml:"debug"`
	TransitionDelay        time.Duration `mapstructure:"transition_delay" yaml:"transition_delay"`
	TooltipDelay           time.Duration `mapstructure:"tooltip_delay" yaml:"tooltip_delay"`
	SettleDelay            time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
	RelayoutInterval       time.Duration `mapstructure:"relayout_interval" yaml:"relayout_interval"`
	BlockerPadding         float64       `mapstructure:"blocker_padding" yaml:"blocker_padding"`
	TooltipGap             float64       `mapstructure:"tooltip_gap" yaml:"tooltip_gap"`
	ViewportPadding        float64       `mapstructure:"viewport_padding" yaml:"viewport_padding"`
	PreviewViewportPadding float64       `mapstructure:"preview_viewport_padding" yaml:"preview_viewport_padding"`
	MaxURLPattern          int           `mapstructure:"max_url_pattern" yaml:"max_url_pattern"`
}

// ToursConfig locates tours on disk.
type ToursConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// NewDefaultConfig creates a configuration populated with every default.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)
	cfg, err := NewConfigFromViper(v)
	if err != nil {
		// Defaults are static; failing here is a programming error.
		panic(fmt.Sprintf("default configuration is invalid: %v", err))
	}
	return cfg
}

// SetDefaults registers the default value of every key.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "guidepost")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 10)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 7)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Browser --
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.args", []string{})
	v.SetDefault("browser.viewport", map[string]int{"width": 1280, "height": 800})
	v.SetDefault("browser.navigation_timeout", 30*time.Second)
	v.SetDefault("browser.startup_timeout", 30*time.Second)

	// -- Player --
	v.SetDefault("player.mode", "standalone")
	v.SetDefault("player.debug", false)
	v.SetDefault("player.transition_delay", 150*time.Millisecond)
	v.SetDefault("player.tooltip_delay", 100*time.Millisecond)
	v.SetDefault("player.settle_delay", 500*time.Millisecond)
	v.SetDefault("player.relayout_interval", 16*time.Millisecond)
	v.SetDefault("player.blocker_padding", 4.0)
	v.SetDefault("player.tooltip_gap", 12.0)
	v.SetDefault("player.viewport_padding", 16.0)
	v.SetDefault("player.preview_viewport_padding", 10.0)
	v.SetDefault("player.max_url_pattern", 512)

	// -- Tours --
	v.SetDefault("tours.dir", "")
}

// ConfigureViper points v at the config file and environment. An explicit
// cfgFile wins; otherwise config.yaml is searched for in the working
// directory and in ~/.guidepost.
func ConfigureViper(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		home, err := homedir.Dir()
		if err != nil {
			return fmt.Errorf("failed to resolve home directory: %w", err)
		}
		v.AddConfigPath(filepath.Join(home, ".guidepost"))
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return nil
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if cfg.ToursCfg.Dir != "" {
		dir, err := homedir.Expand(cfg.ToursCfg.Dir)
		if err != nil {
			return nil, fmt.Errorf("invalid tours.dir: %w", err)
		}
		cfg.ToursCfg.Dir = dir
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for sane values.
func (c *Config) Validate() error {
	if err := c.PlayerCfg.Validate(); err != nil {
		return fmt.Errorf("player configuration invalid: %w", err)
	}
	if err := c.BrowserCfg.Validate(); err != nil {
		return fmt.Errorf("browser configuration invalid: %w", err)
	}
	return nil
}

// Validate checks the playback settings.
func (p *PlayerConfig) Validate() error {
	switch p.Mode {
	case "standalone", "preview":
	default:
		return fmt.Errorf("mode must be \"standalone\" or \"preview\", got %q", p.Mode)
	}
	for name, d := range map[string]time.Duration{
		"transition_delay":  p.TransitionDelay,
		"tooltip_delay":     p.TooltipDelay,
		"settle_delay":      p.SettleDelay,
		"relayout_interval": p.RelayoutInterval,
	} {
		if d < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
	}
	if p.BlockerPadding < 0 || p.TooltipGap < 0 || p.ViewportPadding < 0 || p.PreviewViewportPadding < 0 {
		return fmt.Errorf("layout paddings must not be negative")
	}
	if p.MaxURLPattern <= 0 {
		return fmt.Errorf("max_url_pattern must be a positive integer")
	}
	return nil
}

// Validate checks the browser settings.
func (b *BrowserConfig) Validate() error {
	w, h := b.ViewportSize()
	if w < 0 || h < 0 {
		return fmt.Errorf("viewport dimensions must not be negative")
	}
	if b.NavigationTimeout <= 0 {
		return fmt.Errorf("navigation_timeout must be a positive duration")
	}
	if b.StartupTimeout <= 0 {
		return fmt.Errorf("startup_timeout must be a positive duration")
	}
	return nil
}
