// Package config manages application configuration from various sources.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/marcozac/go-jsonc"
	"github.com/spf13/viper"
)

// Server defines how the backend is reached.
type Server struct {
	URL string `json:"url,omitempty" mapstructure:"url"`
}

// Status defines the readiness polling behaviour.
type Status struct {
	Interval time.Duration `json:"interval,omitempty" mapstructure:"interval"`
}

// Ingest defines which local files may be uploaded.
type Ingest struct {
	Accept []string `json:"accept,omitempty" mapstructure:"accept"`
}

// Data defines storage configuration.
type Data struct {
	Directory string `json:"directory,omitempty" mapstructure:"directory"`
}

type Transcript struct {
	Enabled bool `json:"enabled" mapstructure:"enabled"`
}

// TUIConfig defines the configuration for the Terminal User Interface.
type TUIConfig struct {
	Markdown bool `json:"markdown" mapstructure:"markdown"`
}

// Config is the main configuration structure for the application.
type Config struct {
	Server     Server     `json:"server" mapstructure:"server"`
	Status     Status     `json:"status" mapstructure:"status"`
	Ingest     Ingest     `json:"ingest" mapstructure:"ingest"`
	Data       Data       `json:"data" mapstructure:"data"`
	Transcript Transcript `json:"transcript" mapstructure:"transcript"`
	TUI        TUIConfig  `json:"tui" mapstructure:"tui"`
	WorkingDir string     `json:"wd,omitempty" mapstructure:"wd"`
	Debug      bool       `json:"debug,omitempty" mapstructure:"debug"`
}

const (
	DefaultServerURL     = "http://localhost:8000"
	defaultDataDirectory = ".medibot"
	defaultLogLevel      = "info"
	defaultInterval      = 5 * time.Second
	appName              = "medibot"
	localConfigName      = ".medibot.jsonc"
)

var defaultAccept = []string{"*.pdf", "*.txt"}

// Global configuration instance
var cfg *Config

// Load initializes the configuration from environment variables and config files.
// If debug is true, debug mode is enabled and log level is set to debug.
// Flags bound with viper.BindPFlag before Load take precedence over files.
func Load(workingDir string, debug bool) (*Config, error) {
	if cfg != nil {
		return cfg, nil
	}

	cfg = &Config{
		WorkingDir: workingDir,
	}

	configureViper()
	setDefaults(debug)

	// Read global config
	if err := readConfig(viper.ReadInConfig()); err != nil {
		return cfg, err
	}

	if err := mergeLocalConfig(workingDir); err != nil {
		return cfg, err
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return cfg, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.WorkingDir = workingDir

	defaultLevel := slog.LevelInfo
	if cfg.Debug {
		defaultLevel = slog.LevelDebug
	}
	slog.SetLogLoggerLevel(defaultLevel)

	if err := Validate(); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// configureViper sets up viper's configuration paths and environment variables.
func configureViper() {
	viper.SetConfigName(fmt.Sprintf(".%s", appName))
	viper.SetConfigType("json")
	viper.AddConfigPath("$HOME")
	viper.AddConfigPath(fmt.Sprintf("$XDG_CONFIG_HOME/%s", appName))
	viper.AddConfigPath(fmt.Sprintf("$HOME/.config/%s", appName))
	viper.SetEnvPrefix(strings.ToUpper(appName))
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

// setDefaults configures default values for configuration options.
func setDefaults(debug bool) {
	viper.SetDefault("server.url", DefaultServerURL)
	viper.SetDefault("status.interval", defaultInterval)
	viper.SetDefault("ingest.accept", defaultAccept)
	viper.SetDefault("data.directory", defaultDataDirectory)
	viper.SetDefault("transcript.enabled", true)
	viper.SetDefault("tui.markdown", true)

	if debug {
		viper.SetDefault("debug", true)
		viper.Set("log.level", "debug")
	} else {
		viper.SetDefault("debug", false)
		viper.SetDefault("log.level", defaultLogLevel)
	}
}

// readConfig handles the result of reading a configuration file.
func readConfig(err error) error {
	if err == nil {
		return nil
	}

	// It's okay if the config file doesn't exist
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		return nil
	}

	return fmt.Errorf("failed to read config: %w", err)
}

// mergeLocalConfig merges the .medibot.jsonc of the working directory over
// the global config. Comments are allowed in that file.
func mergeLocalConfig(workingDir string) error {
	path := filepath.Join(workingDir, localConfigName)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	local := map[string]any{}
	if err := jsonc.Unmarshal(data, &local); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return viper.MergeConfigMap(local)
}

// Validate checks if the configuration is valid.
func Validate() error {
	if cfg == nil {
		return fmt.Errorf("config not loaded")
	}

	u, err := url.Parse(cfg.Server.URL)
	if err != nil {
		return fmt.Errorf("invalid server url %q: %w", cfg.Server.URL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid server url %q: want http(s)://host", cfg.Server.URL)
	}
	if cfg.Status.Interval <= 0 {
		return fmt.Errorf("status.interval must be positive, got %s", cfg.Status.Interval)
	}
	for _, pattern := range cfg.Ingest.Accept {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("invalid ingest.accept pattern %q", pattern)
		}
	}
	return nil
}

// Get returns the current configuration.
// It's safe to call this function multiple times.
func Get() *Config {
	return cfg
}

// WorkingDirectory returns the current working directory from the configuration.
func WorkingDirectory() string {
	if cfg == nil {
		panic("config not loaded")
	}
	return cfg.WorkingDir
}

// Reset drops the loaded configuration and every viper setting.
func Reset() {
	cfg = nil
	viper.Reset()
}
