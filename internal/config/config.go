package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"
)

// EnvPrefix prefixes environment overrides, e.g. TILEBOOK_DOWNLOAD_RETRIES.
const EnvPrefix = "TILEBOOK"

// Manager handles loading and hot-reloading configuration.
type Manager struct {
	v *viper.Viper

	mu        sync.RWMutex
	config    *Config
	callbacks []func(*Config)
}

// NewManager creates a new config manager and loads initial config.
// An empty cfgFile searches ./config.yaml then ~/.tilebook/config.yaml;
// a missing file is not an error.
func NewManager(cfgFile string) (*Manager, error) {
	cm := &Manager{
		v:         viper.New(),
		callbacks: make([]func(*Config), 0),
	}

	if err := cm.initViper(cfgFile); err != nil {
		return nil, err
	}

	cfg, err := cm.load()
	if err != nil {
		return nil, err
	}
	cm.config = cfg

	return cm, nil
}

// initViper sets up viper with defaults and config file.
func (cm *Manager) initViper(cfgFile string) error {
	v := cm.v
	d := DefaultConfig()

	// Every key gets a default so AutomaticEnv can override it.
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("resolver.url_template", d.Resolver.URLTemplate)
	v.SetDefault("resolver.timeout_seconds", d.Resolver.TimeoutSeconds)
	v.SetDefault("resolver.rate_limit", d.Resolver.RateLimit)
	v.SetDefault("resolver.user_agent", d.Resolver.UserAgent)
	v.SetDefault("resolver.http2", d.Resolver.HTTP2)
	v.SetDefault("download.retries", d.Download.Retries)
	v.SetDefault("download.concurrency", d.Download.Concurrency)
	v.SetDefault("download.representative_page", d.Download.RepresentativePage)
	v.SetDefault("download.front_cover", d.Download.FrontCover)
	v.SetDefault("download.back_cover", d.Download.BackCover)
	v.SetDefault("download.skip_covers", d.Download.SkipCovers)
	v.SetDefault("download.probe_each_unit", d.Download.ProbeEachUnit)
	v.SetDefault("download.retry_delay_ms", d.Download.RetryDelayMS)
	v.SetDefault("download.max_grid", d.Download.MaxGrid)
	v.SetDefault("download.max_length", d.Download.MaxLength)
	v.SetDefault("output.format", d.Output.Format)
	v.SetDefault("output.page_size", d.Output.PageSize)
	v.SetDefault("output.dir", d.Output.Dir)
	v.SetDefault("output.keep_staging", d.Output.KeepStaging)
	v.SetDefault("output.jpeg_quality", d.Output.JPEGQuality)

	// Environment variables with TILEBOOK_ prefix
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Config file
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.tilebook")
	}

	// Try to read config file (not required)
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

// load parses the current viper state into a validated Config.
func (cm *Manager) load() (*Config, error) {
	var cfg Config
	if err := cm.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Get returns the current configuration (thread-safe).
func (cm *Manager) Get() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// ConfigFile returns the path of the loaded config file, or "" if none was found.
func (cm *Manager) ConfigFile() string {
	return cm.v.ConfigFileUsed()
}

// OnChange registers a callback for config changes.
func (cm *Manager) OnChange(fn func(*Config)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.callbacks = append(cm.callbacks, fn)
}

// WatchConfig enables hot-reloading of configuration. An edit that fails
// to parse or validate is logged and the previous config stays active.
func (cm *Manager) WatchConfig(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	cm.v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := cm.load()
		if err != nil {
			logger.Warn("ignoring config change", "file", e.Name, "error", err)
			return
		}

		cm.mu.Lock()
		cm.config = cfg
		callbacks := make([]func(*Config), len(cm.callbacks))
		copy(callbacks, cm.callbacks)
		cm.mu.Unlock()

		logger.Info("config reloaded", "file", e.Name)
		for _, fn := range callbacks {
			fn(cfg)
		}
	})
	cm.v.WatchConfig()
}

// WriteDefault writes the default configuration to the specified path.
func WriteDefault(path string) error {
	cfg := DefaultConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# Tilebook configuration
# Every key can be overridden from the environment with the TILEBOOK_ prefix,
# e.g. TILEBOOK_DOWNLOAD_RETRIES=5 or TILEBOOK_RESOLVER_RATE_LIMIT=2
# resolver.rate_limit is re-applied when this file changes during a download.

`)
	return os.WriteFile(path, append(header, data...), 0o644)
}
