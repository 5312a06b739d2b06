package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackzampolin/tilebook/internal/mosaic"
	"github.com/jackzampolin/tilebook/internal/resolver"
)

// Config holds tilebook configuration.
// Stored at: ~/.tilebook/config.yaml
type Config struct {
	LogLevel string         `mapstructure:"log_level" yaml:"log_level"`
	Resolver ResolverConfig `mapstructure:"resolver" yaml:"resolver"`
	Download DownloadConfig `mapstructure:"download" yaml:"download"`
	Output   OutputConfig   `mapstructure:"output" yaml:"output"`
}

// ResolverConfig configures the tile resolver client.
type ResolverConfig struct {
	// URLTemplate uses {book_id}, {long_page_nr}, {page_nr}, {row} and {col}.
	URLTemplate    string  `mapstructure:"url_template" yaml:"url_template"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	RateLimit      float64 `mapstructure:"rate_limit" yaml:"rate_limit"` // Requests per second, 0 = unlimited
	UserAgent      string  `mapstructure:"user_agent" yaml:"user_agent"`
	HTTP2          bool    `mapstructure:"http2" yaml:"http2"`
}

// DownloadConfig controls how pages are discovered and fetched.
type DownloadConfig struct {
	Retries            int    `mapstructure:"retries" yaml:"retries"`         // Retry budget per page
	Concurrency        int    `mapstructure:"concurrency" yaml:"concurrency"` // Tiles fetched in parallel per page
	RepresentativePage int    `mapstructure:"representative_page" yaml:"representative_page"`
	FrontCover         string `mapstructure:"front_cover" yaml:"front_cover"`
	BackCover          string `mapstructure:"back_cover" yaml:"back_cover"`
	SkipCovers         bool   `mapstructure:"skip_covers" yaml:"skip_covers"`
	ProbeEachUnit      bool   `mapstructure:"probe_each_unit" yaml:"probe_each_unit"`
	RetryDelayMS       int    `mapstructure:"retry_delay_ms" yaml:"retry_delay_ms"`
	MaxGrid            int    `mapstructure:"max_grid" yaml:"max_grid"`     // Max tiles per grid side
	MaxLength          int    `mapstructure:"max_length" yaml:"max_length"` // Max pages the length search will accept
}

// OutputConfig controls the produced document.
type OutputConfig struct {
	Format      string `mapstructure:"format" yaml:"format"`       // "pdf" or "images"
	PageSize    string `mapstructure:"page_size" yaml:"page_size"` // e.g. "Letter", "A4"
	Dir         string `mapstructure:"dir" yaml:"dir"`             // Defaults to ~/.tilebook/exports
	KeepStaging bool   `mapstructure:"keep_staging" yaml:"keep_staging"`
	JPEGQuality int    `mapstructure:"jpeg_quality" yaml:"jpeg_quality"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Resolver: ResolverConfig{
			URLTemplate:    resolver.DefaultURLTemplate,
			TimeoutSeconds: 60,
			RateLimit:      0,
			UserAgent:      resolver.DefaultUserAgent,
		},
		Download: DownloadConfig{
			Retries:            mosaic.DefaultRetries,
			Concurrency:        4,
			RepresentativePage: 1,
			FrontCover:         resolver.FrontCover,
			BackCover:          resolver.BackCover,
			RetryDelayMS:       500,
			MaxGrid:            mosaic.DefaultMaxGridSide,
			MaxLength:          mosaic.DefaultMaxLength,
		},
		Output: OutputConfig{
			Format:      "pdf",
			PageSize:    "Letter",
			JPEGQuality: 90,
		},
	}
}

// Timeout returns the per-request timeout.
func (c ResolverConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// RetryDelay returns the delay before the first retry of a tile.
func (c DownloadConfig) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelayMS) * time.Millisecond
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if !strings.Contains(c.Resolver.URLTemplate, "{row}") || !strings.Contains(c.Resolver.URLTemplate, "{col}") {
		errs = append(errs, errors.New("resolver.url_template must contain {row} and {col}"))
	}
	if c.Resolver.TimeoutSeconds < 0 {
		errs = append(errs, fmt.Errorf("resolver.timeout_seconds must not be negative, got %d", c.Resolver.TimeoutSeconds))
	}
	if c.Resolver.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("resolver.rate_limit must not be negative, got %g", c.Resolver.RateLimit))
	}
	if c.Download.Retries < 0 {
		errs = append(errs, fmt.Errorf("download.retries must not be negative, got %d", c.Download.Retries))
	}
	if c.Download.RetryDelayMS < 0 {
		errs = append(errs, fmt.Errorf("download.retry_delay_ms must not be negative, got %d", c.Download.RetryDelayMS))
	}
	if c.Download.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("download.concurrency must be at least 1, got %d", c.Download.Concurrency))
	}
	if c.Download.RepresentativePage < 1 {
		errs = append(errs, fmt.Errorf("download.representative_page must be at least 1, got %d", c.Download.RepresentativePage))
	}
	if c.Download.MaxGrid < 1 {
		errs = append(errs, fmt.Errorf("download.max_grid must be at least 1, got %d", c.Download.MaxGrid))
	}
	switch strings.ToLower(c.Output.Format) {
	case "pdf", "images":
	default:
		errs = append(errs, fmt.Errorf("output.format must be pdf or images, got %q", c.Output.Format))
	}

	return errors.Join(errs...)
}
