// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package config handles pipeline configuration loading. Values start from
// built-in defaults, are overlaid by an optional YAML file, and finally by
// environment variables. It provides a centralized Config struct used by
// every command.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"assetforge/internal/paths"
)

// DefaultFile is the config file looked up in the working directory when no
// explicit path is given.
const DefaultFile = "assetforge.yaml"

// Image backends understood by the imaging package.
const (
	BackendNative = "native"
	BackendVips   = "vips"
)

// Config holds all pipeline configuration values.
type Config struct {
	// Paths
	InputDir  string `yaml:"input"`
	OutputDir string `yaml:"output"`

	// Runtime
	Env       string `yaml:"env"` // "development", "production", "testing"
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"` // "text" or "json"
	Jobs      int    `yaml:"jobs"`
	Strict    bool   `yaml:"strict"`

	// Images
	JPEGQuality   int    `yaml:"jpeg_quality"`
	PNGQualityMin int    `yaml:"png_quality_min"`
	PNGQualityMax int    `yaml:"png_quality_max"`
	EmitWebP      bool   `yaml:"emit_webp"`
	WebPQuality   int    `yaml:"webp_quality"`
	MaxImageWidth int    `yaml:"max_image_width"` // 0 = never downscale
	ImageBackend  string `yaml:"image_backend"`

	// Stylesheets
	SassBinary       string   `yaml:"sass_binary"`
	SassIncludePaths []string `yaml:"sass_include_paths"`

	// HTML fragments
	InlineFragments bool   `yaml:"inline_fragments"`
	HeaderFragment  string `yaml:"header_fragment"`
	FooterFragment  string `yaml:"footer_fragment"`

	// Valkey (Redis-compatible) incremental build cache
	CacheEnabled   bool   `yaml:"cache_enabled"`
	ValkeyHost     string `yaml:"valkey_host"`
	ValkeyPort     string `yaml:"valkey_port"`
	ValkeyPassword string `yaml:"valkey_password"`

	// S3-compatible publishing target
	S3Endpoint  string `yaml:"s3_endpoint"`
	S3Region    string `yaml:"s3_region"`
	S3AccessKey string `yaml:"s3_access_key"`
	S3SecretKey string `yaml:"s3_secret_key"`
	S3Bucket    string `yaml:"s3_bucket"`
	S3PublicURL string `yaml:"s3_public_url"`
	S3Prefix    string `yaml:"s3_prefix"`
	// Cache lifetime in seconds for published non-HTML files. Output names
	// carry no content hash, so a long lifetime delays updates.
	S3CacheMaxAge int `yaml:"s3_cache_max_age"`

	// Preview server
	ServeHost string `yaml:"serve_host"`
	ServePort string `yaml:"serve_port"`
}

// Defaults returns the configuration used when nothing is overridden. The
// quality values mirror the long-standing mozjpeg/pngquant settings of the
// site build.
func Defaults() *Config {
	return &Config{
		InputDir:       "assets",
		OutputDir:      "minified-assets",
		Env:            "development",
		LogLevel:       "info",
		LogFormat:      "text",
		Jobs:           1,
		JPEGQuality:    60,
		PNGQualityMin:  55,
		PNGQualityMax:  70,
		WebPQuality:    80,
		ImageBackend:   BackendNative,
		HeaderFragment: "header.html",
		FooterFragment: "footer.html",
		ValkeyHost:     "localhost",
		ValkeyPort:     "6379",
		S3Region:       "fsn1",
		S3CacheMaxAge:  300,
		ServeHost:      "127.0.0.1",
		ServePort:      "8080",
	}
}

// Load reads the configuration like Read and validates the result.
func Load(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read builds the configuration without validating it, for callers that
// apply further overrides (command-line flags) first. If path is empty,
// DefaultFile is read when it exists; an explicit path that does not exist
// is an error. Environment variables override file values.
func Read(path string) (*Config, error) {
	cfg := Defaults()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	if err := cfg.mergeFile(path, explicit); err != nil {
		return nil, err
	}

	cfg.mergeEnv()
	return cfg, nil
}

// mergeFile overlays YAML values onto cfg. Keys absent from the file keep
// their current value.
func (c *Config) mergeFile(path string, required bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

// mergeEnv overlays environment variables onto cfg.
func (c *Config) mergeEnv() {
	c.InputDir = envOrDefault("ASSETFORGE_INPUT", c.InputDir)
	c.OutputDir = envOrDefault("ASSETFORGE_OUTPUT", c.OutputDir)
	c.Env = envOrDefault("ASSETFORGE_ENV", c.Env)
	c.LogLevel = envOrDefault("ASSETFORGE_LOG_LEVEL", c.LogLevel)
	c.LogFormat = envOrDefault("ASSETFORGE_LOG_FORMAT", c.LogFormat)
	c.Jobs = envIntOrDefault("ASSETFORGE_JOBS", c.Jobs)
	c.Strict = envBoolOrDefault("ASSETFORGE_STRICT", c.Strict)

	c.JPEGQuality = envIntOrDefault("ASSETFORGE_JPEG_QUALITY", c.JPEGQuality)
	c.PNGQualityMin = envIntOrDefault("ASSETFORGE_PNG_QUALITY_MIN", c.PNGQualityMin)
	c.PNGQualityMax = envIntOrDefault("ASSETFORGE_PNG_QUALITY_MAX", c.PNGQualityMax)
	c.EmitWebP = envBoolOrDefault("ASSETFORGE_EMIT_WEBP", c.EmitWebP)
	c.WebPQuality = envIntOrDefault("ASSETFORGE_WEBP_QUALITY", c.WebPQuality)
	c.MaxImageWidth = envIntOrDefault("ASSETFORGE_MAX_IMAGE_WIDTH", c.MaxImageWidth)
	c.ImageBackend = envOrDefault("ASSETFORGE_IMAGE_BACKEND", c.ImageBackend)

	c.SassBinary = envOrDefault("ASSETFORGE_SASS_BINARY", c.SassBinary)
	if v := os.Getenv("ASSETFORGE_SASS_INCLUDE_PATHS"); v != "" {
		c.SassIncludePaths = strings.Split(v, string(os.PathListSeparator))
	}

	c.InlineFragments = envBoolOrDefault("ASSETFORGE_INLINE_FRAGMENTS", c.InlineFragments)
	c.HeaderFragment = envOrDefault("ASSETFORGE_HEADER_FRAGMENT", c.HeaderFragment)
	c.FooterFragment = envOrDefault("ASSETFORGE_FOOTER_FRAGMENT", c.FooterFragment)

	c.CacheEnabled = envBoolOrDefault("ASSETFORGE_CACHE", c.CacheEnabled)
	c.ValkeyHost = envOrDefault("VALKEY_HOST", c.ValkeyHost)
	c.ValkeyPort = envOrDefault("VALKEY_PORT", c.ValkeyPort)
	c.ValkeyPassword = envOrDefault("VALKEY_PASSWORD", c.ValkeyPassword)

	c.S3Endpoint = envOrDefault("S3_ENDPOINT", c.S3Endpoint)
	c.S3Region = envOrDefault("S3_REGION", c.S3Region)
	c.S3AccessKey = envOrDefault("S3_ACCESS_KEY", c.S3AccessKey)
	c.S3SecretKey = envOrDefault("S3_SECRET_KEY", c.S3SecretKey)
	c.S3Bucket = envOrDefault("S3_BUCKET", c.S3Bucket)
	c.S3PublicURL = envOrDefault("S3_PUBLIC_URL", c.S3PublicURL)
	c.S3Prefix = envOrDefault("S3_PREFIX", c.S3Prefix)
	c.S3CacheMaxAge = envIntOrDefault("S3_CACHE_MAX_AGE", c.S3CacheMaxAge)

	c.ServeHost = envOrDefault("ASSETFORGE_SERVE_HOST", c.ServeHost)
	c.ServePort = envOrDefault("ASSETFORGE_SERVE_PORT", c.ServePort)
}

// Validate checks value ranges and cross-field constraints.
func (c *Config) Validate() error {
	if c.InputDir == "" || c.OutputDir == "" {
		return fmt.Errorf("config: input and output directories must be set")
	}
	in, err := paths.Resolve(c.InputDir)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	out, err := paths.Resolve(c.OutputDir)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if in == out {
		return fmt.Errorf("config: input and output directories must differ (%s)", in)
	}
	if inside, err := paths.Contains(in, out); err != nil {
		return fmt.Errorf("config: %w", err)
	} else if inside {
		return fmt.Errorf("config: output directory %s must not be inside input directory %s", c.OutputDir, c.InputDir)
	}
	if c.Jobs < 1 {
		return fmt.Errorf("config: jobs must be at least 1, got %d", c.Jobs)
	}
	for name, q := range map[string]int{
		"jpeg_quality":    c.JPEGQuality,
		"png_quality_min": c.PNGQualityMin,
		"png_quality_max": c.PNGQualityMax,
		"webp_quality":    c.WebPQuality,
	} {
		if q < 1 || q > 100 {
			return fmt.Errorf("config: %s must be within 1..100, got %d", name, q)
		}
	}
	if c.PNGQualityMin > c.PNGQualityMax {
		return fmt.Errorf("config: png_quality_min (%d) exceeds png_quality_max (%d)", c.PNGQualityMin, c.PNGQualityMax)
	}
	if c.S3CacheMaxAge < 0 {
		return fmt.Errorf("config: s3_cache_max_age must not be negative")
	}
	if c.MaxImageWidth < 0 {
		return fmt.Errorf("config: max_image_width must not be negative")
	}
	switch c.ImageBackend {
	case BackendNative, BackendVips:
	default:
		return fmt.Errorf("config: unknown image_backend %q", c.ImageBackend)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("config: unknown log_format %q", c.LogFormat)
	}

	if c.Env == "production" {
		if _, err := os.Stat(c.InputDir); err != nil {
			return fmt.Errorf("config: ASSETFORGE_INPUT must exist in production: %w", err)
		}
	}
	return nil
}

// Addr returns the preview server listen address (host:port).
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%s", c.ServeHost, c.ServePort)
}

// ValkeyAddr returns the Valkey address (host:port).
func (c *Config) ValkeyAddr() string {
	return fmt.Sprintf("%s:%s", c.ValkeyHost, c.ValkeyPort)
}

// IsDev returns true if the pipeline runs in development mode.
func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// PublishEnabled reports whether enough S3 settings are present to upload.
func (c *Config) PublishEnabled() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != "" && c.S3Bucket != ""
}

// envOrDefault reads an environment variable, returning a fallback if unset or empty.
func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// envIntOrDefault is envOrDefault for integers. Unparsable values fall back.
func envIntOrDefault(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// envBoolOrDefault is envOrDefault for booleans ("1", "true", "yes", ...).
func envBoolOrDefault(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return fallback
}

