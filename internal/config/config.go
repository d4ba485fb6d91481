// Package config provides configuration management for brandkit using Viper
// for loading from files, environment variables, and command-line flags.
//
// The configuration system supports YAML files, environment variable overrides
// with the BRANDKIT_ prefix, defaults for every key, and validation. It covers
// the asset pipeline, the HTTP server, the upload store, build trees, the
// asset watcher and logging.
package config

import (
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/conneroisu/brandkit/internal/build"
	"github.com/conneroisu/brandkit/internal/errors"
	"github.com/conneroisu/brandkit/internal/logging"
)

// EnvPrefix is the prefix of environment variable overrides.
const EnvPrefix = "BRANDKIT"

// FileName is the configuration file looked up in the working directory.
const FileName = ".brandkit"

type Config struct {
	Pipeline build.Config  `mapstructure:"pipeline" yaml:"pipeline"`
	Cache    CacheConfig   `mapstructure:"cache" yaml:"cache"`
	Server   ServerConfig  `mapstructure:"server" yaml:"server"`
	Storage  StorageConfig `mapstructure:"storage" yaml:"storage"`
	Build    BuildConfig   `mapstructure:"build" yaml:"build"`
	Watch    WatchConfig   `mapstructure:"watch" yaml:"watch"`
	Log      LogConfig     `mapstructure:"log" yaml:"log"`
}

// CacheConfig sizes the transform cache shared by pipeline runs. A zero
// max_bytes disables the cache.
type CacheConfig struct {
	MaxBytes int64         `mapstructure:"max_bytes" yaml:"max_bytes"`
	TTL      time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

type ServerConfig struct {
	Host           string   `mapstructure:"host" yaml:"host"`
	Port           int      `mapstructure:"port" yaml:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	MaxUploadBytes int64    `mapstructure:"max_upload_bytes" yaml:"max_upload_bytes"`
	// RateLimit is requests per minute per client on mutating endpoints;
	// zero disables limiting.
	RateLimit      int      `mapstructure:"rate_limit" yaml:"rate_limit"`
	RateLimitBurst int      `mapstructure:"rate_limit_burst" yaml:"rate_limit_burst"`
}

// Storage backends.
const (
	BackendLocal = "local"
	BackendS3    = "s3"
)

type StorageConfig struct {
	Backend      string `mapstructure:"backend" yaml:"backend"`
	BaseDir      string `mapstructure:"base_dir" yaml:"base_dir"`
	Bucket       string `mapstructure:"bucket" yaml:"bucket"`
	Region       string `mapstructure:"region" yaml:"region"`
	Prefix       string `mapstructure:"prefix" yaml:"prefix"`
	Endpoint     string `mapstructure:"endpoint" yaml:"endpoint"`
	UsePathStyle bool   `mapstructure:"use_path_style" yaml:"use_path_style"`
}

type BuildConfig struct {
	WorkDir     string `mapstructure:"work_dir" yaml:"work_dir"`
	TemplateDir string `mapstructure:"template_dir" yaml:"template_dir"`
	ReportDir   string `mapstructure:"report_dir" yaml:"report_dir"`
	KeepFailed  bool   `mapstructure:"keep_failed" yaml:"keep_failed"`
}

type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// SetDefaults registers the default of every key on v. Registering all keys
// is also what lets AutomaticEnv overrides reach Unmarshal.
func SetDefaults(v *viper.Viper) {
	p := build.DefaultConfig()
	v.SetDefault("pipeline.enable_optimization", p.EnableOptimization)
	v.SetDefault("pipeline.quality_threshold", p.QualityThreshold)
	v.SetDefault("pipeline.max_processing_time", p.MaxProcessingTime)
	v.SetDefault("pipeline.output_formats", p.OutputFormats)
	v.SetDefault("pipeline.compression_level", p.CompressionLevel)
	v.SetDefault("pipeline.workers", 0)

	v.SetDefault("cache.max_bytes", int64(64<<20))
	v.SetDefault("cache.ttl", time.Hour)

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.max_upload_bytes", int64(10<<20))
	v.SetDefault("server.rate_limit", 120)
	v.SetDefault("server.rate_limit_burst", 20)

	v.SetDefault("storage.backend", BackendLocal)
	v.SetDefault("storage.base_dir", ".brandkit/uploads")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.region", "")
	v.SetDefault("storage.prefix", "")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.use_path_style", false)

	v.SetDefault("build.work_dir", ".brandkit/builds")
	v.SetDefault("build.template_dir", "")
	v.SetDefault("build.report_dir", ".brandkit/reports")
	v.SetDefault("build.keep_failed", false)

	v.SetDefault("watch.debounce", 300*time.Millisecond)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Configure prepares v for brandkit: defaults, the BRANDKIT_ environment
// prefix and the configuration file name.
func Configure(v *viper.Viper) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	v.SetConfigName(FileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
}

// Load reads the configuration held by the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads and validates the configuration held by v.
func LoadFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.WrapConfig(err, errors.ErrCodeConfigInvalid, "cannot decode configuration")
	}

	// Slices set through env or flags arrive as a single string.
	if formats := v.GetStringSlice("pipeline.output_formats"); len(formats) > 0 {
		config.Pipeline.OutputFormats = splitList(formats)
	}
	if origins := v.GetStringSlice("server.allowed_origins"); len(origins) > 0 {
		config.Server.AllowedOrigins = splitList(origins)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// PipelineConfig returns the asset pipeline configuration.
func (c *Config) PipelineConfig() build.Config {
	return c.Pipeline
}

// NewCache creates the transform cache described by the cache section, or
// nil when caching is disabled.
func (c *Config) NewCache() *build.TransformCache {
	if c.Cache.MaxBytes <= 0 {
		return nil
	}
	return build.NewTransformCache(c.Cache.MaxBytes, c.Cache.TTL)
}

// LoggerConfig returns the logger configuration of the log section.
func (c *Config) LoggerConfig() *logging.LoggerConfig {
	cfg := logging.DefaultConfig()
	if level, err := logging.ParseLevel(c.Log.Level); err == nil {
		cfg.Level = level
	}
	cfg.Format = c.Log.Format
	return cfg
}

// Addr is the listen address of the HTTP server.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}
