package config

import (
	"path/filepath"
	"strings"

	"github.com/conneroisu/brandkit/internal/errors"
	"github.com/conneroisu/brandkit/internal/logging"
)

var dangerousChars = []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'"}

// Validate checks every section and reports all problems at once.
func (c *Config) Validate() error {
	var vec errors.ValidationErrorCollection

	if err := c.Pipeline.Validate(); err != nil {
		vec.AddField("pipeline", c.Pipeline.String(), errors.FormatError(err))
	}
	if c.Cache.MaxBytes < 0 {
		vec.AddField("cache.max_bytes", c.Cache.MaxBytes, "cache size must not be negative", "use 0 to disable the cache")
	}
	if c.Cache.TTL < 0 {
		vec.AddField("cache.ttl", c.Cache.TTL, "cache ttl must not be negative")
	}

	validateServer(&vec, c.Server)
	validateStorage(&vec, c.Storage)

	validatePath(&vec, "build.work_dir", c.Build.WorkDir, true)
	validatePath(&vec, "build.template_dir", c.Build.TemplateDir, false)
	validatePath(&vec, "build.report_dir", c.Build.ReportDir, false)

	if c.Watch.Debounce < 0 {
		vec.AddField("watch.debounce", c.Watch.Debounce, "debounce must not be negative")
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		vec.AddField("log.level", c.Log.Level, "unknown log level", "debug", "info", "warn", "error")
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		vec.AddField("log.format", c.Log.Format, "unknown log format", "text", "json")
	}

	if vec.HasErrors() {
		return vec.ToBrandkitError(errors.ErrCodeConfigInvalid)
	}
	return nil
}

func validateServer(vec *errors.ValidationErrorCollection, s ServerConfig) {
	// Port 0 asks the system for a free port.
	if s.Port < 0 || s.Port > 65535 {
		vec.AddField("server.port", s.Port, "port is not in valid range 0-65535")
	}
	for _, char := range append([]string{"\\"}, dangerousChars...) {
		if strings.Contains(s.Host, char) {
			vec.AddField("server.host", s.Host, "host contains dangerous character "+char)
			break
		}
	}
	if s.MaxUploadBytes <= 0 {
		vec.AddField("server.max_upload_bytes", s.MaxUploadBytes, "upload limit must be positive")
	}
	if s.RateLimit < 0 {
		vec.AddField("server.rate_limit", s.RateLimit, "rate limit must not be negative", "use 0 to disable")
	}
	if s.RateLimit > 0 && s.RateLimitBurst <= 0 {
		vec.AddField("server.rate_limit_burst", s.RateLimitBurst, "burst must be positive when rate limiting")
	}
	for _, origin := range s.AllowedOrigins {
		if strings.ContainsAny(origin, " \t/") {
			vec.AddField("server.allowed_origins", origin, "origins are host[:port] patterns", "e.g. localhost:3000")
		}
	}
}

func validateStorage(vec *errors.ValidationErrorCollection, s StorageConfig) {
	switch s.Backend {
	case BackendLocal:
		validatePath(vec, "storage.base_dir", s.BaseDir, true)
	case BackendS3:
		if s.Bucket == "" {
			vec.AddField("storage.bucket", s.Bucket, "bucket is required for the s3 backend")
		}
	default:
		vec.AddField("storage.backend", s.Backend, "unknown storage backend", BackendLocal, BackendS3)
	}
}

func validatePath(vec *errors.ValidationErrorCollection, field, path string, required bool) {
	if path == "" {
		if required {
			vec.AddField(field, path, "path is required")
		}
		return
	}
	for _, part := range strings.Split(filepath.ToSlash(filepath.Clean(path)), "/") {
		if part == ".." {
			vec.AddField(field, path, "path contains traversal")
			return
		}
	}
	for _, char := range dangerousChars {
		if strings.Contains(path, char) {
			vec.AddField(field, path, "path contains dangerous character "+char)
			return
		}
	}
}
