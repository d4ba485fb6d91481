package build

import (
	"fmt"
	"runtime"
	"time"

	"github.com/conneroisu/brandkit/internal/errors"
	"github.com/conneroisu/brandkit/internal/transform"
)

// Config controls an asset pipeline.
type Config struct {
	// EnableOptimization toggles maximum encoder effort. Images are resized
	// either way.
	EnableOptimization bool `json:"enableOptimization" yaml:"enable_optimization" mapstructure:"enable_optimization"`
	// QualityThreshold is the per-asset score below which a warning is raised.
	QualityThreshold float64 `json:"qualityThreshold" yaml:"quality_threshold" mapstructure:"quality_threshold"`
	// MaxProcessingTime is a soft budget checked before each asset starts.
	// Zero disables the budget.
	MaxProcessingTime time.Duration `json:"maxProcessingTime" yaml:"max_processing_time" mapstructure:"max_processing_time"`
	// OutputFormats lists the formats produced for every asset. The first
	// one is written into the Android resource tree.
	OutputFormats []string `json:"outputFormats" yaml:"output_formats" mapstructure:"output_formats"`
	// CompressionLevel is 0 (fastest) to 9 (smallest).
	CompressionLevel int `json:"compressionLevel" yaml:"compression_level" mapstructure:"compression_level"`
	// Workers bounds concurrent asset transforms within one run.
	Workers int `json:"workers" yaml:"workers" mapstructure:"workers"`
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		EnableOptimization: true,
		QualityThreshold:   85,
		MaxProcessingTime:  60 * time.Second,
		OutputFormats:      []string{"png", "webp"},
		CompressionLevel:   9,
		Workers:            runtime.NumCPU(),
	}
}

// Validate rejects malformed configuration.
func (c Config) Validate() error {
	var vec errors.ValidationErrorCollection

	if c.MaxProcessingTime < 0 {
		vec.AddField("maxProcessingTime", c.MaxProcessingTime, "processing time budget must not be negative")
	}
	if c.QualityThreshold < 0 || c.QualityThreshold > 100 {
		vec.AddField("qualityThreshold", c.QualityThreshold, "quality threshold must be within 0..100")
	}
	if c.CompressionLevel < 0 || c.CompressionLevel > 9 {
		vec.AddField("compressionLevel", c.CompressionLevel, "compression level must be within 0..9")
	}
	if c.Workers < 0 {
		vec.AddField("workers", c.Workers, "worker count must not be negative", "use 0 for one worker per CPU")
	}
	if _, err := transform.ParseFormats(c.OutputFormats); err != nil {
		vec.AddField("outputFormats", c.OutputFormats, err.Error(), "supported formats: png, webp, jpeg")
	}

	if vec.HasErrors() {
		return vec.ToBrandkitError(errors.ErrCodeConfigInvalid)
	}
	return nil
}

func (c Config) workers() int {
	if c.Workers > 0 {
		return c.Workers
	}
	if n := runtime.NumCPU(); n > 0 {
		return n
	}
	return 1
}

func (c Config) String() string {
	return fmt.Sprintf("formats=%v optimize=%t level=%d threshold=%.0f budget=%s workers=%d",
		c.OutputFormats, c.EnableOptimization, c.CompressionLevel, c.QualityThreshold,
		c.MaxProcessingTime, c.workers())
}
