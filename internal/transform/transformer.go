// Package transform turns one partner source image into the size and format
// variants an Android build tree needs, and scores the result.
//
// Output layout under the build path:
//
//	app/src/main/res/<dir>/<resource>.<ext>        primary format
//	.brandkit/variants/<dir>/<resource>.<ext>      every other format
//
// Android refuses two files with the same resource name in one directory, so
// only the primary (first configured) format lands in the resource tree.
package transform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	_ "image/gif"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/conneroisu/brandkit/internal/errors"
	"github.com/conneroisu/brandkit/internal/fsutil"
	"github.com/conneroisu/brandkit/internal/logging"
	"github.com/conneroisu/brandkit/internal/types"
)

const (
	// ResourceDir is where primary variants are written, relative to the build path.
	ResourceDir = "app/src/main/res"
	// VariantsDir holds the non-primary formats, relative to the build path.
	VariantsDir = ".brandkit/variants"

	// DefaultMaxSourceBytes rejects sources larger than 10 MiB.
	DefaultMaxSourceBytes = 10 << 20
	// DefaultMaxSourceDimension rejects sources wider or taller than this.
	DefaultMaxSourceDimension = 4096
)

// Cache stores encoded variants by content key.
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte)
}

// Hasher derives a content key from source bytes. Keys are shared across
// builds and partners, so they must be collision resistant.
type Hasher interface {
	ContentKey(data []byte) string
}

// Options configures a Transformer.
type Options struct {
	// Formats lists output formats; the first one is primary.
	Formats []Format
	Encode  EncodeOptions

	MaxSourceBytes     int64
	MaxSourceDimension int

	// Cache and Hasher are optional and must be set together.
	Cache  Cache
	Hasher Hasher
}

// Request asks for one source to be transformed.
type Request struct {
	BuildID   string
	BuildPath string
	Source    types.AssetSource
	// Resource overrides the resource name chosen by the asset profile.
	Resource string
}

// Result is the outcome of a successful transform.
type Result struct {
	Asset    types.ProcessedAsset
	Warnings []string
	// Variants is the number of files written.
	Variants int
	// CacheHits counts variants served from the cache.
	CacheHits int
}

// Transformer converts single assets. It holds no per-request state and is
// safe for concurrent use.
type Transformer struct {
	opts   Options
	logger logging.Logger
}

// New creates a transformer. Unset limits fall back to the defaults.
func New(opts Options, logger logging.Logger) (*Transformer, error) {
	if len(opts.Formats) == 0 {
		return nil, fmt.Errorf("transform: at least one output format is required")
	}
	if opts.Encode.CompressionLevel < 0 || opts.Encode.CompressionLevel > 9 {
		return nil, fmt.Errorf("transform: compression level %d outside 0..9", opts.Encode.CompressionLevel)
	}
	if (opts.Cache == nil) != (opts.Hasher == nil) {
		return nil, fmt.Errorf("transform: cache and hasher must be configured together")
	}
	if opts.MaxSourceBytes <= 0 {
		opts.MaxSourceBytes = DefaultMaxSourceBytes
	}
	if opts.MaxSourceDimension <= 0 {
		opts.MaxSourceDimension = DefaultMaxSourceDimension
	}

	return &Transformer{
		opts:   opts,
		logger: logging.OrNop(logger).WithComponent("transform"),
	}, nil
}

// Formats returns the configured output formats.
func (t *Transformer) Formats() []Format {
	out := make([]Format, len(t.opts.Formats))
	copy(out, t.opts.Formats)
	return out
}

type sourceMeta struct {
	Width      int    `json:"w"`
	Height     int    `json:"h"`
	HasAlpha   bool   `json:"alpha"`
	ColorSpace string `json:"cs"`
}

// source lazily decodes the input image the first time a variant misses the cache.
type source struct {
	data []byte
	img  image.Image
	meta sourceMeta
}

func (s *source) decode() (image.Image, error) {
	if s.img != nil {
		return s.img, nil
	}
	img, err := imaging.Decode(bytes.NewReader(s.data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, err
	}
	s.img = img
	return img, nil
}

// Transform writes every variant of req.Source under req.BuildPath. Errors
// are BrandkitErrors tagged with the source key.
func (t *Transformer) Transform(ctx context.Context, req Request) (*Result, error) {
	src := req.Source
	asset := src.Key()

	info, err := os.Stat(src.Path)
	if err != nil {
		return nil, errors.ErrFileNotFound(asset, src.Path, err)
	}
	if !info.Mode().IsRegular() {
		return nil, errors.NewValidationError(errors.ErrCodeNotRegularFile, "asset path is not a regular file").
			WithAsset(asset).WithFile(src.Path)
	}
	if info.Size() > t.opts.MaxSourceBytes {
		return nil, errors.NewValidationError(errors.ErrCodeFileTooLarge,
			fmt.Sprintf("asset is %d bytes, limit is %d", info.Size(), t.opts.MaxSourceBytes)).
			WithAsset(asset).WithFile(src.Path)
	}

	data, err := os.ReadFile(src.Path)
	if err != nil {
		return nil, errors.WrapIO(err, errors.ErrCodeFileNotFound, "read asset").WithAsset(asset).WithFile(src.Path)
	}

	sourceFormat, mime, ok := DetectSourceFormat(data)
	if !ok {
		return nil, errors.ErrUnsupportedFormat(asset, mime).WithFile(src.Path)
	}

	in := &source{data: data}
	hash := ""
	if t.opts.Cache != nil {
		hash = t.opts.Hasher.ContentKey(data)
	}
	if err := t.loadProbe(in, hash); err != nil {
		return nil, errors.WrapProcessing(err, errors.ErrCodeDecodeFailed, "decode "+sourceFormat+" image", asset).
			WithFile(src.Path)
	}

	p := in.meta
	if p.Width > t.opts.MaxSourceDimension || p.Height > t.opts.MaxSourceDimension {
		return nil, errors.NewValidationError(errors.ErrCodeFileTooLarge,
			fmt.Sprintf("asset is %dx%d, limit is %dx%d", p.Width, p.Height,
				t.opts.MaxSourceDimension, t.opts.MaxSourceDimension)).
			WithAsset(asset).WithFile(src.Path)
	}

	profile := ProfileFor(src)
	if req.Resource != "" {
		profile.Resource = req.Resource
	}
	largest := profile.Largest()
	derivedMask := profile.Mode == ModeSilhouette && !p.HasAlpha

	result := &Result{
		Asset: types.ProcessedAsset{
			AssetID:      types.NewAssetID(req.BuildID, src),
			Type:         src.Type,
			Name:         src.Name,
			OriginalPath: src.Path,
			OutputPaths:  make([]string, 0, len(t.opts.Formats)*len(profile.Variants)),
			Formats:      make([]string, 0, len(t.opts.Formats)),
			Sizes:        make(map[string]types.Dimensions, len(profile.Variants)),
			Metadata: map[string]interface{}{
				"hasAlpha":     p.HasAlpha,
				"colorSpace":   p.ColorSpace,
				"sourceFormat": sourceFormat,
				"sourceWidth":  p.Width,
				"sourceHeight": p.Height,
				"resource":     profile.Resource,
				"resizeMode":   profile.Mode.String(),
			},
		},
	}
	if derivedMask {
		result.Asset.Metadata["derivedMask"] = true
	}

	rendered := make(map[string]*image.NRGBA, len(profile.Variants))
	var representative int64 = -1
	alphaLost := false
	fidelities := make([]float64, 0, len(t.opts.Formats))

	for i, format := range t.opts.Formats {
		baseDir := filepath.Join(req.BuildPath, VariantsDir)
		if i == 0 {
			baseDir = filepath.Join(req.BuildPath, ResourceDir)
		}

		for _, v := range profile.Variants {
			encoded, hit, err := t.variantBytes(in, hash, profile.Mode, v, format, rendered)
			if err != nil {
				return nil, errors.WrapProcessing(err, errors.ErrCodeEncodeFailed,
					fmt.Sprintf("encode %s variant %s", format, v.Label), asset).WithFile(src.Path)
			}
			if hit {
				result.CacheHits++
			}

			out := filepath.Join(baseDir, v.Dir, profile.ResourceFor(v)+"."+format.Extension())
			if err := fsutil.WriteFileAtomic(out, encoded, 0o644); err != nil {
				return nil, errors.WrapIO(err, errors.ErrCodeWriteFailed, "write variant").
					WithAsset(asset).WithFile(out)
			}

			result.Asset.OutputPaths = append(result.Asset.OutputPaths, out)
			result.Variants++
			if i == 0 {
				w, h := OutputDimensions(profile.Mode, p.Width, p.Height, v)
				result.Asset.Sizes[v.Label] = types.Dimensions{Width: w, Height: h}
				if v == largest {
					representative = int64(len(encoded))
				}
			}
		}

		result.Asset.Formats = append(result.Asset.Formats, string(format))
		fidelities = append(fidelities, t.opts.Encode.Fidelity(format))
		if p.HasAlpha && !format.SupportsAlpha() {
			alphaLost = true
		}
	}

	originalSize := int64(len(data))
	finalSize := representative
	if finalSize > originalSize {
		result.Asset.Metadata["grown"] = true
		result.Warnings = append(result.Warnings, fmt.Sprintf(
			"%s: largest %s variant (%d bytes) is bigger than the source (%d bytes)",
			asset, t.opts.Formats[0], finalSize, originalSize))
		finalSize = originalSize
	}

	score := Score(ScoreInput{
		Adequacy:    Adequacy(profile.Mode, p.Width, p.Height, largest.Width, largest.Height),
		Fidelities:  fidelities,
		AlphaLost:   alphaLost,
		DerivedMask: derivedMask,
	})

	result.Asset.Optimization = types.Optimization{
		OriginalSize:     originalSize,
		FinalSize:        finalSize,
		CompressionRatio: types.CompressionRatio(originalSize, finalSize),
		QualityScore:     score,
	}

	t.logger.Debug(ctx, "Asset transformed",
		"asset", asset,
		"variants", result.Variants,
		"cache_hits", result.CacheHits,
		"quality", score)

	return result, nil
}

func (t *Transformer) loadProbe(in *source, hash string) error {
	key := hash + "|meta"
	if hash != "" {
		if raw, ok := t.opts.Cache.Get(key); ok && json.Unmarshal(raw, &in.meta) == nil {
			return nil
		}
	}

	img, err := in.decode()
	if err != nil {
		return err
	}
	b := img.Bounds()
	in.meta = sourceMeta{
		Width:      b.Dx(),
		Height:     b.Dy(),
		HasAlpha:   hasAlpha(img),
		ColorSpace: colorSpace(img),
	}
	if in.meta.Width == 0 || in.meta.Height == 0 {
		return fmt.Errorf("image has no pixels")
	}

	if hash != "" {
		if raw, err := json.Marshal(in.meta); err == nil {
			t.opts.Cache.Set(key, raw)
		}
	}
	return nil
}

func (t *Transformer) variantBytes(
	in *source,
	hash string,
	mode ResizeMode,
	v Variant,
	format Format,
	rendered map[string]*image.NRGBA,
) ([]byte, bool, error) {
	key := ""
	if hash != "" {
		key = fmt.Sprintf("%s|%s|%s|%dx%d+%d|%s|%t|%d", hash, mode, v.Label, v.Width, v.Height, v.Inset,
			format, t.opts.Encode.Optimize, t.opts.Encode.CompressionLevel)
		if cached, ok := t.opts.Cache.Get(key); ok {
			return cached, true, nil
		}
	}

	img, ok := rendered[v.Label]
	if !ok {
		src, err := in.decode()
		if err != nil {
			return nil, false, err
		}
		img = render(src, mode, v, in.meta.HasAlpha)
		rendered[v.Label] = img
	}

	encoded, err := Encode(img, format, t.opts.Encode)
	if err != nil {
		return nil, false, err
	}
	if key != "" {
		t.opts.Cache.Set(key, encoded)
	}
	return encoded, false, nil
}
