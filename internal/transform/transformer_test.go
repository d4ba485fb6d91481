package transform

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/brandkit/internal/errors"
	"github.com/conneroisu/brandkit/internal/testutils"
	"github.com/conneroisu/brandkit/internal/types"
)

type mapCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMapCache() *mapCache { return &mapCache{data: make(map[string][]byte)} }

func (c *mapCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok
}

func (c *mapCache) Set(key string, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
}

type lenHasher struct{}

func (lenHasher) ContentKey(data []byte) string {
	return strconv.Itoa(len(data))
}

func newTransformer(t *testing.T, opts Options) *Transformer {
	t.Helper()
	if len(opts.Formats) == 0 {
		opts.Formats = []Format{FormatPNG}
	}
	tr, err := New(opts, nil)
	require.NoError(t, err)
	return tr
}

func logoSource(path string) types.AssetSource {
	return types.AssetSource{Field: types.FieldLogo, Name: "logo", Type: types.AssetTypeLogo, Path: path}
}

func TestNewRejectsBadOptions(t *testing.T) {
	_, err := New(Options{}, nil)
	assert.Error(t, err)

	_, err = New(Options{Formats: []Format{FormatPNG}, Encode: EncodeOptions{CompressionLevel: 12}}, nil)
	assert.Error(t, err)

	_, err = New(Options{Formats: []Format{FormatPNG}, Cache: newMapCache()}, nil)
	assert.Error(t, err)
}

func TestTransformLogoDensities(t *testing.T) {
	src := testutils.WritePNG(t, t.TempDir(), "logo.png", 512, 512, true)
	buildPath := t.TempDir()
	tr := newTransformer(t, Options{})

	res, err := tr.Transform(context.Background(), Request{
		BuildID:   "b1",
		BuildPath: buildPath,
		Source:    logoSource(src),
	})
	require.NoError(t, err)

	asset := res.Asset
	assert.Equal(t, types.AssetTypeLogo, asset.Type)
	assert.Equal(t, []string{"png"}, asset.Formats)
	assert.Len(t, asset.OutputPaths, 11)
	assert.Equal(t, 11, res.Variants)

	want := map[string]int{"mdpi": 48, "hdpi": 72, "xhdpi": 96, "xxhdpi": 144, "xxxhdpi": 192}
	for label, side := range want {
		assert.Equal(t, types.Dimensions{Width: side, Height: side}, asset.Sizes[label], label)

		path := filepath.Join(buildPath, ResourceDir, "mipmap-"+label, "ic_launcher.png")
		img, err := imaging.Open(path)
		require.NoError(t, err, label)
		assert.Equal(t, side, img.Bounds().Dx())
		assert.Equal(t, side, img.Bounds().Dy())
	}

	fg, err := imaging.Open(filepath.Join(buildPath, ResourceDir, "drawable-nodpi", AdaptiveForeground+".png"))
	require.NoError(t, err)
	assert.Equal(t, 432, fg.Bounds().Dx())
	assert.Equal(t, types.Dimensions{Width: 432, Height: 432}, asset.Sizes["adaptive"])

	assert.Equal(t, true, asset.Metadata["hasAlpha"])
	assert.Equal(t, "ic_launcher", asset.Metadata["resource"])
	assert.Equal(t, "png", asset.Metadata["sourceFormat"])
	assert.Equal(t, types.NewAssetID("b1", logoSource(src)), asset.AssetID)

	opt := asset.Optimization
	assert.Positive(t, opt.OriginalSize)
	assert.LessOrEqual(t, opt.FinalSize, opt.OriginalSize)
	assert.GreaterOrEqual(t, opt.CompressionRatio, 0.0)
	assert.LessOrEqual(t, opt.CompressionRatio, 100.0)
	assert.Equal(t, types.CompressionRatio(opt.OriginalSize, opt.FinalSize), opt.CompressionRatio)
	assert.Equal(t, 100.0, opt.QualityScore)
}

func TestTransformLogoRoundVariants(t *testing.T) {
	src := testutils.WritePNG(t, t.TempDir(), "logo.png", 256, 256, false)
	buildPath := t.TempDir()
	tr := newTransformer(t, Options{})

	res, err := tr.Transform(context.Background(), Request{BuildID: "b", BuildPath: buildPath, Source: logoSource(src)})
	require.NoError(t, err)

	want := map[string]int{"mdpi": 48, "hdpi": 72, "xhdpi": 96, "xxhdpi": 144, "xxxhdpi": 192}
	for label, side := range want {
		assert.Equal(t, types.Dimensions{Width: side, Height: side}, res.Asset.Sizes["round-"+label], label)

		img, err := imaging.Open(filepath.Join(buildPath, ResourceDir, "mipmap-"+label, RoundLauncher+".png"))
		require.NoError(t, err, label)
		require.Equal(t, side, img.Bounds().Dx())

		_, _, _, corner := img.At(0, 0).RGBA()
		_, _, _, center := img.At(side/2, side/2).RGBA()
		assert.Zero(t, corner, "%s corner should be masked", label)
		assert.Equal(t, uint32(0xffff), center, label)

		square, err := imaging.Open(filepath.Join(buildPath, ResourceDir, "mipmap-"+label, "ic_launcher.png"))
		require.NoError(t, err, label)
		_, _, _, squareCorner := square.At(0, 0).RGBA()
		assert.Equal(t, uint32(0xffff), squareCorner, "%s square icon keeps its corners", label)
	}
	assert.Equal(t, "ic_launcher", res.Asset.Metadata["resource"])
}

func TestTransformMultipleFormats(t *testing.T) {
	src := testutils.WritePNG(t, t.TempDir(), "logo.png", 512, 512, true)
	buildPath := t.TempDir()
	tr := newTransformer(t, Options{
		Formats: []Format{FormatPNG, FormatWebP, FormatJPEG},
		Encode:  EncodeOptions{Optimize: true, CompressionLevel: 6},
	})

	res, err := tr.Transform(context.Background(), Request{BuildID: "b", BuildPath: buildPath, Source: logoSource(src)})
	require.NoError(t, err)

	assert.Equal(t, []string{"png", "webp", "jpeg"}, res.Asset.Formats)
	assert.Len(t, res.Asset.OutputPaths, 33)
	assert.FileExists(t, filepath.Join(buildPath, ResourceDir, "mipmap-xxxhdpi", "ic_launcher.png"))
	assert.FileExists(t, filepath.Join(buildPath, VariantsDir, "mipmap-xxxhdpi", "ic_launcher.webp"))
	assert.FileExists(t, filepath.Join(buildPath, VariantsDir, "mipmap-mdpi", "ic_launcher.jpg"))
	assert.NoFileExists(t, filepath.Join(buildPath, ResourceDir, "mipmap-mdpi", "ic_launcher.jpg"))

	// JPEG drops the alpha channel of a transparent logo.
	assert.Less(t, res.Asset.Optimization.QualityScore, 100.0)
}

func TestTransformCustomImageNeverUpscales(t *testing.T) {
	src := testutils.WritePNG(t, t.TempDir(), "promo.png", 800, 400, false)
	buildPath := t.TempDir()
	tr := newTransformer(t, Options{})

	res, err := tr.Transform(context.Background(), Request{
		BuildID:   "b",
		BuildPath: buildPath,
		Source: types.AssetSource{
			Field: types.FieldCustomImages,
			Name:  "Promo Banner",
			Type:  types.AssetTypeCustom,
			Path:  src,
		},
	})
	require.NoError(t, err)

	assert.Equal(t, types.Dimensions{Width: 800, Height: 400}, res.Asset.Sizes["nodpi"])
	assert.FileExists(t, filepath.Join(buildPath, ResourceDir, "drawable-nodpi", "promo_banner.png"))
	assert.Equal(t, "fit", res.Asset.Metadata["resizeMode"])
}

func TestTransformResourceOverride(t *testing.T) {
	src := testutils.WritePNG(t, t.TempDir(), "b.png", 64, 64, false)
	buildPath := t.TempDir()
	tr := newTransformer(t, Options{})

	res, err := tr.Transform(context.Background(), Request{
		BuildPath: buildPath,
		Resource:  "badge_2",
		Source:    types.AssetSource{Field: types.FieldCustomImages, Name: "badge", Type: types.AssetTypeCustom, Path: src},
	})
	require.NoError(t, err)
	assert.Equal(t, "badge_2", res.Asset.Metadata["resource"])
	assert.FileExists(t, filepath.Join(buildPath, ResourceDir, "drawable-nodpi", "badge_2.png"))
}

func TestTransformSplashCovers(t *testing.T) {
	src := testutils.WriteJPEG(t, t.TempDir(), "splash.jpg", 400, 400)
	buildPath := t.TempDir()
	tr := newTransformer(t, Options{})

	res, err := tr.Transform(context.Background(), Request{
		BuildPath: buildPath,
		Source:    types.AssetSource{Field: types.FieldSplashBackground, Name: "splash", Type: types.AssetTypeSplash, Path: src},
	})
	require.NoError(t, err)

	img, err := imaging.Open(filepath.Join(buildPath, ResourceDir, "drawable-port-xxhdpi", "splash_image.png"))
	require.NoError(t, err)
	assert.Equal(t, 1080, img.Bounds().Dx())
	assert.Equal(t, 1920, img.Bounds().Dy())

	// 400px cannot cover 1080x1920 without upscaling.
	assert.Less(t, res.Asset.Optimization.QualityScore, 60.0)
	assert.Equal(t, "jpeg", res.Asset.Metadata["sourceFormat"])
}

func TestTransformIconDerivesMask(t *testing.T) {
	src := testutils.WriteJPEG(t, t.TempDir(), "icon.jpg", 96, 96)
	buildPath := t.TempDir()
	tr := newTransformer(t, Options{})

	res, err := tr.Transform(context.Background(), Request{
		BuildPath: buildPath,
		Source:    types.AssetSource{Field: types.FieldBrandIcon, Name: "brandIcon", Type: types.AssetTypeIcon, Path: src},
	})
	require.NoError(t, err)
	assert.Equal(t, true, res.Asset.Metadata["derivedMask"])

	img, err := imaging.Open(filepath.Join(buildPath, ResourceDir, "drawable-mdpi", "ic_stat_brand.png"))
	require.NoError(t, err)
	nrgba := imaging.Clone(img)
	for i := 0; i+3 < len(nrgba.Pix); i += 4 {
		if nrgba.Pix[i+3] == 0 {
			continue
		}
		require.Equal(t, uint8(255), nrgba.Pix[i], "mask pixels must be white")
		require.Equal(t, uint8(255), nrgba.Pix[i+1])
		require.Equal(t, uint8(255), nrgba.Pix[i+2])
	}
}

func TestTransformErrors(t *testing.T) {
	dir := t.TempDir()
	tr := newTransformer(t, Options{MaxSourceDimension: 100})

	tests := []struct {
		name string
		path string
		code string
		msg  string
	}{
		{
			name: "missing file",
			path: filepath.Join(dir, "nope.png"),
			code: errors.ErrCodeFileNotFound,
		},
		{
			name: "directory",
			path: dir,
			code: errors.ErrCodeNotRegularFile,
		},
		{
			name: "not an image",
			path: testutils.WriteFile(t, dir, "notes.txt", []byte("hello there, not pixels")),
			code: errors.ErrCodeUnsupportedFormat,
			msg:  "unsupported file format: text/plain",
		},
		{
			name: "corrupt png",
			path: testutils.WriteCorrupt(t, dir, "broken.png"),
			code: errors.ErrCodeDecodeFailed,
		},
		{
			name: "too many pixels",
			path: testutils.WritePNG(t, dir, "huge.png", 200, 50, false),
			code: errors.ErrCodeFileTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buildPath := t.TempDir()
			_, err := tr.Transform(context.Background(), Request{BuildPath: buildPath, Source: logoSource(tt.path)})
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, tt.code), "got %v", err)
			if tt.msg != "" {
				assert.Contains(t, err.Error(), tt.msg)
			}

			entries, _ := os.ReadDir(buildPath)
			assert.Empty(t, entries, "failed transforms must not write outputs")
		})
	}
}

func TestTransformUsesCache(t *testing.T) {
	src := testutils.WritePNG(t, t.TempDir(), "logo.png", 256, 256, true)
	cache := newMapCache()
	tr := newTransformer(t, Options{
		Formats: []Format{FormatPNG, FormatWebP},
		Cache:   cache,
		Hasher:  lenHasher{},
	})

	first, err := tr.Transform(context.Background(), Request{BuildPath: t.TempDir(), Source: logoSource(src)})
	require.NoError(t, err)
	assert.Zero(t, first.CacheHits)

	buildPath := t.TempDir()
	second, err := tr.Transform(context.Background(), Request{BuildPath: buildPath, Source: logoSource(src)})
	require.NoError(t, err)
	assert.Equal(t, second.Variants, second.CacheHits)
	assert.Equal(t, first.Asset.Optimization, second.Asset.Optimization)
	assert.Equal(t, first.Asset.Sizes, second.Asset.Sizes)
	assert.FileExists(t, filepath.Join(buildPath, VariantsDir, "mipmap-hdpi", "ic_launcher.webp"))
}
