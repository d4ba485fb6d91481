// Package testutils provides fixtures shared by package tests: partner
// source images, build trees and request documents.
package testutils

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/conneroisu/brandkit/internal/types"
)

// NewImage returns a w x h image with a diagonal gradient. When transparent
// is set, the left half fades to fully transparent.
func NewImage(w, h int, transparent bool) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			a := uint8(255)
			if transparent && x < w/2 {
				a = uint8(255 * x / (w / 2))
			}
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(255 * x / w),
				G: uint8(255 * y / h),
				B: 128,
				A: a,
			})
		}
	}
	return img
}

// EncodePNG returns img as PNG bytes.
func EncodePNG(t testing.TB, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// WritePNG writes a w x h PNG under dir and returns its path.
func WritePNG(t testing.TB, dir, name string, w, h int, transparent bool) string {
	t.Helper()
	return WriteFile(t, dir, name, EncodePNG(t, NewImage(w, h, transparent)))
}

// WriteJPEG writes an opaque w x h JPEG under dir and returns its path.
func WriteJPEG(t testing.TB, dir, name string, w, h int) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, NewImage(w, h, false), &jpeg.Options{Quality: 90}))
	return WriteFile(t, dir, name, buf.Bytes())
}

// WriteCorrupt writes a file that starts with a PNG signature but does not
// decode.
func WriteCorrupt(t testing.TB, dir, name string) string {
	t.Helper()
	data := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0xde, 0xad}, 64)...)
	return WriteFile(t, dir, name, data)
}

// WriteFile writes data to dir/name, creating parent directories.
func WriteFile(t testing.TB, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

// FullAssetSet writes one source for every asset slot plus two custom images
// and returns the populated PartnerAssets.
func FullAssetSet(t testing.TB, dir string) types.PartnerAssets {
	t.Helper()
	var custom types.CustomImages
	custom.Set("promo banner", WritePNG(t, dir, "promo.png", 800, 400, false))
	custom.Set("badge", WritePNG(t, dir, "badge.png", 128, 128, true))

	return types.PartnerAssets{
		Logo:             WritePNG(t, dir, "logo.png", 512, 512, true),
		SplashBackground: WriteJPEG(t, dir, "splash.jpg", 1080, 1920),
		BrandIcon:        WritePNG(t, dir, "icon.png", 96, 96, true),
		LogoSquare:       WritePNG(t, dir, "square.png", 256, 256, false),
		CustomImages:     custom,
	}
}

// CreateBuildTree lays out a minimal Android project and returns its root.
func CreateBuildTree(t testing.TB) string {
	t.Helper()
	root := t.TempDir()
	WriteFile(t, root, "app/src/main/AndroidManifest.xml", []byte(MinimalManifest))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "app/src/main/res/values"), 0o755))
	return root
}

// MinimalManifest is a small AndroidManifest used by build tree fixtures.
const MinimalManifest = `<?xml version="1.0" encoding="utf-8"?>
<manifest xmlns:android="http://schemas.android.com/apk/res/android">
    <application android:label="Sample">
        <activity android:name=".MainActivity" />
    </application>
</manifest>
`

// SampleBuildConfig returns a valid build configuration for partner id.
func SampleBuildConfig(id string) types.BuildConfig {
	return types.BuildConfig{
		BuildID:   "build-" + id,
		BuildType: types.BuildTypeDebug,
		PartnerID: id,
		PartnerConfig: types.PartnerConfig{
			AppName:     "Acme & Sons",
			PackageName: "com.acme." + id,
			Version:     "1.2.0",
			VersionCode: 12,
			API: types.APIConfig{
				BaseURL:     "https://api.acme.test",
				Environment: "staging",
			},
			Branding: types.Branding{
				PrimaryColor:    "#FF5722",
				SecondaryColor:  "#212121",
				BackgroundColor: "#FFFFFF",
				TextColor:       "#000000",
			},
			Features: map[string]bool{"payments": true, "chat": false},
		},
	}
}
