package transform

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
)

// EncodeOptions controls encoder effort and lossy quality.
type EncodeOptions struct {
	// Optimize enables maximum compression effort. When false, encoders run
	// with their default settings.
	Optimize bool
	// CompressionLevel is 0 (fastest, largest) to 9 (smallest).
	CompressionLevel int
}

const defaultLossyQuality = 90

// LossyQuality returns the quality used by lossy encoders, in [60,95].
// Higher compression levels trade quality for size.
func (o EncodeOptions) LossyQuality() int {
	if !o.Optimize {
		return defaultLossyQuality
	}
	q := 100 - 3*o.CompressionLevel
	if q > 95 {
		q = 95
	}
	if q < 60 {
		q = 60
	}
	return q
}

// Fidelity returns the fidelity score contribution of a format.
func (o EncodeOptions) Fidelity(f Format) float64 {
	if f == FormatPNG {
		return 100
	}
	return float64(o.LossyQuality())
}

func (o EncodeOptions) pngLevel() png.CompressionLevel {
	if !o.Optimize {
		return png.DefaultCompression
	}
	switch {
	case o.CompressionLevel <= 0:
		return png.NoCompression
	case o.CompressionLevel <= 3:
		return png.BestSpeed
	case o.CompressionLevel <= 6:
		return png.DefaultCompression
	default:
		return png.BestCompression
	}
}

// Encode writes img in format f.
func Encode(img image.Image, f Format, opts EncodeOptions) ([]byte, error) {
	var buf bytes.Buffer

	var err error
	switch f {
	case FormatPNG:
		err = imaging.Encode(&buf, img, imaging.PNG, imaging.PNGCompressionLevel(opts.pngLevel()))
	case FormatJPEG:
		err = imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(opts.LossyQuality()))
	case FormatWebP:
		err = webp.Encode(&buf, img, &webp.Options{
			Lossless: false,
			Quality:  float32(opts.LossyQuality()),
		})
	default:
		return nil, fmt.Errorf("unsupported output format %q", f)
	}
	if err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
