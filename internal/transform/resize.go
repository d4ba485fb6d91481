package transform

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

// fitWithin scales sw x sh to fit inside mw x mh keeping the aspect ratio.
// Without upscale, sources that already fit are returned unchanged.
func fitWithin(sw, sh, mw, mh int, upscale bool) (int, int) {
	if !upscale && sw <= mw && sh <= mh {
		return sw, sh
	}
	scale := math.Min(float64(mw)/float64(sw), float64(mh)/float64(sh))
	w := int(math.Round(float64(sw) * scale))
	h := int(math.Round(float64(sh) * scale))
	return clampInt(w, 1, mw), clampInt(h, 1, mh)
}

// OutputDimensions returns the pixel size a source of sw x sh becomes for
// variant v under mode.
func OutputDimensions(mode ResizeMode, sw, sh int, v Variant) (int, int) {
	if mode == ModeFitNoUpscale {
		return fitWithin(sw, sh, v.Width, v.Height, false)
	}
	return v.Width, v.Height
}

// render produces the variant image for src.
func render(src image.Image, mode ResizeMode, v Variant, sourceHasAlpha bool) *image.NRGBA {
	img := resize(src, mode, v, sourceHasAlpha)
	if v.Round {
		circleMask(img)
	}
	return img
}

func resize(src image.Image, mode ResizeMode, v Variant, sourceHasAlpha bool) *image.NRGBA {
	b := src.Bounds()
	sw, sh := b.Dx(), b.Dy()

	switch mode {
	case ModeCover:
		return imaging.Fill(src, v.Width, v.Height, imaging.Center, imaging.Lanczos)
	case ModeFitNoUpscale:
		w, h := fitWithin(sw, sh, v.Width, v.Height, false)
		if w == sw && h == sh {
			return imaging.Clone(src)
		}
		return imaging.Resize(src, w, h, imaging.Lanczos)
	case ModeSilhouette:
		return silhouette(contain(src, v), sourceHasAlpha)
	default:
		return contain(src, v)
	}
}

func contain(src image.Image, v Variant) *image.NRGBA {
	b := src.Bounds()
	w, h := fitWithin(b.Dx(), b.Dy(), v.Width-2*v.Inset, v.Height-2*v.Inset, true)
	resized := imaging.Resize(src, w, h, imaging.Lanczos)
	canvas := imaging.New(v.Width, v.Height, color.NRGBA{})
	return imaging.PasteCenter(canvas, resized)
}

// circleMask clears every pixel outside the circle inscribed in img. Edge
// pixels are faded by their distance to the rim.
func circleMask(img *image.NRGBA) {
	b := img.Bounds()
	cx := float64(b.Dx()) / 2
	cy := float64(b.Dy()) / 2
	r := math.Min(cx, cy)
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			d := math.Hypot(float64(x)+0.5-cx, float64(y)+0.5-cy)
			coverage := clamp(r-d+0.5, 0, 1)
			if coverage == 1 {
				continue
			}
			i := img.PixOffset(b.Min.X+x, b.Min.Y+y)
			img.Pix[i+3] = uint8(math.Round(float64(img.Pix[i+3]) * coverage))
		}
	}
}

// silhouette converts img into a white mask suitable for status bar icons.
// Transparent sources keep their alpha; opaque sources derive alpha from
// darkness, so dark artwork on a light background stays visible.
func silhouette(img *image.NRGBA, sourceHasAlpha bool) *image.NRGBA {
	pix := img.Pix
	for i := 0; i+3 < len(pix); i += 4 {
		a := uint32(pix[i+3])
		if !sourceHasAlpha {
			lum := (299*uint32(pix[i]) + 587*uint32(pix[i+1]) + 114*uint32(pix[i+2])) / 1000
			a = (255 - lum) * a / 255
		}
		pix[i], pix[i+1], pix[i+2], pix[i+3] = 255, 255, 255, uint8(a)
	}
	return img
}

// hasAlpha reports whether any pixel of img is not fully opaque.
func hasAlpha(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return !o.Opaque()
	}
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if _, _, _, a := img.At(x, y).RGBA(); a != 0xffff {
				return true
			}
		}
	}
	return false
}

func colorSpace(img image.Image) string {
	switch img.ColorModel() {
	case color.GrayModel, color.Gray16Model:
		return "gray"
	case color.CMYKModel:
		return "cmyk"
	case color.YCbCrModel:
		return "ycbcr"
	default:
		return "srgb"
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
