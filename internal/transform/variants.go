package transform

import (
	"github.com/conneroisu/brandkit/internal/types"
)

// ResizeMode selects how a source is fitted into a variant.
type ResizeMode int

const (
	// ModeContain scales the image to fit and centers it on a transparent
	// canvas of exactly the variant size.
	ModeContain ResizeMode = iota
	// ModeCover scales the image to cover the variant and crops the overflow.
	ModeCover
	// ModeSilhouette is ModeContain followed by conversion to a white mask.
	ModeSilhouette
	// ModeFitNoUpscale shrinks the image to fit within the variant size and
	// never enlarges it.
	ModeFitNoUpscale
)

// String returns the mode name used in cache keys and metadata.
func (m ResizeMode) String() string {
	switch m {
	case ModeContain:
		return "contain"
	case ModeCover:
		return "cover"
	case ModeSilhouette:
		return "silhouette"
	case ModeFitNoUpscale:
		return "fit"
	default:
		return "unknown"
	}
}

// Variant is one required output size of an asset.
type Variant struct {
	// Label is the size-bucket label reported in ProcessedAsset.Sizes.
	Label string
	// Dir is the Android resource directory, e.g. mipmap-xxhdpi.
	Dir    string
	Width  int
	Height int
	// Resource overrides the profile resource name for this variant only.
	Resource string
	// Inset is transparent padding in pixels kept on every side.
	Inset int
	// Round masks the variant to a circle.
	Round bool
}

// Profile is the full output recipe for one asset type.
type Profile struct {
	Mode     ResizeMode
	Resource string
	Variants []Variant
}

// Largest returns the density bucket with the biggest pixel area. Variants
// with their own resource name are not density buckets and are skipped.
func (p Profile) Largest() Variant {
	var best Variant
	for _, v := range p.Variants {
		if v.Resource != "" {
			continue
		}
		if v.Width*v.Height > best.Width*best.Height {
			best = v
		}
	}
	return best
}

// AdaptiveForeground is the drawable referenced by the adaptive launcher icon.
const AdaptiveForeground = "ic_launcher_foreground"

// RoundLauncher is the legacy round launcher icon.
const RoundLauncher = "ic_launcher_round"

// ResourceFor returns the resource name variant v is written under.
func (p Profile) ResourceFor(v Variant) string {
	if v.Resource != "" {
		return v.Resource
	}
	return p.Resource
}

// CustomMaxSide bounds custom images; they are never upscaled.
const CustomMaxSide = 2048

func densities(prefix string, sizes [5]int) []Variant {
	labels := [5]string{"mdpi", "hdpi", "xhdpi", "xxhdpi", "xxxhdpi"}
	out := make([]Variant, 0, len(labels))
	for i, label := range labels {
		out = append(out, Variant{
			Label:  label,
			Dir:    prefix + "-" + label,
			Width:  sizes[i],
			Height: sizes[i],
		})
	}
	return out
}

func launcherVariants() []Variant {
	sizes := [5]int{48, 72, 96, 144, 192}
	out := densities("mipmap", sizes)
	for _, v := range densities("mipmap", sizes) {
		v.Label = "round-" + v.Label
		v.Resource = RoundLauncher
		v.Round = true
		out = append(out, v)
	}
	return append(out, Variant{
		// Adaptive icon foreground: 108dp at xxxhdpi with the logo kept
		// inside the 72dp safe zone.
		Label:    "adaptive",
		Dir:      "drawable-nodpi",
		Width:    432,
		Height:   432,
		Resource: AdaptiveForeground,
		Inset:    72,
	})
}

var profiles = map[types.AssetType]Profile{
	types.AssetTypeLogo: {
		Mode:     ModeContain,
		Resource: "ic_launcher",
		Variants: launcherVariants(),
	},
	types.AssetTypeSplash: {
		Mode:     ModeCover,
		Resource: "splash_image",
		Variants: []Variant{
			{Label: "hdpi", Dir: "drawable-port-hdpi", Width: 480, Height: 800},
			{Label: "xhdpi", Dir: "drawable-port-xhdpi", Width: 720, Height: 1280},
			{Label: "xxhdpi", Dir: "drawable-port-xxhdpi", Width: 1080, Height: 1920},
		},
	},
	types.AssetTypeIcon: {
		Mode:     ModeSilhouette,
		Resource: "ic_stat_brand",
		Variants: densities("drawable", [5]int{24, 36, 48, 72, 96}),
	},
	types.AssetTypeBrand: {
		Mode:     ModeContain,
		Resource: "brand_mark",
		Variants: densities("drawable", [5]int{64, 96, 128, 192, 256}),
	},
}

// ProfileFor returns the output recipe for an asset. Custom images are named
// after their sanitized key.
func ProfileFor(src types.AssetSource) Profile {
	if p, ok := profiles[src.Type]; ok {
		return p
	}
	return Profile{
		Mode:     ModeFitNoUpscale,
		Resource: CustomResourceName(src.Name),
		Variants: []Variant{
			{Label: "nodpi", Dir: "drawable-nodpi", Width: CustomMaxSide, Height: CustomMaxSide},
		},
	}
}
