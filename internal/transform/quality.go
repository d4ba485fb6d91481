package transform

import "math"

// Score weights. They sum to 1 so the composite stays within [0,100].
const (
	resolutionWeight = 0.6
	fidelityWeight   = 0.3
	colorModeWeight  = 0.1

	// colorModeAlphaLost applies when a transparent source is written to a
	// format without an alpha channel.
	colorModeAlphaLost = 60.0
	// colorModeDerivedMask applies when a notification mask has to be derived
	// from luminance because the source carries no transparency.
	colorModeDerivedMask = 80.0
)

// ScoreInput carries the facts the quality heuristic looks at.
type ScoreInput struct {
	// Adequacy is source resolution over required resolution, capped at 1.
	Adequacy float64
	// Fidelities holds one value in [0,100] per produced format:
	// 100 for lossless encodings, the encoder quality otherwise.
	Fidelities []float64
	// AlphaLost is set when transparency was dropped by an output format.
	AlphaLost bool
	// DerivedMask is set when a silhouette was computed from luminance.
	DerivedMask bool
}

// Score computes a quality score in [0,100]. It never decreases when
// adequacy or any fidelity increases.
func Score(in ScoreInput) float64 {
	resolution := 100 * clamp(in.Adequacy, 0, 1)

	fidelity := 100.0
	if len(in.Fidelities) > 0 {
		var sum float64
		for _, f := range in.Fidelities {
			sum += clamp(f, 0, 100)
		}
		fidelity = sum / float64(len(in.Fidelities))
	}

	colorMode := 100.0
	switch {
	case in.AlphaLost:
		colorMode = colorModeAlphaLost
	case in.DerivedMask:
		colorMode = colorModeDerivedMask
	}

	score := resolutionWeight*resolution + fidelityWeight*fidelity + colorModeWeight*colorMode
	return round2(clamp(score, 0, 100))
}

// Adequacy returns how well a source of sw x sh pixels covers a target of
// tw x th pixels under mode, in [0,1].
func Adequacy(mode ResizeMode, sw, sh, tw, th int) float64 {
	if sw <= 0 || sh <= 0 || tw <= 0 || th <= 0 {
		return 0
	}
	rw := float64(sw) / float64(tw)
	rh := float64(sh) / float64(th)

	var ratio float64
	switch mode {
	case ModeCover:
		// Both axes must be covered.
		ratio = math.Min(rw, rh)
	case ModeFitNoUpscale:
		return 1
	default:
		// Contain: the dominant axis decides the upscale factor.
		ratio = math.Max(rw, rh)
	}
	return clamp(ratio, 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
