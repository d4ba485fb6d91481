//go:build property

package transform

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestScoreProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(1234)
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("score stays within 0..100", prop.ForAll(
		func(adequacy float64, fidelities []float64, alphaLost, derived bool) bool {
			s := Score(ScoreInput{Adequacy: adequacy, Fidelities: fidelities, AlphaLost: alphaLost, DerivedMask: derived})
			return s >= 0 && s <= 100
		},
		gen.Float64Range(-2, 3),
		gen.SliceOf(gen.Float64Range(-50, 150)),
		gen.Bool(),
		gen.Bool(),
	))

	properties.Property("higher adequacy never lowers the score", prop.ForAll(
		func(a, b, fidelity float64) bool {
			lo, hi := a, b
			if lo > hi {
				lo, hi = hi, lo
			}
			f := []float64{fidelity}
			return Score(ScoreInput{Adequacy: lo, Fidelities: f}) <= Score(ScoreInput{Adequacy: hi, Fidelities: f})
		},
		gen.Float64Range(0, 1),
		gen.Float64Range(0, 1),
		gen.Float64Range(0, 100),
	))

	properties.Property("higher fidelity never lowers the score", prop.ForAll(
		func(a, b, adequacy float64) bool {
			lo, hi := a, b
			if lo > hi {
				lo, hi = hi, lo
			}
			return Score(ScoreInput{Adequacy: adequacy, Fidelities: []float64{100, lo}}) <=
				Score(ScoreInput{Adequacy: adequacy, Fidelities: []float64{100, hi}})
		},
		gen.Float64Range(0, 100),
		gen.Float64Range(0, 100),
		gen.Float64Range(0, 1),
	))

	properties.Property("resource names are valid identifiers", prop.ForAll(
		func(name string) bool {
			out := ResourceName(name)
			if out == "" || out[0] < 'a' || out[0] > 'z' {
				return false
			}
			for _, r := range out {
				if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '_') {
					return false
				}
			}
			return true
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}
