// Package interpolation defines the contract for synthesizing the
// samples lost in a recording gap from the audio surrounding it.
package interpolation

// Interpolator produces gapLen synthetic samples bridging the signal in
// before (samples preceding the gap) and after (samples following it).
type Interpolator interface {
	Interpolate(before, after []float64, gapLen int) []float64
}

// Silence fills gaps with zero-amplitude samples. This matches what the
// recording hardware actually lost during the underflow and keeps gap
// locations audible for manual inspection.
type Silence struct{}

var _ Interpolator = Silence{}

func (Silence) Interpolate(before, after []float64, gapLen int) []float64 {
	return make([]float64, gapLen)
}
