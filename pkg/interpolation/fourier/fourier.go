// Package fourier implements spectral gap filling: the tonal content
// on each side of a gap is estimated with an FFT, projected into the
// gap as a sum of sinusoids, and the two projections are cross-faded.
package fourier

import (
	"math"

	"github.com/brettbuddin/fourier"

	"github.com/commgame/audiorepair/pkg/interpolation"
)

const (
	// maxWindow caps the number of samples analyzed on each side of
	// the gap. 1024 keeps the FFT cheap while resolving tones down to
	// ~43 Hz at 44.1 kHz.
	maxWindow = 1024

	// minWindow is the smallest context in which a spectral estimate
	// is still meaningful; with less, the fill degrades to silence.
	minWindow = 4

	// peakSensitivity is how far above the mean magnitude a bin must
	// stand to count as a tonal peak rather than noise floor.
	peakSensitivity = 2.5

	// spectrumScale converts two-sided forward-FFT magnitudes back to
	// real amplitudes for synthesis.
	spectrumScale = 2.0
)

// Interpolator fills gaps using a bidirectional spectral sieve.
//
// Each side of the gap contributes an extension: the side's window is
// transformed, bins that stand out as local maxima above a dynamic
// threshold are kept, and those sinusoids are continued into the gap
// with their original phase. The forward and backward extensions are
// blended with a cubic weight (3t²−2t³) and a linear trend correction
// pins the result to the actual boundary samples, so the stitch points
// carry no discontinuity.
type Interpolator struct{}

var _ interpolation.Interpolator = (*Interpolator)(nil)

func New() *Interpolator {
	return &Interpolator{}
}

func (ip *Interpolator) Interpolate(before, after []float64, gapLen int) []float64 {
	if gapLen <= 0 {
		return nil
	}
	if len(before) < minWindow || len(after) < minWindow {
		return make([]float64, gapLen)
	}

	n := min(len(before), len(after), maxWindow)
	n = floorPowerOfTwo(n)

	windowBefore := before[len(before)-n:]
	windowAfter := after[:n]

	forward := projectTones(windowBefore, gapLen, true)
	backward := projectTones(windowAfter, gapLen, false)

	vStart := windowBefore[n-1]
	vEnd := windowAfter[0]
	startDiff := forward[0] - vStart
	endDiff := backward[gapLen-1] - vEnd

	result := make([]float64, gapLen)
	for i := range result {
		t := float64(i+1) / float64(gapLen+1)
		w := t * t * (3 - 2*t)

		val := (1-w)*forward[i] + w*backward[i]
		val -= (1-w)*startDiff + w*endDiff
		result[i] = val
	}
	return result
}

func floorPowerOfTwo(n int) int {
	p := 1
	for p*2 <= n {
		p *= 2
	}
	return p
}

type tone struct {
	bin   int
	coeff complex128
	mag   float64
}

// sieveTones runs a forward FFT over the window and keeps only the
// bins that are local maxima above peakSensitivity times the mean
// magnitude. The DC coefficient is returned separately.
func sieveTones(window []float64) ([]tone, float64, bool) {
	n := len(window)
	coeffs := make([]complex128, n)
	for i, v := range window {
		coeffs[i] = complex(v, 0)
	}
	if err := fourier.Forward(coeffs); err != nil {
		return nil, 0, false
	}

	magnitudes := make([]float64, n)
	var mean float64
	for i, c := range coeffs {
		magnitudes[i] = math.Hypot(real(c), imag(c))
		mean += magnitudes[i]
	}
	threshold := mean / float64(n) * peakSensitivity

	var tones []tone
	for i := 1; i < n/2; i++ {
		if magnitudes[i] > threshold && magnitudes[i] > magnitudes[i-1] && magnitudes[i] > magnitudes[i+1] {
			tones = append(tones, tone{bin: i, coeff: coeffs[i], mag: magnitudes[i]})
		}
	}
	return tones, real(coeffs[0]), true
}

// projectTones extends the window's tonal content gapLen samples past
// its end (forward) or before its start (backward).
func projectTones(window []float64, gapLen int, forward bool) []float64 {
	result := make([]float64, gapLen)
	tones, dc, ok := sieveTones(window)
	if !ok {
		return result
	}

	n := len(window)
	invN := 1.0 / float64(n)
	for i := range result {
		var t float64
		if forward {
			t = float64(n + i)
		} else {
			t = float64(i - gapLen)
		}

		sum := dc * invN
		for _, tn := range tones {
			phase := 2*math.Pi*float64(tn.bin)*t*invN + math.Atan2(imag(tn.coeff), real(tn.coeff))
			sum += tn.mag * spectrumScale * invN * math.Cos(phase)
		}
		result[i] = sum
	}
	return result
}
