// Package drift measures how far a sound card's real sampling rate
// drifted from the nominal one, using the packet-timing log, and
// corrects the audio buffer when the drift exceeds tolerance.
package drift

import (
	"context"
	"fmt"
	"math"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/mjibson/go-dsp/fft"

	"github.com/commgame/audiorepair/pkg/audio"
	"github.com/commgame/audiorepair/pkg/timing"
)

// DefaultTolerance is the empirical-vs-nominal rate deviation (in Hz)
// below which a recording is accepted as-is.
const DefaultTolerance = 0.5

// axisMismatchWarnLimit is how many samples the synthetic time axis may
// disagree with the buffer before we warn about numeric inconsistency.
const axisMismatchWarnLimit = 2

// EstimateRate computes the empirical sampling rate of a recording:
// total sample-frames divided by the stream-time span of the packet
// log.
func EstimateRate(rec *timing.Record, frames int) (float64, error) {
	totalTime, err := rec.TotalTime()
	if err != nil {
		return 0, fmt.Errorf("unable to determine the recording time span: %w", err)
	}
	if totalTime <= 0 {
		return 0, fmt.Errorf("the recording time span is not positive: %v", totalTime)
	}
	return float64(frames) / totalTime, nil
}

// Correct resamples buf to its nominal rate if the empirical rate
// deviates by more than tolerance Hz. It reports whether resampling
// happened. The buffer is mutated in place; its nominal Rate field is
// unchanged (by definition the output is at the nominal rate).
func Correct(
	ctx context.Context,
	buf *audio.Buffer,
	rec *timing.Record,
	tolerance float64,
) (bool, error) {
	empiricalRate, err := EstimateRate(rec, buf.Frames())
	if err != nil {
		return false, err
	}

	nominal := float64(buf.Rate)
	deviation := empiricalRate - nominal
	if math.Abs(deviation) <= tolerance {
		logger.Debugf(ctx, "empirical rate %.3f Hz is within %.2f Hz of nominal %d Hz, skipping resampling",
			empiricalRate, tolerance, buf.Rate)
		return false, nil
	}
	logger.Infof(ctx, "empirical rate %.3f Hz deviates %.3f Hz from nominal %d Hz, resampling",
		empiricalRate, deviation, buf.Rate)

	totalTime, err := rec.TotalTime()
	if err != nil {
		return false, err
	}

	// The synthetic capture axis has one point every 1/empiricalRate
	// seconds across [0, totalTime]. Rounding can make its length
	// disagree with the actual frame count; the axis is implicitly
	// truncated to the buffer, we only report the inconsistency.
	axisLen := int(math.Floor(totalTime*empiricalRate)) + 1
	if mismatch := axisLen - buf.Frames(); abs(mismatch) > axisMismatchWarnLimit {
		logger.Warnf(ctx, "the synthetic time axis disagrees with the buffer by %d samples (axis %d, buffer %d), truncating the axis",
			mismatch, axisLen, buf.Frames())
	}

	outFrames := int(math.Round(float64(buf.Frames()) * nominal / empiricalRate))
	if outFrames <= 0 {
		return false, fmt.Errorf("resampling would produce %d frames", outFrames)
	}

	if err := resample(buf, outFrames); err != nil {
		return false, fmt.Errorf("unable to resample from %.3f Hz to %d Hz: %w", empiricalRate, buf.Rate, err)
	}
	return true, nil
}

// resample converts buf to outFrames frames per channel using a
// band-limited (frequency-domain) method: the spectrum of each channel
// is transplanted onto a grid of the new length, which interpolates
// without introducing content above the original band.
func resample(buf *audio.Buffer, outFrames int) error {
	numCh := int(buf.Channels)
	if numCh == 0 {
		return fmt.Errorf("the buffer has zero channels")
	}
	inFrames := buf.Frames()
	if inFrames == outFrames {
		return nil
	}
	if inFrames < 2 {
		return fmt.Errorf("not enough frames to resample: %d", inFrames)
	}

	out := make([]float64, outFrames*numCh)
	for ch := 0; ch < numCh; ch++ {
		in := make([]float64, inFrames)
		for i := 0; i < inFrames; i++ {
			in[i] = buf.Samples[i*numCh+ch]
		}
		res := resampleChannel(in, outFrames)
		for i, v := range res {
			out[i*numCh+ch] = v
		}
	}
	buf.Samples = out
	return nil
}

func resampleChannel(in []float64, outLen int) []float64 {
	inLen := len(in)
	spectrum := fft.FFTReal(in)

	// Keep every bin strictly below the Nyquist of the shorter side;
	// the conjugate half mirrors it so the inverse transform is real.
	outSpectrum := make([]complex128, outLen)
	half := (min(inLen, outLen) - 1) / 2
	outSpectrum[0] = spectrum[0]
	for k := 1; k <= half; k++ {
		outSpectrum[k] = spectrum[k]
		outSpectrum[outLen-k] = conj(spectrum[k])
	}

	res := fft.IFFT(outSpectrum)
	scale := float64(outLen) / float64(inLen)
	out := make([]float64, outLen)
	for i := range out {
		out[i] = real(res[i]) * scale
	}
	return out
}

func conj(c complex128) complex128 {
	return complex(real(c), -imag(c))
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
