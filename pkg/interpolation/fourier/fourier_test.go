package fourier

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sine(freq, sampleRate float64, offset, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Sin(2 * math.Pi * freq * float64(i+offset) / sampleRate)
	}
	return out
}

func TestInterpolate(t *testing.T) {
	const (
		freq       = 440.0
		sampleRate = 44100.0
	)

	t.Run("NoClicksAtBoundaries", func(t *testing.T) {
		gapLen := 441 // 10ms
		before := sine(freq, sampleRate, 0, 2048)
		after := sine(freq, sampleRate, len(before)+gapLen, 2048)

		filled := New().Interpolate(before, after, gapLen)
		require.Len(t, filled, gapLen)

		// The jump at each stitch point should be comparable to the
		// regular sample-to-sample step of the signal itself.
		maxStep := 0.0
		for i := 1; i < len(before); i++ {
			if d := math.Abs(before[i] - before[i-1]); d > maxStep {
				maxStep = d
			}
		}

		d1 := math.Abs(filled[0] - before[len(before)-1])
		require.LessOrEqual(t, d1, maxStep*1.5, "jump at the leading boundary")

		d2 := math.Abs(after[0] - filled[gapLen-1])
		require.LessOrEqual(t, d2, maxStep*1.5, "jump at the trailing boundary")

		for i := 1; i < len(filled); i++ {
			d := math.Abs(filled[i] - filled[i-1])
			require.LessOrEqual(t, d, maxStep*3.0, "click inside the fill at index %d", i)
		}
	})

	t.Run("TooLittleContextFallsBackToSilence", func(t *testing.T) {
		filled := New().Interpolate([]float64{0.5}, []float64{0.5, 0.4, 0.3, 0.2}, 10)
		require.Len(t, filled, 10)
		for _, v := range filled {
			assert.Zero(t, v)
		}
	})

	t.Run("ZeroGap", func(t *testing.T) {
		filled := New().Interpolate(sine(freq, sampleRate, 0, 64), sine(freq, sampleRate, 64, 64), 0)
		assert.Empty(t, filled)
	})
}

func BenchmarkInterpolate(b *testing.B) {
	const (
		freq       = 440.0
		sampleRate = 44100.0
	)
	before := sine(freq, sampleRate, 0, 2048)

	for _, d := range []struct {
		name string
		ms   int
	}{
		{"10ms", 10},
		{"100ms", 100},
	} {
		gapLen := d.ms * int(sampleRate) / 1000
		after := sine(freq, sampleRate, len(before)+gapLen, 2048)
		ip := New()

		b.Run(d.name, func(b *testing.B) {
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_ = ip.Interpolate(before, after, gapLen)
			}
		})
	}
}
