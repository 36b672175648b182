package align

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commgame/audiorepair/pkg/audio"
)

func TestToSharedStart(t *testing.T) {
	ctx := context.Background()

	t.Run("TrimsDownmixesAndNormalizes", func(t *testing.T) {
		// 1 second of stereo at 1000 Hz (small rate keeps the math
		// readable); the recording started 0.25 s before the shared
		// reference, so 250 frames must go.
		buf := audio.NewBuffer(1000, 2, 1000)
		for i := 0; i < 1000; i++ {
			buf.Samples[i*2] = 0.2   // left
			buf.Samples[i*2+1] = 0.4 // right
		}

		out, err := ToSharedStart(ctx, buf, 10.0, 10.25)
		require.NoError(t, err)
		assert.Equal(t, audio.Channel(1), out.Channels)
		assert.Equal(t, 750, out.Frames())
		// Downmix averages to 0.3, normalization scales the peak to 0.99.
		assert.InDelta(t, 0.99, out.Peak(), 1e-12)
		assert.InDelta(t, 0.99, out.Samples[0], 1e-12)
	})

	t.Run("RecordingAfterSharedStartFails", func(t *testing.T) {
		buf := audio.NewBuffer(100, 1, 1000)
		_, err := ToSharedStart(ctx, buf, 10.5, 10.0)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "inconsistent")

		// Equal timestamps are just as inconsistent.
		_, err = ToSharedStart(ctx, buf, 10.0, 10.0)
		require.Error(t, err)
	})

	t.Run("TrimExhaustingTheRecordingFails", func(t *testing.T) {
		buf := audio.NewBuffer(100, 1, 1000)
		_, err := ToSharedStart(ctx, buf, 10.0, 11.0)
		require.Error(t, err)
	})

	t.Run("SilentBufferStaysSilent", func(t *testing.T) {
		buf := audio.NewBuffer(1000, 1, 1000)
		out, err := ToSharedStart(ctx, buf, 10.0, 10.1)
		require.NoError(t, err)
		assert.Equal(t, 900, out.Frames())
		assert.Zero(t, out.Peak())
	})
}

func TestEqualizeLengths(t *testing.T) {
	a := audio.NewBuffer(1000, 1, 44100)
	b := audio.NewBuffer(800, 1, 44100)
	EqualizeLengths(a, b)
	assert.Equal(t, 800, a.Frames())
	assert.Equal(t, 800, b.Frames())

	// Equal lengths are untouched.
	EqualizeLengths(a, b)
	assert.Equal(t, 800, a.Frames())
	assert.Equal(t, 800, b.Frames())
}
