package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuffer(t *testing.T) {
	t.Run("Frames", func(t *testing.T) {
		buf := &Buffer{Samples: []float64{1, 2, 3, 4, 5, 6}, Channels: 2, Rate: 44100}
		assert.Equal(t, 3, buf.Frames())
	})

	t.Run("TrimLeadingFrames", func(t *testing.T) {
		buf := &Buffer{Samples: []float64{1, 2, 3, 4, 5, 6}, Channels: 2, Rate: 44100}
		require.NoError(t, buf.TrimLeadingFrames(2))
		assert.Equal(t, []float64{5, 6}, buf.Samples)

		require.Error(t, buf.TrimLeadingFrames(5))
		require.Error(t, buf.TrimLeadingFrames(-1))
	})

	t.Run("TruncateFrames", func(t *testing.T) {
		buf := &Buffer{Samples: []float64{1, 2, 3, 4, 5, 6}, Channels: 2, Rate: 44100}
		buf.TruncateFrames(10) // longer than the buffer: no-op
		assert.Equal(t, 3, buf.Frames())
		buf.TruncateFrames(1)
		assert.Equal(t, []float64{1, 2}, buf.Samples)
	})

	t.Run("Downmix_Stereo", func(t *testing.T) {
		buf := &Buffer{Samples: []float64{0.2, 0.4, -0.5, 0.5, 1, 0}, Channels: 2, Rate: 44100}
		mono := buf.Downmix()
		require.Equal(t, Channel(1), mono.Channels)
		require.Equal(t, 3, mono.Frames())
		assert.InDelta(t, 0.3, mono.Samples[0], 1e-12)
		assert.InDelta(t, 0.0, mono.Samples[1], 1e-12)
		assert.InDelta(t, 0.5, mono.Samples[2], 1e-12)
	})

	t.Run("Downmix_MonoIsIdentity", func(t *testing.T) {
		buf := &Buffer{Samples: []float64{0.1, 0.2}, Channels: 1, Rate: 44100}
		assert.Same(t, buf, buf.Downmix())
	})

	t.Run("Normalize", func(t *testing.T) {
		buf := &Buffer{Samples: []float64{0.1, -0.5, 0.25}, Channels: 1, Rate: 44100}
		require.True(t, buf.Normalize(0.99))
		assert.InDelta(t, 0.99, buf.Peak(), 1e-12)
		assert.InDelta(t, 0.198, buf.Samples[0], 1e-12)
	})

	t.Run("Normalize_SilenceIsGuarded", func(t *testing.T) {
		buf := NewBuffer(16, 1, 44100)
		require.False(t, buf.Normalize(0.99))
		for _, v := range buf.Samples {
			assert.Zero(t, v)
		}
	})

	t.Run("ChannelRoundtrip", func(t *testing.T) {
		buf := &Buffer{Samples: []float64{1, 10, 2, 20, 3, 30}, Channels: 2, Rate: 44100}
		right, err := buf.Channel(1)
		require.NoError(t, err)
		assert.Equal(t, []float64{10, 20, 30}, right)

		require.NoError(t, buf.SetChannel(1, []float64{11, 21, 31}))
		assert.Equal(t, []float64{1, 11, 2, 21, 3, 31}, buf.Samples)

		_, err = buf.Channel(2)
		require.Error(t, err)
		require.Error(t, buf.SetChannel(0, []float64{1}))
	})

	t.Run("Clone", func(t *testing.T) {
		buf := &Buffer{Samples: []float64{1, 2}, Channels: 1, Rate: 44100}
		cl := buf.Clone()
		cl.Samples[0] = 9
		assert.Equal(t, 1.0, buf.Samples[0])
	})
}
