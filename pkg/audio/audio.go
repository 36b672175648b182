// Package audio provides the in-memory sample buffer the repair
// pipeline operates on, together with the basic frame-level operations
// (trimming, downmixing, peak normalization).
package audio

import (
	"fmt"
)

type SampleRate uint32

type Channel uint16

// Buffer holds interleaved float64 samples in the range [-1, 1].
// A frame is one sample per channel; len(Samples) is always a multiple
// of Channels.
type Buffer struct {
	Samples  []float64
	Channels Channel
	Rate     SampleRate
}

func NewBuffer(frames int, channels Channel, rate SampleRate) *Buffer {
	return &Buffer{
		Samples:  make([]float64, frames*int(channels)),
		Channels: channels,
		Rate:     rate,
	}
}

// Frames returns the number of sample-frames in the buffer.
func (b *Buffer) Frames() int {
	if b.Channels == 0 {
		return 0
	}
	return len(b.Samples) / int(b.Channels)
}

func (b *Buffer) Duration() float64 {
	if b.Rate == 0 {
		return 0
	}
	return float64(b.Frames()) / float64(b.Rate)
}

// Channel returns the samples of a single channel as a fresh slice.
func (b *Buffer) Channel(ch Channel) ([]float64, error) {
	if ch >= b.Channels {
		return nil, fmt.Errorf("channel %d out of range: the buffer has %d channels", ch, b.Channels)
	}
	out := make([]float64, b.Frames())
	for i := range out {
		out[i] = b.Samples[i*int(b.Channels)+int(ch)]
	}
	return out, nil
}

// SetChannel writes samples back into a single channel of the buffer.
func (b *Buffer) SetChannel(ch Channel, samples []float64) error {
	if ch >= b.Channels {
		return fmt.Errorf("channel %d out of range: the buffer has %d channels", ch, b.Channels)
	}
	if len(samples) != b.Frames() {
		return fmt.Errorf("the sample count does not match the buffer: %d != %d", len(samples), b.Frames())
	}
	for i, v := range samples {
		b.Samples[i*int(b.Channels)+int(ch)] = v
	}
	return nil
}

// TrimLeadingFrames drops the first n frames in place.
func (b *Buffer) TrimLeadingFrames(n int) error {
	if n < 0 {
		return fmt.Errorf("cannot trim a negative amount of frames: %d", n)
	}
	if n > b.Frames() {
		return fmt.Errorf("cannot trim %d frames: the buffer has only %d", n, b.Frames())
	}
	b.Samples = b.Samples[n*int(b.Channels):]
	return nil
}

// TruncateFrames shortens the buffer to n frames; a no-op if the buffer
// is already that short or shorter.
func (b *Buffer) TruncateFrames(n int) {
	if n < 0 || n >= b.Frames() {
		return
	}
	b.Samples = b.Samples[:n*int(b.Channels)]
}

// Downmix averages all channels into a mono buffer. A mono buffer is
// returned unchanged.
func (b *Buffer) Downmix() *Buffer {
	if b.Channels <= 1 {
		return b
	}
	frames := b.Frames()
	out := NewBuffer(frames, 1, b.Rate)
	numCh := int(b.Channels)
	for i := 0; i < frames; i++ {
		var sum float64
		for ch := 0; ch < numCh; ch++ {
			sum += b.Samples[i*numCh+ch]
		}
		out.Samples[i] = sum / float64(numCh)
	}
	return out
}

// Peak returns the maximum absolute sample value.
func (b *Buffer) Peak() float64 {
	peak := 0.0
	for _, v := range b.Samples {
		if v < 0 {
			v = -v
		}
		if v > peak {
			peak = v
		}
	}
	return peak
}

// Normalize scales the buffer so that its peak equals target. An
// all-zero buffer is left untouched and reported via the boolean
// result, so the caller can decide whether silence is acceptable.
func (b *Buffer) Normalize(target float64) bool {
	peak := b.Peak()
	if peak == 0 {
		return false
	}
	scale := target / peak
	for i := range b.Samples {
		b.Samples[i] *= scale
	}
	return true
}

// Clone returns a deep copy of the buffer.
func (b *Buffer) Clone() *Buffer {
	out := &Buffer{
		Samples:  make([]float64, len(b.Samples)),
		Channels: b.Channels,
		Rate:     b.Rate,
	}
	copy(out.Samples, b.Samples)
	return out
}
