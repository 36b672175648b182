// Package align cuts a repaired recording to the shared reference start
// time, downmixes it to mono, normalizes it, and equalizes the lengths
// of the two sides of a pair.
package align

import (
	"context"
	"fmt"
	"math"

	"github.com/facebookincubator/go-belt/tool/logger"

	"github.com/commgame/audiorepair/pkg/audio"
)

// PeakTarget leaves 1% headroom below full scale after normalization.
const PeakTarget = 0.99

// ToSharedStart trims the leading frames recorded before the shared
// reference timestamp and returns the trimmed, downmixed, normalized
// mono buffer. The recording must have started before the shared
// reference; anything else means the timing sources disagree and the
// pair cannot be trusted.
func ToSharedStart(
	ctx context.Context,
	buf *audio.Buffer,
	firstFrameTime float64,
	sharedStart float64,
) (*audio.Buffer, error) {
	startDiff := sharedStart - firstFrameTime
	if startDiff <= 0 {
		return nil, fmt.Errorf("the recording starts at %v, after the shared reference %v (diff %v): the timing sources are inconsistent",
			firstFrameTime, sharedStart, startDiff)
	}

	trimFrames := int(math.Round(startDiff * float64(buf.Rate)))
	if trimFrames > buf.Frames() {
		return nil, fmt.Errorf("trimming %d frames would exhaust the recording (%d frames)", trimFrames, buf.Frames())
	}
	if err := buf.TrimLeadingFrames(trimFrames); err != nil {
		return nil, fmt.Errorf("unable to trim to the shared start: %w", err)
	}
	logger.Debugf(ctx, "trimmed %d leading frames (%.3f s before the shared start)", trimFrames, startDiff)

	mono := buf.Downmix()
	if !mono.Normalize(PeakTarget) {
		// An all-silent recording has no peak to scale by; leave it
		// as-is rather than divide by zero or reject the whole pair.
		logger.Warnf(ctx, "the buffer is fully silent, skipping peak normalization")
	}
	return mono, nil
}

// EqualizeLengths truncates the longer of the two buffers so both end
// at the same instant.
func EqualizeLengths(a, b *audio.Buffer) {
	n := min(a.Frames(), b.Frames())
	a.TruncateFrames(n)
	b.TruncateFrames(n)
}
