package repair

import (
	"context"
	"fmt"
	"math"

	"github.com/facebookincubator/go-belt/tool/logger"

	"github.com/commgame/audiorepair/pkg/audio"
	"github.com/commgame/audiorepair/pkg/interpolation"
	"github.com/commgame/audiorepair/pkg/timing"
)

// Repair splices round(MissingSamples) fill frames into buf at every
// detected gap, mutating buf in place. Gaps are applied in descending
// packet-index order so that earlier insertions cannot shift the
// offsets of the ones still pending.
//
// The insertion offset of a gap is the cumulative sample count of the
// packet following it; if that lies beyond the end of the buffer, the
// fill block is appended instead.
func Repair(
	ctx context.Context,
	buf *audio.Buffer,
	rec *timing.Record,
	gaps []GapEvent,
	fill interpolation.Interpolator,
) error {
	if fill == nil {
		fill = interpolation.Silence{}
	}

	for i := len(gaps) - 1; i >= 0; i-- {
		gap := gaps[i]
		if gap.PacketIndex+1 >= rec.Len() {
			return fmt.Errorf("gap at packet %d is out of range: the timing record has %d packets", gap.PacketIndex, rec.Len())
		}

		startFrame := int(rec.ElapsedSamples[gap.PacketIndex+1])
		blockFrames := int(math.Round(gap.MissingSamples))
		if blockFrames <= 0 {
			continue
		}

		if startFrame > buf.Frames() {
			logger.Warnf(ctx, "gap at packet %d starts at frame %d beyond the buffer end (%d frames), appending the fill block",
				gap.PacketIndex, startFrame, buf.Frames())
			startFrame = buf.Frames()
		}

		if err := insertFrames(buf, startFrame, blockFrames, fill); err != nil {
			return fmt.Errorf("unable to splice %d frames at frame %d (packet %d): %w", blockFrames, startFrame, gap.PacketIndex, err)
		}
		logger.Debugf(ctx, "spliced %d fill frames at frame %d (packet %d)", blockFrames, startFrame, gap.PacketIndex)
	}
	return nil
}

// TotalInsertedFrames is the number of frames Repair will add for the
// given gap set.
func TotalInsertedFrames(gaps []GapEvent) int {
	total := 0
	for _, gap := range gaps {
		if n := int(math.Round(gap.MissingSamples)); n > 0 {
			total += n
		}
	}
	return total
}

func insertFrames(
	buf *audio.Buffer,
	startFrame int,
	blockFrames int,
	fill interpolation.Interpolator,
) error {
	numCh := int(buf.Channels)
	if numCh == 0 {
		return fmt.Errorf("the buffer has zero channels")
	}

	block := make([]float64, blockFrames*numCh)
	for ch := 0; ch < numCh; ch++ {
		before, after := channelSplit(buf, audio.Channel(ch), startFrame)
		filled := fill.Interpolate(before, after, blockFrames)
		if len(filled) != blockFrames {
			return fmt.Errorf("the interpolator returned %d frames, expected %d", len(filled), blockFrames)
		}
		for i, v := range filled {
			block[i*numCh+ch] = v
		}
	}

	start := startFrame * numCh
	out := make([]float64, 0, len(buf.Samples)+len(block))
	out = append(out, buf.Samples[:start]...)
	out = append(out, block...)
	out = append(out, buf.Samples[start:]...)
	buf.Samples = out
	return nil
}

// channelSplit returns a channel's samples on either side of a frame
// boundary.
func channelSplit(buf *audio.Buffer, ch audio.Channel, frame int) (before, after []float64) {
	numCh := int(buf.Channels)
	frames := buf.Frames()
	before = make([]float64, frame)
	after = make([]float64, frames-frame)
	for i := 0; i < frame; i++ {
		before[i] = buf.Samples[i*numCh+int(ch)]
	}
	for i := frame; i < frames; i++ {
		after[i-frame] = buf.Samples[i*numCh+int(ch)]
	}
	return before, after
}
