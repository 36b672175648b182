// Package repair detects buffer-underflow gaps in a recording from its
// packet-timing log and splices the missing sample-frames back into the
// audio buffer.
package repair

import (
	"context"
	"fmt"

	"github.com/facebookincubator/go-belt/tool/logger"

	"github.com/commgame/audiorepair/pkg/audio"
	"github.com/commgame/audiorepair/pkg/timing"
)

// GapEvent marks a packet boundary where more stream time elapsed than
// the received samples account for.
type GapEvent struct {
	// PacketIndex is the index of the packet after which the gap
	// occurred; the missing frames belong between PacketIndex and
	// PacketIndex+1.
	PacketIndex int

	// MissingSamples is the estimated number of sample-frames lost.
	MissingSamples float64
}

// Thresholds tunes gap detection sensitivity.
type Thresholds struct {
	// TimeDiff is the minimum inter-packet stream-time difference (in
	// seconds) that makes a packet pair suspicious at all.
	TimeDiff float64

	// MissingSamples is the minimum shortfall (expected minus received
	// sample-frames) that is reported as a gap.
	MissingSamples float64
}

// DefaultThresholds returns the values used for the lab recordings:
// packets normally arrive well under 20 ms apart, and shortfalls under
// ~5 ms at 44.1 kHz are within scheduler jitter.
func DefaultThresholds() Thresholds {
	return Thresholds{
		TimeDiff:       0.020,
		MissingSamples: 225,
	}
}

// Detect scans adjacent packet pairs and reports suspected underflows
// in ascending packet-index order. A gap-free record yields nil.
func Detect(
	ctx context.Context,
	rec *timing.Record,
	rate audio.SampleRate,
	thresholds Thresholds,
) ([]GapEvent, error) {
	if rate == 0 {
		return nil, fmt.Errorf("the nominal sample rate is zero")
	}

	var gaps []GapEvent
	for i := 0; i+1 < rec.Len(); i++ {
		timingDiff := rec.StreamTime[i+1] - rec.StreamTime[i]
		if timingDiff <= thresholds.TimeDiff {
			continue
		}

		sampleDiff := float64(rec.ElapsedSamples[i+1] - rec.ElapsedSamples[i])
		expectedSamples := timingDiff * float64(rate)
		missing := expectedSamples - sampleDiff
		if missing <= thresholds.MissingSamples {
			continue
		}

		logger.Debugf(ctx, "suspected underflow after packet %d: %.1f ms elapsed, %.0f samples received, ~%.0f missing",
			i, timingDiff*1000, sampleDiff, missing)
		gaps = append(gaps, GapEvent{
			PacketIndex:    i,
			MissingSamples: missing,
		})
	}
	return gaps, nil
}
