// Package pipeline wires the repair stages into the end-to-end batch
// job: load, detect gaps, splice, correct drift, align to the shared
// start, and write the two repaired mono files.
//
// The two channels of a pair are independent until the final joint
// length equalization, so they are processed concurrently and joined
// before the joint step. A run is all-or-nothing: output files only
// appear after both channels finished without error.
package pipeline

import (
	"context"
	"fmt"
	"os"

	"github.com/davecgh/go-spew/spew"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/hashicorp/go-multierror"
	"github.com/xaionaro-go/datacounter"
	"github.com/xaionaro-go/observability"

	"github.com/commgame/audiorepair/pkg/align"
	"github.com/commgame/audiorepair/pkg/audio"
	"github.com/commgame/audiorepair/pkg/drift"
	"github.com/commgame/audiorepair/pkg/interpolation"
	"github.com/commgame/audiorepair/pkg/repair"
	"github.com/commgame/audiorepair/pkg/timing"
	"github.com/commgame/audiorepair/pkg/wav"
)

// ChannelInput identifies the on-disk artifacts of one recording side.
type ChannelInput struct {
	// Name is the lab-site label of the side (e.g. "mordor", "gondor").
	Name string

	AudioPath  string
	TimingPath string
	OutputPath string

	// FirstFrameTime overrides the timestamp of the first recorded
	// frame; when zero it is taken from the timing record.
	FirstFrameTime float64
}

// Config carries the run parameters. A zero NominalRate,
// SamplingTolerance, Thresholds or Fill selects the documented default;
// there is no way to request a literal zero tolerance or zero
// thresholds through this struct (the detection and drift stages accept
// them directly for callers that need that).
type Config struct {
	// NominalRate is the rate both inputs must declare and both
	// outputs are written at. Zero means 44100.
	NominalRate audio.SampleRate

	// SamplingTolerance is the allowed |empirical − nominal| rate
	// deviation in Hz before drift correction kicks in. Zero means
	// drift.DefaultTolerance.
	SamplingTolerance float64

	// Thresholds tunes underflow detection. The zero value means
	// repair.DefaultThresholds().
	Thresholds repair.Thresholds

	// Fill synthesizes the spliced frames; nil means silence.
	Fill interpolation.Interpolator

	// SharedStart is the reference timestamp (from the video timing
	// source) both channels are aligned to.
	SharedStart float64
}

func (cfg Config) withDefaults() Config {
	if cfg.NominalRate == 0 {
		cfg.NominalRate = 44100
	}
	if cfg.SamplingTolerance == 0 {
		cfg.SamplingTolerance = drift.DefaultTolerance
	}
	if cfg.Thresholds == (repair.Thresholds{}) {
		cfg.Thresholds = repair.DefaultThresholds()
	}
	if cfg.Fill == nil {
		cfg.Fill = interpolation.Silence{}
	}
	return cfg
}

// ChannelContext is the state of one recording side as it moves through
// the stages.
type ChannelContext struct {
	Name           string
	Buffer         *audio.Buffer
	Timing         *timing.Record
	FirstFrameTime float64

	Gaps           []repair.GapEvent
	InsertedFrames int
	Resampled      bool
}

// summary is what gets spew-dumped at trace level; the buffer itself
// would be millions of floats.
type summary struct {
	Name           string
	Frames         int
	Channels       audio.Channel
	Rate           audio.SampleRate
	Packets        int
	FirstFrameTime float64
	Gaps           int
	InsertedFrames int
	Resampled      bool
}

func (cc *ChannelContext) summary() summary {
	return summary{
		Name:           cc.Name,
		Frames:         cc.Buffer.Frames(),
		Channels:       cc.Buffer.Channels,
		Rate:           cc.Buffer.Rate,
		Packets:        cc.Timing.Len(),
		FirstFrameTime: cc.FirstFrameTime,
		Gaps:           len(cc.Gaps),
		InsertedFrames: cc.InsertedFrames,
		Resampled:      cc.Resampled,
	}
}

// LoadChannel reads and validates one side's audio and timing files.
func LoadChannel(
	ctx context.Context,
	in ChannelInput,
	cfg Config,
) (*ChannelContext, error) {
	cfg = cfg.withDefaults()

	f, err := os.Open(in.AudioPath)
	if err != nil {
		return nil, fmt.Errorf("unable to open the audio file: %w", err)
	}
	defer f.Close()
	buf, err := wav.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("unable to decode %q: %w", in.AudioPath, err)
	}
	if buf.Rate != cfg.NominalRate {
		return nil, fmt.Errorf("%q declares %d Hz, expected the nominal rate %d Hz", in.AudioPath, buf.Rate, cfg.NominalRate)
	}

	rec, err := timing.LoadFile(in.TimingPath)
	if err != nil {
		return nil, err
	}

	firstFrameTime := in.FirstFrameTime
	if firstFrameTime == 0 {
		firstFrameTime, err = rec.FirstFrameTime()
		if err != nil {
			return nil, err
		}
	}

	logger.Infof(ctx, "[%s] loaded %d frames (%d ch, %d Hz) and %d timing packets",
		in.Name, buf.Frames(), buf.Channels, buf.Rate, rec.Len())
	return &ChannelContext{
		Name:           in.Name,
		Buffer:         buf,
		Timing:         rec,
		FirstFrameTime: firstFrameTime,
	}, nil
}

// ProcessChannel runs the per-channel stages: gap detection and splice,
// drift correction, shared-start trim, downmix, normalization.
func ProcessChannel(
	ctx context.Context,
	cc *ChannelContext,
	cfg Config,
) error {
	cfg = cfg.withDefaults()

	gaps, err := repair.Detect(ctx, cc.Timing, cc.Buffer.Rate, cfg.Thresholds)
	if err != nil {
		return fmt.Errorf("[%s] gap detection failed: %w", cc.Name, err)
	}
	cc.Gaps = gaps
	cc.InsertedFrames = repair.TotalInsertedFrames(gaps)
	if len(gaps) > 0 {
		logger.Infof(ctx, "[%s] detected %d underflow gaps, %d frames total", cc.Name, len(gaps), cc.InsertedFrames)
	}

	if err := repair.Repair(ctx, cc.Buffer, cc.Timing, gaps, cfg.Fill); err != nil {
		return fmt.Errorf("[%s] gap repair failed: %w", cc.Name, err)
	}

	resampled, err := drift.Correct(ctx, cc.Buffer, cc.Timing, cfg.SamplingTolerance)
	if err != nil {
		return fmt.Errorf("[%s] drift correction failed: %w", cc.Name, err)
	}
	cc.Resampled = resampled

	mono, err := align.ToSharedStart(ctx, cc.Buffer, cc.FirstFrameTime, cfg.SharedStart)
	if err != nil {
		return fmt.Errorf("[%s] alignment failed: %w", cc.Name, err)
	}
	cc.Buffer = mono

	logger.Tracef(ctx, "[%s] processed: %s", cc.Name, spew.Sdump(cc.summary()))
	return nil
}

// Run processes both sides of a pair and writes the two aligned mono
// files. The channels run concurrently up to the joint length
// equalization.
func Run(
	ctx context.Context,
	cfg Config,
	inputs [2]ChannelInput,
) error {
	cfg = cfg.withDefaults()

	var ccs [2]*ChannelContext
	errs := make([]error, 2)
	done := make(chan int, 2)
	for i := range inputs {
		i := i
		observability.Go(ctx, func() {
			defer func() { done <- i }()
			cc, err := LoadChannel(ctx, inputs[i], cfg)
			if err != nil {
				errs[i] = fmt.Errorf("[%s] load failed: %w", inputs[i].Name, err)
				return
			}
			if err := ProcessChannel(ctx, cc, cfg); err != nil {
				errs[i] = err
				return
			}
			ccs[i] = cc
		})
	}
	<-done
	<-done

	var mErr *multierror.Error
	for _, err := range errs {
		if err != nil {
			mErr = multierror.Append(mErr, err)
		}
	}
	if err := mErr.ErrorOrNil(); err != nil {
		return err
	}

	align.EqualizeLengths(ccs[0].Buffer, ccs[1].Buffer)
	logger.Infof(ctx, "equalized both channels to %d frames (%.3f s)",
		ccs[0].Buffer.Frames(), ccs[0].Buffer.Duration())

	return writePair(ctx, [2]*ChannelContext{ccs[0], ccs[1]}, [2]string{inputs[0].OutputPath, inputs[1].OutputPath})
}

// writePair persists both outputs, or neither: each file is written to
// a temporary sibling first and only renamed into place after both
// writes succeeded.
func writePair(
	ctx context.Context,
	ccs [2]*ChannelContext,
	paths [2]string,
) error {
	tmpPaths := [2]string{paths[0] + ".tmp", paths[1] + ".tmp"}
	cleanup := func() {
		for _, p := range tmpPaths {
			_ = os.Remove(p)
		}
	}

	for i, cc := range ccs {
		if err := writeWAV(ctx, cc, tmpPaths[i]); err != nil {
			cleanup()
			return err
		}
	}
	for i := range paths {
		if err := os.Rename(tmpPaths[i], paths[i]); err != nil {
			cleanup()
			return fmt.Errorf("unable to move the output into place: %w", err)
		}
		logger.Infof(ctx, "[%s] wrote %q", ccs[i].Name, paths[i])
	}
	return nil
}

func writeWAV(ctx context.Context, cc *ChannelContext, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("unable to create %q: %w", path, err)
	}
	wc := datacounter.NewWriterCounter(f)
	if err := wav.Encode(wc, cc.Buffer); err != nil {
		f.Close()
		return fmt.Errorf("[%s] unable to encode the output: %w", cc.Name, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("unable to close %q: %w", path, err)
	}
	logger.Debugf(ctx, "[%s] wrote %d bytes (%d frames, %.3f s)",
		cc.Name, wc.Count(), cc.Buffer.Frames(), cc.Buffer.Duration())
	return nil
}
