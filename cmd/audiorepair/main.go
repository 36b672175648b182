package main

import (
	"context"

	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/facebookincubator/go-belt/tool/logger/implementation/logrus"
	"github.com/spf13/pflag"

	"github.com/commgame/audiorepair/pkg/audio"
	"github.com/commgame/audiorepair/pkg/interpolation"
	"github.com/commgame/audiorepair/pkg/interpolation/fourier"
	"github.com/commgame/audiorepair/pkg/pipeline"
	"github.com/commgame/audiorepair/pkg/repair"
	"github.com/commgame/audiorepair/pkg/timing"
)

func main() {
	loggerLevel := logger.LevelInfo
	pflag.Var(&loggerLevel, "log-level", "Log level")

	mordorAudio := pflag.String("mordor-audio", "", "Mordor-side input WAV file")
	mordorTiming := pflag.String("mordor-timing", "", "Mordor-side packet-timing CSV file")
	mordorOut := pflag.String("mordor-out", "", "Mordor-side repaired output WAV file")
	mordorFirstFrame := pflag.Float64("mordor-first-frame", 0, "Override the Mordor first-frame timestamp (seconds); 0 takes it from the timing file")

	gondorAudio := pflag.String("gondor-audio", "", "Gondor-side input WAV file")
	gondorTiming := pflag.String("gondor-timing", "", "Gondor-side packet-timing CSV file")
	gondorOut := pflag.String("gondor-out", "", "Gondor-side repaired output WAV file")
	gondorFirstFrame := pflag.Float64("gondor-first-frame", 0, "Override the Gondor first-frame timestamp (seconds); 0 takes it from the timing file")

	sharedStart := pflag.Float64("shared-start", 0, "Shared reference start time (seconds, from the video timing source)")
	sharedStartFile := pflag.String("shared-start-file", "", "Read the shared reference start time from a single-value text file")

	rate := pflag.Uint32("rate", 44100, "Nominal sample rate (Hz); both inputs must declare it")
	samplingTol := pflag.Float64("sampling-tolerance", 0.5, "Allowed deviation of the empirical rate from nominal (Hz) before resampling")
	timeDiffThreshold := pflag.Float64("time-diff-threshold", 0.020, "Inter-packet time difference (seconds) above which a gap is suspected")
	missingSampleThreshold := pflag.Float64("missing-sample-threshold", 225, "Sample shortfall above which a gap is reported")
	fillMode := pflag.String("fill", "silence", "Gap fill mode: silence, linear or spectral")
	pflag.Parse()

	l := logrus.Default().WithLevel(loggerLevel)
	ctx := logger.CtxWithLogger(context.Background(), l)
	logger.Default = func() logger.Logger {
		return l
	}
	defer belt.Flush(ctx)

	for name, value := range map[string]string{
		"mordor-audio":  *mordorAudio,
		"mordor-timing": *mordorTiming,
		"mordor-out":    *mordorOut,
		"gondor-audio":  *gondorAudio,
		"gondor-timing": *gondorTiming,
		"gondor-out":    *gondorOut,
	} {
		if value == "" {
			logger.Fatalf(ctx, "--%s is required", name)
		}
	}

	start := *sharedStart
	if *sharedStartFile != "" {
		var err error
		start, err = timing.LoadSharedStart(*sharedStartFile)
		assertNoError(err)
	}
	if start == 0 {
		logger.Fatalf(ctx, "either --shared-start or --shared-start-file is required")
	}

	var fill interpolation.Interpolator
	switch *fillMode {
	case "silence":
		fill = interpolation.Silence{}
	case "linear":
		fill = interpolation.Linear{}
	case "spectral":
		fill = fourier.New()
	default:
		logger.Fatalf(ctx, "unknown fill mode %q", *fillMode)
	}

	cfg := pipeline.Config{
		NominalRate:       audio.SampleRate(*rate),
		SamplingTolerance: *samplingTol,
		Thresholds: repair.Thresholds{
			TimeDiff:       *timeDiffThreshold,
			MissingSamples: *missingSampleThreshold,
		},
		Fill:        fill,
		SharedStart: start,
	}

	logger.Infof(ctx, "starting...")
	err := pipeline.Run(ctx, cfg, [2]pipeline.ChannelInput{
		{
			Name:           "mordor",
			AudioPath:      *mordorAudio,
			TimingPath:     *mordorTiming,
			OutputPath:     *mordorOut,
			FirstFrameTime: *mordorFirstFrame,
		},
		{
			Name:           "gondor",
			AudioPath:      *gondorAudio,
			TimingPath:     *gondorTiming,
			OutputPath:     *gondorOut,
			FirstFrameTime: *gondorFirstFrame,
		},
	})
	if err != nil {
		logger.Fatalf(ctx, "the run failed: %v", err)
	}
	logger.Infof(ctx, "done")
}

func assertNoError(err error) {
	if err != nil {
		panic(err)
	}
}
