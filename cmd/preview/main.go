// Command preview plays a repaired WAV file through the default audio
// device, for quickly auditioning the result of a repair run.
package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"math"
	"os"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/facebookincubator/go-belt/tool/logger/implementation/logrus"
	"github.com/spf13/pflag"

	"github.com/commgame/audiorepair/pkg/wav"
)

func main() {
	loggerLevel := logger.LevelInfo
	pflag.Var(&loggerLevel, "log-level", "Log level")
	pflag.Parse()

	l := logrus.Default().WithLevel(loggerLevel)
	ctx := logger.CtxWithLogger(context.Background(), l)
	logger.Default = func() logger.Logger {
		return l
	}
	defer belt.Flush(ctx)

	if pflag.NArg() != 1 {
		logger.Fatalf(ctx, "expected exactly one positional argument: path to a WAV file")
	}
	filePath := pflag.Arg(0)

	f, err := os.Open(filePath)
	assertNoError(err)
	buf, err := wav.Decode(f)
	f.Close()
	assertNoError(err)

	logger.Infof(ctx, "playing %q: %d frames, %d ch, %d Hz (%.1f s)",
		filePath, buf.Frames(), buf.Channels, buf.Rate, buf.Duration())

	pcm := make([]byte, len(buf.Samples)*2)
	for i, v := range buf.Samples {
		if v > 1 {
			v = 1
		}
		if v < -1 {
			v = -1
		}
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(int16(math.Round(v*32767))))
	}

	otoCtx, readyChan, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   int(buf.Rate),
		ChannelCount: int(buf.Channels),
		Format:       oto.FormatSignedInt16LE,
	})
	assertNoError(err)
	<-readyChan

	player := otoCtx.NewPlayer(bytes.NewReader(pcm))
	player.Play()
	for player.IsPlaying() {
		time.Sleep(10 * time.Millisecond)
	}
	assertNoError(player.Close())
}

func assertNoError(err error) {
	if err != nil {
		panic(err)
	}
}
