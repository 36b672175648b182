// Package wav reads and writes uncompressed RIFF/WAVE files into the
// pipeline's float64 sample buffers. Only linear PCM (8/16/24/32 bit)
// and IEEE float (32/64 bit) data is supported.
package wav

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/commgame/audiorepair/pkg/audio"
)

const (
	formatPCM       = 1
	formatIEEEFloat = 3
	// WAVE_FORMAT_EXTENSIBLE wraps the real format tag.
	formatExtensible = 0xFFFE
)

type header struct {
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
}

// Decode parses a WAVE stream into a Buffer. Chunks other than "fmt "
// and "data" are skipped.
func Decode(r io.Reader) (*audio.Buffer, error) {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return nil, fmt.Errorf("unable to read the RIFF header: %w", err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return nil, fmt.Errorf("not a RIFF/WAVE stream")
	}

	var hdr header
	var haveFmt bool
	for {
		var chunkHdr [8]byte
		if _, err := io.ReadFull(r, chunkHdr[:]); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return nil, fmt.Errorf("reached the end of the stream without a 'data' chunk")
			}
			return nil, fmt.Errorf("unable to read a chunk header: %w", err)
		}
		chunkID := string(chunkHdr[0:4])
		chunkSize := binary.LittleEndian.Uint32(chunkHdr[4:8])

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 {
				return nil, fmt.Errorf("'fmt ' chunk is too short: %d bytes", chunkSize)
			}
			fmtData := make([]byte, chunkSize)
			if _, err := io.ReadFull(r, fmtData); err != nil {
				return nil, fmt.Errorf("unable to read the 'fmt ' chunk: %w", err)
			}
			hdr.AudioFormat = binary.LittleEndian.Uint16(fmtData[0:2])
			hdr.NumChannels = binary.LittleEndian.Uint16(fmtData[2:4])
			hdr.SampleRate = binary.LittleEndian.Uint32(fmtData[4:8])
			hdr.ByteRate = binary.LittleEndian.Uint32(fmtData[8:12])
			hdr.BlockAlign = binary.LittleEndian.Uint16(fmtData[12:14])
			hdr.BitsPerSample = binary.LittleEndian.Uint16(fmtData[14:16])
			if hdr.AudioFormat == formatExtensible && chunkSize >= 40 {
				hdr.AudioFormat = binary.LittleEndian.Uint16(fmtData[24:26])
			}
			haveFmt = true
		case "data":
			if !haveFmt {
				return nil, fmt.Errorf("the 'data' chunk appeared before 'fmt '")
			}
			data := make([]byte, chunkSize)
			if _, err := io.ReadFull(r, data); err != nil {
				return nil, fmt.Errorf("unable to read %d bytes of sample data: %w", chunkSize, err)
			}
			return decodeSamples(hdr, data)
		default:
			// Skip LIST/fact/cue and anything else; chunks are
			// word-aligned, so odd sizes carry a pad byte.
			skip := int64(chunkSize)
			if chunkSize%2 == 1 {
				skip++
			}
			if _, err := io.CopyN(io.Discard, r, skip); err != nil {
				return nil, fmt.Errorf("unable to skip chunk %q: %w", chunkID, err)
			}
		}
	}
}

func decodeSamples(hdr header, data []byte) (*audio.Buffer, error) {
	if hdr.NumChannels == 0 {
		return nil, fmt.Errorf("the channel count is zero")
	}
	sampleSize := int(hdr.BitsPerSample) / 8
	if sampleSize == 0 {
		return nil, fmt.Errorf("the sample size is zero bits")
	}
	if len(data)%(sampleSize*int(hdr.NumChannels)) != 0 {
		return nil, fmt.Errorf("the data size (%d) is not a multiple of the frame size (%d)", len(data), sampleSize*int(hdr.NumChannels))
	}

	count := len(data) / sampleSize
	samples := make([]float64, count)
	switch {
	case hdr.AudioFormat == formatPCM && hdr.BitsPerSample == 8:
		for i := 0; i < count; i++ {
			samples[i] = (float64(data[i]) - 128) / 128
		}
	case hdr.AudioFormat == formatPCM && hdr.BitsPerSample == 16:
		for i := 0; i < count; i++ {
			samples[i] = float64(int16(binary.LittleEndian.Uint16(data[i*2:]))) / 32768
		}
	case hdr.AudioFormat == formatPCM && hdr.BitsPerSample == 24:
		for i := 0; i < count; i++ {
			p := data[i*3:]
			val := int32(uint32(p[0]) | uint32(p[1])<<8 | uint32(p[2])<<16)
			if val&0x800000 != 0 {
				val |= -16777216
			}
			samples[i] = float64(val) / 8388608
		}
	case hdr.AudioFormat == formatPCM && hdr.BitsPerSample == 32:
		for i := 0; i < count; i++ {
			samples[i] = float64(int32(binary.LittleEndian.Uint32(data[i*4:]))) / 2147483648
		}
	case hdr.AudioFormat == formatIEEEFloat && hdr.BitsPerSample == 32:
		for i := 0; i < count; i++ {
			samples[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:])))
		}
	case hdr.AudioFormat == formatIEEEFloat && hdr.BitsPerSample == 64:
		for i := 0; i < count; i++ {
			samples[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[i*8:]))
		}
	default:
		return nil, fmt.Errorf("unsupported sample format: tag=%d bits=%d", hdr.AudioFormat, hdr.BitsPerSample)
	}

	return &audio.Buffer{
		Samples:  samples,
		Channels: audio.Channel(hdr.NumChannels),
		Rate:     audio.SampleRate(hdr.SampleRate),
	}, nil
}

// Encode writes the buffer as a 16-bit PCM WAVE stream.
func Encode(w io.Writer, buf *audio.Buffer) error {
	if buf.Channels == 0 {
		return fmt.Errorf("cannot encode a buffer with zero channels")
	}
	if len(buf.Samples) == 0 {
		return fmt.Errorf("cannot encode an empty buffer")
	}

	const bitsPerSample = 16
	blockAlign := uint16(buf.Channels) * bitsPerSample / 8
	dataSize := uint32(len(buf.Samples) * 2)

	out := make([]byte, 44+len(buf.Samples)*2)
	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], 36+dataSize)
	copy(out[8:12], "WAVE")
	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16)
	binary.LittleEndian.PutUint16(out[20:22], formatPCM)
	binary.LittleEndian.PutUint16(out[22:24], uint16(buf.Channels))
	binary.LittleEndian.PutUint32(out[24:28], uint32(buf.Rate))
	binary.LittleEndian.PutUint32(out[28:32], uint32(buf.Rate)*uint32(blockAlign))
	binary.LittleEndian.PutUint16(out[32:34], blockAlign)
	binary.LittleEndian.PutUint16(out[34:36], bitsPerSample)
	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], dataSize)

	for i, v := range buf.Samples {
		if v > 1 {
			v = 1
		}
		if v < -1 {
			v = -1
		}
		s := int16(math.Round(v * 32767))
		binary.LittleEndian.PutUint16(out[44+i*2:], uint16(s))
	}

	if _, err := w.Write(out); err != nil {
		return fmt.Errorf("unable to write the WAVE stream: %w", err)
	}
	return nil
}
