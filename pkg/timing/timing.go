// Package timing loads and validates the per-packet frame-timing
// statistics the recorder wrote next to each audio file: one row per
// received audio packet with the cumulative sample count and the wall
// clock ("stream") time at which the packet arrived.
package timing

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Record is the packet-timing log of a single recording channel.
// ElapsedSamples[i] and StreamTime[i] describe the i-th packet;
// ElapsedSamples is non-decreasing and StreamTime strictly increasing.
type Record struct {
	ElapsedSamples []int64
	StreamTime     []float64
}

func (r *Record) Len() int {
	return len(r.ElapsedSamples)
}

// FirstFrameTime is the stream time of the first received packet.
func (r *Record) FirstFrameTime() (float64, error) {
	if r.Len() == 0 {
		return 0, fmt.Errorf("the timing record is empty")
	}
	return r.StreamTime[0], nil
}

// TotalTime is the stream-time span between the first and the last
// packet.
func (r *Record) TotalTime() (float64, error) {
	if r.Len() < 2 {
		return 0, fmt.Errorf("the timing record has %d entries, need at least 2", r.Len())
	}
	return r.StreamTime[r.Len()-1] - r.StreamTime[0], nil
}

// Validate checks the monotonicity invariants. A violation means the
// recorder log is corrupt and the whole pair must be rejected.
func (r *Record) Validate() error {
	if len(r.ElapsedSamples) != len(r.StreamTime) {
		return fmt.Errorf("column lengths differ: %d sample entries vs %d time entries", len(r.ElapsedSamples), len(r.StreamTime))
	}
	for i := 1; i < r.Len(); i++ {
		if r.ElapsedSamples[i] < r.ElapsedSamples[i-1] {
			return fmt.Errorf("elapsed samples decrease at packet %d: %d < %d", i, r.ElapsedSamples[i], r.ElapsedSamples[i-1])
		}
		if r.StreamTime[i] <= r.StreamTime[i-1] {
			return fmt.Errorf("stream time does not increase at packet %d: %v <= %v", i, r.StreamTime[i], r.StreamTime[i-1])
		}
	}
	return nil
}

// Load reads a two-column CSV export (elapsed_samples, stream_time).
// A header row and lines starting with '#' are ignored. The loaded
// record is validated before being returned.
func Load(r io.Reader) (*Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 2
	cr.Comment = '#'
	cr.TrimLeadingSpace = true

	rec := &Record{}
	first := true
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("unable to parse the timing CSV: %w", err)
		}
		line, _ := cr.FieldPos(0)
		if first {
			first = false
			if isHeader(row) {
				continue
			}
		}
		samples, err := strconv.ParseInt(strings.TrimSpace(row[0]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid elapsed-samples value %q: %w", line, row[0], err)
		}
		streamTime, err := strconv.ParseFloat(strings.TrimSpace(row[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid stream-time value %q: %w", line, row[1], err)
		}
		rec.ElapsedSamples = append(rec.ElapsedSamples, samples)
		rec.StreamTime = append(rec.StreamTime, streamTime)
	}

	if rec.Len() == 0 {
		return nil, fmt.Errorf("the timing CSV contains no data rows")
	}
	if err := rec.Validate(); err != nil {
		return nil, fmt.Errorf("the timing record is inconsistent: %w", err)
	}
	return rec, nil
}

// LoadFile is Load over a file path.
func LoadFile(path string) (*Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open the timing file: %w", err)
	}
	defer f.Close()
	rec, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("unable to load %q: %w", path, err)
	}
	return rec, nil
}

func isHeader(row []string) bool {
	for _, field := range row {
		if _, err := strconv.ParseFloat(strings.TrimSpace(field), 64); err != nil {
			return true
		}
	}
	return false
}

// LoadSharedStart reads the shared reference timestamp (seconds) from a
// single-value text file produced by the video-timing exporter.
func LoadSharedStart(path string) (float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("unable to read the shared-start file: %w", err)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(string(data)), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid shared-start value in %q: %w", path, err)
	}
	return v, nil
}
