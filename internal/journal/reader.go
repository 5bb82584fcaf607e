package journal

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
)

// TickRecord is one decoded line from the tick log.
type TickRecord struct {
	Value      int64  `json:"value"`
	Timestamp  int64  `json:"timestamp"`
	CapturedAt string `json:"captured_at"`
}

// Sample is one decoded poll latency record.
type Sample struct {
	CapturedAt time.Time
	Elapsed    time.Duration
	RequestID  string
}

// ReadTicks decodes every tick record from a journal bundle directory.
func ReadTicks(dir string) ([]TickRecord, error) {
	file, err := os.Open(filepath.Join(dir, "ticks.jsonl.sz"))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(snappy.NewReader(file))
	var records []TickRecord
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var record TickRecord
		if err := json.Unmarshal(line, &record); err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// ReadSamples decodes every latency sample from a journal bundle directory.
func ReadSamples(dir string) ([]Sample, error) {
	file, err := os.Open(filepath.Join(dir, "samples.bin.zst"))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	decoder, err := zstd.NewReader(file)
	if err != nil {
		return nil, err
	}
	defer decoder.Close()

	var samples []Sample
	header := make([]byte, 8+8+4)
	for {
		if _, err := io.ReadFull(decoder, header); err != nil {
			if errors.Is(err, io.EOF) {
				return samples, nil
			}
			return nil, err
		}
		capturedNs := int64(binary.LittleEndian.Uint64(header[0:8]))
		elapsedUs := int64(binary.LittleEndian.Uint64(header[8:16]))
		idLen := binary.LittleEndian.Uint32(header[16:20])
		id := make([]byte, idLen)
		if _, err := io.ReadFull(decoder, id); err != nil {
			return nil, err
		}
		samples = append(samples, Sample{
			CapturedAt: time.Unix(0, capturedNs).UTC(),
			Elapsed:    time.Duration(elapsedUs) * time.Microsecond,
			RequestID:  string(id),
		})
	}
}
