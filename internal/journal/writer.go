// Package journal records the demo's tick feed and poll latencies to disk so
// a run can be inspected after the fact. Tick events land in a
// snappy-compressed JSONL log; latency samples are batched into a zstd
// stream of length-prefixed binary records.
package journal

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"

	"tickcast/server/internal/counter"
)

const flushInterval = 200 * time.Millisecond

// sampleBlob stages a latency sample before it is persisted to disk.
type sampleBlob struct {
	CapturedAt time.Time
	Elapsed    time.Duration
	RequestID  string
}

// Writer streams run artefacts to a timestamped bundle directory.
type Writer struct {
	mu           sync.Mutex
	dir          string
	now          func() time.Time
	tickFile     *os.File
	tickStream   *snappy.Writer
	sampleFile   *os.File
	sampleStream *zstd.Encoder
	pending      []sampleBlob
	lastFlush    time.Time
}

// Manifest describes the bundle layout so tooling can locate artefacts.
type Manifest struct {
	Version         int    `json:"version"`
	CreatedAt       string `json:"created_at"`
	FlushIntervalMs int    `json:"flush_interval_ms"`
	TicksPath       string `json:"ticks_path"`
	SamplesPath     string `json:"samples_path"`
}

// NewWriter prepares the journal directory and opens the compressed sinks.
func NewWriter(root string, clock func() time.Time) (*Writer, Manifest, error) {
	if root == "" {
		return nil, Manifest{}, fmt.Errorf("journal root must be provided")
	}
	if clock == nil {
		clock = time.Now
	}

	created := clock().UTC()
	folder := fmt.Sprintf("run-%s", created.Format("20060102T150405Z"))
	path := filepath.Join(root, folder)

	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, Manifest{}, err
	}

	ticksPath := filepath.Join(path, "ticks.jsonl.sz")
	samplesPath := filepath.Join(path, "samples.bin.zst")
	manifestPath := filepath.Join(path, "manifest.json")

	tickFile, err := os.Create(ticksPath)
	if err != nil {
		return nil, Manifest{}, err
	}
	tickStream := snappy.NewBufferedWriter(tickFile)

	sampleFile, err := os.Create(samplesPath)
	if err != nil {
		tickFile.Close()
		return nil, Manifest{}, err
	}
	sampleStream, err := zstd.NewWriter(sampleFile)
	if err != nil {
		tickStream.Close()
		tickFile.Close()
		sampleFile.Close()
		return nil, Manifest{}, err
	}

	manifest := Manifest{
		Version:         1,
		CreatedAt:       created.Format(time.RFC3339Nano),
		FlushIntervalMs: int(flushInterval / time.Millisecond),
		TicksPath:       "ticks.jsonl.sz",
		SamplesPath:     "samples.bin.zst",
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err == nil {
		err = os.WriteFile(manifestPath, data, 0o644)
	}
	if err != nil {
		sampleStream.Close()
		sampleFile.Close()
		tickStream.Close()
		tickFile.Close()
		return nil, Manifest{}, err
	}

	writer := &Writer{
		dir:          path,
		now:          clock,
		tickFile:     tickFile,
		tickStream:   tickStream,
		sampleFile:   sampleFile,
		sampleStream: sampleStream,
	}

	return writer, manifest, nil
}

// Directory exposes the directory backing the journal bundle.
func (w *Writer) Directory() string {
	if w == nil {
		return ""
	}
	return w.dir
}

// AppendTick writes a single tick event line to the compressed tick log.
func (w *Writer) AppendTick(event counter.TickEvent) error {
	if w == nil {
		return fmt.Errorf("journal not initialised")
	}
	captured := w.now().UTC()

	w.mu.Lock()
	defer w.mu.Unlock()

	record := struct {
		Value      int64  `json:"value"`
		Timestamp  int64  `json:"timestamp"`
		CapturedAt string `json:"captured_at"`
	}{
		Value:      event.Value,
		Timestamp:  event.Timestamp,
		CapturedAt: captured.Format(time.RFC3339Nano),
	}
	line, err := json.Marshal(record)
	if err != nil {
		return err
	}
	if _, err := w.tickStream.Write(line); err != nil {
		return err
	}
	if _, err := w.tickStream.Write([]byte("\n")); err != nil {
		return err
	}
	return w.tickStream.Flush()
}

// AppendSample buffers a poll latency sample until the flush cadence is reached.
func (w *Writer) AppendSample(requestID string, elapsed time.Duration) error {
	if w == nil {
		return fmt.Errorf("journal not initialised")
	}
	captured := w.now().UTC()

	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending = append(w.pending, sampleBlob{CapturedAt: captured, Elapsed: elapsed, RequestID: requestID})
	if w.lastFlush.IsZero() {
		w.lastFlush = captured
		return nil
	}
	if captured.Sub(w.lastFlush) >= flushInterval {
		if err := w.flushLocked(); err != nil {
			return err
		}
		w.lastFlush = captured
	}
	return nil
}

// Flush forces pending samples to be written regardless of cadence.
func (w *Writer) Flush() error {
	if w == nil {
		return fmt.Errorf("journal not initialised")
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.flushLocked(); err != nil {
		return err
	}
	w.lastFlush = w.now().UTC()
	return nil
}

// Close flushes all buffers and releases file handles.
func (w *Writer) Close() error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	var firstErr error
	if err := w.flushLocked(); err != nil {
		firstErr = err
	}
	if err := w.tickStream.Flush(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := w.tickStream.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := w.tickFile.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := w.sampleStream.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := w.sampleFile.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// flushLocked writes buffered samples to the zstd stream; callers must hold the mutex.
func (w *Writer) flushLocked() error {
	if len(w.pending) == 0 {
		return nil
	}
	// Length-prefixed records so readers can step through without framing state.
	for _, sample := range w.pending {
		id := []byte(sample.RequestID)
		header := make([]byte, 8+8+4)
		binary.LittleEndian.PutUint64(header[0:8], uint64(sample.CapturedAt.UnixNano()))
		binary.LittleEndian.PutUint64(header[8:16], uint64(sample.Elapsed.Microseconds()))
		binary.LittleEndian.PutUint32(header[16:20], uint32(len(id)))
		if _, err := w.sampleStream.Write(header); err != nil {
			return err
		}
		if _, err := w.sampleStream.Write(id); err != nil {
			return err
		}
	}
	w.pending = w.pending[:0]
	return nil
}
