package log

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

const hourLayout = "2006-01-02-15"

// HourlyWriter appends JSON lines to <dir>/<prefix>-YYYY-MM-DD-HH.jsonl.zst.
// Each line is encoded as its own zstd frame, so a line is readable as soon as
// Write returns and a crash can lose at most the frame being written.
type HourlyWriter struct {
	dir    string
	prefix string
	now    func() time.Time

	mu   sync.Mutex
	enc  *zstd.Encoder
	hour string
	out  *os.File
	buf  []byte
}

func NewHourlyWriter(dir, prefix string) *HourlyWriter {
	return &HourlyWriter{dir: dir, prefix: prefix, now: time.Now}
}

// Write appends v as one line. Writing after Close reopens the current file.
func (w *HourlyWriter) Write(v any) error {
	line, err := json.Marshal(v)
	if err != nil {
		return err
	}
	line = append(line, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.openLocked(w.now().UTC().Format(hourLayout)); err != nil {
		return err
	}
	w.buf = w.enc.EncodeAll(line, w.buf[:0])
	_, err = w.out.Write(w.buf)
	return err
}

func (w *HourlyWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.releaseLocked()
}

func (w *HourlyWriter) openLocked(hour string) error {
	if w.out != nil && w.hour == hour {
		return nil
	}
	if err := w.releaseLocked(); err != nil {
		return err
	}
	if w.enc == nil {
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
		if err != nil {
			return err
		}
		w.enc = enc
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.path(hour), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	w.out, w.hour = f, hour
	return nil
}

func (w *HourlyWriter) releaseLocked() error {
	if w.out == nil {
		return nil
	}
	err := w.out.Close()
	w.out, w.hour = nil, ""
	return err
}

func (w *HourlyWriter) path(hour string) string {
	return filepath.Join(w.dir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}

// ReadLines calls fn for every non-empty line of a file written by
// HourlyWriter. A frame cut short at the end of the file is treated as the end
// of the file.
func ReadLines(path string, fn func(line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		if len(sc.Bytes()) == 0 {
			continue
		}
		if err := fn(sc.Bytes()); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// Files lists the journal files under dir with the given prefix, oldest first.
func Files(dir, prefix string) ([]string, error) {
	return filepath.Glob(filepath.Join(dir, prefix+"-*.jsonl.zst"))
}
