// Package journal keeps an append-only, zstd-compressed JSONL record of
// every turn, rotated daily.
package journal

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

const (
	prefix        = "turns"
	extension     = ".jsonl.zst"
	DefaultBuffer = 64
)

// Entry is one journaled turn.
type Entry struct {
	At          time.Time `json:"at"`
	Kind        string    `json:"kind,omitempty"`
	Command     string    `json:"command"`
	Turn        int       `json:"turn"`
	Message     string    `json:"message"`
	Applied     []string  `json:"applied,omitempty"`
	Ignored     int       `json:"ignored,omitempty"`
	Significant bool      `json:"significant"`
	SnapshotID  string    `json:"snapshotId,omitempty"`
	Error       string    `json:"error,omitempty"`
}

// FileWriter appends entries to <dir>/turns-YYYY-MM-DD.jsonl.zst.
type FileWriter struct {
	dir string
	now func() time.Time

	mu     sync.Mutex
	curDay string
	f      *os.File
	enc    *zstd.Encoder
	w      *bufio.Writer
}

func NewFileWriter(dir string) *FileWriter {
	return &FileWriter{dir: dir, now: time.Now}
}

func (w *FileWriter) Write(e Entry) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	day := w.now().UTC().Format("2006-01-02")
	if day != w.curDay || w.enc == nil {
		if err := w.rotateLocked(day); err != nil {
			return err
		}
	}

	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshaling journal entry: %w", err)
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	if err := w.w.Flush(); err != nil {
		return err
	}
	return w.enc.Flush()
}

func (w *FileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *FileWriter) rotateLocked(day string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("creating journal directory: %w", err)
	}
	f, err := os.OpenFile(w.pathForDay(day), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening journal: %w", err)
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 64*1024)
	w.curDay = day
	return nil
}

func (w *FileWriter) closeLocked() error {
	var err error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	return err
}

func (w *FileWriter) pathForDay(day string) string {
	return filepath.Join(w.dir, fmt.Sprintf("%s-%s%s", prefix, day, extension))
}

// Files lists journal files in dir, oldest first.
func Files(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading journal directory: %w", err)
	}
	var files []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, prefix+"-") || !strings.HasSuffix(name, extension) {
			continue
		}
		files = append(files, filepath.Join(dir, name))
	}
	sort.Strings(files)
	return files, nil
}

// ReadFile decodes every entry in one journal file.
func ReadFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("creating zstd reader: %w", err)
	}
	defer dec.Close()

	var entries []Entry
	jd := json.NewDecoder(dec)
	for {
		var e Entry
		err := jd.Decode(&e)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return entries, fmt.Errorf("decoding %s: %w", filepath.Base(path), err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Tail returns the last n entries across every journal file in dir.
func Tail(dir string, n int) ([]Entry, error) {
	files, err := Files(dir)
	if err != nil {
		return nil, err
	}
	var out []Entry
	for i := len(files) - 1; i >= 0 && len(out) < n; i-- {
		entries, err := ReadFile(files[i])
		if err != nil {
			return nil, err
		}
		out = append(entries, out...)
	}
	if len(out) > n {
		out = out[len(out)-n:]
	}
	return out, nil
}

// Async feeds a FileWriter from a buffered channel. Record never blocks;
// entries are dropped when the buffer is full and write failures are logged.
type Async struct {
	w      *FileWriter
	logger *log.Logger

	mu     sync.RWMutex
	closed bool
	ch     chan Entry
	wg     sync.WaitGroup
	once   sync.Once
}

func NewAsync(w *FileWriter, logger *log.Logger, buffer int) *Async {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	a := &Async{w: w, logger: logger, ch: make(chan Entry, buffer)}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		for e := range a.ch {
			if err := a.w.Write(e); err != nil {
				a.logger.Printf("journal write failed: %v", err)
			}
		}
	}()
	return a
}

func (a *Async) Record(e Entry) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return false
	}
	select {
	case a.ch <- e:
		return true
	default:
		return false
	}
}

func (a *Async) Close() error {
	var err error
	a.once.Do(func() {
		a.mu.Lock()
		a.closed = true
		close(a.ch)
		a.mu.Unlock()
		a.wg.Wait()
		err = a.w.Close()
	})
	return err
}
