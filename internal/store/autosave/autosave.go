// Package autosave persists sessions in the background without ever
// blocking the turn that produced them.
package autosave

import (
	"context"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"openhistoria/internal/store"
)

const (
	DefaultBuffer = 8
	saveTimeout   = 30 * time.Second
)

// Saver is the slice of store.Store the writer needs.
type Saver interface {
	SaveGame(ctx context.Context, game store.SavedGame) error
}

type Stats struct {
	Saved   int64
	Dropped int64
	Failed  int64
}

type Writer struct {
	saver  Saver
	logger *log.Logger

	mu     sync.RWMutex
	closed bool
	ch     chan store.SavedGame
	wg     sync.WaitGroup
	once   sync.Once

	saved   atomic.Int64
	dropped atomic.Int64
	failed  atomic.Int64
}

func NewWriter(saver Saver, logger *log.Logger, buffer int) *Writer {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	w := &Writer{
		saver:  saver,
		logger: logger,
		ch:     make(chan store.SavedGame, buffer),
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.loop()
	}()
	return w
}

// Enqueue hands a game to the writer. It reports false when the game was
// dropped because the writer is closed or behind.
func (w *Writer) Enqueue(game store.SavedGame) bool {
	if w == nil {
		return false
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return false
	}
	select {
	case w.ch <- game:
		return true
	default:
		w.dropped.Add(1)
		return false
	}
}

// Close drains queued saves and stops the writer.
func (w *Writer) Close() error {
	w.once.Do(func() {
		w.mu.Lock()
		w.closed = true
		close(w.ch)
		w.mu.Unlock()
		w.wg.Wait()
	})
	return nil
}

func (w *Writer) Stats() Stats {
	return Stats{Saved: w.saved.Load(), Dropped: w.dropped.Load(), Failed: w.failed.Load()}
}

func (w *Writer) loop() {
	for game := range w.ch {
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		err := w.saver.SaveGame(ctx, game)
		cancel()
		if err != nil {
			w.failed.Add(1)
			w.logger.Printf("autosave %s failed: %v", game.ID, err)
			continue
		}
		w.saved.Add(1)
	}
}
