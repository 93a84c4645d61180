package examsession

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// WriteFunc persists one snapshot.
type WriteFunc func(ctx context.Context) error

// PendingWrite is a single-slot debounced writer. Scheduling replaces any
// unsent write; Flush cancels the slot and writes synchronously. Writes never
// overlap, so a debounced write that already started lands before a later
// flush.
type PendingWrite struct {
	clock  Clock
	delay  time.Duration
	logger *slog.Logger

	mu    sync.Mutex
	timer Timer
	gen   uint64

	writeMu sync.Mutex
}

func NewPendingWrite(clock Clock, delay time.Duration, logger *slog.Logger) *PendingWrite {
	if clock == nil {
		clock = SystemClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PendingWrite{clock: clock, delay: delay, logger: logger}
}

// Schedule arms the slot with w, dropping whatever was pending.
func (p *PendingWrite) Schedule(w WriteFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.gen++
	gen := p.gen
	if p.timer != nil {
		p.timer.Stop()
	}
	p.timer = p.clock.AfterFunc(p.delay, func() { p.fire(gen, w) })
}

func (p *PendingWrite) fire(gen uint64, w WriteFunc) {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	p.mu.Lock()
	if gen != p.gen {
		p.mu.Unlock()
		return
	}
	p.timer = nil
	p.mu.Unlock()

	// Not retried; the next save supersedes it
	if err := w(context.Background()); err != nil {
		p.logger.Warn("Debounced session save failed", "error", err)
	}
}

// Flush drops the pending write and runs w now, returning its error.
func (p *PendingWrite) Flush(ctx context.Context, w WriteFunc) error {
	p.Cancel()

	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	return w(ctx)
}

// Cancel drops the pending write, if any.
func (p *PendingWrite) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.gen++
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

// CancelAndWait drops the pending write and waits for one already running to
// finish.
func (p *PendingWrite) CancelAndWait() {
	p.Cancel()

	p.writeMu.Lock()
	p.writeMu.Unlock()
}

// Pending reports whether a debounced write is armed.
func (p *PendingWrite) Pending() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.timer != nil
}
