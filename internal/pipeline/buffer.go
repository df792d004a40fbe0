package pipeline

import (
	"sync"
	"time"

	"github.com/crimson-sun/sawmill/internal/model"
)

// streamBuffer accumulates raw logs until the analysis window elapses or the
// batch cap is reached. The pipeline then hands the batch to the engine.
type streamBuffer struct {
	window  time.Duration
	maxSize int // 0 means unlimited

	mu      sync.Mutex
	pending []model.RawLog
	timer   *time.Timer
}

func newStreamBuffer(window time.Duration, maxSize int) *streamBuffer {
	return &streamBuffer{
		window:  window,
		maxSize: maxSize,
	}
}

// add appends a raw log to the buffer. If this is the first entry, starts the
// flush timer. Returns true if the buffer is full and needs flushing.
func (b *streamBuffer) add(raw model.RawLog) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.pending = append(b.pending, raw)
	if len(b.pending) == 1 {
		b.timer = time.NewTimer(b.window)
	}
	return b.maxSize > 0 && len(b.pending) >= b.maxSize
}

// flushCh returns the timer's channel, or nil if no timer is active.
func (b *streamBuffer) flushCh() <-chan time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.timer == nil {
		return nil
	}
	return b.timer.C
}

// take drains the buffer and stops the timer, returning the pending batch.
func (b *streamBuffer) take() []model.RawLog {
	b.mu.Lock()
	defer b.mu.Unlock()

	raws := b.pending
	b.pending = nil
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	return raws
}
