package shard

import (
	"sync"
	"time"

	"github.com/ternarybob/focusedcrawl/internal/models"
)

// TrainBuffer accumulates qualifying CrawlResults and flushes them to
// the underlying Writer once buffer_max_size is reached or a caller
// (normally the Manager's periodic timer) calls Flush on the
// flush_interval_seconds cadence (spec §4.4 "Flush").
type TrainBuffer struct {
	mu      sync.Mutex
	writer  *Writer
	maxSize int
	items   []*models.CrawlResult
}

// NewTrainBuffer wraps writer with a size-triggered flush policy.
func NewTrainBuffer(writer *Writer, maxSize int) *TrainBuffer {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &TrainBuffer{writer: writer, maxSize: maxSize}
}

// Add appends result to the buffer, flushing immediately if the
// buffer has reached maxSize.
func (b *TrainBuffer) Add(result *models.CrawlResult) error {
	b.mu.Lock()
	b.items = append(b.items, result)
	full := len(b.items) >= b.maxSize
	b.mu.Unlock()

	if full {
		return b.Flush()
	}
	return nil
}

// Flush writes any buffered results to the current-hour shard and
// clears the buffer, regardless of size.
func (b *TrainBuffer) Flush() error {
	b.mu.Lock()
	pending := b.items
	b.items = nil
	b.mu.Unlock()

	if len(pending) == 0 {
		return nil
	}
	return b.writer.Append(pending)
}

// FlushInterval blocks, flushing this buffer every interval until stop
// is closed, then flushes once more and returns.
func (b *TrainBuffer) FlushInterval(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			_ = b.Flush()
			return
		case <-ticker.C:
			_ = b.Flush()
		}
	}
}
