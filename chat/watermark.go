package chat

import "sync"

// Watermark tracks the highest message id merged into the view. It is
// monotonically non-decreasing for the lifetime of one session and resets
// only when a fresh Controller is built around a new snapshot.
type Watermark struct {
	mu sync.Mutex
	id int64
}

// Advance raises the watermark to the maximum id in batch and reports
// whether it moved. A batch at or below the current value leaves it
// unchanged.
func (w *Watermark) Advance(batch []Message) bool {
	var max int64
	for _, m := range batch {
		if m.ID > max {
			max = m.ID
		}
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if max > w.id {
		w.id = max
		return true
	}
	return false
}

// Load returns the current watermark, 0 if nothing has been merged.
func (w *Watermark) Load() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.id
}
