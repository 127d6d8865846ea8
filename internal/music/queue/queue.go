// Package queue implements the per-guild playback queue: a bounded FIFO with
// a current-track cursor and a short history of finished items.
//
// A TrackQueue is not safe for concurrent use; it is owned by the guild's
// player loop, which serializes all access.
package queue

import (
	"errors"
	"math/rand"

	"sombra/internal/music/track"
)

const historyLimit = 10

// ErrQueueFull is returned by Add when the queue is at capacity.
var ErrQueueFull = errors.New("queue is full")

// TrackQueue is a bounded FIFO of queue items.
type TrackQueue struct {
	items   []*track.QueueItem
	maxSize int
	current *track.QueueItem
	history []*track.QueueItem
}

// New creates a queue bounded to maxSize items (the current item does not
// count against the bound).
func New(maxSize int) *TrackQueue {
	if maxSize < 1 {
		maxSize = 1
	}
	return &TrackQueue{maxSize: maxSize}
}

// Current returns the in-flight item, if any.
func (q *TrackQueue) Current() *track.QueueItem {
	return q.current
}

// SetCurrent replaces the current item. The previous current, if any, is
// pushed into history; the oldest history entry is evicted past the limit.
func (q *TrackQueue) SetCurrent(item *track.QueueItem) {
	if q.current != nil {
		q.history = append(q.history, q.current)
		if len(q.history) > historyLimit {
			q.history = q.history[1:]
		}
	}
	q.current = item
}

// Size reports the number of queued items, excluding current.
func (q *TrackQueue) Size() int {
	return len(q.items)
}

// IsEmpty reports whether no items are queued.
func (q *TrackQueue) IsEmpty() bool {
	return len(q.items) == 0
}

// IsFull reports whether the queue is at capacity.
func (q *TrackQueue) IsFull() bool {
	return len(q.items) >= q.maxSize
}

// TotalDuration sums all queued durations plus the current item's, in seconds.
func (q *TrackQueue) TotalDuration() int {
	total := 0
	for _, item := range q.items {
		total += item.Track.Duration
	}
	if q.current != nil {
		total += q.current.Track.Duration
	}
	return total
}

// FormatTotalDuration renders TotalDuration as M:SS or H:MM:SS.
func (q *TrackQueue) FormatTotalDuration() string {
	return track.FormatSeconds(q.TotalDuration())
}

// Add appends a track to the tail. Returns ErrQueueFull at capacity.
func (q *TrackQueue) Add(t *track.Track, requesterID, requesterName string) (*track.QueueItem, error) {
	if q.IsFull() {
		return nil, ErrQueueFull
	}
	item := track.NewQueueItem(t, requesterID, requesterName)
	q.items = append(q.items, item)
	q.updatePositions()
	return item, nil
}

// AddMultiple adds tracks one at a time, stopping once full. Partial success
// is not an error; the returned slice holds whatever was accepted.
func (q *TrackQueue) AddMultiple(tracks []*track.Track, requesterID, requesterName string) []*track.QueueItem {
	added := make([]*track.QueueItem, 0, len(tracks))
	for _, t := range tracks {
		item, err := q.Add(t, requesterID, requesterName)
		if err != nil {
			break
		}
		added = append(added, item)
	}
	return added
}

// Requeue appends a copy of an already-played item at the tail, preserving
// its requester. Used by queue-loop mode.
func (q *TrackQueue) Requeue(item *track.QueueItem) (*track.QueueItem, error) {
	return q.Add(item.Track, item.RequesterID, item.RequesterName)
}

// GetNext pops the head and recomputes positions. Returns nil when empty.
// It does not touch the current pointer; that is the caller's job.
func (q *TrackQueue) GetNext() *track.QueueItem {
	if len(q.items) == 0 {
		return nil
	}
	item := q.items[0]
	q.items = q.items[1:]
	q.updatePositions()
	return item
}

// PeekNext returns the head without removing it.
func (q *TrackQueue) PeekNext() *track.QueueItem {
	if len(q.items) == 0 {
		return nil
	}
	return q.items[0]
}

// RemoveAt removes the item at a 1-based displayed position. Position 1 is
// the current item when one exists, so the first queued item sits at 2.
// Returns nil for out-of-range positions.
func (q *TrackQueue) RemoveAt(position int) *track.QueueItem {
	idx := position - 1
	if q.current != nil {
		idx = position - 2
	}
	if idx < 0 || idx >= len(q.items) {
		return nil
	}
	removed := q.items[idx]
	q.items = append(q.items[:idx], q.items[idx+1:]...)
	q.updatePositions()
	return removed
}

// Clear drops all queued items and the current pointer. History is kept.
func (q *TrackQueue) Clear() {
	q.items = nil
	q.current = nil
}

// ClearQueued drops queued items but keeps current. Returns the count removed.
func (q *TrackQueue) ClearQueued() int {
	n := len(q.items)
	q.items = nil
	return n
}

// Shuffle randomizes the queued order. Current is untouched.
func (q *TrackQueue) Shuffle() {
	rand.Shuffle(len(q.items), func(i, j int) {
		q.items[i], q.items[j] = q.items[j], q.items[i]
	})
	q.updatePositions()
}

// GetPage returns one page of queued items. The page number is clamped into
// [1, totalPages] where totalPages is at least 1.
func (q *TrackQueue) GetPage(page, perPage int) ([]*track.QueueItem, int, int) {
	if perPage < 1 {
		perPage = 1
	}
	totalPages := (len(q.items) + perPage - 1) / perPage
	if totalPages < 1 {
		totalPages = 1
	}
	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}
	start := (page - 1) * perPage
	end := start + perPage
	if start > len(q.items) {
		start = len(q.items)
	}
	if end > len(q.items) {
		end = len(q.items)
	}
	return q.items[start:end], page, totalPages
}

// GetAll returns a copy of the queued items in order.
func (q *TrackQueue) GetAll() []*track.QueueItem {
	out := make([]*track.QueueItem, len(q.items))
	copy(out, q.items)
	return out
}

// History returns a copy of the finished items, oldest first.
func (q *TrackQueue) History() []*track.QueueItem {
	out := make([]*track.QueueItem, len(q.history))
	copy(out, q.history)
	return out
}

func (q *TrackQueue) updatePositions() {
	start := 1
	if q.current != nil {
		start = 2
	}
	for i, item := range q.items {
		item.Position = start + i
	}
}
