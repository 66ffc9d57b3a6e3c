// Package events fans job state changes and progress updates out to API
// subscribers. Publishes never block: a subscriber that stops draining its
// channel loses updates rather than stalling the scheduler.
package events

import (
	"sync"

	"archivist/internal/jobs"
)

// Type distinguishes event payloads on the wire.
type Type string

const (
	// TypeJobUpdate carries a full job snapshot after any state or
	// progress change.
	TypeJobUpdate Type = "job_update"
)

// Event is one update delivered to subscribers. Job is a snapshot the
// receiver owns.
type Event struct {
	Type Type      `json:"type"`
	Job  *jobs.Job `json:"job"`
}

const subscriberBuffer = 64

// Hub broadcasts events to any number of subscribers.
type Hub struct {
	mu          sync.Mutex
	subscribers map[chan Event]struct{}
	closed      bool
}

// NewHub returns an empty hub ready for subscribers.
func NewHub() *Hub {
	return &Hub{subscribers: make(map[chan Event]struct{})}
}

// Subscribe registers a new receiver. The returned channel is closed when
// Unsubscribe is called or the hub shuts down.
func (h *Hub) Subscribe() chan Event {
	ch := make(chan Event, subscriberBuffer)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return ch
	}
	h.subscribers[ch] = struct{}{}
	return ch
}

// Unsubscribe removes a receiver and closes its channel.
func (h *Hub) Unsubscribe(ch chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subscribers[ch]; !ok {
		return
	}
	delete(h.subscribers, ch)
	close(ch)
}

// PublishJob snapshots the job and broadcasts it. Slow subscribers are
// skipped, not waited on.
func (h *Hub) PublishJob(job *jobs.Job) {
	if job == nil {
		return
	}
	event := Event{Type: TypeJobUpdate, Job: job.Clone()}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	for ch := range h.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}

// SubscriberCount reports the number of active receivers.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// Close drops all subscribers and closes their channels. Further publishes
// are no-ops.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.subscribers {
		close(ch)
	}
	h.subscribers = make(map[chan Event]struct{})
}
