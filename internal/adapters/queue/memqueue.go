package queue

import (
	"sync"

	"github.com/ecocheck/agent/internal/domain"
	"github.com/ecocheck/agent/internal/ports"
)

// MemQueue is a bounded in-memory queue of sensor readings that preserves
// FIFO ordering. Producers on other goroutines enqueue; the agent tick drains.
type MemQueue struct {
	mu         sync.Mutex
	data       []domain.Reading
	cap        int
	dropOldest bool
}

func NewMemQueue(capacity int, dropOldest bool) *MemQueue {
	if capacity <= 0 {
		capacity = 1
	}
	return &MemQueue{
		data:       make([]domain.Reading, 0, capacity),
		cap:        capacity,
		dropOldest: dropOldest,
	}
}

// NewMemQueueFromPolicy sizes the queue and picks its overflow behaviour.
func NewMemQueueFromPolicy(pol ports.Policy) *MemQueue {
	return NewMemQueue(pol.MaxQueueLen, pol.OnQueueFull == "drop_oldest")
}

// Enqueue reports false when the reading was not accepted. With dropOldest the
// head is evicted instead and the new reading is always accepted, since only
// the latest value of a metric matters.
func (q *MemQueue) Enqueue(r domain.Reading) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.data) >= q.cap {
		if !q.dropOldest {
			return false
		}
		q.data = append(q.data[:0], q.data[1:]...)
	}
	q.data = append(q.data, r)
	return true
}

func (q *MemQueue) DequeueBatch(max int) []domain.Reading {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.data) == 0 {
		return nil
	}
	if max <= 0 || max > len(q.data) {
		max = len(q.data)
	}
	out := make([]domain.Reading, max)
	copy(out, q.data[:max])
	q.data = append(q.data[:0], q.data[max:]...)
	return out
}

func (q *MemQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.data)
}

var _ ports.ReadingQueue = (*MemQueue)(nil)
