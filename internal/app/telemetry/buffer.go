package telemetry

import (
	"sync"
	"time"

	"github.com/ecocheck/agent/internal/domain"
	"github.com/ecocheck/agent/internal/ports"
)

// Buffer holds the last known value of each metric. Values are never cleared;
// only the shared update time moves forward.
type Buffer struct {
	mu         sync.Mutex
	clock      ports.Clock
	values     map[domain.Metric]float64
	lastUpdate time.Time
	valid      bool
}

func NewBuffer(clock ports.Clock) *Buffer {
	return &Buffer{
		clock:  clock,
		values: make(map[domain.Metric]float64, len(domain.Metrics())),
	}
}

// Set stores v for m and stamps the buffer with the current time. Unknown
// metrics are ignored.
func (b *Buffer) Set(m domain.Metric, v float64) {
	if !m.Valid() {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.values[m] = v
	b.valid = true
	b.lastUpdate = b.clock.Now()
}

// Present reports how many metric slots hold a value.
func (b *Buffer) Present() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.values)
}

type entry struct {
	metric domain.Metric
	value  float64
}

type snapshot struct {
	entries    []entry
	lastUpdate time.Time
	valid      bool
}

// snapshot copies the present slots in report order.
func (b *Buffer) snapshot() snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := snapshot{lastUpdate: b.lastUpdate, valid: b.valid}
	for _, m := range domain.Metrics() {
		if v, ok := b.values[m]; ok {
			s.entries = append(s.entries, entry{metric: m, value: v})
		}
	}
	return s
}
