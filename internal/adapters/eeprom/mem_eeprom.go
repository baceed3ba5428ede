package eeprom

import (
	"sync"

	"github.com/ecocheck/agent/internal/ports"
)

// MemEEPROM keeps the staged and the committed image separately so callers
// can simulate a power cycle that loses uncommitted writes.
type MemEEPROM struct {
	mu      sync.Mutex
	staged  []byte
	durable []byte
	commits int
}

func NewMemEEPROM(size int64) *MemEEPROM {
	if size <= 0 {
		size = DefaultSize
	}
	m := &MemEEPROM{
		staged:  make([]byte, size),
		durable: make([]byte, size),
	}
	for i := range m.staged {
		m.staged[i] = erased
		m.durable[i] = erased
	}
	return m
}

func (m *MemEEPROM) ReadAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if off < 0 || off+int64(len(p)) > int64(len(m.staged)) {
		return 0, ErrOutOfRange
	}
	return copy(p, m.staged[off:]), nil
}

func (m *MemEEPROM) WriteAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if off < 0 || off+int64(len(p)) > int64(len(m.staged)) {
		return 0, ErrOutOfRange
	}
	return copy(m.staged[off:], p), nil
}

func (m *MemEEPROM) Commit() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copy(m.durable, m.staged)
	m.commits++
	return nil
}

func (m *MemEEPROM) Size() int64 {
	return int64(len(m.staged))
}

// PowerCycle discards uncommitted writes.
func (m *MemEEPROM) PowerCycle() {
	m.mu.Lock()
	defer m.mu.Unlock()
	copy(m.staged, m.durable)
}

// Commits returns how many times Commit was called.
func (m *MemEEPROM) Commits() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.commits
}

var _ ports.BlobStore = (*MemEEPROM)(nil)
