package eeprom

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/ecocheck/agent/internal/ports"
)

// DefaultSize matches the region the firmware reserves for its settings.
const DefaultSize = 512

// erased is the value of a never-written flash cell.
const erased = 0xFF

var ErrOutOfRange = errors.New("eeprom: access out of range")

// FileEEPROM emulates an EEPROM region with a single file. Writes go to an
// in-memory shadow; Commit replaces the file atomically and fsyncs it.
type FileEEPROM struct {
	mu     sync.Mutex
	path   string
	shadow []byte
	dirty  bool
}

func NewFileEEPROM(path string, size int64) (*FileEEPROM, error) {
	if size <= 0 {
		size = DefaultSize
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	e := &FileEEPROM{
		path:   path,
		shadow: make([]byte, size),
	}
	if err := e.bootstrap(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *FileEEPROM) bootstrap() error {
	for i := range e.shadow {
		e.shadow[i] = erased
	}
	f, err := os.Open(e.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	defer f.Close()

	// a short file leaves the tail erased; a long one is clipped to the region
	if _, err := io.ReadFull(f, e.shadow); err != nil &&
		!errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("eeprom read %s: %w", e.path, err)
	}
	return nil
}

func (e *FileEEPROM) ReadAt(p []byte, off int64) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if off < 0 || off+int64(len(p)) > int64(len(e.shadow)) {
		return 0, ErrOutOfRange
	}
	return copy(p, e.shadow[off:]), nil
}

func (e *FileEEPROM) WriteAt(p []byte, off int64) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if off < 0 || off+int64(len(p)) > int64(len(e.shadow)) {
		return 0, ErrOutOfRange
	}
	n := copy(e.shadow[off:], p)
	e.dirty = true
	return n, nil
}

func (e *FileEEPROM) Commit() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.dirty {
		return nil
	}
	if err := e.persistLocked(); err != nil {
		return err
	}
	e.dirty = false
	return nil
}

func (e *FileEEPROM) Size() int64 {
	return int64(len(e.shadow))
}

func (e *FileEEPROM) persistLocked() error {
	tmp := e.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.Write(e.shadow); err != nil {
		f.Close()
		return fmt.Errorf("eeprom write: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("eeprom sync: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, e.path); err != nil {
		return fmt.Errorf("eeprom rename: %w", err)
	}
	return syncDir(filepath.Dir(e.path))
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	// some filesystems refuse fsync on directories
	if err := d.Sync(); err != nil && !errors.Is(err, syscall.EINVAL) {
		return err
	}
	return nil
}

var _ ports.BlobStore = (*FileEEPROM)(nil)
