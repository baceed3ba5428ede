// Package credstore persists the device's network profile in a fixed-layout
// record at the start of the non-volatile region:
//
//	offset  0: network name, 32 bytes, NUL-terminated
//	offset 32: secret, 64 bytes, NUL-terminated
//	offset 96: configured flag, 1 byte
//
// The layout is unversioned; changing it invalidates every stored profile.
package credstore

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/ecocheck/agent/internal/domain"
	"github.com/ecocheck/agent/internal/ports"
)

const (
	nameField   = domain.MaxNetworkNameLen + 1
	secretField = domain.MaxSecretLen + 1

	nameOffset       = 0
	secretOffset     = nameOffset + nameField
	configuredOffset = secretOffset + secretField

	// RecordSize is the number of bytes the profile occupies.
	RecordSize = configuredOffset + 1
)

type Store struct {
	mu   sync.Mutex
	blob ports.BlobStore
}

func New(blob ports.BlobStore) *Store {
	return &Store{blob: blob}
}

// Load reads the record. A record that is not internally consistent is
// reported as unconfigured so the device falls back to the portal.
func (s *Store) Load() (domain.NetworkProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rec [RecordSize]byte
	if _, err := s.blob.ReadAt(rec[:], 0); err != nil {
		return domain.NetworkProfile{}, fmt.Errorf("read profile: %w", err)
	}
	return decode(rec), nil
}

// Save writes the record and commits it before returning.
func (s *Store) Save(p domain.NetworkProfile) error {
	if !p.Valid() {
		return domain.ErrIncompleteProfile
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec := encode(p)
	if _, err := s.blob.WriteAt(rec[:], 0); err != nil {
		return fmt.Errorf("write profile: %w", err)
	}
	if err := s.blob.Commit(); err != nil {
		return fmt.Errorf("commit profile: %w", err)
	}
	return nil
}

// Reset clears the configured flag and keeps the stored strings.
func (s *Store) Reset() error {
	p, err := s.Load()
	if err != nil {
		return err
	}
	p.Configured = false
	return s.Save(p)
}

func encode(p domain.NetworkProfile) [RecordSize]byte {
	var rec [RecordSize]byte
	copy(rec[nameOffset:nameOffset+nameField-1], domain.TruncateBounded(p.NetworkName, domain.MaxNetworkNameLen))
	copy(rec[secretOffset:secretOffset+secretField-1], domain.TruncateBounded(p.Secret, domain.MaxSecretLen))
	if p.Configured {
		rec[configuredOffset] = 1
	}
	return rec
}

func decode(rec [RecordSize]byte) domain.NetworkProfile {
	name, nameOK := cstring(rec[nameOffset : nameOffset+nameField])
	secret, secretOK := cstring(rec[secretOffset : secretOffset+secretField])

	p := domain.NetworkProfile{NetworkName: name, Secret: secret}
	p.Configured = rec[configuredOffset] == 1 && nameOK && secretOK && name != "" && secret != ""
	return p
}

// cstring returns the bytes before the first NUL and whether one was found.
func cstring(field []byte) (string, bool) {
	i := bytes.IndexByte(field, 0)
	if i < 0 {
		return "", false
	}
	return string(field[:i]), true
}
