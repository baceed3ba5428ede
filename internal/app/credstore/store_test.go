package credstore

import (
	"bytes"
	"strings"
	"testing"

	"github.com/ecocheck/agent/internal/adapters/eeprom"
	"github.com/ecocheck/agent/internal/domain"
)

func TestLoadErasedRegionIsUnconfigured(t *testing.T) {
	s := New(eeprom.NewMemEEPROM(eeprom.DefaultSize))

	p, err := s.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if p.Configured {
		t.Fatalf("erased flash must not yield a configured profile: %+v", p)
	}
}

func TestSaveLoadRoundTripAcrossPowerCycle(t *testing.T) {
	blob := eeprom.NewMemEEPROM(eeprom.DefaultSize)
	s := New(blob)

	want, err := domain.NewNetworkProfile(strings.Repeat("n", 31), strings.Repeat("p", 63))
	if err != nil {
		t.Fatalf("new profile: %v", err)
	}
	if err := s.Save(want); err != nil {
		t.Fatalf("save: %v", err)
	}

	blob.PowerCycle()
	got, err := New(blob).Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != want {
		t.Fatalf("round trip mismatch: want %+v got %+v", want, got)
	}
	if blob.Commits() != 1 {
		t.Fatalf("expected save to commit once, got %d", blob.Commits())
	}
}

func TestSaveRejectsInvalidConfiguredProfile(t *testing.T) {
	s := New(eeprom.NewMemEEPROM(eeprom.DefaultSize))
	err := s.Save(domain.NetworkProfile{NetworkName: "home", Configured: true})
	if err != domain.ErrIncompleteProfile {
		t.Fatalf("expected ErrIncompleteProfile, got %v", err)
	}
}

func TestLoadRejectsInconsistentRecords(t *testing.T) {
	cases := map[string]func(rec []byte){
		"configured byte not one": func(rec []byte) {
			copy(rec, "home\x00")
			copy(rec[secretOffset:], "secret\x00")
			rec[configuredOffset] = 0xFF
		},
		"name without terminator": func(rec []byte) {
			copy(rec[nameOffset:secretOffset], bytes.Repeat([]byte{'x'}, nameField))
			copy(rec[secretOffset:], "secret\x00")
			rec[configuredOffset] = 1
		},
		"empty secret": func(rec []byte) {
			copy(rec, "home\x00")
			rec[secretOffset] = 0
			rec[configuredOffset] = 1
		},
	}

	for name, corrupt := range cases {
		t.Run(name, func(t *testing.T) {
			blob := eeprom.NewMemEEPROM(eeprom.DefaultSize)
			rec := make([]byte, RecordSize)
			corrupt(rec)
			if _, err := blob.WriteAt(rec, 0); err != nil {
				t.Fatalf("seed: %v", err)
			}

			p, err := New(blob).Load()
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if p.Configured {
				t.Fatalf("expected unconfigured profile, got %+v", p)
			}
		})
	}
}

func TestResetKeepsStringsAndClearsFlag(t *testing.T) {
	blob := eeprom.NewMemEEPROM(eeprom.DefaultSize)
	s := New(blob)
	p, _ := domain.NewNetworkProfile("home", "secret")
	if err := s.Save(p); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.Reset(); err != nil {
		t.Fatalf("reset: %v", err)
	}

	blob.PowerCycle()
	got, err := s.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Configured || got.NetworkName != "home" {
		t.Fatalf("expected unconfigured profile named home, got %+v", got)
	}
}
