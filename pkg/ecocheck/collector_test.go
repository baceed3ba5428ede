package ecocheck

import (
	"errors"
	"testing"
	"time"

	"github.com/ecocheck/agent/internal/domain"
)

func TestCallbackSinkCopiesReports(t *testing.T) {
	var got []Report
	snk := NewCallbackSink("", func(batch []Report) error {
		got = batch
		return nil
	})
	if snk.Name() != "callback" {
		t.Fatalf("expected default name callback, got %s", snk.Name())
	}

	in := &domain.Report{ID: "r-1", DeviceID: "esp01", Status: domain.StatusOnline}
	if err := snk.WriteBatch([]*domain.Report{in}); err != nil {
		t.Fatalf("write batch: %v", err)
	}
	in.DeviceID = "changed"
	if len(got) != 1 || got[0].DeviceID != "esp01" {
		t.Fatalf("callback must receive a copy, got %+v", got)
	}
}

func TestCallbackSinkNilHandler(t *testing.T) {
	snk := NewCallbackSink("broken", nil)
	if err := snk.WriteBatch([]*domain.Report{{ID: "r-1"}}); err == nil {
		t.Fatalf("expected error for nil handler")
	}
}

func TestChannelSinkDeliversAndCloses(t *testing.T) {
	snk, ch, closeFn := NewChannelSink("", 1)

	if err := snk.WriteBatch([]*domain.Report{{ID: "r-1", ReceivedAt: time.Now()}}); err != nil {
		t.Fatalf("write batch: %v", err)
	}
	batch := <-ch
	if len(batch) != 1 || batch[0].ID != "r-1" {
		t.Fatalf("unexpected batch %+v", batch)
	}

	closeFn()
	if err := snk.WriteBatch([]*domain.Report{{ID: "r-2"}}); !errors.Is(err, ErrChannelSinkClosed) {
		t.Fatalf("expected ErrChannelSinkClosed, got %v", err)
	}
	if _, ok := <-ch; ok {
		t.Fatalf("expected channel closed")
	}
}

func TestNewCollectorServerWithoutStorage(t *testing.T) {
	srv, err := NewCollectorServer(IngestConfig{})
	if err != nil {
		t.Fatalf("collector server: %v", err)
	}
	if srv.Handler() == nil {
		t.Fatalf("expected handler")
	}
	if err := srv.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}
