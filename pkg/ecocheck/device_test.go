package ecocheck

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/ecocheck/agent/internal/adapters/clock"
	"github.com/ecocheck/agent/internal/adapters/eeprom"
)

type stubRadio struct {
	mu     sync.Mutex
	joined string
}

func (r *stubRadio) StartAccessPoint(string, string) (netip.Addr, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.joined = ""
	return netip.MustParseAddr("192.168.4.1"), nil
}

func (r *stubRadio) Join(name, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.joined = name
	return nil
}

func (r *stubRadio) Connected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.joined != ""
}

func (r *stubRadio) LocalAddr() netip.Addr {
	if r.Connected() {
		return netip.MustParseAddr("10.0.0.7")
	}
	return netip.MustParseAddr("192.168.4.1")
}

type stubCollector struct {
	started, stopped int
}

func (c *stubCollector) Start(ReadingQueue) error {
	c.started++
	return nil
}

func (c *stubCollector) Stop() error {
	c.stopped++
	return nil
}

func startCollectorServer(t *testing.T) (DeviceIdentity, <-chan []Report) {
	t.Helper()
	snk, ch, closeSink := NewChannelSink("test", 4)
	srv, err := NewCollectorServer(IngestConfig{}, WithReportSink(snk))
	if err != nil {
		t.Fatalf("collector server: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		closeSink()
	})

	u, err := url.Parse(ts.URL)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	host, portStr, _ := net.SplitHostPort(u.Host)
	port, _ := strconv.Atoi(portStr)
	return DeviceIdentity{CollectorAddress: host, CollectorPort: port, DeviceID: "kitchen"}, ch
}

func newTestDevice(t *testing.T, id DeviceIdentity, blob BlobStore, opts ...Option) *Device {
	t.Helper()
	base := []Option{
		WithBlobStore(blob),
		WithRadio(&stubRadio{}),
		WithClock(clock.NewFake(time.Now())),
		WithPortalAddr("127.0.0.1:0"),
	}
	dev, err := New(id, append(base, opts...)...)
	if err != nil {
		t.Fatalf("new device: %v", err)
	}
	t.Cleanup(func() { _ = dev.Shutdown(context.Background()) })
	return dev
}

func TestNewRejectsIncompleteIdentity(t *testing.T) {
	if _, err := New(DeviceIdentity{CollectorPort: 80}, WithBlobStore(eeprom.NewMemEEPROM(eeprom.DefaultSize))); err == nil {
		t.Fatalf("expected error without collector address")
	}
}

func TestNewDefaultsDeviceID(t *testing.T) {
	dev := newTestDevice(t, DeviceIdentity{CollectorAddress: "127.0.0.1", CollectorPort: 5000}, eeprom.NewMemEEPROM(eeprom.DefaultSize))
	if dev.identity.DeviceID != "esp01" {
		t.Fatalf("expected default device id, got %q", dev.identity.DeviceID)
	}
}

func TestDeviceOnboardingThroughPortalThenReports(t *testing.T) {
	id, reports := startCollectorServer(t)
	blob := eeprom.NewMemEEPROM(eeprom.DefaultSize)
	ctx := context.Background()

	first := newTestDevice(t, id, blob)
	if err := first.Begin(ctx); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if first.Posture() != AccessPoint {
		t.Fatalf("unconfigured device must boot into the access point")
	}
	if first.LocalIP() != netip.MustParseAddr("192.168.4.1") {
		t.Fatalf("unexpected AP address %v", first.LocalIP())
	}

	resp, err := http.PostForm("http://"+first.PortalAddr()+"/save", url.Values{
		"ssid":     {"home"},
		"password": {"hunter22"},
	})
	if err != nil {
		t.Fatalf("portal save: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from portal, got %d", resp.StatusCode)
	}

	if err := first.Loop(ctx); !errors.Is(err, ErrRestart) {
		t.Fatalf("expected ErrRestart after save, got %v", err)
	}
	if err := first.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	blob.PowerCycle()
	second := newTestDevice(t, id, blob)
	if err := second.Begin(ctx); err != nil {
		t.Fatalf("begin after restart: %v", err)
	}
	if second.Posture() != Station || !second.IsConnected() {
		t.Fatalf("configured device must join the stored network")
	}

	second.SetTemperature(21.46)
	second.SetAQI(2)
	if !second.SendData(ctx) {
		t.Fatalf("expected report to be acknowledged")
	}

	select {
	case batch := <-reports:
		if len(batch) != 1 {
			t.Fatalf("expected one report, got %d", len(batch))
		}
		r := batch[0]
		if r.DeviceID != "kitchen" || r.Status != "online" {
			t.Fatalf("unexpected report %+v", r)
		}
		if r.Values[Temperature] != 21.5 || r.Values[AQI] != 2 || len(r.Values) != 2 {
			t.Fatalf("unexpected values %v", r.Values)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("collector did not receive the report")
	}
}

func TestDeviceSendWithoutNetworkFails(t *testing.T) {
	id, _ := startCollectorServer(t)
	dev := newTestDevice(t, id, eeprom.NewMemEEPROM(eeprom.DefaultSize))
	if err := dev.Begin(context.Background()); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if dev.SendData(context.Background()) {
		t.Fatalf("access-point device must not report")
	}
}

func TestDevicePublishDrainsIntoBuffer(t *testing.T) {
	id := DeviceIdentity{CollectorAddress: "127.0.0.1", CollectorPort: 5000}
	col := &stubCollector{}
	dev := newTestDevice(t, id, eeprom.NewMemEEPROM(eeprom.DefaultSize),
		WithCollector(col),
		WithPolicy(Policy{MaxQueueLen: 1, OnQueueFull: "drop_newest"}))

	if err := dev.Begin(context.Background()); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if col.started != 1 {
		t.Fatalf("collector not started")
	}

	if err := dev.Publish(PM25, 12.3); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := dev.Publish(PM10, 20); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
	if err := dev.Loop(context.Background()); err != nil {
		t.Fatalf("loop: %v", err)
	}
	if dev.buffer.Present() != 1 {
		t.Fatalf("expected one metric present, got %d", dev.buffer.Present())
	}

	if err := dev.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if col.stopped != 1 {
		t.Fatalf("collector not stopped")
	}
}

func TestDeviceResetConfigRestarts(t *testing.T) {
	id := DeviceIdentity{CollectorAddress: "127.0.0.1", CollectorPort: 5000}
	dev := newTestDevice(t, id, eeprom.NewMemEEPROM(eeprom.DefaultSize))
	if err := dev.Begin(context.Background()); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := dev.ResetConfig(); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if err := dev.Loop(context.Background()); !errors.Is(err, ErrRestart) {
		t.Fatalf("expected ErrRestart, got %v", err)
	}
}
