package opcua

import (
	"testing"
	"time"

	"github.com/gopcua/opcua/ua"

	"github.com/ecocheck/agent/internal/adapters/observability"
	"github.com/ecocheck/agent/internal/adapters/queue"
	"github.com/ecocheck/agent/internal/domain"
)

func TestConfigValidateRejectsUnknownMetric(t *testing.T) {
	cfg := Config{
		Endpoint: "opc.tcp://localhost:4840",
		Nodes:    []NodeConfig{{NodeID: "ns=2;s=Temp", Metric: "radiation"}},
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for unknown metric")
	}
}

func TestNewCollectorAcceptsWireKeys(t *testing.T) {
	cfg := Config{
		Endpoint: "opc.tcp://localhost:4840",
		Nodes: []NodeConfig{
			{NodeID: "ns=2;s=Temp", Metric: "temperature"},
			{NodeID: "ns=2;s=CO2", Metric: "co2_real"},
		},
	}
	c, err := NewCollector(cfg, nil)
	if err != nil {
		t.Fatalf("new collector: %v", err)
	}
	if c.cfg.PublishInterval != time.Second || c.cfg.SecurityMode != "None" {
		t.Fatalf("defaults not applied: %+v", c.cfg)
	}
}

func TestReadingsFromNotification(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	handles := map[uint32]binding{
		1: {nodeID: "ns=2;s=Temp", metric: domain.Temperature},
		2: {nodeID: "ns=2;s=PM", metric: domain.PM25},
	}
	notif := &ua.DataChangeNotification{
		MonitoredItems: []*ua.MonitoredItemNotification{
			{ClientHandle: 1, Value: &ua.DataValue{Value: ua.MustVariant(float32(21.5)), ServerTimestamp: ts}},
			{ClientHandle: 2, Value: &ua.DataValue{Value: ua.MustVariant(int32(12)), SourceTimestamp: ts}},
			{ClientHandle: 2, Value: &ua.DataValue{Value: ua.MustVariant("text")}},
			{ClientHandle: 9, Value: &ua.DataValue{Value: ua.MustVariant(1.0)}},
		},
	}

	got := readingsFrom(handles, notif, observability.Nop{})
	if len(got) != 2 {
		t.Fatalf("expected 2 readings, got %d: %+v", len(got), got)
	}
	if got[0].Metric != domain.Temperature || got[0].Value != 21.5 || !got[0].Timestamp.Equal(ts) {
		t.Fatalf("unexpected first reading %+v", got[0])
	}
	if got[1].Metric != domain.PM25 || got[1].Value != 12 || !got[1].Timestamp.Equal(ts) {
		t.Fatalf("unexpected second reading %+v", got[1])
	}
}

func TestReadingsFromIgnoresOtherNotifications(t *testing.T) {
	if got := readingsFrom(nil, "status change", observability.Nop{}); got != nil {
		t.Fatalf("expected nil, got %+v", got)
	}
}

type dropCounter struct {
	observability.Nop
	dropped []domain.Reading
}

func (d *dropCounter) RecordDroppedReading(r domain.Reading) {
	d.dropped = append(d.dropped, r)
}

func TestDeliverRecordsDroppedReadings(t *testing.T) {
	obs := &dropCounter{}
	c := &Collector{obs: obs}
	q := queue.NewMemQueue(1, false)

	c.deliver([]domain.Reading{
		{Metric: domain.CO, Value: 0.5},
		{Metric: domain.CO, Value: 0.7},
	}, q)

	if q.Len() != 1 {
		t.Fatalf("expected one queued reading, got %d", q.Len())
	}
	if len(obs.dropped) != 1 || obs.dropped[0].Value != 0.7 {
		t.Fatalf("expected the newest reading dropped, got %+v", obs.dropped)
	}
}

func TestVariantToFloat(t *testing.T) {
	cases := []struct {
		in   any
		want float64
		ok   bool
	}{
		{float64(1.25), 1.25, true},
		{uint16(7), 7, true},
		{int64(-3), -3, true},
		{true, 1, true},
		{"x", 0, false},
	}
	for _, tc := range cases {
		got, ok := variantToFloat(ua.MustVariant(tc.in))
		if ok != tc.ok || got != tc.want {
			t.Fatalf("variantToFloat(%v) = %v,%v want %v,%v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
	if _, ok := variantToFloat(nil); ok {
		t.Fatalf("nil variant must not convert")
	}
}
