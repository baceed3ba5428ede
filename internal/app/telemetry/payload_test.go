package telemetry

import (
	"strings"
	"testing"
	"time"

	"github.com/ecocheck/agent/internal/adapters/clock"
	"github.com/ecocheck/agent/internal/domain"
)

func TestEncodeReportContainsExactlyTheSetMetrics(t *testing.T) {
	metrics := domain.Metrics()

	for mask := 0; mask < 1<<len(metrics); mask++ {
		buf := NewBuffer(clock.NewFake(time.Unix(0, 0)))
		var want []string
		for i, m := range metrics {
			if mask&(1<<i) != 0 {
				buf.Set(m, float64(i))
				want = append(want, m.Key())
			}
		}

		body := encodeReport("esp01", domain.StatusOnline, 1024, buf.snapshot())
		var keys []string
		for _, kv := range strings.Split(body, "&") {
			keys = append(keys, strings.SplitN(kv, "=", 2)[0])
		}

		if len(keys) != len(want)+3 || keys[0] != "device" || keys[1] != "status" || keys[2] != "free_memory" {
			t.Fatalf("mask %b: unexpected leading fields %v", mask, keys)
		}
		for i, k := range keys[3:] {
			if k != want[i] {
				t.Fatalf("mask %b: field %d expected %s got %s (body %s)", mask, i, want[i], k, body)
			}
		}
	}
}

func TestEncodeReportValues(t *testing.T) {
	buf := NewBuffer(clock.NewFake(time.Unix(0, 0)))
	buf.Set(domain.Temperature, 21.46)
	buf.Set(domain.AQI, 57)
	buf.Set(domain.CO2, 612.7)
	buf.Set(domain.Ammonia, 0.126)

	got := encodeReport("lab 7", domain.StatusNoData, 30000, buf.snapshot())
	want := "device=lab+7&status=no_data&free_memory=30000&temperature=21.5&aqi=57&co2_real=613&ammonia=0.13"
	if got != want {
		t.Fatalf("unexpected body\nwant %s\ngot  %s", want, got)
	}
}

func TestReportStatusFreshnessBoundary(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	clk := clock.NewFake(start)
	buf := NewBuffer(clk)

	if got := reportStatus(buf.snapshot(), start); got != domain.StatusNoData {
		t.Fatalf("empty buffer must report no_data, got %s", got)
	}

	buf.Set(domain.Humidity, 40)
	snap := buf.snapshot()

	if got := reportStatus(snap, start.Add(FreshnessWindow-time.Millisecond)); got != domain.StatusOnline {
		t.Fatalf("14.999s old data should be online, got %s", got)
	}
	if got := reportStatus(snap, start.Add(FreshnessWindow)); got != domain.StatusNoData {
		t.Fatalf("exactly 15s old data should be no_data, got %s", got)
	}
}

func TestEncodeRequestHeaders(t *testing.T) {
	req := string(encodeRequest("10.0.0.2:8080", "device=esp01"))
	want := "POST /data HTTP/1.1\r\n" +
		"Host: 10.0.0.2:8080\r\n" +
		"Content-Type: application/x-www-form-urlencoded\r\n" +
		"Connection: close\r\n" +
		"Content-Length: 12\r\n" +
		"\r\n" +
		"device=esp01"
	if req != want {
		t.Fatalf("unexpected request:\n%q", req)
	}
}
