// Package ingest is the reference collector for device reports. It accepts
// the form-encoded POST /data transaction the agent sends, rate limits each
// device and hands accepted reports to a sink.
package ingest

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/ecocheck/agent/internal/domain"
)

var (
	ErrMissingDevice = errors.New("ingest: missing device")
	ErrBadStatus     = errors.New("ingest: unknown status")
	ErrBadValue      = errors.New("ingest: non-finite value")
)

// ParseReport decodes a report body. Metrics absent from the form were never
// measured and stay absent from Values; unknown keys are ignored.
func ParseReport(form url.Values, receivedAt time.Time) (*domain.Report, error) {
	device := form.Get("device")
	if device == "" {
		return nil, ErrMissingDevice
	}

	status := domain.ReportStatus(form.Get("status"))
	if status != domain.StatusOnline && status != domain.StatusNoData {
		return nil, fmt.Errorf("%w: %q", ErrBadStatus, status)
	}

	var free uint64
	if raw := form.Get("free_memory"); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("ingest: free_memory: %w", err)
		}
		free = v
	}

	values := make(map[domain.Metric]float64)
	for _, m := range domain.Metrics() {
		if !form.Has(m.Key()) {
			continue
		}
		v, err := strconv.ParseFloat(form.Get(m.Key()), 64)
		if err != nil {
			return nil, fmt.Errorf("ingest: %s: %w", m.Key(), err)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: %s=%v", ErrBadValue, m.Key(), v)
		}
		values[m] = v
	}

	return &domain.Report{
		ID:         uuid.NewString(),
		DeviceID:   device,
		Status:     status,
		FreeMemory: free,
		Values:     values,
		ReceivedAt: receivedAt,
	}, nil
}
