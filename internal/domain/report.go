package domain

import "time"

// ReportStatus tags whether a report carries fresh readings.
type ReportStatus string

const (
	StatusOnline ReportStatus = "online"
	StatusNoData ReportStatus = "no_data"
)

// Report is one device transmission as seen by the collector. Metrics absent
// from Values were never measured by the device.
type Report struct {
	ID         string             `json:"id"`
	DeviceID   string             `json:"device"`
	Status     ReportStatus       `json:"status"`
	FreeMemory uint64             `json:"free_memory"`
	Values     map[Metric]float64 `json:"values"`
	ReceivedAt time.Time          `json:"received_at"`
}
