package sink

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ecocheck/agent/internal/domain"
	"github.com/ecocheck/agent/internal/ports"
)

// TimescaleSink stores collector reports in a hypertable keyed by report id.
type TimescaleSink struct {
	db        *sql.DB
	tableName string
}

func NewTimescaleSink(db *sql.DB, table string) *TimescaleSink {
	return &TimescaleSink{db: db, tableName: table}
}

func (t *TimescaleSink) Name() string { return "timescaledb" }

func (t *TimescaleSink) WriteBatch(reports []*domain.Report) error {
	if len(reports) == 0 {
		return nil
	}

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(t.tableName)
	b.WriteString(" (id, device_id, ts, status, free_memory, values) VALUES ")

	args := make([]any, 0, len(reports)*6)
	for i, r := range reports {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(fmt.Sprintf("($%d,$%d,$%d,$%d,$%d,$%d)",
			len(args)+1, len(args)+2, len(args)+3, len(args)+4, len(args)+5, len(args)+6))
		vals, err := json.Marshal(valuesByKey(r.Values))
		if err != nil {
			return fmt.Errorf("marshal values: %w", err)
		}

		args = append(args,
			r.ID,
			r.DeviceID,
			r.ReceivedAt,
			string(r.Status),
			int64(r.FreeMemory),
			vals,
		)
	}

	b.WriteString(" ON CONFLICT (id) DO NOTHING")

	if _, err := t.db.Exec(b.String(), args...); err != nil {
		return fmt.Errorf("insert reports: %w", err)
	}
	return nil
}

// valuesByKey keys the stored document by wire key so rows read the same as
// the device payload.
func valuesByKey(values map[domain.Metric]float64) map[string]float64 {
	out := make(map[string]float64, len(values))
	for m, v := range values {
		out[m.Key()] = v
	}
	return out
}

var _ ports.ReportSink = (*TimescaleSink)(nil)
