package telemetry

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ecocheck/agent/internal/domain"
)

// FreshnessWindow is how recent the last metric update must be for a report
// to be tagged online.
const FreshnessWindow = 15 * time.Second

func reportStatus(s snapshot, now time.Time) domain.ReportStatus {
	if s.valid && now.Sub(s.lastUpdate) < FreshnessWindow {
		return domain.StatusOnline
	}
	return domain.StatusNoData
}

// encodeReport renders the form body. Field order is fixed: device, status,
// free_memory, then present metrics in report order.
func encodeReport(deviceID string, status domain.ReportStatus, freeMemory uint64, s snapshot) string {
	var b strings.Builder
	writeField(&b, "device", deviceID)
	writeField(&b, "status", string(status))
	writeField(&b, "free_memory", strconv.FormatUint(freeMemory, 10))
	for _, e := range s.entries {
		writeField(&b, e.metric.Key(), e.metric.Format(e.value))
	}
	return b.String()
}

func writeField(b *strings.Builder, key, value string) {
	if b.Len() > 0 {
		b.WriteByte('&')
	}
	b.WriteString(url.QueryEscape(key))
	b.WriteByte('=')
	b.WriteString(url.QueryEscape(value))
}

func encodeRequest(host, body string) []byte {
	return []byte(fmt.Sprintf("POST /data HTTP/1.1\r\n"+
		"Host: %s\r\n"+
		"Content-Type: application/x-www-form-urlencoded\r\n"+
		"Connection: close\r\n"+
		"Content-Length: %d\r\n"+
		"\r\n%s", host, len(body), body))
}
