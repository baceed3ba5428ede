package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/ecocheck/agent/internal/domain"
	"github.com/ecocheck/agent/internal/ports"
)

// Metric names shared by the agent components.
const (
	ReportsSentTotal     = "ecocheck_reports_sent_total"
	ReportsFailedTotal   = "ecocheck_reports_failed_total"
	ConnectAttemptsTotal = "ecocheck_connect_attempts_total"
	APFallbacksTotal     = "ecocheck_ap_fallbacks_total"
	ReadingsDroppedTotal = "ecocheck_readings_dropped_total"
	PortalSavesTotal     = "ecocheck_portal_saves_total"
	ReportsIngestedTotal = "ecocheck_reports_ingested_total"
	ReportsRejectedTotal = "ecocheck_reports_rejected_total"

	PostureGauge        = "ecocheck_posture"
	MetricsPresentGauge = "ecocheck_metrics_present"
	QueueLengthGauge    = "ecocheck_reading_queue_length"

	ReportLatencySeconds = "ecocheck_report_roundtrip_seconds"
)

type PromObs struct {
	log      *zap.Logger
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
	histos   map[string]prometheus.Observer
}

// NewPromObs registers the agent's collectors with reg. Pass a fresh registry
// in tests; the CLI passes prometheus.DefaultRegisterer once per process.
func NewPromObs(reg prometheus.Registerer, log *zap.Logger) *PromObs {
	if log == nil {
		log = zap.NewNop()
	}

	counters := map[string]prometheus.Counter{
		ReportsSentTotal:     newCounter(ReportsSentTotal, "Reports acknowledged by the collector."),
		ReportsFailedTotal:   newCounter(ReportsFailedTotal, "Reports that failed to connect or timed out."),
		ConnectAttemptsTotal: newCounter(ConnectAttemptsTotal, "Station join attempts started."),
		APFallbacksTotal:     newCounter(APFallbacksTotal, "Join attempts exhausted and fell back to access point."),
		ReadingsDroppedTotal: newCounter(ReadingsDroppedTotal, "Sensor readings lost to queue backpressure."),
		PortalSavesTotal:     newCounter(PortalSavesTotal, "Network profiles saved through the portal."),
		ReportsIngestedTotal: newCounter(ReportsIngestedTotal, "Reports accepted by the collector endpoint."),
		ReportsRejectedTotal: newCounter(ReportsRejectedTotal, "Reports rejected by the collector endpoint."),
	}
	gauges := map[string]prometheus.Gauge{
		PostureGauge:        newGauge(PostureGauge, "Current radio posture (0 access point, 1 station)."),
		MetricsPresentGauge: newGauge(MetricsPresentGauge, "Metric slots that hold a value."),
		QueueLengthGauge:    newGauge(QueueLengthGauge, "Readings waiting to be applied to the sensor buffer."),
	}
	latency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    ReportLatencySeconds,
		Help:    "Time from dialing the collector to the first response byte.",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 11),
	})

	collectors := []prometheus.Collector{latency}
	for _, c := range counters {
		collectors = append(collectors, c)
	}
	for _, g := range gauges {
		collectors = append(collectors, g)
	}
	reg.MustRegister(collectors...)

	return &PromObs{
		log:      log,
		counters: counters,
		gauges:   gauges,
		histos: map[string]prometheus.Observer{
			ReportLatencySeconds: latency,
		},
	}
}

func newCounter(name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help})
}

func newGauge(name, help string) prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: help})
}

func (p *PromObs) LogInfo(msg string, fields ...ports.Field) {
	p.log.Info(msg, zapFields(fields)...)
}

func (p *PromObs) LogError(msg string, err error, fields ...ports.Field) {
	p.log.Error(msg, append(zapFields(fields), zap.Error(err))...)
}

func (p *PromObs) LogCritical(msg string, err error, fields ...ports.Field) {
	// DPanic only panics in development loggers
	p.log.DPanic(msg, append(zapFields(fields), zap.Error(err))...)
}

func (p *PromObs) IncCounter(name string, v float64) {
	if c, ok := p.counters[name]; ok {
		c.Add(v)
	}
}

func (p *PromObs) ObserveLatency(name string, seconds float64) {
	if h, ok := p.histos[name]; ok {
		h.Observe(seconds)
	}
}

func (p *PromObs) SetGauge(name string, v float64) {
	if g, ok := p.gauges[name]; ok {
		g.Set(v)
	}
}

func (p *PromObs) RecordDroppedReading(r domain.Reading) {
	p.IncCounter(ReadingsDroppedTotal, 1)
	p.log.Warn("reading_dropped",
		zap.Stringer("metric", r.Metric),
		zap.Float64("value", r.Value))
}

func zapFields(fields []ports.Field) []zap.Field {
	out := make([]zap.Field, 0, len(fields)+1)
	for _, f := range fields {
		out = append(out, zap.Any(f.Key, f.Value))
	}
	return out
}

var _ ports.Observability = (*PromObs)(nil)
