package ecocheck

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"sync"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ecocheck/agent/internal/adapters/sink"
	"github.com/ecocheck/agent/internal/app/ingest"
	"github.com/ecocheck/agent/internal/domain"
)

// ErrChannelSinkClosed is returned when a channel sink is written to after being closed.
var ErrChannelSinkClosed = errors.New("ecocheck: channel sink closed")

// ReportBatchSink is invoked with the reports accepted by the collector.
type ReportBatchSink func([]Report) error

// CollectorServer is the reference receiver for device reports.
type CollectorServer struct {
	handler http.Handler
	db      *sql.DB
}

// CollectorOption customizes NewCollectorServer.
type CollectorOption func(*collectorOverrides)

type collectorOverrides struct {
	sink     ReportSink
	obs      Observability
	gatherer prometheus.Gatherer
}

// WithReportSink replaces the Timescale sink.
func WithReportSink(s ReportSink) CollectorOption {
	return func(o *collectorOverrides) { o.sink = s }
}

func WithCollectorObservability(obs Observability) CollectorOption {
	return func(o *collectorOverrides) { o.obs = obs }
}

// WithGatherer exposes the given registry on /metrics.
func WithGatherer(g prometheus.Gatherer) CollectorOption {
	return func(o *collectorOverrides) { o.gatherer = g }
}

// NewCollectorServer builds the POST /data endpoint. With an ingest
// conn_string and no custom sink, reports are stored in TimescaleDB;
// without either they are only logged and counted.
func NewCollectorServer(cfg IngestConfig, opts ...CollectorOption) (*CollectorServer, error) {
	var o collectorOverrides
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	limiter, err := ingest.NewDeviceLimiter(cfg.RatePerSec, cfg.Burst, cfg.MaxDevices)
	if err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	var db *sql.DB
	snk := o.sink
	if snk == nil && cfg.ConnString != "" {
		db, err = sql.Open("postgres", cfg.ConnString)
		if err != nil {
			return nil, err
		}
		table := cfg.Table
		if table == "" {
			table = "reports"
		}
		snk = sink.NewTimescaleSink(db, table)
	}

	srvOpts := ingest.Options{
		Sink:     snk,
		Limiter:  limiter,
		Gatherer: o.gatherer,
		Obs:      o.obs,
	}
	if db != nil {
		srvOpts.Health = db
	}
	return &CollectorServer{handler: ingest.NewServer(srvOpts), db: db}, nil
}

func (c *CollectorServer) Handler() http.Handler { return c.handler }

// Close releases the database connection, if one was opened.
func (c *CollectorServer) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// NewCallbackSink adapts a ReportBatchSink into a ReportSink so callers can
// plug arbitrary functions without defining structs.
func NewCallbackSink(name string, fn ReportBatchSink) ReportSink {
	if name == "" {
		name = "callback"
	}
	return &callbackSink{name: name, fn: fn}
}

// NewChannelSink exposes accepted reports via a channel; it returns the sink,
// the read-only channel, and a close function to call during shutdown.
func NewChannelSink(name string, buffer int) (ReportSink, <-chan []Report, func()) {
	if name == "" {
		name = "channel"
	}
	if buffer < 0 {
		buffer = 0
	}
	ch := make(chan []Report, buffer)
	s := &channelSink{
		name:   name,
		ch:     ch,
		closed: make(chan struct{}),
	}
	return s, ch, func() { s.close() }
}

type callbackSink struct {
	name string
	fn   ReportBatchSink
}

func (s *callbackSink) WriteBatch(reports []*domain.Report) error {
	if s.fn == nil {
		return fmt.Errorf("callback sink %q: nil handler", s.name)
	}
	if len(reports) == 0 {
		return nil
	}
	return s.fn(copyBatch(reports))
}

func (s *callbackSink) Name() string { return s.name }

type channelSink struct {
	name   string
	ch     chan []Report
	closed chan struct{}
	once   sync.Once
}

// WriteBatch blocks until the reader takes the batch or the sink closes.
func (s *channelSink) WriteBatch(reports []*domain.Report) error {
	select {
	case <-s.closed:
		return ErrChannelSinkClosed
	default:
	}

	if len(reports) == 0 {
		return nil
	}

	select {
	case <-s.closed:
		return ErrChannelSinkClosed
	case s.ch <- copyBatch(reports):
		return nil
	}
}

func (s *channelSink) Name() string { return s.name }

func (s *channelSink) close() {
	s.once.Do(func() {
		close(s.closed)
		close(s.ch)
	})
}

func copyBatch(reports []*domain.Report) []Report {
	out := make([]Report, len(reports))
	for i, r := range reports {
		out[i] = *r
	}
	return out
}
