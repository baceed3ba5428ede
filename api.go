package ecocheck

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	base "github.com/ecocheck/agent/pkg/ecocheck"
)

// Re-exported errors for convenience.
var (
	ErrRestart           = base.ErrRestart
	ErrQueueFull         = base.ErrQueueFull
	ErrChannelSinkClosed = base.ErrChannelSinkClosed
)

// Type aliases so consumers can import github.com/ecocheck/agent directly.
type (
	Config          = base.Config
	OPCUAConfig     = base.OPCUAConfig
	OPCUANodeConfig = base.OPCUANodeConfig
	IngestConfig    = base.IngestConfig
	MetricsConfig   = base.MetricsConfig
	Device          = base.Device
	Option          = base.Option
	DeviceIdentity  = base.DeviceIdentity
	NetworkProfile  = base.NetworkProfile
	Metric          = base.Metric
	Reading         = base.Reading
	Posture         = base.Posture
	Report          = base.Report
	Collector       = base.Collector
	ReadingQueue    = base.ReadingQueue
	Radio           = base.Radio
	BlobStore       = base.BlobStore
	Dialer          = base.Dialer
	Clock           = base.Clock
	System          = base.System
	Observability   = base.Observability
	Field           = base.Field
	Policy          = base.Policy
	ReportSink      = base.ReportSink
	ReportBatchSink = base.ReportBatchSink
	CollectorServer = base.CollectorServer
	CollectorOption = base.CollectorOption
)

// Metric slots and postures.
const (
	Temperature = base.Temperature
	Humidity    = base.Humidity
	AQI         = base.AQI
	TVOC        = base.TVOC
	ECO2        = base.ECO2
	CO          = base.CO
	Alcohol     = base.Alcohol
	CO2         = base.CO2
	Toluene     = base.Toluene
	Ammonia     = base.Ammonia
	Acetone     = base.Acetone
	PM25        = base.PM25
	PM10        = base.PM10
	DustDensity = base.DustDensity
	UVIndex     = base.UVIndex

	AccessPoint = base.AccessPoint
	Station     = base.Station
)

// Config helpers.
func LoadConfig(path string) (*Config, error) {
	return base.LoadConfig(path)
}

// Device construction.
func New(identity DeviceIdentity, opts ...Option) (*Device, error) {
	return base.New(identity, opts...)
}

func NewFromConfig(cfg *Config, opts ...Option) (*Device, error) {
	return base.NewFromConfig(cfg, opts...)
}

func WithRadio(r Radio) Option                     { return base.WithRadio(r) }
func WithBlobStore(b BlobStore) Option             { return base.WithBlobStore(b) }
func WithStoragePath(path string) Option           { return base.WithStoragePath(path) }
func WithDialer(d Dialer) Option                   { return base.WithDialer(d) }
func WithClock(c Clock) Option                     { return base.WithClock(c) }
func WithSystem(s System) Option                   { return base.WithSystem(s) }
func WithObservability(obs Observability) Option   { return base.WithObservability(obs) }
func WithCollector(c Collector) Option             { return base.WithCollector(c) }
func WithReadingQueue(q ReadingQueue) Option       { return base.WithReadingQueue(q) }
func WithPolicy(p Policy) Option                   { return base.WithPolicy(p) }
func WithPortalAddr(addr string) Option            { return base.WithPortalAddr(addr) }
func WithAccessPoint(name, secret string) Option   { return base.WithAccessPoint(name, secret) }
func WithTickInterval(d time.Duration) Option      { return base.WithTickInterval(d) }
func WithTimeouts(dial, resp time.Duration) Option { return base.WithTimeouts(dial, resp) }
func WithAutoSend(on bool, every time.Duration) Option {
	return base.WithAutoSend(on, every)
}

// NewObservability builds the zap + Prometheus backend.
func NewObservability(reg prometheus.Registerer, level string) (Observability, error) {
	return base.NewObservability(reg, level)
}

// Collector endpoint and sink adapters.
func NewCollectorServer(cfg IngestConfig, opts ...CollectorOption) (*CollectorServer, error) {
	return base.NewCollectorServer(cfg, opts...)
}

func WithReportSink(s ReportSink) CollectorOption {
	return base.WithReportSink(s)
}

func WithCollectorObservability(obs Observability) CollectorOption {
	return base.WithCollectorObservability(obs)
}

func WithGatherer(g prometheus.Gatherer) CollectorOption {
	return base.WithGatherer(g)
}

func NewCallbackSink(name string, fn ReportBatchSink) ReportSink {
	return base.NewCallbackSink(name, fn)
}

func NewChannelSink(name string, buffer int) (ReportSink, <-chan []Report, func()) {
	return base.NewChannelSink(name, buffer)
}

// CollectorHandler is a shortcut for embedding the endpoint in an existing mux.
func CollectorHandler(cfg IngestConfig, opts ...CollectorOption) (http.Handler, func() error, error) {
	srv, err := base.NewCollectorServer(cfg, opts...)
	if err != nil {
		return nil, nil, err
	}
	return srv.Handler(), srv.Close, nil
}
