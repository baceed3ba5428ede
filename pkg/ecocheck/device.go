package ecocheck

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"time"

	"github.com/ecocheck/agent/internal/adapters/clock"
	"github.com/ecocheck/agent/internal/adapters/eeprom"
	"github.com/ecocheck/agent/internal/adapters/hostnet"
	"github.com/ecocheck/agent/internal/adapters/observability"
	"github.com/ecocheck/agent/internal/adapters/queue"
	"github.com/ecocheck/agent/internal/app/agent"
	"github.com/ecocheck/agent/internal/app/connectivity"
	"github.com/ecocheck/agent/internal/app/credstore"
	"github.com/ecocheck/agent/internal/app/portal"
	"github.com/ecocheck/agent/internal/app/telemetry"
	"github.com/ecocheck/agent/internal/domain"
	"github.com/ecocheck/agent/internal/ports"
)

const (
	DefaultPortalAddr  = ":80"
	DefaultStoragePath = "./data/eeprom.bin"
)

// ErrQueueFull is returned by Publish when the reading inbox rejects a value.
var ErrQueueFull = errors.New("ecocheck: reading queue full")

// Option customizes the dependencies used by Device.
type Option func(*overrides)

type overrides struct {
	radio         Radio
	blob          BlobStore
	storagePath   string
	dialer        Dialer
	clock         Clock
	system        System
	observability Observability
	collector     Collector
	queue         ReadingQueue
	policy        Policy
	portalAddr    string
	apName        string
	apSecret      string
	autoSend      bool
	interval      time.Duration
	dialTimeout   time.Duration
	respTimeout   time.Duration
	tickInterval  time.Duration
}

// WithRadio replaces the host network radio, e.g. with a real WiFi driver.
func WithRadio(r Radio) Option {
	return func(o *overrides) { o.radio = r }
}

// WithBlobStore sets the persistent region holding the network profile.
func WithBlobStore(b BlobStore) Option {
	return func(o *overrides) { o.blob = b }
}

// WithStoragePath places the file-backed EEPROM at path.
func WithStoragePath(path string) Option {
	return func(o *overrides) { o.storagePath = path }
}

func WithDialer(d Dialer) Option {
	return func(o *overrides) { o.dialer = d }
}

// WithClock injects the clock behind every timed wait. Tests pass a fake.
func WithClock(c Clock) Option {
	return func(o *overrides) { o.clock = c }
}

func WithSystem(s System) Option {
	return func(o *overrides) { o.system = s }
}

// WithObservability plugs in a logging and metrics backend.
func WithObservability(obs Observability) Option {
	return func(o *overrides) { o.observability = obs }
}

// WithCollector attaches a producer started by Begin and stopped by Shutdown.
func WithCollector(c Collector) Option {
	return func(o *overrides) { o.collector = c }
}

// WithReadingQueue injects the inbox collectors write to.
func WithReadingQueue(q ReadingQueue) Option {
	return func(o *overrides) { o.queue = q }
}

func WithPolicy(p Policy) Option {
	return func(o *overrides) { o.policy = p }
}

// WithPortalAddr sets the listen address of the configuration portal.
func WithPortalAddr(addr string) Option {
	return func(o *overrides) { o.portalAddr = addr }
}

// WithAccessPoint sets the access-point credentials. An empty secret selects
// the default.
func WithAccessPoint(name, secret string) Option {
	return func(o *overrides) {
		o.apName = name
		o.apSecret = secret
	}
}

// WithAutoSend sets the initial periodic reporting state.
func WithAutoSend(enabled bool, interval time.Duration) Option {
	return func(o *overrides) {
		o.autoSend = enabled
		o.interval = interval
	}
}

// WithTimeouts bounds the collector dial and the wait for its response.
func WithTimeouts(dial, response time.Duration) Option {
	return func(o *overrides) {
		o.dialTimeout = dial
		o.respTimeout = response
	}
}

// WithTickInterval sets how often Run ticks the loop.
func WithTickInterval(d time.Duration) Option {
	return func(o *overrides) { o.tickInterval = d }
}

// Device is the embeddable agent: configuration portal, connectivity
// manager, sensor buffer and transmitter behind one owned context.
type Device struct {
	identity  DeviceIdentity
	obs       ports.Observability
	store     *credstore.Store
	buffer    *telemetry.Buffer
	conn      *connectivity.Manager
	portal    *portal.Server
	agent     *agent.Agent
	queue     ports.ReadingQueue
	collector ports.Collector
	tick      time.Duration
}

// New wires the device with host defaults: file EEPROM, host network radio,
// wall clock and no-op observability. Options override any dependency.
func New(identity DeviceIdentity, opts ...Option) (*Device, error) {
	if identity.DeviceID == "" {
		identity.DeviceID = domain.DefaultDeviceID
	}
	if err := identity.Validate(); err != nil {
		return nil, err
	}

	o := overrides{autoSend: true}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	obs := o.observability
	if obs == nil {
		obs = observability.Nop{}
	}
	clk := o.clock
	if clk == nil {
		clk = clock.System{}
	}

	blob := o.blob
	if blob == nil {
		path := o.storagePath
		if path == "" {
			path = DefaultStoragePath
		}
		fileBlob, err := eeprom.NewFileEEPROM(path, eeprom.DefaultSize)
		if err != nil {
			return nil, fmt.Errorf("open storage: %w", err)
		}
		blob = fileBlob
	}

	radio := o.radio
	if radio == nil {
		radio = hostnet.NewRadio(nil, netip.Addr{}, obs)
	}
	dialer := o.dialer
	if dialer == nil {
		timeout := o.dialTimeout
		if timeout <= 0 {
			timeout = telemetry.DefaultDialTimeout
		}
		dialer = hostnet.NewDialer(timeout)
	}
	system := o.system
	if system == nil {
		system = hostnet.System{}
	}

	pol := o.policy
	q := o.queue
	if q == nil {
		if pol.MaxQueueLen <= 0 {
			pol.MaxQueueLen = 1_000
		}
		q = queue.NewMemQueueFromPolicy(pol)
	}

	portalAddr := o.portalAddr
	if portalAddr == "" {
		portalAddr = DefaultPortalAddr
	}

	d := &Device{
		identity:  identity,
		obs:       obs,
		store:     credstore.New(blob),
		buffer:    telemetry.NewBuffer(clk),
		queue:     q,
		collector: o.collector,
		tick:      o.tickInterval,
	}

	handler := portal.NewHandler(d.store, func() { d.agent.RequestReboot() }, obs)
	d.portal = portal.NewServer(portalAddr, handler, obs)
	d.conn = connectivity.NewManager(connectivity.Config{
		APName:   o.apName,
		APSecret: o.apSecret,
	}, radio, d.portal, clk, obs)

	tx := telemetry.NewTransmitter(telemetry.Config{
		Identity:        identity,
		DialTimeout:     o.dialTimeout,
		ResponseTimeout: o.respTimeout,
	}, d.buffer, d.conn, dialer, clk, system, obs)

	d.agent = agent.New(agent.Deps{
		Store:    d.store,
		Conn:     d.conn,
		Sender:   tx,
		Buffer:   d.buffer,
		Queue:    q,
		Clock:    clk,
		Obs:      obs,
		Policy:   pol,
		AutoSend: o.autoSend,
		Interval: o.interval,
	})
	return d, nil
}

// Begin starts the attached collector, loads the stored profile and brings
// the radio up: station when a network is configured, otherwise the access
// point with the portal.
func (d *Device) Begin(ctx context.Context) error {
	if d.collector != nil {
		if err := d.collector.Start(d.queue); err != nil {
			return fmt.Errorf("start collector: %w", err)
		}
	}
	d.obs.LogInfo("device_begin", ports.Field{Key: "device", Value: d.identity.DeviceID})
	return d.agent.Boot(ctx)
}

// Loop runs one tick. It returns ErrRestart when the device must restart.
func (d *Device) Loop(ctx context.Context) error {
	return d.agent.Tick(ctx)
}

// Run ticks until ctx is cancelled or a restart is due. Begin must have been
// called.
func (d *Device) Run(ctx context.Context) error {
	return d.agent.Run(ctx, d.tick)
}

// Shutdown stops the collector and the portal listener.
func (d *Device) Shutdown(ctx context.Context) error {
	var errs []error
	if d.collector != nil {
		if err := d.collector.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := d.portal.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Set stores the latest value of m.
func (d *Device) Set(m Metric, v float64) { d.buffer.Set(m, v) }

func (d *Device) SetTemperature(v float64) { d.Set(domain.Temperature, v) }
func (d *Device) SetHumidity(v float64)    { d.Set(domain.Humidity, v) }
func (d *Device) SetAQI(v int)             { d.Set(domain.AQI, float64(v)) }
func (d *Device) SetTVOC(v float64)        { d.Set(domain.TVOC, v) }
func (d *Device) SetECO2(v float64)        { d.Set(domain.ECO2, v) }
func (d *Device) SetCO(v float64)          { d.Set(domain.CO, v) }
func (d *Device) SetAlcohol(v float64)     { d.Set(domain.Alcohol, v) }
func (d *Device) SetCO2(v float64)         { d.Set(domain.CO2, v) }
func (d *Device) SetToluene(v float64)     { d.Set(domain.Toluene, v) }
func (d *Device) SetAmmonia(v float64)     { d.Set(domain.Ammonia, v) }
func (d *Device) SetAcetone(v float64)     { d.Set(domain.Acetone, v) }
func (d *Device) SetPM25(v float64)        { d.Set(domain.PM25, v) }
func (d *Device) SetPM10(v float64)        { d.Set(domain.PM10, v) }
func (d *Device) SetDustDensity(v float64) { d.Set(domain.DustDensity, v) }
func (d *Device) SetUVIndex(v float64)     { d.Set(domain.UVIndex, v) }

// Publish queues a reading for the next tick. Unlike the setters it is
// subject to the queue policy.
func (d *Device) Publish(m Metric, v float64) error {
	if !m.Valid() {
		return fmt.Errorf("ecocheck: unknown metric %d", m)
	}
	r := domain.Reading{Metric: m, Value: v, Timestamp: time.Now()}
	if !d.queue.Enqueue(r) {
		d.obs.RecordDroppedReading(r)
		return ErrQueueFull
	}
	return nil
}

// SetAutoSend toggles periodic reports. A non-positive interval keeps the
// current one.
func (d *Device) SetAutoSend(enabled bool, interval time.Duration) {
	d.agent.SetAutoSend(enabled, interval)
}

// SendData transmits a report now and reports whether the collector
// answered.
func (d *Device) SendData(ctx context.Context) bool {
	return d.agent.Send(ctx) == nil
}

// IsConnected reports whether the device is joined and the link is up.
func (d *Device) IsConnected() bool {
	return d.conn.Connected()
}

// LocalIP is the station address, or the portal address in access-point
// posture.
func (d *Device) LocalIP() netip.Addr {
	return d.conn.LocalAddr()
}

func (d *Device) Posture() Posture {
	return d.conn.Posture()
}

// ResetConfig forgets the stored network; the next tick restarts into the
// portal.
func (d *Device) ResetConfig() error {
	return d.agent.ResetConfig()
}

// SetAPName changes the access-point credentials used from the next time the
// access point starts. An empty secret selects the default.
func (d *Device) SetAPName(name, secret string) {
	d.conn.SetAccessPoint(name, secret)
}

// PortalAddr is the bound portal listener, nil until the portal starts.
func (d *Device) PortalAddr() string {
	if a := d.portal.Addr(); a != nil {
		return a.String()
	}
	return ""
}
