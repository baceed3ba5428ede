// Package agent sequences the device components once per tick.
package agent

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ecocheck/agent/internal/adapters/observability"
	"github.com/ecocheck/agent/internal/domain"
	"github.com/ecocheck/agent/internal/ports"
)

const (
	DefaultAutoSendInterval = 10 * time.Second
	DefaultTickInterval     = 100 * time.Millisecond
	DefaultMaxDrainPerTick  = 64

	// RebootDelay lets the portal's success page reach the browser.
	RebootDelay = time.Second
)

// ErrRestart is returned by Tick when the device must restart. The caller
// owns the restart: firmware resets, hosts rebuild the agent from storage.
var ErrRestart = errors.New("agent: restart requested")

type ProfileStore interface {
	Load() (domain.NetworkProfile, error)
	Reset() error
}

type Connectivity interface {
	Boot(ctx context.Context, profile domain.NetworkProfile) error
	Connect(ctx context.Context) bool
	Posture() domain.Posture
	Connected() bool
}

type Sender interface {
	Send(ctx context.Context) error
}

type SensorBuffer interface {
	Set(m domain.Metric, v float64)
	Present() int
}

type Deps struct {
	Store    ProfileStore
	Conn     Connectivity
	Sender   Sender
	Buffer   SensorBuffer
	Queue    ports.ReadingQueue
	Clock    ports.Clock
	Obs      ports.Observability
	Policy   ports.Policy
	AutoSend bool
	Interval time.Duration
}

// Agent is the single owned device context. Every collaborator is reached
// through it; nothing is global.
type Agent struct {
	store  ProfileStore
	conn   Connectivity
	sender Sender
	buffer SensorBuffer
	queue  ports.ReadingQueue
	clock  ports.Clock
	obs    ports.Observability
	policy ports.Policy

	reboot atomic.Bool

	mu       sync.Mutex
	autoSend bool
	interval time.Duration
	lastSend time.Time
}

func New(d Deps) *Agent {
	if d.Interval <= 0 {
		d.Interval = DefaultAutoSendInterval
	}
	if d.Policy.MaxDrainPerTick <= 0 {
		d.Policy.MaxDrainPerTick = DefaultMaxDrainPerTick
	}
	if d.Obs == nil {
		d.Obs = observability.Nop{}
	}
	return &Agent{
		store:    d.Store,
		conn:     d.Conn,
		sender:   d.Sender,
		buffer:   d.Buffer,
		queue:    d.Queue,
		clock:    d.Clock,
		obs:      d.Obs,
		policy:   d.Policy,
		autoSend: d.AutoSend,
		interval: d.Interval,
	}
}

// Boot loads the stored profile and brings up the initial posture. A profile
// that cannot be read is treated as unconfigured.
func (a *Agent) Boot(ctx context.Context) error {
	profile, err := a.store.Load()
	if err != nil {
		a.obs.LogError("profile_load_failed", err)
		profile = domain.NetworkProfile{}
	}

	a.mu.Lock()
	a.lastSend = a.clock.Now()
	a.mu.Unlock()

	return a.conn.Boot(ctx, profile)
}

// Tick runs one pass of the loop. It blocks only for the bounded waits of a
// connect attempt, a report, or the pre-restart delay.
func (a *Agent) Tick(ctx context.Context) error {
	if a.reboot.Load() {
		a.obs.LogInfo("restarting", ports.Field{Key: "delay", Value: RebootDelay})
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-a.clock.After(RebootDelay):
		}
		return ErrRestart
	}

	a.drainReadings()

	// in access-point posture the portal serves requests on its own
	if a.conn.Posture() != domain.Station {
		return nil
	}
	if !a.conn.Connected() {
		a.conn.Connect(ctx)
		return nil
	}
	if a.autoSendDue() {
		_ = a.send(ctx)
		a.mu.Lock()
		a.lastSend = a.clock.Now()
		a.mu.Unlock()
	}
	return nil
}

// Run ticks until ctx is cancelled or a restart is requested.
func (a *Agent) Run(ctx context.Context, every time.Duration) error {
	if every <= 0 {
		every = DefaultTickInterval
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		if err := a.Tick(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Send transmits a report now, whether or not auto-send is enabled. A
// successful manual send restarts the auto-send interval.
func (a *Agent) Send(ctx context.Context) error {
	if err := a.send(ctx); err != nil {
		return err
	}
	a.mu.Lock()
	a.lastSend = a.clock.Now()
	a.mu.Unlock()
	return nil
}

func (a *Agent) send(ctx context.Context) error {
	a.drainReadings()
	return a.sender.Send(ctx)
}

// SetAutoSend toggles periodic reports. A non-positive interval keeps the
// current one.
func (a *Agent) SetAutoSend(enabled bool, interval time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.autoSend = enabled
	if interval > 0 {
		a.interval = interval
	}
}

// RequestReboot makes the next tick restart the device.
func (a *Agent) RequestReboot() {
	a.reboot.Store(true)
}

// ResetConfig forgets the stored network and reboots into the portal.
func (a *Agent) ResetConfig() error {
	if err := a.store.Reset(); err != nil {
		return err
	}
	a.obs.LogInfo("profile_reset")
	a.RequestReboot()
	return nil
}

func (a *Agent) autoSendDue() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.autoSend && a.clock.Now().Sub(a.lastSend) > a.interval
}

func (a *Agent) drainReadings() {
	if a.queue == nil {
		return
	}
	for _, r := range a.queue.DequeueBatch(a.policy.MaxDrainPerTick) {
		a.buffer.Set(r.Metric, r.Value)
	}
	a.obs.SetGauge(observability.QueueLengthGauge, float64(a.queue.Len()))
	a.obs.SetGauge(observability.MetricsPresentGauge, float64(a.buffer.Present()))
}
