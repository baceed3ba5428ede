// Package connectivity owns the radio posture: access point for
// configuration, or station joined to the stored network.
package connectivity

import (
	"context"
	"fmt"
	"net/netip"
	"sync"
	"time"

	"github.com/ecocheck/agent/internal/adapters/observability"
	"github.com/ecocheck/agent/internal/domain"
	"github.com/ecocheck/agent/internal/ports"
)

const (
	DefaultPollInterval = 500 * time.Millisecond
	DefaultMaxPolls     = 20

	DefaultAPName   = "ESP8266_Config"
	DefaultAPSecret = "12345678"
)

// State is the manager's position in the join lifecycle.
type State uint8

const (
	StateAccessPoint State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateAccessPoint:
		return "access_point"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// Portal is the configuration responder started in access-point posture.
type Portal interface {
	Start() error
}

type Config struct {
	APName       string
	APSecret     string
	PollInterval time.Duration
	MaxPolls     int
}

func (c *Config) applyDefaults() {
	if c.APName == "" {
		c.APName = DefaultAPName
	}
	if c.APSecret == "" {
		c.APSecret = DefaultAPSecret
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.MaxPolls <= 0 {
		c.MaxPolls = DefaultMaxPolls
	}
}

type Manager struct {
	mu      sync.Mutex
	cfg     Config
	radio   ports.Radio
	portal  Portal
	clock   ports.Clock
	obs     ports.Observability
	profile domain.NetworkProfile
	state   State
	apAddr  netip.Addr
}

func NewManager(cfg Config, radio ports.Radio, portal Portal, clock ports.Clock, obs ports.Observability) *Manager {
	cfg.applyDefaults()
	return &Manager{
		cfg:    cfg,
		radio:  radio,
		portal: portal,
		clock:  clock,
		obs:    obs,
	}
}

// SetAccessPoint changes the credentials used the next time the access point
// starts. An empty secret selects the default.
func (m *Manager) SetAccessPoint(name, secret string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if name != "" {
		m.cfg.APName = name
	}
	if secret == "" {
		secret = DefaultAPSecret
	}
	m.cfg.APSecret = secret
}

// Boot caches the stored profile and picks the initial posture from it.
func (m *Manager) Boot(ctx context.Context, profile domain.NetworkProfile) error {
	m.mu.Lock()
	m.profile = profile
	m.mu.Unlock()

	if !profile.Configured {
		return m.EnterAP()
	}
	if !m.Connect(ctx) && ctx.Err() != nil {
		return ctx.Err()
	}
	return nil
}

// EnterAP switches the radio to access-point mode and starts the portal. The
// device stays there until it reboots.
func (m *Manager) EnterAP() error {
	m.mu.Lock()
	name, secret := m.cfg.APName, m.cfg.APSecret
	m.mu.Unlock()

	addr, err := m.radio.StartAccessPoint(name, secret)
	if err != nil {
		return fmt.Errorf("start access point %q: %w", name, err)
	}

	m.mu.Lock()
	m.state = StateAccessPoint
	m.apAddr = addr
	m.mu.Unlock()
	m.obs.SetGauge(observability.PostureGauge, float64(domain.AccessPoint))

	if err := m.portal.Start(); err != nil {
		return fmt.Errorf("start portal: %w", err)
	}
	m.obs.LogInfo("ap_started",
		ports.Field{Key: "ssid", Value: name},
		ports.Field{Key: "ip", Value: addr.String()})
	return nil
}

// Connect joins the cached network and polls for the link at a fixed
// interval for a bounded number of polls. On exhaustion it falls back to the
// access point so the device can always be reconfigured.
func (m *Manager) Connect(ctx context.Context) bool {
	m.mu.Lock()
	profile := m.profile
	pollInterval, maxPolls := m.cfg.PollInterval, m.cfg.MaxPolls
	prev := m.state
	m.state = StateConnecting
	m.mu.Unlock()

	m.obs.IncCounter(observability.ConnectAttemptsTotal, 1)
	m.obs.SetGauge(observability.PostureGauge, float64(domain.Station))
	m.obs.LogInfo("wifi_connecting", ports.Field{Key: "ssid", Value: profile.NetworkName})

	if err := m.radio.Join(profile.NetworkName, profile.Secret); err != nil {
		m.obs.LogError("wifi_join_failed", err, ports.Field{Key: "ssid", Value: profile.NetworkName})
		m.fallback()
		return false
	}

	for polls := 0; polls < maxPolls && !m.radio.Connected(); polls++ {
		if ctx.Err() != nil {
			m.abandon(prev)
			return false
		}
		select {
		case <-ctx.Done():
			m.abandon(prev)
			return false
		case <-m.clock.After(pollInterval):
		}
	}

	if !m.radio.Connected() {
		m.obs.LogError("wifi_connect_failed", fmt.Errorf("no link after %d polls", maxPolls),
			ports.Field{Key: "ssid", Value: profile.NetworkName})
		m.fallback()
		return false
	}

	m.mu.Lock()
	m.state = StateConnected
	m.mu.Unlock()
	m.obs.LogInfo("wifi_connected",
		ports.Field{Key: "ssid", Value: profile.NetworkName},
		ports.Field{Key: "ip", Value: m.radio.LocalAddr().String()})
	return true
}

// abandon puts back the state held before a cancelled join so Posture does
// not report a station that never came up.
func (m *Manager) abandon(prev State) {
	m.mu.Lock()
	m.state = prev
	m.mu.Unlock()
	if prev == StateAccessPoint {
		m.obs.SetGauge(observability.PostureGauge, float64(domain.AccessPoint))
	}
}

func (m *Manager) fallback() {
	m.obs.IncCounter(observability.APFallbacksTotal, 1)
	if err := m.EnterAP(); err != nil {
		m.obs.LogCritical("ap_fallback_failed", err)
	}
	m.mu.Lock()
	m.state = StateAccessPoint
	m.mu.Unlock()
}

// Posture is the radio role the manager is holding.
func (m *Manager) Posture() domain.Posture {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateAccessPoint {
		return domain.AccessPoint
	}
	return domain.Station
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Connected reports a live station link.
func (m *Manager) Connected() bool {
	return m.Posture() == domain.Station && m.radio.Connected()
}

// LocalAddr is the station address, or the access-point address while
// serving the portal.
func (m *Manager) LocalAddr() netip.Addr {
	m.mu.Lock()
	ap, addr := m.state == StateAccessPoint, m.apAddr
	m.mu.Unlock()
	if ap {
		return addr
	}
	return m.radio.LocalAddr()
}
