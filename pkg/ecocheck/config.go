package ecocheck

import (
	"fmt"
	"net/netip"

	"github.com/ecocheck/agent/internal/adapters/hostnet"
	"github.com/ecocheck/agent/internal/adapters/opcua"
	"github.com/ecocheck/agent/internal/app/config"
)

// Config re-exports the root configuration struct so downstream projects can
// construct or modify it programmatically.
type Config = config.Config

type (
	// OPCUAConfig holds connection and node details for the sensor producer.
	OPCUAConfig = opcua.Config
	// OPCUANodeConfig binds a node to a metric.
	OPCUANodeConfig = opcua.NodeConfig
	// IngestConfig configures the collector endpoint.
	IngestConfig = config.IngestConfig
	// MetricsConfig configures the metrics HTTP server.
	MetricsConfig = config.MetricsConfig
)

// LoadConfig loads YAML from disk using the internal config reader.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// NewFromConfig builds a Device from a loaded config. Options are applied
// after the config-derived ones and win.
func NewFromConfig(cfg *Config, opts ...Option) (*Device, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	identity, err := cfg.Identity()
	if err != nil {
		return nil, err
	}

	apAddr, err := netip.ParseAddr(cfg.Network.APAddress)
	if err != nil {
		return nil, fmt.Errorf("network.ap_address: %w", err)
	}

	base := []Option{
		WithStoragePath(cfg.Storage.Path),
		WithPortalAddr(cfg.Portal.Addr),
		WithAccessPoint(cfg.AccessPoint.Name, cfg.AccessPoint.Secret),
		WithAutoSend(cfg.AutoSendEnabled(), cfg.AutoSend.Interval),
		WithTimeouts(cfg.Network.DialTimeout, cfg.Network.ResponseTimeout),
		WithPolicy(cfg.Policy),
	}

	// resolve observability first so the radio and collector log through it
	var o overrides
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	base = append(base, WithRadio(hostnet.NewRadio(nil, apAddr, o.observability)))

	if cfg.Sensors != nil {
		col, err := opcua.NewCollector(*cfg.Sensors, o.observability)
		if err != nil {
			return nil, fmt.Errorf("sensors: %w", err)
		}
		base = append(base, WithCollector(col))
	}

	return New(identity, append(base, opts...)...)
}
