package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ecocheck/agent/internal/adapters/opcua"
	"github.com/ecocheck/agent/internal/domain"
	"github.com/ecocheck/agent/internal/ports"
)

type Config struct {
	Device      DeviceConfig      `yaml:"device"`
	Collector   CollectorConfig   `yaml:"collector"`
	AccessPoint AccessPointConfig `yaml:"access_point"`
	Portal      PortalConfig      `yaml:"portal"`
	AutoSend    AutoSendConfig    `yaml:"auto_send"`
	Storage     StorageConfig     `yaml:"storage"`
	Network     NetworkConfig     `yaml:"network"`
	Policy      ports.Policy      `yaml:"policy"`
	Sensors     *opcua.Config     `yaml:"sensors"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Log         LogConfig         `yaml:"log"`
	Ingest      IngestConfig      `yaml:"ingest"`
}

type DeviceConfig struct {
	ID string `yaml:"id"`
}

type CollectorConfig struct {
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
}

type AccessPointConfig struct {
	Name   string `yaml:"name"`
	Secret string `yaml:"secret"`
}

type PortalConfig struct {
	Addr string `yaml:"addr"`
}

type AutoSendConfig struct {
	Enabled  *bool         `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
}

type StorageConfig struct {
	Path string `yaml:"path"`
}

type NetworkConfig struct {
	APAddress       string        `yaml:"ap_address"`
	DialTimeout     time.Duration `yaml:"dial_timeout"`
	ResponseTimeout time.Duration `yaml:"response_timeout"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type IngestConfig struct {
	Addr       string  `yaml:"addr"`
	ConnString string  `yaml:"conn_string"`
	Table      string  `yaml:"table"`
	RatePerSec float64 `yaml:"rate_per_sec"`
	Burst      int     `yaml:"burst"`
	MaxDevices int     `yaml:"max_devices"`
}

func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Device.ID == "" {
		c.Device.ID = domain.DefaultDeviceID
	}
	if c.AccessPoint.Name == "" {
		c.AccessPoint.Name = "ESP8266_Config"
	}
	if c.AccessPoint.Secret == "" {
		c.AccessPoint.Secret = "12345678"
	}
	if c.Portal.Addr == "" {
		c.Portal.Addr = ":80"
	}
	if c.AutoSend.Enabled == nil {
		enabled := true
		c.AutoSend.Enabled = &enabled
	}
	if c.AutoSend.Interval == 0 {
		c.AutoSend.Interval = 10 * time.Second
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "./data/eeprom.bin"
	}
	if c.Network.APAddress == "" {
		c.Network.APAddress = "192.168.4.1"
	}
	if c.Network.DialTimeout == 0 {
		c.Network.DialTimeout = 5 * time.Second
	}
	if c.Network.ResponseTimeout == 0 {
		c.Network.ResponseTimeout = 5 * time.Second
	}
	if c.Policy.MaxQueueLen == 0 {
		c.Policy.MaxQueueLen = 1_000
	}
	if c.Policy.MaxDrainPerTick == 0 {
		c.Policy.MaxDrainPerTick = 64
	}
	if c.Policy.OnQueueFull == "" {
		c.Policy.OnQueueFull = "drop_oldest"
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9100"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Ingest.Addr == "" {
		c.Ingest.Addr = ":8080"
	}
	if c.Ingest.Table == "" {
		c.Ingest.Table = "reports"
	}
	if c.Ingest.Burst == 0 {
		c.Ingest.Burst = 3
	}
	if c.Ingest.MaxDevices == 0 {
		c.Ingest.MaxDevices = 1024
	}

	if c.Sensors != nil {
		c.Sensors.ApplyDefaults()
	}
}

func (c *Config) validate() error {
	if c.Collector.Port < 0 || c.Collector.Port > 65535 {
		return fmt.Errorf("collector.port must be in 1..65535")
	}
	if len(c.AccessPoint.Name) > domain.MaxNetworkNameLen {
		return fmt.Errorf("access_point.name exceeds %d bytes", domain.MaxNetworkNameLen)
	}
	if len(c.AccessPoint.Secret) > domain.MaxSecretLen {
		return fmt.Errorf("access_point.secret exceeds %d bytes", domain.MaxSecretLen)
	}
	if c.AutoSend.Interval < 0 {
		return fmt.Errorf("auto_send.interval must be positive")
	}
	if c.Network.DialTimeout < 0 || c.Network.ResponseTimeout < 0 {
		return fmt.Errorf("network timeouts must be positive")
	}
	switch c.Policy.OnQueueFull {
	case "drop_newest", "drop_oldest":
	default:
		return fmt.Errorf("policy.on_queue_full must be drop_newest or drop_oldest")
	}
	if c.Ingest.RatePerSec < 0 {
		return fmt.Errorf("ingest.rate_per_sec must not be negative")
	}
	if c.Sensors != nil {
		if err := c.Sensors.Validate(); err != nil {
			return fmt.Errorf("sensors config: %w", err)
		}
	}
	return nil
}

// Identity returns the device identity, which the agent cannot run without.
func (c *Config) Identity() (domain.DeviceIdentity, error) {
	id := domain.DeviceIdentity{
		CollectorAddress: c.Collector.Address,
		CollectorPort:    c.Collector.Port,
		DeviceID:         c.Device.ID,
	}
	if err := id.Validate(); err != nil {
		return domain.DeviceIdentity{}, fmt.Errorf("collector config: %w", err)
	}
	return id, nil
}

func (c *Config) AutoSendEnabled() bool {
	return c.AutoSend.Enabled == nil || *c.AutoSend.Enabled
}
