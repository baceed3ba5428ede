package domain

import (
	"errors"
	"net"
	"strconv"
)

// DefaultDeviceID is used when the embedding code does not name the device.
const DefaultDeviceID = "esp01"

// DeviceIdentity is fixed at construction.
type DeviceIdentity struct {
	CollectorAddress string
	CollectorPort    int
	DeviceID         string
}

// Addr is the collector's host:port.
func (d DeviceIdentity) Addr() string {
	return net.JoinHostPort(d.CollectorAddress, strconv.Itoa(d.CollectorPort))
}

func (d DeviceIdentity) Validate() error {
	if d.CollectorAddress == "" {
		return errors.New("collector address is required")
	}
	if d.CollectorPort <= 0 || d.CollectorPort > 65535 {
		return errors.New("collector port must be in 1..65535")
	}
	if d.DeviceID == "" {
		return errors.New("device id is required")
	}
	return nil
}
