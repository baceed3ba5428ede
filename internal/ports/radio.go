package ports

import "net/netip"

// Radio is the device's network interface. Access-point and station modes
// are mutually exclusive; switching into one leaves the other.
type Radio interface {
	StartAccessPoint(name, secret string) (netip.Addr, error)
	Join(name, secret string) error
	Connected() bool
	LocalAddr() netip.Addr
}
