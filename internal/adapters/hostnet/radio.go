// Package hostnet runs the agent on an ordinary Linux host. The radio maps
// the profile's network name to a host interface: joining succeeds when the
// interface exists, and the link is up while it reports FlagUp with an
// address. Access-point posture binds the portal to a fixed local address.
package hostnet

import (
	"fmt"
	"net"
	"net/netip"
	"runtime"
	"sync"
	"time"

	"github.com/ecocheck/agent/internal/ports"
)

// DefaultAPAddr is the portal address announced in access-point posture.
var DefaultAPAddr = netip.MustParseAddr("192.168.4.1")

// Interfaces abstracts the host interface table.
type Interfaces interface {
	ByName(name string) (*net.Interface, error)
	Addrs(ifi *net.Interface) ([]net.Addr, error)
}

type systemInterfaces struct{}

func (systemInterfaces) ByName(name string) (*net.Interface, error) { return net.InterfaceByName(name) }
func (systemInterfaces) Addrs(ifi *net.Interface) ([]net.Addr, error) {
	return ifi.Addrs()
}

type Radio struct {
	ifaces Interfaces
	apAddr netip.Addr
	obs    ports.Observability

	mu      sync.Mutex
	station bool
	iface   string
}

func NewRadio(ifaces Interfaces, apAddr netip.Addr, obs ports.Observability) *Radio {
	if ifaces == nil {
		ifaces = systemInterfaces{}
	}
	if !apAddr.IsValid() {
		apAddr = DefaultAPAddr
	}
	return &Radio{ifaces: ifaces, apAddr: apAddr, obs: obs}
}

func (r *Radio) StartAccessPoint(name, secret string) (netip.Addr, error) {
	r.mu.Lock()
	r.station = false
	r.iface = ""
	r.mu.Unlock()

	if r.obs != nil {
		r.obs.LogInfo("hostnet_access_point", ports.Field{Key: "ssid", Value: name})
	}
	return r.apAddr, nil
}

// Join selects the named interface. The secret is not used on hosts.
func (r *Radio) Join(name, _ string) error {
	if _, err := r.ifaces.ByName(name); err != nil {
		return fmt.Errorf("hostnet join %q: %w", name, err)
	}
	r.mu.Lock()
	r.station = true
	r.iface = name
	r.mu.Unlock()
	return nil
}

func (r *Radio) Connected() bool {
	_, ok := r.stationAddr()
	return ok
}

func (r *Radio) LocalAddr() netip.Addr {
	r.mu.Lock()
	station := r.station
	r.mu.Unlock()
	if !station {
		return r.apAddr
	}
	addr, _ := r.stationAddr()
	return addr
}

// stationAddr returns the first IPv4 address of the joined interface while
// it is up.
func (r *Radio) stationAddr() (netip.Addr, bool) {
	r.mu.Lock()
	station, name := r.station, r.iface
	r.mu.Unlock()
	if !station {
		return netip.Addr{}, false
	}

	ifi, err := r.ifaces.ByName(name)
	if err != nil || ifi.Flags&net.FlagUp == 0 {
		return netip.Addr{}, false
	}
	addrs, err := r.ifaces.Addrs(ifi)
	if err != nil {
		return netip.Addr{}, false
	}
	for _, a := range addrs {
		prefix, err := netip.ParsePrefix(a.String())
		if err != nil {
			continue
		}
		if ip := prefix.Addr().Unmap(); ip.Is4() {
			return ip, true
		}
	}
	return netip.Addr{}, false
}

// NewDialer returns a dialer bounded by timeout.
func NewDialer(timeout time.Duration) ports.Dialer {
	return &net.Dialer{Timeout: timeout}
}

// System reports free memory as the heap headroom of this process.
type System struct{}

func (System) FreeMemory() uint64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	if ms.HeapSys < ms.HeapAlloc {
		return 0
	}
	return ms.HeapSys - ms.HeapAlloc
}

var (
	_ ports.Radio  = (*Radio)(nil)
	_ ports.System = System{}
)
