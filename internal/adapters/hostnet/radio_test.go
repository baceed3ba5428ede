package hostnet

import (
	"errors"
	"net"
	"net/netip"
	"runtime"
	"testing"
)

type fakeInterfaces struct {
	ifaces map[string]*net.Interface
	addrs  map[string][]net.Addr
}

func (f *fakeInterfaces) ByName(name string) (*net.Interface, error) {
	ifi, ok := f.ifaces[name]
	if !ok {
		return nil, errors.New("no such network interface")
	}
	return ifi, nil
}

func (f *fakeInterfaces) Addrs(ifi *net.Interface) ([]net.Addr, error) {
	return f.addrs[ifi.Name], nil
}

func mustCIDR(t *testing.T, s string) net.Addr {
	t.Helper()
	ip, n, err := net.ParseCIDR(s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	n.IP = ip
	return n
}

func newFake(t *testing.T) *fakeInterfaces {
	return &fakeInterfaces{
		ifaces: map[string]*net.Interface{
			"wlan0": {Name: "wlan0", Flags: net.FlagUp},
			"eth1":  {Name: "eth1"},
		},
		addrs: map[string][]net.Addr{
			"wlan0": {mustCIDR(t, "fe80::1/64"), mustCIDR(t, "10.1.2.3/24")},
		},
	}
}

func TestRadioJoinUnknownInterface(t *testing.T) {
	r := NewRadio(newFake(t), netip.Addr{}, nil)
	if err := r.Join("nope", "secret"); err == nil {
		t.Fatalf("expected join error")
	}
	if r.Connected() {
		t.Fatalf("radio must not be connected")
	}
}

func TestRadioJoinReportsStationAddress(t *testing.T) {
	r := NewRadio(newFake(t), netip.Addr{}, nil)
	if err := r.Join("wlan0", "secret"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if !r.Connected() {
		t.Fatalf("expected link up")
	}
	if got := r.LocalAddr(); got != netip.MustParseAddr("10.1.2.3") {
		t.Fatalf("unexpected addr %v", got)
	}
}

func TestRadioDownInterfaceIsDisconnected(t *testing.T) {
	r := NewRadio(newFake(t), netip.Addr{}, nil)
	if err := r.Join("eth1", "secret"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if r.Connected() {
		t.Fatalf("interface without FlagUp must read as disconnected")
	}
}

func TestRadioAccessPointLeavesStation(t *testing.T) {
	r := NewRadio(newFake(t), netip.Addr{}, nil)
	_ = r.Join("wlan0", "secret")

	addr, err := r.StartAccessPoint("ESP8266_Config", "12345678")
	if err != nil {
		t.Fatalf("start ap: %v", err)
	}
	if addr != DefaultAPAddr || r.LocalAddr() != DefaultAPAddr {
		t.Fatalf("expected AP address %v, got %v / %v", DefaultAPAddr, addr, r.LocalAddr())
	}
	if r.Connected() {
		t.Fatalf("AP posture is never connected")
	}
}

func TestSystemFreeMemory(t *testing.T) {
	free := (System{}).FreeMemory()
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	if free > ms.HeapSys {
		t.Fatalf("free memory %d exceeds heap size %d", free, ms.HeapSys)
	}
}
