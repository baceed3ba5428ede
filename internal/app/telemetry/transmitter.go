package telemetry

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/ecocheck/agent/internal/adapters/observability"
	"github.com/ecocheck/agent/internal/domain"
	"github.com/ecocheck/agent/internal/ports"
)

const (
	DefaultDialTimeout     = 5 * time.Second
	DefaultResponseTimeout = 5 * time.Second
)

var (
	ErrNoNetwork       = errors.New("telemetry: network not connected")
	ErrResponseTimeout = errors.New("telemetry: no response from collector")
)

// Link reports whether the station connection is up.
type Link interface {
	Connected() bool
}

type Config struct {
	Identity        domain.DeviceIdentity
	DialTimeout     time.Duration
	ResponseTimeout time.Duration
}

// Transmitter sends the sensor buffer to the collector as one form-encoded
// HTTP POST over a plain socket.
type Transmitter struct {
	cfg    Config
	buffer *Buffer
	link   Link
	dialer ports.Dialer
	clock  ports.Clock
	system ports.System
	obs    ports.Observability
}

func NewTransmitter(cfg Config, buffer *Buffer, link Link, dialer ports.Dialer, clock ports.Clock, system ports.System, obs ports.Observability) *Transmitter {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}
	if cfg.ResponseTimeout <= 0 {
		cfg.ResponseTimeout = DefaultResponseTimeout
	}
	return &Transmitter{
		cfg:    cfg,
		buffer: buffer,
		link:   link,
		dialer: dialer,
		clock:  clock,
		system: system,
		obs:    obs,
	}
}

// Send transmits one report. Any response bytes received within the
// response timeout count as success; the status code is not inspected.
func (t *Transmitter) Send(ctx context.Context) error {
	if !t.link.Connected() {
		t.obs.LogError("send_skipped", ErrNoNetwork)
		return ErrNoNetwork
	}

	err := t.send(ctx)
	if err != nil {
		t.obs.IncCounter(observability.ReportsFailedTotal, 1)
		t.obs.LogError("send_failed", err, ports.Field{Key: "collector", Value: t.cfg.Identity.Addr()})
		return err
	}

	t.obs.IncCounter(observability.ReportsSentTotal, 1)
	return nil
}

func (t *Transmitter) send(ctx context.Context) error {
	addr := t.cfg.Identity.Addr()
	start := time.Now()

	dialCtx, cancel := context.WithTimeout(ctx, t.cfg.DialTimeout)
	conn, err := t.dialer.DialContext(dialCtx, "tcp", addr)
	cancel()
	if err != nil {
		return fmt.Errorf("connect %s: %w", addr, err)
	}
	defer conn.Close()

	// cancelling ctx unblocks any pending read or write
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	snap := t.buffer.snapshot()
	status := reportStatus(snap, t.clock.Now())
	body := encodeReport(t.cfg.Identity.DeviceID, status, t.freeMemory(), snap)

	deadline := time.Now().Add(t.cfg.ResponseTimeout)
	if err := conn.SetDeadline(deadline); err != nil {
		return err
	}
	if _, err := conn.Write(encodeRequest(addr, body)); err != nil {
		return fmt.Errorf("write request: %w", err)
	}

	r := bufio.NewReader(conn)
	statusLine, err := r.ReadString('\n')
	if statusLine == "" {
		if err == nil || isTimeout(err) || errors.Is(err, io.EOF) {
			return ErrResponseTimeout
		}
		return fmt.Errorf("read response: %w", err)
	}
	t.obs.ObserveLatency(observability.ReportLatencySeconds, time.Since(start).Seconds())

	// drain within the same deadline; the collector closes the connection
	_, _ = io.Copy(io.Discard, r)

	t.obs.LogInfo("report_sent",
		ports.Field{Key: "collector", Value: addr},
		ports.Field{Key: "status", Value: string(status)},
		ports.Field{Key: "metrics", Value: len(snap.entries)},
		ports.Field{Key: "response", Value: strings.TrimSpace(statusLine)})
	return nil
}

func (t *Transmitter) freeMemory() uint64 {
	if t.system == nil {
		return 0
	}
	return t.system.FreeMemory()
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
