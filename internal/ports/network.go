package ports

import (
	"context"
	"net"
	"time"
)

type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type System interface {
	FreeMemory() uint64
}
