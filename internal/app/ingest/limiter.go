package ingest

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

const DefaultTrackedDevices = 1024

// DeviceLimiter keeps one token bucket per device. Least recently seen
// devices are evicted once the cache is full and start with a fresh bucket.
type DeviceLimiter struct {
	mu    sync.Mutex
	cache *lru.Cache[string, *rate.Limiter]
	limit rate.Limit
	burst int
}

func NewDeviceLimiter(perSecond float64, burst, devices int) (*DeviceLimiter, error) {
	if burst <= 0 {
		burst = 1
	}
	if devices <= 0 {
		devices = DefaultTrackedDevices
	}
	cache, err := lru.New[string, *rate.Limiter](devices)
	if err != nil {
		return nil, err
	}
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	return &DeviceLimiter{cache: cache, limit: limit, burst: burst}, nil
}

func (l *DeviceLimiter) Allow(device string) bool {
	l.mu.Lock()
	lim, ok := l.cache.Get(device)
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.cache.Add(device, lim)
	}
	l.mu.Unlock()
	return lim.Allow()
}

func (l *DeviceLimiter) Devices() int {
	return l.cache.Len()
}
