package portal

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/ecocheck/agent/internal/ports"
)

// Server runs the portal handler on its own goroutine. Start is idempotent so
// repeated access-point fallbacks reuse the running listener.
type Server struct {
	mu      sync.Mutex
	addr    string
	handler http.Handler
	obs     ports.Observability
	srv     *http.Server
	ln      net.Listener
}

func NewServer(addr string, handler http.Handler, obs ports.Observability) *Server {
	return &Server{addr: addr, handler: handler, obs: obs}
}

func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv != nil {
		return nil
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.srv, s.ln = srv, ln

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.obs.LogError("portal_server_exited", err)
		}
	}()
	s.obs.LogInfo("portal_listening", ports.Field{Key: "addr", Value: ln.Addr().String()})
	return nil
}

// Addr is the bound listener address, nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.srv, s.ln = nil, nil
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
