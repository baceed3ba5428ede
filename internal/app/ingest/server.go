package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ecocheck/agent/internal/adapters/observability"
	"github.com/ecocheck/agent/internal/domain"
	"github.com/ecocheck/agent/internal/ports"
)

// maxBodyBytes bounds a report body; a full report is well under 1 KiB.
const maxBodyBytes = 4 << 10

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Options struct {
	Sink     ports.ReportSink
	Limiter  *DeviceLimiter
	Health   Pinger
	Gatherer prometheus.Gatherer
	Obs      ports.Observability
	Now      func() time.Time
}

type Server struct {
	router  *mux.Router
	sink    ports.ReportSink
	limiter *DeviceLimiter
	health  Pinger
	obs     ports.Observability
	now     func() time.Time
}

func NewServer(opts Options) *Server {
	if opts.Obs == nil {
		opts.Obs = observability.Nop{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &Server{
		router:  mux.NewRouter(),
		sink:    opts.Sink,
		limiter: opts.Limiter,
		health:  opts.Health,
		obs:     opts.Obs,
		now:     opts.Now,
	}

	s.router.HandleFunc("/data", s.ingest).Methods(http.MethodPost)
	s.router.HandleFunc("/healthz", s.healthz).Methods(http.MethodGet)
	if opts.Gatherer != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) ingest(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		s.reject(w, "parse_form", err, http.StatusBadRequest)
		return
	}

	report, err := ParseReport(r.PostForm, s.now())
	if err != nil {
		s.reject(w, "parse_report", err, http.StatusBadRequest)
		return
	}

	if s.limiter != nil && !s.limiter.Allow(report.DeviceID) {
		s.reject(w, "rate_limited", errors.New("too many reports"), http.StatusTooManyRequests,
			ports.Field{Key: "device", Value: report.DeviceID})
		return
	}

	if s.sink != nil {
		if err := s.sink.WriteBatch([]*domain.Report{report}); err != nil {
			s.obs.LogError("report_store_failed", err, ports.Field{Key: "sink", Value: s.sink.Name()})
			http.Error(w, "storage unavailable", http.StatusInternalServerError)
			return
		}
	}

	s.obs.IncCounter(observability.ReportsIngestedTotal, 1)
	s.obs.LogInfo("report_ingested",
		ports.Field{Key: "id", Value: report.ID},
		ports.Field{Key: "device", Value: report.DeviceID},
		ports.Field{Key: "status", Value: string(report.Status)},
		ports.Field{Key: "metrics", Value: len(report.Values)})

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) reject(w http.ResponseWriter, reason string, err error, code int, fields ...ports.Field) {
	s.obs.IncCounter(observability.ReportsRejectedTotal, 1)
	s.obs.LogError("report_rejected", err, append(fields, ports.Field{Key: "reason", Value: reason})...)
	http.Error(w, http.StatusText(code), code)
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health.PingContext(r.Context()); err != nil {
			s.obs.LogError("health_check_failed", err)
			http.Error(w, "Service unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
}
