package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/ecocheck/agent"
)

func main() {
	sink, reports, closeSink := ecocheck.NewChannelSink("stdout", 16)
	defer closeSink()

	handler, closeFn, err := ecocheck.CollectorHandler(ecocheck.IngestConfig{RatePerSec: 1, Burst: 3}, ecocheck.WithReportSink(sink))
	if err != nil {
		log.Fatalf("collector: %v", err)
	}
	defer closeFn()

	srv := &http.Server{Addr: ":8080", Handler: handler, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
			return
		case batch := <-reports:
			for _, r := range batch {
				log.Printf("device=%s status=%s free=%d values=%d", r.DeviceID, r.Status, r.FreeMemory, len(r.Values))
			}
		}
	}
}
