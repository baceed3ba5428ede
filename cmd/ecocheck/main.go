package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ecocheck/agent"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	var err error

	switch cmd {
	case "run":
		err = runCommand(os.Args[2:])
	case "collect":
		err = collectCommand(os.Args[2:])
	case "validate":
		err = validateCommand(os.Args[2:])
	case "stats":
		err = statsCommand(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		printUsage()
		err = fmt.Errorf("unknown command %q", cmd)
	}

	if err != nil {
		log.Fatalf("ecocheck %s: %v", cmd, err)
	}
}

func runCommand(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	cfgPath := fs.String("config", "./data/config.yaml", "Path to agent configuration file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := ecocheck.LoadConfig(*cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	obs, err := ecocheck.NewObservability(prometheus.DefaultRegisterer, cfg.Log.Level)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metricsSrv := startMetrics(cfg.Metrics.Addr, promhttp.Handler(), obs)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}()

	// a restart rebuilds the device from storage, as a reset would on hardware
	for {
		err := runDevice(ctx, cfg, obs)
		if errors.Is(err, ecocheck.ErrRestart) {
			obs.LogInfo("device_restart")
			continue
		}
		return err
	}
}

func runDevice(ctx context.Context, cfg *ecocheck.Config, obs ecocheck.Observability) error {
	dev, err := ecocheck.NewFromConfig(cfg, ecocheck.WithObservability(obs))
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := dev.Shutdown(shutdownCtx); err != nil {
			obs.LogError("device_shutdown", err)
		}
	}()

	if err := dev.Begin(ctx); err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	return dev.Run(ctx)
}

func collectCommand(args []string) error {
	fs := flag.NewFlagSet("collect", flag.ExitOnError)
	cfgPath := fs.String("config", "./data/config.yaml", "Path to configuration file")
	addr := fs.String("addr", "", "Override ingest.addr")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := ecocheck.LoadConfig(*cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *addr != "" {
		cfg.Ingest.Addr = *addr
	}

	obs, err := ecocheck.NewObservability(prometheus.DefaultRegisterer, cfg.Log.Level)
	if err != nil {
		return err
	}

	collector, err := ecocheck.NewCollectorServer(cfg.Ingest,
		ecocheck.WithCollectorObservability(obs),
		ecocheck.WithGatherer(prometheus.DefaultGatherer))
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Ingest.Addr,
		Handler:           collector.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		obs.LogInfo("collector_listening", ecocheck.Field{Key: "addr", Value: cfg.Ingest.Addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var errs []error
	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			errs = append(errs, err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	if err := collector.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func startMetrics(addr string, metrics http.Handler, obs ecocheck.Observability) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			obs.LogError("metrics_server_exited", err)
		}
	}()
	return srv
}

func validateCommand(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	cfgPath := fs.String("config", "./data/config.yaml", "Path to configuration file to validate")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := ecocheck.LoadConfig(*cfgPath)
	if err != nil {
		return err
	}
	if _, err := cfg.Identity(); err != nil {
		return err
	}
	fmt.Printf("config %s looks good\n", *cfgPath)
	return nil
}

func statsCommand(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	url := fs.String("url", "http://localhost:9100/metrics", "Prometheus metrics endpoint")
	interval := fs.Duration("interval", 2*time.Second, "Refresh interval")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	fmt.Printf("Streaming metrics from %s (Ctrl+C to stop)\n", *url)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := printMetricsSnapshot(*url); err != nil {
				fmt.Fprintf(os.Stderr, "stats error: %v\n", err)
			}
		}
	}
}

var statsTargets = []string{
	"ecocheck_posture",
	"ecocheck_reports_sent_total",
	"ecocheck_reports_failed_total",
	"ecocheck_metrics_present",
	"ecocheck_reading_queue_length",
}

func printMetricsSnapshot(url string) error {
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	values := make(map[string]float64, len(statsTargets))
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "#") {
			continue
		}
		for _, key := range statsTargets {
			if strings.HasPrefix(line, key+" ") {
				var value float64
				if _, err := fmt.Sscanf(line, key+" %f", &value); err == nil {
					values[key] = value
				}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	posture := "access_point"
	if values["ecocheck_posture"] == 1 {
		posture = "station"
	}
	fmt.Printf("[%s] posture=%s sent=%.0f failed=%.0f metrics=%.0f queue=%.0f\n",
		time.Now().Format(time.RFC3339),
		posture,
		values["ecocheck_reports_sent_total"],
		values["ecocheck_reports_failed_total"],
		values["ecocheck_metrics_present"],
		values["ecocheck_reading_queue_length"],
	)
	return nil
}

func printUsage() {
	fmt.Printf(`EcoCheck CLI

Usage:
  ecocheck <command> [flags]

Commands:
  run        Start the device agent using the provided config
  collect    Run the reference collector endpoint (POST /data)
  validate   Load and validate a config file without starting anything
  stats      Poll the Prometheus metrics endpoint and print live counters

Examples:
  ecocheck run -config ./data/config.yaml
  ecocheck collect -config ./data/config.yaml -addr :8080
  ecocheck validate -config ./data/config.yaml
  ecocheck stats -url http://localhost:9100/metrics -interval 1s
`)
}
