package ecocheck

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ecocheck/agent/internal/adapters/observability"
)

// NewObservability logs through zap at level and registers the agent's
// Prometheus collectors with reg. Call it once per registry.
func NewObservability(reg prometheus.Registerer, level string) (Observability, error) {
	logger, err := observability.NewLogger(level)
	if err != nil {
		return nil, err
	}
	return observability.NewPromObs(reg, logger), nil
}
