package observability

import (
	"github.com/ecocheck/agent/internal/domain"
	"github.com/ecocheck/agent/internal/ports"
)

// Nop discards everything. Used when embedding code does not want metrics.
type Nop struct{}

func (Nop) LogInfo(string, ...ports.Field)            {}
func (Nop) LogError(string, error, ...ports.Field)    {}
func (Nop) LogCritical(string, error, ...ports.Field) {}
func (Nop) IncCounter(string, float64)                {}
func (Nop) ObserveLatency(string, float64)            {}
func (Nop) SetGauge(string, float64)                  {}
func (Nop) RecordDroppedReading(domain.Reading)       {}

var _ ports.Observability = Nop{}
