package ecocheck

import (
	"github.com/ecocheck/agent/internal/app/agent"
	"github.com/ecocheck/agent/internal/domain"
	"github.com/ecocheck/agent/internal/ports"
)

// ErrRestart is returned by Loop and Run once the device has to restart,
// after a portal save or ResetConfig. Hosts rebuild the Device with New.
var ErrRestart = agent.ErrRestart

// Metric names one of the fixed sensor slots.
type Metric = domain.Metric

// Reading is a single metric value handed in by a producer.
type Reading = domain.Reading

// DeviceIdentity locates the collector and names the device.
type DeviceIdentity = domain.DeviceIdentity

// NetworkProfile is the stored network name, secret and configured flag.
type NetworkProfile = domain.NetworkProfile

// Posture is access point (configuration) or station (joined).
type Posture = domain.Posture

// Report is one transmission as seen by the collector.
type Report = domain.Report

const (
	Temperature = domain.Temperature
	Humidity    = domain.Humidity
	AQI         = domain.AQI
	TVOC        = domain.TVOC
	ECO2        = domain.ECO2
	CO          = domain.CO
	Alcohol     = domain.Alcohol
	CO2         = domain.CO2
	Toluene     = domain.Toluene
	Ammonia     = domain.Ammonia
	Acetone     = domain.Acetone
	PM25        = domain.PM25
	PM10        = domain.PM10
	DustDensity = domain.DustDensity
	UVIndex     = domain.UVIndex

	AccessPoint = domain.AccessPoint
	Station     = domain.Station
)

// Collector produces readings on its own goroutine (OPC UA, simulators, ...).
type Collector = ports.Collector

// ReadingQueue is the bounded inbox between collectors and the loop.
type ReadingQueue = ports.ReadingQueue

// Radio is the network interface: access point or station.
type Radio = ports.Radio

// BlobStore is the persistent byte region holding the network profile.
type BlobStore = ports.BlobStore

// Dialer opens the socket to the collector.
type Dialer = ports.Dialer

// Clock drives every timed wait.
type Clock = ports.Clock

// System reports free memory for the payload.
type System = ports.System

// Observability receives logs and metrics.
type Observability = ports.Observability

// Field is a structured log field used by Observability implementations.
type Field = ports.Field

// Policy bounds the reading queue.
type Policy = ports.Policy

// ReportSink persists reports accepted by the collector endpoint.
type ReportSink = ports.ReportSink
