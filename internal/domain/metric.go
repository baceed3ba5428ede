package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Metric identifies one named sensor slot. The declaration order is the
// order fields appear in outbound reports.
type Metric uint8

const (
	Temperature Metric = iota
	Humidity
	AQI
	TVOC
	ECO2
	CO
	Alcohol
	CO2
	Toluene
	Ammonia
	Acetone
	PM25
	PM10
	DustDensity
	UVIndex

	metricCount
)

type metricSpec struct {
	name   string
	key    string
	digits int
}

var metricSpecs = [metricCount]metricSpec{
	Temperature: {name: "temperature", key: "temperature", digits: 1},
	Humidity:    {name: "humidity", key: "humidity", digits: 1},
	AQI:         {name: "aqi", key: "aqi", digits: 0},
	TVOC:        {name: "tvoc", key: "tvoc", digits: 0},
	ECO2:        {name: "eco2", key: "eco2", digits: 0},
	CO:          {name: "co", key: "co", digits: 2},
	Alcohol:     {name: "alcohol", key: "alcohol", digits: 2},
	CO2:         {name: "co2", key: "co2_real", digits: 0},
	Toluene:     {name: "toluene", key: "toluene", digits: 2},
	Ammonia:     {name: "ammonia", key: "ammonia", digits: 2},
	Acetone:     {name: "acetone", key: "acetone", digits: 2},
	PM25:        {name: "pm25", key: "pm25", digits: 1},
	PM10:        {name: "pm10", key: "pm10", digits: 1},
	DustDensity: {name: "dust_density", key: "dust_density", digits: 1},
	UVIndex:     {name: "uv_index", key: "uv_index", digits: 1},
}

// Metrics returns every metric in report order.
func Metrics() []Metric {
	out := make([]Metric, 0, metricCount)
	for m := Metric(0); m < metricCount; m++ {
		out = append(out, m)
	}
	return out
}

// Valid reports whether m is one of the known slots.
func (m Metric) Valid() bool { return m < metricCount }

func (m Metric) String() string {
	if !m.Valid() {
		return fmt.Sprintf("metric(%d)", uint8(m))
	}
	return metricSpecs[m].name
}

// Key is the form field name used on the wire.
func (m Metric) Key() string {
	if !m.Valid() {
		return ""
	}
	return metricSpecs[m].key
}

// Precision is the number of fractional digits rendered on the wire.
func (m Metric) Precision() int {
	if !m.Valid() {
		return 0
	}
	return metricSpecs[m].digits
}

// Format renders v with the metric's fixed precision. Halfway values round
// away from zero, so 8.25 at one digit is 8.3.
func (m Metric) Format(v float64) string {
	digits := m.Precision()
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'f', digits, 64)
	}
	scale := math.Pow10(digits)
	return strconv.FormatFloat(math.Round(v*scale)/scale, 'f', digits, 64)
}

// ParseMetric accepts either the metric name or its wire key, case-insensitive.
func ParseMetric(s string) (Metric, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for m := Metric(0); m < metricCount; m++ {
		if metricSpecs[m].name == s || metricSpecs[m].key == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown metric %q", s)
}
