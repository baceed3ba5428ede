package domain

import "time"

// Reading is a single metric update handed from a producer to the agent.
type Reading struct {
	Metric    Metric    `json:"metric"`
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"ts"`
}
