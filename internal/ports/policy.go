package ports

type Policy struct {
	MaxQueueLen     int `yaml:"max_queue_len"`
	MaxDrainPerTick int `yaml:"max_drain_per_tick"`

	OnQueueFull string `yaml:"on_queue_full"` // "drop_newest", "drop_oldest"
}
