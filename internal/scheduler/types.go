package scheduler

import (
	"time"
)

// Config controls the firing engine.
type Config struct {
	// SweepInterval bounds delivery lag for anything a timer missed.
	// Default 20s.
	SweepInterval time.Duration

	// DeliveryTimeout caps a single adapter call so one slow send cannot
	// stall the firing loop. Default 10s.
	DeliveryTimeout time.Duration

	// RatePerSec limits outbound sends (token bucket, burst = rate).
	// Default 3.
	RatePerSec int

	// Retention prunes terminal rows (sent/canceled/failed) older than this
	// once a day. 0 disables pruning.
	Retention time.Duration
}

func (c Config) withDefaults() Config {
	if c.SweepInterval <= 0 {
		c.SweepInterval = 20 * time.Second
	}
	if c.DeliveryTimeout <= 0 {
		c.DeliveryTimeout = 10 * time.Second
	}
	if c.RatePerSec <= 0 {
		c.RatePerSec = 3
	}
	return c
}
