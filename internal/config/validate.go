package config

import (
	"fmt"
	"strings"
	"time"
)

// Validate checks cross-field consistency before a config is committed.
// It is used both on initial load and by the hot-reload watcher, so a bad
// edit never replaces a known-good running config.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	switch strings.ToUpper(strings.TrimSpace(cfg.Logging.Level)) {
	case "", "TRACE", "DEBUG", "INFO", "WARN", "WARNING", "ERROR":
	default:
		return fmt.Errorf("logging.level: unknown level %q", cfg.Logging.Level)
	}

	if strings.TrimSpace(cfg.HTTP.Addr) == "" {
		return fmt.Errorf("http.addr is required")
	}
	for path, raw := range map[string]string{
		"http.read_timeout":          cfg.HTTP.ReadTimeout,
		"http.write_timeout":         cfg.HTTP.WriteTimeout,
		"http.idle_timeout":          cfg.HTTP.IdleTimeout,
		"storage.busy_timeout":       cfg.Storage.BusyTimeout,
		"scheduler.sweep_interval":   cfg.Scheduler.SweepInterval,
		"scheduler.delivery_timeout": cfg.Scheduler.DeliveryTimeout,
		"scheduler.retention":        cfg.Scheduler.Retention,
	} {
		if _, err := ParseDurationField(path, raw); err != nil {
			return err
		}
	}

	if strings.TrimSpace(cfg.Storage.Path) == "" {
		return fmt.Errorf("storage.path is required")
	}
	if cfg.Scheduler.RatePerSec < 0 {
		return fmt.Errorf("scheduler.rate_per_sec must be >= 0")
	}
	if d, _ := ParseDurationField("scheduler.sweep_interval", cfg.Scheduler.SweepInterval); d != 0 && d < time.Second {
		return fmt.Errorf("scheduler.sweep_interval: below 1s the sweep would hammer the store")
	}
	if strings.TrimSpace(cfg.Delivery.Sender) == "" {
		return fmt.Errorf("delivery.sender is required")
	}
	return nil
}
