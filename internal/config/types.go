package config

type Config struct {
	Logging   LoggingConfig   `json:"logging"`
	HTTP      HTTPConfig      `json:"http"`
	Storage   StorageConfig   `json:"storage"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Delivery  DeliveryConfig  `json:"delivery"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// HTTPConfig controls the inbound webhook server.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type HTTPConfig struct {
	Addr         string `json:"addr"`
	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
	IdleTimeout  string `json:"idle_timeout,omitempty"`
}

// StorageConfig controls the reminder database.
type StorageConfig struct {
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string
}

// SchedulerConfig controls the firing loop.
//
// Defaults (when fields are omitted/zero):
//   - sweep_interval: "20s"
//   - delivery_timeout: "10s"
//   - rate_per_sec: 3
//   - retention: "720h" (terminal rows pruned after 30 days; "0s" disables)
type SchedulerConfig struct {
	SweepInterval   string `json:"sweep_interval,omitempty"`
	DeliveryTimeout string `json:"delivery_timeout,omitempty"`
	RatePerSec      int    `json:"rate_per_sec,omitempty"`
	Retention       string `json:"retention,omitempty"`
}

// DeliveryConfig controls the outbound messaging provider.
//
// Credentials (account sid + auth token) intentionally do not live here;
// they are read from the environment (see cmd/bot). Only the non-secret
// sender identity and endpoint override belong in the config file.
type DeliveryConfig struct {
	Sender  string `json:"sender"`
	APIBase string `json:"api_base,omitempty"` // override for tests/self-hosted gateways
}
