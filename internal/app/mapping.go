package app

import (
	"time"

	"remindbot/internal/config"
	"remindbot/internal/httpd"
	"remindbot/internal/scheduler"
	logx "remindbot/pkg/logx"
)

func mapLoggingConfig(c config.LoggingConfig) logx.Config {
	return logx.Config{
		Level:   c.Level,
		Console: c.Console,
		File: logx.FileConfig{
			Enabled: c.File.Enabled,
			Path:    c.File.Path,
		},
	}
}

func mapSchedulerConfig(cfg *config.Config) (scheduler.Config, error) {
	sweep, err := config.ParseDurationOrDefault("scheduler.sweep_interval", cfg.Scheduler.SweepInterval, 20*time.Second)
	if err != nil {
		return scheduler.Config{}, err
	}
	timeout, err := config.ParseDurationOrDefault("scheduler.delivery_timeout", cfg.Scheduler.DeliveryTimeout, 10*time.Second)
	if err != nil {
		return scheduler.Config{}, err
	}
	retention, err := config.ParseDurationOrDefault("scheduler.retention", cfg.Scheduler.Retention, 720*time.Hour)
	if err != nil {
		return scheduler.Config{}, err
	}
	return scheduler.Config{
		SweepInterval:   sweep,
		DeliveryTimeout: timeout,
		RatePerSec:      cfg.Scheduler.RatePerSec,
		Retention:       retention,
	}, nil
}

func mapHTTPConfig(cfg *config.Config) (httpd.Config, error) {
	read, err := config.ParseDurationField("http.read_timeout", cfg.HTTP.ReadTimeout)
	if err != nil {
		return httpd.Config{}, err
	}
	write, err := config.ParseDurationField("http.write_timeout", cfg.HTTP.WriteTimeout)
	if err != nil {
		return httpd.Config{}, err
	}
	idle, err := config.ParseDurationField("http.idle_timeout", cfg.HTTP.IdleTimeout)
	if err != nil {
		return httpd.Config{}, err
	}
	return httpd.Config{
		Addr:         cfg.HTTP.Addr,
		ReadTimeout:  read,
		WriteTimeout: write,
		IdleTimeout:  idle,
	}, nil
}
