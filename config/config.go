// Package config provides configuration management for the dispatch service.
package config

import (
	"fmt"
	"time"
)

// Config is the configuration of dispatchd.
type Config struct {
	// App is the application configuration.
	App AppConfig `mapstructure:"app" validate:"required"`

	// Log is the logging configuration.
	Log LogConfig `mapstructure:"log" validate:"required"`

	// Dispatch holds the defaults applied to every signal of the hub.
	Dispatch DispatchConfig `mapstructure:"dispatch"`

	// Metrics is the Prometheus configuration.
	Metrics MetricsConfig `mapstructure:"metrics"`

	// Tracing is the OpenTelemetry configuration.
	Tracing TracingConfig `mapstructure:"tracing"`

	// Admin is the admin HTTP server configuration.
	Admin AdminConfig `mapstructure:"admin"`

	// Demo drives the built-in demo traffic.
	Demo DemoConfig `mapstructure:"demo"`
}

// AppConfig holds application metadata and settings.
type AppConfig struct {
	// Name is the application name.
	Name string `mapstructure:"name" validate:"required"`

	// Environment is the runtime environment (development, staging, production).
	Environment string `mapstructure:"environment" validate:"env"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is the log level (debug, info, warn, error).
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`

	// Format is the output format (json, text).
	Format string `mapstructure:"format" validate:"oneof=json text"`

	// Output is the output destination (stdout, stderr, discard, or file path).
	Output string `mapstructure:"output"`
}

// DispatchConfig holds signal defaults.
type DispatchConfig struct {
	// DefaultWeak makes Connect hold receivers weakly unless told otherwise.
	DefaultWeak bool `mapstructure:"default_weak"`

	// MaxConcurrency bounds concurrent asynchronous receivers per dispatch.
	// Zero means unbounded.
	MaxConcurrency int `mapstructure:"max_concurrency" validate:"min=0"`

	// FailureLogRate is the number of receiver failures logged per second.
	// Zero logs every failure.
	FailureLogRate float64 `mapstructure:"failure_log_rate" validate:"min=0"`

	// FailureLogBurst is the burst allowed above FailureLogRate.
	FailureLogBurst int `mapstructure:"failure_log_burst" validate:"min=0"`
}

// MetricsConfig holds Prometheus settings.
type MetricsConfig struct {
	// Enabled enables metrics collection.
	Enabled bool `mapstructure:"enabled"`

	// Path is the metrics endpoint path on the admin server.
	Path string `mapstructure:"path" validate:"url_path"`
}

// TracingConfig holds distributed tracing settings.
type TracingConfig struct {
	// Enabled enables distributed tracing.
	Enabled bool `mapstructure:"enabled"`

	// Exporter is the span exporter.
	Exporter string `mapstructure:"exporter" validate:"oneof=otlpgrpc"`

	// Endpoint is the collector endpoint.
	Endpoint string `mapstructure:"endpoint" validate:"required_if=Enabled true"`

	// Insecure disables TLS towards the collector.
	Insecure bool `mapstructure:"insecure"`

	// Headers are sent with every export request.
	Headers map[string]string `mapstructure:"headers"`

	// Timeout bounds one export request.
	Timeout time.Duration `mapstructure:"timeout" validate:"min=0"`

	// Sampler is always_on, always_off or parentbased_traceidratio.
	Sampler string `mapstructure:"sampler" validate:"oneof=always_on always_off parentbased_traceidratio"`

	// SampleRate is the fraction of traces to sample (0.0-1.0).
	SampleRate float64 `mapstructure:"sample_rate" validate:"min=0,max=1"`
}

// AdminConfig holds the admin HTTP server settings.
type AdminConfig struct {
	// Enabled enables the admin server.
	Enabled bool `mapstructure:"enabled"`

	// Host is the bind address.
	Host string `mapstructure:"host"`

	// Port is the listen port.
	Port int `mapstructure:"port" validate:"required_if=Enabled true,min=0,max=65535"`

	// ReadTimeout is the maximum duration for reading a request.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DemoConfig holds the demo traffic settings.
type DemoConfig struct {
	// Enabled starts the demo publisher.
	Enabled bool `mapstructure:"enabled"`

	// Interval is the pause between two rounds of demo events.
	Interval time.Duration `mapstructure:"interval" validate:"required_if=Enabled true"`
}

// Validate performs validation on the configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// Addr returns the admin listen address.
func (a AdminConfig) Addr() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

// String returns a string representation of the configuration (without sensitive data).
func (c *Config) String() string {
	return fmt.Sprintf("Config{App: %s, Env: %s, Admin: %s, Tracing: %t}",
		c.App.Name, c.App.Environment, c.Admin.Addr(), c.Tracing.Enabled)
}
