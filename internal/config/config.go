// Package config holds the reference program's settings and how they are
// loaded from flags, environment, YAML files and .env files.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"

	"github.com/ygrebnov/pushmetrics/exporter/otlphttp"
)

const (
	ExporterOTLPHTTP = "otlphttp"
	ExporterLog      = "log"

	DefaultEndpoint        = "http://127.0.0.1:4000/v1/otlp/v1/metrics"
	DefaultInterval        = 5 * time.Second
	DefaultShutdownTimeout = 5 * time.Second
	DefaultMaxRetries      = 3
)

// Config is the full configuration of the gauge example program. The struct
// tags drive kong flag, env and YAML key names.
type Config struct {
	ServiceName string `name:"service-name" env:"PUSHMETRICS_SERVICE_NAME" help:"service.name resource attribute (required)."`
	Exporter    string `name:"exporter" env:"PUSHMETRICS_EXPORTER" enum:"otlphttp,log" default:"otlphttp" help:"Where snapshots go: otlphttp or log."`
	Endpoint    string `name:"endpoint" env:"PUSHMETRICS_ENDPOINT" default:"http://127.0.0.1:4000/v1/otlp/v1/metrics" help:"OTLP/HTTP metrics URL."`

	Interval        time.Duration `name:"interval" env:"PUSHMETRICS_INTERVAL" default:"5s" help:"Collection interval."`
	ExportTimeout   time.Duration `name:"export-timeout" env:"PUSHMETRICS_EXPORT_TIMEOUT" help:"Per-export timeout, defaults to the interval."`
	MaxRetries      int           `name:"max-retries" env:"PUSHMETRICS_MAX_RETRIES" default:"3" help:"Immediate retries after a failed export."`
	ShutdownTimeout time.Duration `name:"shutdown-timeout" env:"PUSHMETRICS_SHUTDOWN_TIMEOUT" default:"5s" help:"Grace period for the final flush."`

	Headers            map[string]string `name:"header" env:"PUSHMETRICS_HEADERS" help:"Extra request headers, key=value;key=value."`
	ResourceAttributes map[string]string `name:"resource-attribute" env:"PUSHMETRICS_RESOURCE_ATTRIBUTES" help:"Extra resource attributes, key=value;key=value."`
	InstanceID         string            `name:"instance-id" env:"PUSHMETRICS_INSTANCE_ID" help:"service.instance.id, random when empty."`

	TelemetryAddr string `name:"telemetry-addr" env:"PUSHMETRICS_TELEMETRY_ADDR" help:"Serve the collector's own Prometheus metrics on this address."`
	LogLevel      string `name:"log-level" env:"PUSHMETRICS_LOG_LEVEL" default:"info" help:"trace, debug, info, warn or error."`
	LogJSON       bool   `name:"log-json" env:"PUSHMETRICS_LOG_JSON" help:"Log in JSON."`
}

// DefaultConfig returns a Config carrying the same defaults as the flag tags.
func DefaultConfig() Config {
	return Config{
		Exporter:        ExporterOTLPHTTP,
		Endpoint:        DefaultEndpoint,
		Interval:        DefaultInterval,
		MaxRetries:      DefaultMaxRetries,
		ShutdownTimeout: DefaultShutdownTimeout,
		LogLevel:        "info",
	}
}

// Validate reports every problem with c at once.
func (c Config) Validate() error {
	var merr *multierror.Error
	if c.ServiceName == "" {
		merr = multierror.Append(merr, errors.New("service name is required"))
	}
	switch c.Exporter {
	case ExporterOTLPHTTP:
		if err := otlphttp.ValidateEndpoint(c.Endpoint); err != nil {
			merr = multierror.Append(merr, err)
		}
	case ExporterLog:
	default:
		merr = multierror.Append(merr, fmt.Errorf("unknown exporter %q", c.Exporter))
	}
	if c.Interval <= 0 {
		merr = multierror.Append(merr, fmt.Errorf("interval must be positive, got %s", c.Interval))
	}
	if c.ExportTimeout < 0 {
		merr = multierror.Append(merr, fmt.Errorf("export timeout must not be negative, got %s", c.ExportTimeout))
	}
	if c.ShutdownTimeout < 0 {
		merr = multierror.Append(merr, fmt.Errorf("shutdown timeout must not be negative, got %s", c.ShutdownTimeout))
	}
	if c.MaxRetries < 0 {
		merr = multierror.Append(merr, fmt.Errorf("max retries must not be negative, got %d", c.MaxRetries))
	}
	if hclog.LevelFromString(c.LogLevel) == hclog.NoLevel {
		merr = multierror.Append(merr, fmt.Errorf("unknown log level %q", c.LogLevel))
	}
	return merr.ErrorOrNil()
}

// LoggerOptions returns hclog options for the configured level and format.
func (c Config) LoggerOptions(name string) *hclog.LoggerOptions {
	return &hclog.LoggerOptions{
		Name:       name,
		Level:      hclog.LevelFromString(c.LogLevel),
		JSONFormat: c.LogJSON,
	}
}
