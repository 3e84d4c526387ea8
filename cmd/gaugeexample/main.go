// Command gaugeexample registers host memory gauges and pushes them to an
// OTLP/HTTP endpoint on a fixed interval until interrupted.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	metrics "github.com/ygrebnov/pushmetrics"
	"github.com/ygrebnov/pushmetrics/collector"
	"github.com/ygrebnov/pushmetrics/exporter/logexporter"
	"github.com/ygrebnov/pushmetrics/exporter/otlphttp"
	"github.com/ygrebnov/pushmetrics/internal/config"
	"github.com/ygrebnov/pushmetrics/internal/hostgauges"
)

const (
	envFileVar        = "PUSHMETRICS_ENV_FILE"
	defaultConfigFile = "pushmetrics.yaml"
	// scopeName is the instrumentation scope the gauges are exported under.
	scopeName = "io.opentelemetry.example.metrics"
)

// CLI is the command line of gaugeexample.
type CLI struct {
	config.Config
	ConfigFile kong.ConfigFlag `name:"config" short:"c" help:"YAML configuration file; keys are flag names."`
}

func main() {
	if err := config.LoadDotEnv(os.Getenv(envFileVar)); err != nil {
		fmt.Fprintf(os.Stderr, "gaugeexample: %v\n", err)
		os.Exit(1)
	}

	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("gaugeexample"),
		kong.Description("Push host memory gauges to an OTLP/HTTP collector."),
		kong.Configuration(config.YAMLLoader, defaultConfigFile),
		kong.UsageOnError(),
	)
	if err := cli.Validate(); err != nil {
		kctx.Fatalf("invalid configuration: %v", err)
	}

	logger := hclog.New(cli.LoggerOptions("gaugeexample"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cli.Config, logger, prometheus.NewRegistry()); err != nil {
		logger.Error("failed to start", "error", err)
		stop()
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

// run wires the registry, exporter and collector from cfg and blocks until
// ctx is done. Errors are returned only for failures before the loop starts.
func run(ctx context.Context, cfg config.Config, logger hclog.Logger, promReg *prometheus.Registry) error {
	reg := metrics.NewRegistry(metrics.WithLogger(logger))
	if err := hostgauges.Register(reg, hostgauges.Options{Logger: logger}); err != nil {
		return fmt.Errorf("register host gauges: %w", err)
	}

	exp, err := newExporter(cfg, logger)
	if err != nil {
		return err
	}

	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	col, err := collector.New(reg, exp, collector.Options{
		Interval:        cfg.Interval,
		ExportTimeout:   cfg.ExportTimeout,
		MaxRetries:      cfg.MaxRetries,
		ShutdownTimeout: cfg.ShutdownTimeout,
		Logger:          logger,
		Reporter:        collector.NewPrometheusReporter(promReg),
	})
	if err != nil {
		return fmt.Errorf("create collector: %w", err)
	}

	if cfg.TelemetryAddr != "" {
		stopTelemetry, err := serveTelemetry(cfg.TelemetryAddr, promReg, logger)
		if err != nil {
			return err
		}
		defer stopTelemetry()
	}

	logger.Info("pushing metrics",
		"service", cfg.ServiceName,
		"exporter", cfg.Exporter,
		"endpoint", cfg.Endpoint,
		"instruments", reg.Len(),
	)
	return col.Run(ctx)
}

func newExporter(cfg config.Config, logger hclog.Logger) (collector.Exporter, error) {
	switch cfg.Exporter {
	case config.ExporterLog:
		return logexporter.New(logger, hclog.Info), nil
	case config.ExporterOTLPHTTP:
		exp, err := otlphttp.New(otlphttp.Options{
			Endpoint:           cfg.Endpoint,
			Headers:            cfg.Headers,
			ServiceName:        cfg.ServiceName,
			InstanceID:         cfg.InstanceID,
			ResourceAttributes: cfg.ResourceAttributes,
			ScopeName:          scopeName,
			Logger:             logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create exporter: %w", err)
		}
		return exp, nil
	default:
		return nil, fmt.Errorf("unknown exporter %q", cfg.Exporter)
	}
}

// serveTelemetry exposes promReg on addr and returns a function that shuts the
// server down.
func serveTelemetry(addr string, promReg *prometheus.Registry, logger hclog.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on telemetry address: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("telemetry server stopped", "error", err)
		}
	}()
	logger.Info("serving telemetry", "addr", ln.Addr().String())

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn("telemetry server shutdown", "error", err)
		}
		<-done
	}, nil
}
