// Package hostgauges registers memory gauges for the running process and host.
package hostgauges

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/hashicorp/go-hclog"
	"github.com/shirou/gopsutil/v3/mem"
	"go.opentelemetry.io/otel/attribute"

	metrics "github.com/ygrebnov/pushmetrics"
)

const (
	ProcessMemoryFree     = "process.memory.free"
	SystemMemoryAvailable = "system.memory.available"
)

// Registrar is the part of a metrics registry used to install gauges.
type Registrar interface {
	Gauge(name string, cb metrics.Callback, opts ...metrics.InstrumentOption) error
}

// Options configures Register.
type Options struct {
	// Hostname is attached as the host attribute; defaults to os.Hostname.
	Hostname string
	Logger   hclog.Logger

	// readers, replaced in tests
	readMemStats  func(*runtime.MemStats)
	virtualMemory func(context.Context) (*mem.VirtualMemoryStat, error)
}

// Register installs the process and system memory gauges on r.
func Register(r Registrar, opts Options) error {
	if opts.Hostname == "" {
		h, err := os.Hostname()
		if err != nil {
			return fmt.Errorf("hostgauges: resolve hostname: %w", err)
		}
		opts.Hostname = h
	}
	if opts.Logger == nil {
		opts.Logger = hclog.NewNullLogger()
	}
	if opts.readMemStats == nil {
		opts.readMemStats = runtime.ReadMemStats
	}
	if opts.virtualMemory == nil {
		opts.virtualMemory = mem.VirtualMemoryWithContext
	}
	logger := opts.Logger.Named("host_gauges")
	host := attribute.String("host", opts.Hostname)

	err := r.Gauge(ProcessMemoryFree, func(_ context.Context, o metrics.Observer) error {
		var ms runtime.MemStats
		opts.readMemStats(&ms)
		o.ObserveInt64(int64(ms.HeapIdle-ms.HeapReleased), host)
		return nil
	},
		metrics.WithDescription("Heap memory held by the Go runtime and not in use."),
		metrics.WithUnit("By"),
	)
	if err != nil {
		return err
	}

	return r.Gauge(SystemMemoryAvailable, func(ctx context.Context, o metrics.Observer) error {
		vm, err := opts.virtualMemory(ctx)
		if err != nil {
			logger.Error("failed to collect memory stats", "error", err)
			return err
		}
		o.ObserveInt64(int64(vm.Available), host)
		return nil
	},
		metrics.WithDescription("Memory available to new processes on the host."),
		metrics.WithUnit("By"),
	)
}
