package metrics

import (
	"github.com/benbjohnson/clock"
	"github.com/hashicorp/go-hclog"
)

type registryConfig struct {
	logger hclog.Logger
	clock  clock.Clock
}

// RegistryOption configures a Registry constructed by NewRegistry.
type RegistryOption func(*registryConfig)

// WithLogger sets the logger used to trace registrations and report failing callbacks.
func WithLogger(l hclog.Logger) RegistryOption {
	return func(cfg *registryConfig) { cfg.logger = l }
}

// WithClock sets the clock used to timestamp registrations and snapshots.
func WithClock(c clock.Clock) RegistryOption {
	return func(cfg *registryConfig) { cfg.clock = c }
}
