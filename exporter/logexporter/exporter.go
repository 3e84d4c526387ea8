// Package logexporter writes metric snapshots to an hclog logger.
package logexporter

import (
	"context"

	"github.com/hashicorp/go-hclog"

	metrics "github.com/ygrebnov/pushmetrics"
)

// Exporter logs one line per point at the configured level.
type Exporter struct {
	logger hclog.Logger
	level  hclog.Level
}

// New returns an Exporter writing to logger at level. A nil logger gets the
// default hclog logger; hclog.NoLevel means Info.
func New(logger hclog.Logger, level hclog.Level) *Exporter {
	if logger == nil {
		logger = hclog.Default()
	}
	if level == hclog.NoLevel {
		level = hclog.Info
	}
	return &Exporter{logger: logger.Named("export"), level: level}
}

// Export logs one line per point. It stops early once ctx is done.
func (e *Exporter) Export(ctx context.Context, snap metrics.Snapshot) error {
	for _, p := range snap.Points {
		if err := ctx.Err(); err != nil {
			return err
		}
		e.logger.Log(e.level, "metric", pointArgs(p)...)
	}
	return nil
}

func pointArgs(p metrics.Point) []interface{} {
	args := []interface{}{"name", p.Name, "type", p.Type.String()}
	if p.Histogram != nil {
		h := p.Histogram
		args = append(args, "count", h.Count, "sum", h.Sum, "min", h.Min, "max", h.Max, "mean", h.Mean)
	} else {
		args = append(args, "value", p.Value.String())
	}
	if p.Unit != "" {
		args = append(args, "unit", p.Unit)
	}
	iter := p.Attributes.Iter()
	for iter.Next() {
		kv := iter.Attribute()
		args = append(args, "attr."+string(kv.Key), kv.Value.Emit())
	}
	return args
}
