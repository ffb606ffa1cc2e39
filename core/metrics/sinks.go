package metrics

import (
	"errors"
	"fmt"
	"io"

	"github.com/kilianp07/ambudispatch/core/factory"
)

var sinks = factory.NewRegistry[MetricsSink]("metrics sink")

// RegisterMetricsSink adds a sink factory. Infra packages register theirs
// from init.
func RegisterMetricsSink(name string, f factory.Factory[MetricsSink]) error {
	return sinks.Register(name, f)
}

// NewMetricsSink builds the declared sinks. "nop" entries are skipped, a
// single sink is returned as is and several are wrapped in a MultiSink.
// When one fails the sinks already built are closed.
func NewMetricsSink(cfgs []factory.ModuleConfig) (MetricsSink, error) {
	built := make([]MetricsSink, 0, len(cfgs))
	for i, c := range cfgs {
		if c.Type == "nop" {
			continue
		}
		s, err := sinks.Create(c)
		if err != nil {
			_ = closeAll(built)
			return nil, fmt.Errorf("metrics.sinks[%d]: %w", i, err)
		}
		built = append(built, s)
	}
	switch len(built) {
	case 0:
		return NopSink{}, nil
	case 1:
		return built[0], nil
	}
	return NewMultiSink(built...), nil
}

func closeAll(ss []MetricsSink) error {
	var errs []error
	for _, s := range ss {
		if c, ok := s.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}

func init() {
	_ = RegisterMetricsSink("nop", func(map[string]any) (MetricsSink, error) {
		return NopSink{}, nil
	})
}
