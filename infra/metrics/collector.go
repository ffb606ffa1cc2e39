package metrics

import (
	"context"

	"github.com/kilianp07/ambudispatch/core/events"
	coremetrics "github.com/kilianp07/ambudispatch/core/metrics"
	"github.com/kilianp07/ambudispatch/infra/logger"
	"github.com/kilianp07/ambudispatch/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and records fleet events
// the coordinator does not report itself. It stops when the context is canceled.
func StartEventCollector(ctx context.Context, bus eventbus.EventBus, sink coremetrics.MetricsSink) {
	if bus == nil || sink == nil {
		return
	}
	rr, ok := sink.(coremetrics.ReleaseRecorder)
	if !ok {
		return
	}
	log := logger.New("metrics-collector")
	l := eventbus.Listen(bus, func(e events.ReleaseEvent) {
		if err := rr.RecordRelease(coremetrics.ReleaseEvent{UnitID: e.UnitID, Time: e.Time}); err != nil {
			log.Errorf("release metrics error: %v", err)
		}
	})
	go l.Run(ctx)
}
