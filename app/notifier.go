package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/kilianp07/ambudispatch/config"
	"github.com/kilianp07/ambudispatch/core/events"
	"github.com/kilianp07/ambudispatch/core/logger"
	coremon "github.com/kilianp07/ambudispatch/core/monitoring"
	"github.com/kilianp07/ambudispatch/core/notify"
	"github.com/kilianp07/ambudispatch/infra/amqp"
	"github.com/kilianp07/ambudispatch/infra/mqtt"
	"github.com/kilianp07/ambudispatch/internal/eventbus"
)

func newNotifier(cfg config.NotifyConfig) (notify.Notifier, error) {
	switch cfg.Transport {
	case "mqtt":
		c, err := mqtt.NewPahoClient(cfg.MQTT)
		if err != nil {
			return nil, err
		}
		return c, nil
	case "amqp":
		n, err := amqp.Dial(cfg.AMQP)
		if err != nil {
			return nil, err
		}
		return n, nil
	default:
		return notify.NopNotifier{}, nil
	}
}

func assignmentFor(e events.DispatchEvent) notify.Assignment {
	a := notify.Assignment{
		DispatchID: e.DispatchID,
		UnitID:     e.Unit.ID,
		CallerID:   e.Request.CallerID,
		Level:      e.Request.Level,
		DistanceKm: e.Route.DistanceKm,
		ETAMinutes: e.Route.ETAMinutes,
		Timestamp:  e.Time.UnixMilli(),
	}
	if e.Request.Position != nil {
		a.Destination = *e.Request.Position
	}
	return a
}

// errNoAck reports a notifier that gave up waiting without an error.
var errNoAck = errors.New("no ack")

// relay sends every dispatch to the reserved unit's crew and waits for
// their ack off the bus goroutine.
type relay struct {
	n          notify.Notifier
	ackTimeout time.Duration
	log        logger.Logger
	events     *eventbus.Listener[events.DispatchEvent]
	pending    sync.WaitGroup
}

// newRelay subscribes to bus before returning.
func newRelay(bus eventbus.EventBus, n notify.Notifier, ackTimeout time.Duration, log logger.Logger) *relay {
	r := &relay{n: n, ackTimeout: ackTimeout, log: log}
	r.events = eventbus.Listen(bus, r.send)
	return r
}

// run returns once the bus is closed or ctx is canceled and every pending
// ack wait has finished.
func (r *relay) run(ctx context.Context) {
	r.events.Run(ctx)
	r.pending.Wait()
}

func (r *relay) send(e events.DispatchEvent) {
	a := assignmentFor(e)
	id, err := r.n.SendAssignment(a)
	if err != nil {
		r.log.Errorf("assignment for dispatch %s to unit %s not sent: %v", a.DispatchID, a.UnitID, err)
		return
	}
	r.pending.Add(1)
	go func() {
		defer r.pending.Done()
		acked, err := r.n.WaitForAck(id, r.ackTimeout)
		if err == nil && !acked {
			err = errNoAck
		}
		if err != nil {
			r.log.Warnf("unit %s did not acknowledge dispatch %s: %v", a.UnitID, a.DispatchID, err)
			coremon.CaptureException(err, map[string]string{"unit_id": a.UnitID, "dispatch_id": a.DispatchID, "component": "notifier"})
			return
		}
		r.log.Infof("unit %s acknowledged dispatch %s", a.UnitID, a.DispatchID)
	}()
}
