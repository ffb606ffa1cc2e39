package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/ambudispatch/core/dispatch/logging"
	"github.com/kilianp07/ambudispatch/core/events"
	"github.com/kilianp07/ambudispatch/core/logger"
	"github.com/kilianp07/ambudispatch/core/metrics"
	"github.com/kilianp07/ambudispatch/core/model"
	"github.com/kilianp07/ambudispatch/core/monitoring"
	"github.com/kilianp07/ambudispatch/core/routing"
	"github.com/kilianp07/ambudispatch/internal/eventbus"
)

// recordTimeout bounds the decision recorder call. It runs detached from
// the request context so a client that hangs up still leaves a record.
const recordTimeout = 5 * time.Second

// Fleet is the part of the fleet registry the coordinator needs.
type Fleet interface {
	ListCapableAvailable(minLevel int) []model.Unit
	Reserve(id string) error
}

// Outcome is a successful dispatch: the reserved unit, its authoritative
// route and the timing breakdown.
type Outcome struct {
	DispatchID string                `json:"dispatch_id"`
	Unit       model.Unit            `json:"unit"`
	Route      model.RouteEstimate   `json:"route_estimate"`
	Timing     model.Timing          `json:"timing"`
	Shortlist  []logging.Candidate   `json:"shortlist"`
	Routes     []logging.RouteResult `json:"routes"`
}

// Coordinator selects and reserves the best unit for an emergency request.
type Coordinator struct {
	fleet    Fleet
	oracle   routing.Oracle
	provider string
	cfg      Config
	logger   logger.Logger

	mu       sync.RWMutex
	recorder logging.Recorder
	sink     metrics.MetricsSink
	bus      eventbus.EventBus

	now func() time.Time
}

// NewCoordinator creates a coordinator. The oracle is wrapped so every call
// is bounded by cfg.CallTimeout and faults surface as *routing.Failure.
func NewCoordinator(fleet Fleet, oracle routing.Oracle, cfg Config, log logger.Logger) (*Coordinator, error) {
	if fleet == nil || oracle == nil || log == nil {
		return nil, fmt.Errorf("dispatch: nil parameter provided to NewCoordinator")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	provider := "oracle"
	if n, ok := oracle.(interface{ Name() string }); ok {
		provider = n.Name()
	}
	return &Coordinator{
		fleet:    fleet,
		oracle:   routing.Bounded(provider, oracle, cfg.CallTimeout()),
		provider: provider,
		cfg:      cfg,
		logger:   log,
		sink:     metrics.NopSink{},
		now:      time.Now,
	}, nil
}

// SetRecorder configures the collaborator that persists decision records.
func (c *Coordinator) SetRecorder(r logging.Recorder) {
	c.mu.Lock()
	c.recorder = r
	c.mu.Unlock()
}

// SetMetrics configures the metrics sink.
func (c *Coordinator) SetMetrics(s metrics.MetricsSink) {
	if s == nil {
		s = metrics.NopSink{}
	}
	c.mu.Lock()
	c.sink = s
	c.mu.Unlock()
}

// SetEventBus configures the bus receiving dispatch events.
func (c *Coordinator) SetEventBus(b eventbus.EventBus) {
	c.mu.Lock()
	c.bus = b
	c.mu.Unlock()
}

func (c *Coordinator) collaborators() (logging.Recorder, metrics.MetricsSink, eventbus.EventBus) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.recorder, c.sink, c.bus
}

// Dispatch runs validate, filter, rank, refine, select and reserve for one
// request. Every returned error is a *Error except a canceled ctx, and no
// error leaves the fleet mutated.
func (c *Coordinator) Dispatch(ctx context.Context, req model.EmergencyRequest) (Outcome, error) {
	start := time.Now()
	if req.ReceivedAt.IsZero() {
		req.ReceivedAt = c.now()
	}
	rec := logging.DecisionRecord{
		DispatchID: uuid.NewString(),
		Timestamp:  req.ReceivedAt,
		Request:    req,
	}

	out, err := c.decide(ctx, req, &rec)
	rec.Timing.TotalMs = ms(time.Since(start))
	rec.Timing.Summarize()
	out.Timing = rec.Timing

	if err != nil {
		rec.Status = logging.StatusFailed
		rec.ErrorKind = string(KindOf(err))
		rec.Message = err.Error()
	} else {
		rec.Status = logging.StatusDispatched
		rec.UnitID = out.Unit.ID
		route := out.Route
		rec.Route = &route
	}
	c.finish(ctx, rec, out.Unit, err, time.Since(start))
	return out, err
}

func (c *Coordinator) decide(ctx context.Context, req model.EmergencyRequest, rec *logging.DecisionRecord) (Outcome, error) {
	out := Outcome{DispatchID: rec.DispatchID}
	if err := req.Validate(); err != nil {
		return out, newError(KindInvalidRequest, err, "invalid request")
	}

	units := c.fleet.ListCapableAvailable(req.Level)
	if len(units) == 0 {
		return out, newError(KindNoCapableUnitAvailable, nil, "no available unit with level >= %d", req.Level)
	}

	t0 := time.Now()
	list := rank(*req.Position, units, c.cfg.ShortlistSize)
	rec.Timing.GeoRankMs = ms(time.Since(t0))
	if len(list) == 0 {
		return out, newError(KindNoLocatedCandidate, nil, "%d capable units, none with a known position", len(units))
	}
	rec.Shortlist = make([]logging.Candidate, len(list))
	byID := make(map[string]model.Unit, len(list))
	for i, cand := range list {
		rec.Shortlist[i] = logging.Candidate{UnitID: cand.unit.ID, Level: cand.unit.Level, HaversineKm: cand.km}
		byID[cand.unit.ID] = cand.unit
	}
	out.Shortlist = rec.Shortlist

	t1 := time.Now()
	attempts := c.refine(ctx, *req.Position, list)
	rec.Timing.OracleBatchMs = ms(time.Since(t1))
	rec.Timing.OracleCallMs = make(map[string]float64, len(attempts))
	routes := make([]model.RouteEstimate, 0, len(attempts))
	rec.Routes = make([]logging.RouteResult, len(attempts))
	for i, a := range attempts {
		rec.Timing.OracleCallMs[a.unitID] = ms(a.latency)
		rr := logging.RouteResult{UnitID: a.unitID, LatencyMs: ms(a.latency)}
		if a.err != nil {
			rr.Failure = routing.KindOf(a.err).String()
			c.logger.Warnf("route oracle failed for unit %s: %v", a.unitID, a.err)
		} else {
			rr.DistanceKm, rr.ETAMinutes = a.est.DistanceKm, a.est.ETAMinutes
			routes = append(routes, model.RouteEstimate{
				UnitID:     a.unitID,
				DistanceKm: a.est.DistanceKm,
				ETAMinutes: a.est.ETAMinutes,
				Latency:    a.latency,
			})
		}
		rec.Routes[i] = rr
	}
	out.Routes = rec.Routes
	if err := ctx.Err(); err != nil {
		return out, fmt.Errorf("dispatch %s abandoned: %w", rec.DispatchID, err)
	}
	if len(routes) == 0 {
		return out, newError(KindRoutingUnavailable, nil, "all %d route queries failed", len(attempts))
	}

	sort.Slice(routes, func(i, j int) bool {
		if routes[i].DistanceKm != routes[j].DistanceKm {
			return routes[i].DistanceKm < routes[j].DistanceKm
		}
		return routes[i].UnitID < routes[j].UnitID
	})
	for _, r := range routes {
		if err := c.fleet.Reserve(r.UnitID); err != nil {
			rec.Conflicts = append(rec.Conflicts, r.UnitID)
			reservationConflicts.Inc()
			c.publish(events.ConflictEvent{DispatchID: rec.DispatchID, UnitID: r.UnitID})
			c.logger.Debugf("reservation of %s lost: %v", r.UnitID, err)
			continue
		}
		u := byID[r.UnitID]
		u.Status = model.StatusDispatched
		out.Unit, out.Route = u, r
		return out, nil
	}
	return out, newError(KindAllCandidatesConflicted, nil, "%d routed candidates were reserved concurrently", len(routes))
}

// finish reports the decision to metrics, the event bus and the recorder.
// None of them can change the outcome.
func (c *Coordinator) finish(ctx context.Context, rec logging.DecisionRecord, unit model.Unit, err error, took time.Duration) {
	recorder, sink, _ := c.collaborators()

	outcome := metrics.OutcomeDispatched
	if err != nil {
		outcome = string(KindOf(err))
		if outcome == "" {
			outcome = "Canceled"
		}
	}
	requestsTotal.WithLabelValues(outcome).Inc()
	dispatchDuration.Observe(took.Seconds())

	calls := make([]metrics.OracleCall, len(rec.Routes))
	for i, r := range rec.Routes {
		result := "ok"
		if r.Failure != "" {
			result = r.Failure
		}
		lat := time.Duration(r.LatencyMs * float64(time.Millisecond))
		oracleLatency.WithLabelValues(c.provider, result).Observe(lat.Seconds())
		calls[i] = metrics.OracleCall{
			DispatchID: rec.DispatchID,
			UnitID:     r.UnitID,
			Provider:   c.provider,
			Result:     result,
			Latency:    lat,
			Time:       rec.Timestamp,
		}
	}
	m := metrics.DispatchMetric{
		DispatchID: rec.DispatchID,
		CallerID:   rec.Request.CallerID,
		Level:      rec.Request.Level,
		UnitID:     rec.UnitID,
		Outcome:    outcome,
		Candidates: len(rec.Shortlist),
		Conflicts:  len(rec.Conflicts),
		Duration:   took,
		Time:       rec.Timestamp,
	}
	if rec.Route != nil {
		m.RouteKm, m.ETAMinutes = rec.Route.DistanceKm, rec.Route.ETAMinutes
	}
	if mErr := sink.RecordDispatch(m); mErr != nil {
		c.logger.Errorf("metrics error: %v", mErr)
	}
	if r, ok := sink.(metrics.OracleCallRecorder); ok && len(calls) > 0 {
		if mErr := r.RecordOracleCalls(calls); mErr != nil {
			c.logger.Errorf("oracle call metrics error: %v", mErr)
		}
	}

	if err == nil {
		c.publish(events.DispatchEvent{
			DispatchID: rec.DispatchID,
			Request:    rec.Request,
			Unit:       unit,
			Route:      *rec.Route,
			Time:       c.now(),
		})
		c.logger.Infow("unit dispatched", map[string]any{
			"dispatch_id": rec.DispatchID,
			"caller_id":   rec.Request.CallerID,
			"unit_id":     rec.UnitID,
			"distance_km": rec.Route.DistanceKm,
			"eta_minutes": rec.Route.ETAMinutes,
			"total_ms":    rec.Timing.TotalMs,
		})
	} else {
		c.publish(events.FailureEvent{
			DispatchID: rec.DispatchID,
			CallerID:   rec.Request.CallerID,
			Kind:       outcome,
			Err:        err,
		})
		c.logger.Warnf("dispatch %s for caller %s failed: %v", rec.DispatchID, rec.Request.CallerID, err)
		var de *Error
		if !errors.As(err, &de) || de.Kind == KindRoutingUnavailable {
			monitoring.CaptureException(err, map[string]string{"dispatch_id": rec.DispatchID, "component": "dispatch"})
		}
	}

	if recorder == nil {
		return
	}
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	if rErr := recorder.Record(rctx, rec); rErr != nil {
		c.logger.Errorf("record decision %s: %v", rec.DispatchID, rErr)
		monitoring.CaptureException(rErr, map[string]string{"dispatch_id": rec.DispatchID, "component": "decision_recorder"})
	}
}

func (c *Coordinator) publish(ev eventbus.Event) {
	if _, _, bus := c.collaborators(); bus != nil {
		bus.Publish(ev)
	}
}

func ms(d time.Duration) float64 { return float64(d.Microseconds()) / 1000 }
