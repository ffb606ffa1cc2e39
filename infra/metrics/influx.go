package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/ambudispatch/core/metrics"
	"github.com/kilianp07/ambudispatch/infra/logger"
)

// InfluxConfig holds the InfluxDB connection settings.
type InfluxConfig struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
}

// InfluxSink writes dispatch decisions to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(cfg InfluxConfig) *InfluxSink {
	base := strings.TrimSuffix(cfg.URL, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, cfg.Token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(cfg InfluxConfig) coremetrics.MetricsSink {
	sink := NewInfluxSink(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordDispatch writes one dispatch_decision point.
func (s *InfluxSink) RecordDispatch(m coremetrics.DispatchMetric) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("dispatch_decision").
		AddTag("outcome", m.Outcome).
		AddTag("level", strconv.Itoa(m.Level)).
		AddTag("dispatch_id", m.DispatchID).
		AddTag("component", "dispatch_coordinator")
	if m.UnitID != "" {
		p = p.AddTag("unit_id", m.UnitID)
	}
	p = p.AddField("candidates", m.Candidates).
		AddField("conflicts", m.Conflicts).
		AddField("route_km", round3(m.RouteKm)).
		AddField("eta_minutes", round3(m.ETAMinutes)).
		AddField("duration_ms", round3(float64(m.Duration.Microseconds())/1000)).
		SetTime(m.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordOracleCalls writes one oracle_call point per call.
func (s *InfluxSink) RecordOracleCalls(calls []coremetrics.OracleCall) error {
	if len(calls) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	points := make([]*write.Point, len(calls))
	for i, c := range calls {
		points[i] = write.NewPointWithMeasurement("oracle_call").
			AddTag("provider", c.Provider).
			AddTag("result", c.Result).
			AddTag("unit_id", c.UnitID).
			AddTag("dispatch_id", c.DispatchID).
			AddField("latency_ms", round3(float64(c.Latency.Microseconds())/1000)).
			SetTime(c.Time)
	}
	return s.writeAPI.WritePoint(ctx, points...)
}

// RecordRelease writes a unit_release point.
func (s *InfluxSink) RecordRelease(ev coremetrics.ReleaseEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("unit_release").
		AddTag("unit_id", ev.UnitID).
		AddField("released", true).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// Close releases the client resources.
func (s *InfluxSink) Close() error {
	s.client.Close()
	return nil
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
