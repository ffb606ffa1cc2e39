package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/ambudispatch/config"
	"github.com/kilianp07/ambudispatch/core/dispatch/logging"
	"github.com/kilianp07/ambudispatch/core/events"
	"github.com/kilianp07/ambudispatch/core/geo"
	"github.com/kilianp07/ambudispatch/core/model"
	"github.com/kilianp07/ambudispatch/core/notify"
	"github.com/kilianp07/ambudispatch/infra/fleetsource"
	"github.com/kilianp07/ambudispatch/infra/logger"
	"github.com/kilianp07/ambudispatch/internal/eventbus"
)

const fleetYAML = `units:
  - {id: A, level: 2, latitude: 40.7580, longitude: -73.9855, status: available}
  - {id: B, level: 3, latitude: 40.7484, longitude: -73.9857, status: available}
  - {id: C, level: 3, latitude: 40.7527, longitude: -73.9772, status: available}
`

type recordingNotifier struct {
	mu     sync.Mutex
	sent   []notify.Assignment
	ack    bool
	silent bool
	closed bool
}

func (r *recordingNotifier) SendAssignment(a notify.Assignment) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, a)
	return "cmd-" + a.UnitID, nil
}

func (r *recordingNotifier) WaitForAck(id string, _ time.Duration) (bool, error) {
	if r.ack {
		return true, nil
	}
	if r.silent {
		return false, nil
	}
	return false, notify.ErrAckTimeout
}

func (r *recordingNotifier) Close() error { r.closed = true; return nil }

// warnLogger keeps formatted warnings and drops everything else.
type warnLogger struct {
	logger.NopLogger
	mu    sync.Mutex
	warns []string
}

func (l *warnLogger) Warnf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, fmt.Sprintf(format, args...))
}

func (l *warnLogger) warnings() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.warns...)
}

func (r *recordingNotifier) assignments() []notify.Assignment {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Assignment(nil), r.sent...)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	fleetPath := filepath.Join(dir, "fleet.yaml")
	require.NoError(t, os.WriteFile(fleetPath, []byte(fleetYAML), 0o644))
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
routing:
  provider: simulated
  simulated:
    speed_kmh: 30
    detour_factor: 1.2
fleet:
  source: yaml
  path: `+fleetPath+`
logging:
  backend: jsonl
  path: `+filepath.Join(dir, "decisions.jsonl")+`
notify:
  ack_timeout_seconds: 1
`), 0o644))
	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)
	return cfg
}

func TestService_DispatchEndToEnd(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	n := &recordingNotifier{ack: true}
	svc, err := NewWithOptions(ctx, testConfig(t), Options{Notifier: n})
	require.NoError(t, err)
	svc.Start(ctx)

	h := svc.Handler()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/dispatch",
		strings.NewReader(`{"callerId":"X","location":{"lat":40.7505,"lng":-73.9934},"requiredLevel":3}`)))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var out struct {
		Status string     `json:"status"`
		Unit   model.Unit `json:"unit"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	assert.Equal(t, "success", out.Status)
	assert.Contains(t, []string{"B", "C"}, out.Unit.ID)

	require.Eventually(t, func() bool { return len(n.assignments()) == 1 }, time.Second, 5*time.Millisecond)
	a := n.assignments()[0]
	assert.Equal(t, out.Unit.ID, a.UnitID)
	assert.Equal(t, "X", a.CallerID)
	assert.Equal(t, 40.7505, a.Destination.Lat)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/fleet", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/fleet/"+out.Unit.ID+"/release", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	recs, err := svc.Store.Query(ctx, logging.LogQuery{CallerID: "X"})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, logging.StatusDispatched, recs[0].Status)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	cancel()
	require.NoError(t, svc.Close())
	assert.True(t, n.closed)
}

func TestService_BadFleet(t *testing.T) {
	cfg := testConfig(t)
	cfg.Fleet.Path = filepath.Join(t.TempDir(), "missing.yaml")
	_, err := New(context.Background(), cfg)
	assert.Error(t, err)
}

func TestService_Hospitals(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Hospitals.Path = filepath.Join(t.TempDir(), "hospitals.yaml")
	cfg.Hospitals.Format = ""
	cfg.Hospitals.SetDefaults()
	require.NoError(t, os.WriteFile(cfg.Hospitals.Path, []byte(`hospitals:
  - {id: bellevue, name: Bellevue, level: 4, latitude: 40.7392, longitude: -73.9754, facilities: [Emergency Room, ICU]}
  - {id: clinic, name: Chelsea Clinic, level: 1, latitude: 40.7465, longitude: -74.0014}
  - {name: Nameless Level, level: 9}
`), 0o644))

	svc, err := NewWithOptions(ctx, cfg, Options{Notifier: &recordingNotifier{ack: true}})
	require.NoError(t, err)
	defer func() { require.NoError(t, svc.Close()) }()
	assert.Equal(t, 2, svc.Hospitals.Len())

	h := svc.Handler()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/hospitals/search",
		strings.NewReader(`{"latitude":40.7505,"longitude":-73.9934,"facilities":["icu"]}`)))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var out struct {
		Count     int `json:"count"`
		Hospitals []struct {
			ID string `json:"id"`
		} `json:"hospitals"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	require.Equal(t, 1, out.Count)
	assert.Equal(t, "bellevue", out.Hospitals[0].ID)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/hospitals/stats", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"total_hospitals":2`)
}

func TestService_BadHospitals(t *testing.T) {
	cfg := testConfig(t)
	cfg.Hospitals = fleetsource.HospitalConfig{Format: "csv", Path: filepath.Join(t.TempDir(), "missing.csv")}
	_, err := New(context.Background(), cfg)
	assert.ErrorContains(t, err, "open hospitals")
}

func TestRelayAssignments(t *testing.T) {
	bus := eventbus.New()
	n := &recordingNotifier{}
	done := make(chan struct{})
	r := newRelay(bus, n, 10*time.Millisecond, logger.NopLogger{})
	go func() {
		r.run(context.Background())
		close(done)
	}()

	bus.Publish(events.ConflictEvent{DispatchID: "d0", UnitID: "C"})
	bus.Publish(events.DispatchEvent{
		DispatchID: "d1",
		Request:    model.EmergencyRequest{CallerID: "X", Level: 3, Position: &geo.Point{Lat: 1, Lng: 2}},
		Unit:       model.Unit{ID: "C"},
		Route:      model.RouteEstimate{UnitID: "C", DistanceKm: 3, ETAMinutes: 4},
		Time:       time.UnixMilli(1000),
	})
	require.Eventually(t, func() bool { return len(n.assignments()) == 1 }, time.Second, 5*time.Millisecond)

	a := n.assignments()[0]
	assert.Equal(t, notify.Assignment{
		DispatchID:  "d1",
		UnitID:      "C",
		CallerID:    "X",
		Level:       3,
		Destination: geo.Point{Lat: 1, Lng: 2},
		DistanceKm:  3,
		ETAMinutes:  4,
		Timestamp:   1000,
	}, a)

	bus.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("relay did not stop")
	}
}

func TestRelayAssignments_MissingAckWithoutError(t *testing.T) {
	bus := eventbus.New()
	n := &recordingNotifier{silent: true}
	log := &warnLogger{}
	r := newRelay(bus, n, 10*time.Millisecond, log)
	done := make(chan struct{})
	go func() {
		r.run(context.Background())
		close(done)
	}()

	bus.Publish(events.DispatchEvent{
		DispatchID: "d2",
		Request:    model.EmergencyRequest{CallerID: "X", Level: 2, Position: &geo.Point{Lat: 1, Lng: 2}},
		Unit:       model.Unit{ID: "A"},
		Route:      model.RouteEstimate{UnitID: "A", DistanceKm: 1, ETAMinutes: 2},
	})
	require.Eventually(t, func() bool { return len(log.warnings()) == 1 }, time.Second, 5*time.Millisecond)

	msg := log.warnings()[0]
	assert.Equal(t, "unit A did not acknowledge dispatch d2: no ack", msg)
	assert.NotContains(t, msg, "<nil>")

	bus.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("relay did not stop")
	}
}
