package routing

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"googlemaps.github.io/maps"

	"github.com/kilianp07/ambudispatch/core/geo"
	"github.com/kilianp07/ambudispatch/core/routing"
)

var (
	unitPos = geo.Point{Lat: 48.8566, Lng: 2.3522}
	callPos = geo.Point{Lat: 48.8606, Lng: 2.3376}
)

func newORS(t *testing.T, h http.HandlerFunc) *ORS {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	o, err := NewORS(ORSConfig{BaseURL: srv.URL, APIKey: "key"}, srv.Client())
	require.NoError(t, err)
	return o
}

func TestORS_Estimate(t *testing.T) {
	var got orsRequest
	o := newORS(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v2/directions/driving-car", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"routes":[{"summary":{"distance":3456.7,"duration":421}}]}`))
	})

	est, err := o.Estimate(context.Background(), unitPos, callPos)
	require.NoError(t, err)
	assert.Equal(t, 3.46, est.DistanceKm)
	assert.Equal(t, 7.0, est.ETAMinutes)
	assert.Equal(t, [][2]float64{{2.3522, 48.8566}, {2.3376, 48.8606}}, got.Coordinates)
	assert.Equal(t, []float64{2000, 2000}, got.Radiuses)
}

func TestORS_Failures(t *testing.T) {
	cases := []struct {
		name string
		h    http.HandlerFunc
		kind routing.Kind
	}{
		{"status", func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "quota exceeded", http.StatusForbidden)
		}, routing.KindProviderError},
		{"no routes", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"routes":[]}`))
		}, routing.KindMalformedResponse},
		{"missing summary", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"routes":[{"summary":{}}]}`))
		}, routing.KindMalformedResponse},
		{"garbage", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`<html>`))
		}, routing.KindMalformedResponse},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := newORS(t, tc.h).Estimate(context.Background(), unitPos, callPos)
			var f *routing.Failure
			require.ErrorAs(t, err, &f)
			assert.Equal(t, tc.kind, f.Kind)
			assert.Equal(t, "ors", f.Provider)
		})
	}
}

func TestORS_Timeout(t *testing.T) {
	release := make(chan struct{})
	o := newORS(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := o.Estimate(ctx, unitPos, callPos)
	assert.Equal(t, routing.KindTimeout, routing.KindOf(err))
}

func TestORSConfig(t *testing.T) {
	_, err := NewORS(ORSConfig{}, nil)
	assert.Error(t, err)

	_, err = NewORS(ORSConfig{OAuth2: OAuth2Config{TokenURL: "http://idp/token"}}, nil)
	assert.Error(t, err, "client credentials missing")

	_, err = NewORS(ORSConfig{APIKey: "k", SnapRadiusMeters: -1}, nil)
	assert.EqualError(t, err, "routing.snap_radius_meters must not be negative")
}

func TestConfigValidate_SnapRadius(t *testing.T) {
	for _, provider := range []string{"ors", "google", "simulated"} {
		cfg := Config{Provider: provider, APIKey: "k", SnapRadiusMeters: -5}
		cfg.SetDefaults()
		assert.EqualError(t, cfg.Validate(), "routing.snap_radius_meters must not be negative", provider)
	}

	cfg := Config{Provider: "ors", APIKey: "k"}
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, float64(DefaultSnapRadiusMeters), cfg.SnapRadiusMeters)
}

func TestORS_OAuth2(t *testing.T) {
	var tokenCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		tokenCalls.Add(1)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.Form.Get("grant_type"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("POST /v2/directions/driving-car", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"routes":[{"summary":{"distance":1000,"duration":60}}]}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	o, err := NewORS(ORSConfig{
		BaseURL: srv.URL,
		OAuth2:  OAuth2Config{ClientID: "id", ClientSecret: "secret", TokenURL: srv.URL + "/token"},
	}, srv.Client())
	require.NoError(t, err)

	for range 2 {
		est, err := o.Estimate(context.Background(), unitPos, callPos)
		require.NoError(t, err)
		assert.Equal(t, 1.0, est.DistanceKm)
	}
	assert.EqualValues(t, 1, tokenCalls.Load(), "token is cached")
}

type fakeDirections struct {
	routes []maps.Route
	err    error
	req    *maps.DirectionsRequest
}

func (f *fakeDirections) Directions(_ context.Context, r *maps.DirectionsRequest) ([]maps.Route, []maps.GeocodedWaypoint, error) {
	f.req = r
	return f.routes, nil, f.err
}

func TestGoogle_Estimate(t *testing.T) {
	fd := &fakeDirections{routes: []maps.Route{{Legs: []*maps.Leg{
		{Distance: maps.Distance{Meters: 2000}, Duration: 3 * time.Minute},
		{Distance: maps.Distance{Meters: 1500}, Duration: 90 * time.Second},
	}}}}
	g := &Google{client: fd}
	est, err := g.Estimate(context.Background(), unitPos, callPos)
	require.NoError(t, err)
	assert.Equal(t, 3.5, est.DistanceKm)
	assert.Equal(t, 4.5, est.ETAMinutes)
	assert.Equal(t, maps.TravelModeDriving, fd.req.Mode)
	assert.Equal(t, "48.856600,2.352200", fd.req.Origin)
}

func TestGoogle_Failures(t *testing.T) {
	_, err := (&Google{client: &fakeDirections{}}).Estimate(context.Background(), unitPos, callPos)
	assert.Equal(t, routing.KindMalformedResponse, routing.KindOf(err))

	_, err = (&Google{client: &fakeDirections{err: errors.New("REQUEST_DENIED")}}).Estimate(context.Background(), unitPos, callPos)
	assert.Equal(t, routing.KindProviderError, routing.KindOf(err))

	_, err = NewGoogle(GoogleConfig{})
	assert.Error(t, err)
}

func TestSimulated(t *testing.T) {
	s, err := NewSimulated(SimulatedConfig{SpeedKmh: 60, DetourFactor: 1})
	require.NoError(t, err)
	est, err := s.Estimate(context.Background(), unitPos, callPos)
	require.NoError(t, err)
	km := routing.RoundKm(geo.DistanceKm(unitPos, callPos) * 1000)
	assert.Equal(t, km, est.DistanceKm)
	assert.InDelta(t, km, est.ETAMinutes, 0.1)

	failing, err := NewSimulated(SimulatedConfig{FailureRatio: 1, Seed: 7})
	require.NoError(t, err)
	_, err = failing.Estimate(context.Background(), unitPos, callPos)
	assert.ErrorIs(t, err, ErrSimulatedFailure)

	slow, err := NewSimulated(SimulatedConfig{LatencyMS: 1000})
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = slow.Estimate(ctx, unitPos, callPos)
	assert.Equal(t, routing.KindTimeout, routing.KindOf(err))

	_, err = NewSimulated(SimulatedConfig{FailureRatio: 2})
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	o, err := New(Config{Provider: "simulated", Simulated: SimulatedConfig{SpeedKmh: 50}})
	require.NoError(t, err)
	assert.IsType(t, &Simulated{}, o)

	o, err = New(Config{Provider: "ors", APIKey: "k", SnapRadiusMeters: 500})
	require.NoError(t, err)
	assert.Equal(t, 500.0, o.(*ORS).cfg.SnapRadiusMeters)

	_, err = New(Config{Provider: "ors"})
	assert.Error(t, err)
	_, err = New(Config{Provider: "osrm"})
	assert.Error(t, err)
}
