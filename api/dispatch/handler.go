// Package dispatch exposes the dispatch coordinator and its decision log
// over HTTP.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	coredispatch "github.com/kilianp07/ambudispatch/core/dispatch"
	"github.com/kilianp07/ambudispatch/core/geo"
	"github.com/kilianp07/ambudispatch/core/logger"
	"github.com/kilianp07/ambudispatch/core/model"
)

const maxBodyBytes = 1 << 20

// Dispatcher runs one dispatch decision.
type Dispatcher interface {
	Dispatch(ctx context.Context, req model.EmergencyRequest) (coredispatch.Outcome, error)
}

// Request is the body of POST /api/dispatch.
type Request struct {
	CallerID string `json:"callerId"`
	Location *struct {
		Lat *float64 `json:"lat"`
		Lng *float64 `json:"lng"`
	} `json:"location"`
	RequiredLevel int `json:"requiredLevel"`
}

// Success is returned with 200 when a unit was reserved.
type Success struct {
	Status        string              `json:"status"`
	DispatchID    string              `json:"dispatchId"`
	Unit          model.Unit          `json:"unit"`
	RouteEstimate model.RouteEstimate `json:"routeEstimate"`
	Timing        model.Timing        `json:"timing"`
}

// Failure is returned for every error outcome.
type Failure struct {
	Status  string `json:"status"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (r Request) toModel() model.EmergencyRequest {
	req := model.EmergencyRequest{CallerID: r.CallerID, Level: r.RequiredLevel}
	if r.Location != nil && r.Location.Lat != nil && r.Location.Lng != nil {
		req.Position = &geo.Point{Lat: *r.Location.Lat, Lng: *r.Location.Lng}
	}
	return req
}

// statusFor maps a dispatch error to its HTTP status.
func statusFor(err error) int {
	switch coredispatch.KindOf(err) {
	case coredispatch.KindInvalidRequest:
		return http.StatusBadRequest
	case coredispatch.KindNoCapableUnitAvailable, coredispatch.KindNoLocatedCandidate, coredispatch.KindAllCandidatesConflicted:
		return http.StatusConflict
	case coredispatch.KindRoutingUnavailable:
		return http.StatusServiceUnavailable
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// NewDispatchHandler returns the POST /api/dispatch handler.
func NewDispatchHandler(d Dispatcher, log logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var body Request
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err := dec.Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, Failure{
				Status:  "error",
				Kind:    string(coredispatch.KindInvalidRequest),
				Message: fmt.Sprintf("decode request: %v", err),
			})
			return
		}

		out, err := d.Dispatch(r.Context(), body.toModel())
		if err != nil {
			kind := string(coredispatch.KindOf(err))
			if kind == "" {
				kind = "Internal"
			}
			writeJSON(w, statusFor(err), Failure{Status: "error", Kind: kind, Message: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, Success{
			Status:        "success",
			DispatchID:    out.DispatchID,
			Unit:          out.Unit,
			RouteEstimate: out.Route,
			Timing:        out.Timing,
		})
		log.Debugf("dispatch %s answered", out.DispatchID)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
