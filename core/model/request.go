package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kilianp07/ambudispatch/core/geo"
)

var (
	ErrMissingPosition = errors.New("request position is required")
	ErrInvalidLevel    = fmt.Errorf("required level must be between %d and %d", MinLevel, MaxLevel)
)

// EmergencyRequest is an incoming call awaiting an ambulance.
type EmergencyRequest struct {
	CallerID   string     `json:"caller_id"`
	Position   *geo.Point `json:"position"`
	Level      int        `json:"level"`
	ReceivedAt time.Time  `json:"received_at"`
}

// Validate checks that the request carries a usable position and level.
func (r EmergencyRequest) Validate() error {
	if r.Position == nil {
		return ErrMissingPosition
	}
	if err := r.Position.Validate(); err != nil {
		return err
	}
	if !ValidLevel(r.Level) {
		return ErrInvalidLevel
	}
	if strings.TrimSpace(r.CallerID) == "" {
		return errors.New("caller id is required")
	}
	return nil
}
