// Package notify defines how crews of a reserved unit are told about their
// assignment.
package notify

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kilianp07/ambudispatch/core/geo"
)

// ErrAckTimeout is returned when no acknowledgment is received before the timeout.
var ErrAckTimeout = errors.New("timeout waiting for ack")

// ErrUnknownCommand is returned by WaitForAck for an id it never issued.
var ErrUnknownCommand = errors.New("unknown command")

// Assignment is the order sent to a unit crew.
type Assignment struct {
	CommandID   string    `json:"command_id"`
	DispatchID  string    `json:"dispatch_id"`
	UnitID      string    `json:"unit_id"`
	CallerID    string    `json:"caller_id"`
	Level       int       `json:"level"`
	Destination geo.Point `json:"destination"`
	DistanceKm  float64   `json:"distance_km"`
	ETAMinutes  float64   `json:"eta_minutes"`
	Timestamp   int64     `json:"timestamp"`
}

// Ack is the crew reply to an assignment.
type Ack struct {
	CommandID string `json:"command_id"`
	UnitID    string `json:"unit_id,omitempty"`
}

// Notifier sends assignments and tracks their acknowledgment.
type Notifier interface {
	// SendAssignment publishes the order and returns the command identifier
	// used to track the acknowledgment.
	SendAssignment(a Assignment) (commandID string, err error)

	// WaitForAck waits for an acknowledgment for the provided command
	// identifier or until the timeout expires.
	WaitForAck(commandID string, timeout time.Duration) (bool, error)

	Close() error
}

// NopNotifier drops assignments and acknowledges immediately.
type NopNotifier struct{}

func (NopNotifier) SendAssignment(a Assignment) (string, error)    { return a.CommandID, nil }
func (NopNotifier) WaitForAck(string, time.Duration) (bool, error) { return true, nil }
func (NopNotifier) Close() error                                   { return nil }

// AckTracker matches acknowledgments received asynchronously to the
// commands waiting for them.
type AckTracker struct {
	mu      sync.Mutex
	pending map[string]chan struct{}
}

func NewAckTracker() *AckTracker {
	return &AckTracker{pending: make(map[string]chan struct{})}
}

// Register starts tracking commandID.
func (t *AckTracker) Register(commandID string) {
	t.mu.Lock()
	t.pending[commandID] = make(chan struct{}, 1)
	t.mu.Unlock()
}

// Forget stops tracking commandID.
func (t *AckTracker) Forget(commandID string) {
	t.mu.Lock()
	delete(t.pending, commandID)
	t.mu.Unlock()
}

// Deliver marks commandID acknowledged. It reports false for ids that are
// not pending.
func (t *AckTracker) Deliver(commandID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	ch, ok := t.pending[commandID]
	if !ok {
		return false
	}
	select {
	case ch <- struct{}{}:
	default:
	}
	return true
}

// Wait blocks until commandID is acknowledged or timeout elapses. The id is
// forgotten either way.
func (t *AckTracker) Wait(commandID string, timeout time.Duration) (bool, error) {
	t.mu.Lock()
	ch := t.pending[commandID]
	t.mu.Unlock()
	if ch == nil {
		return false, ErrUnknownCommand
	}
	defer t.Forget(commandID)

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ch:
		return true, nil
	case <-timer.C:
		return false, fmt.Errorf("command %s: %w", commandID, ErrAckTimeout)
	}
}
