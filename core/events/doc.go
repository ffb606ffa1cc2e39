// Package events defines the dispatch related events emitted on the event bus.
//
// Available event types:
//   - DispatchEvent: a unit was reserved for a request
//   - ConflictEvent: a reservation lost the race to another request
//   - FailureEvent: a request terminated without a unit
//   - ReleaseEvent: a unit went back in service
package events
