package model

import (
	"time"

	"github.com/pfrederiksen/saic-ls/internal/saic"
)

// Event represents an event that can update the vehicle snapshot.
type Event interface {
	// ApplyTo applies this event to the given snapshot, returning an updated
	// copy. The input is never mutated.
	ApplyTo(current *VehicleSnapshot) *VehicleSnapshot
}

// InfoReceived is emitted when the vehicle descriptor has been fetched.
type InfoReceived struct {
	Info *saic.VehicleInfo
	At   time.Time
}

// ApplyTo updates the identity fields.
func (e InfoReceived) ApplyTo(current *VehicleSnapshot) *VehicleSnapshot {
	if e.Info == nil {
		return current
	}

	next := ensure(current)
	next.Info = e.Info
	next.VIN = e.Info.VIN
	touch(next, e.At)
	return next
}

// StatusAccepted is emitted when a status payload passed validation.
type StatusAccepted struct {
	Status *saic.StatusPayload
	At     time.Time
}

// ApplyTo replaces the status payload. A nil payload keeps the previous one.
func (e StatusAccepted) ApplyTo(current *VehicleSnapshot) *VehicleSnapshot {
	if e.Status == nil {
		return current
	}

	next := ensure(current)
	next.Status = e.Status
	touch(next, e.At)
	return next
}

// ChargingAccepted is emitted when a charging payload passed validation.
type ChargingAccepted struct {
	Charging *saic.ChargingPayload
	At       time.Time
}

// ApplyTo replaces the charging payload. A nil payload keeps the previous one.
func (e ChargingAccepted) ApplyTo(current *VehicleSnapshot) *VehicleSnapshot {
	if e.Charging == nil {
		return current
	}

	next := ensure(current)
	next.Charging = e.Charging
	touch(next, e.At)
	return next
}

// RuntimeUpdated carries the coordinator's runtime view and the static
// classification of the vehicle.
type RuntimeUpdated struct {
	Runtime      RuntimeView
	Capabilities Capabilities
	VehicleType  VehicleType
	Climate      ClimateRange
}

// ApplyTo replaces the runtime view.
func (e RuntimeUpdated) ApplyTo(current *VehicleSnapshot) *VehicleSnapshot {
	next := ensure(current)
	next.Runtime = e.Runtime
	next.Capabilities = e.Capabilities
	if e.VehicleType != "" {
		next.VehicleType = e.VehicleType
	}
	if e.Climate != (ClimateRange{}) {
		next.Climate = e.Climate
	}
	return next
}

func ensure(current *VehicleSnapshot) *VehicleSnapshot {
	if current == nil {
		return &VehicleSnapshot{}
	}
	return current.Clone()
}

func touch(s *VehicleSnapshot, at time.Time) {
	if !at.IsZero() {
		s.UpdatedAt = at
	}
}

// Reducer processes events and produces new snapshots.
type Reducer struct {
	current *VehicleSnapshot
}

// NewReducer creates a new snapshot reducer.
func NewReducer() *Reducer {
	return &Reducer{}
}

// Dispatch processes an event and returns the new snapshot.
func (r *Reducer) Dispatch(event Event) *VehicleSnapshot {
	r.current = event.ApplyTo(r.current)
	return r.current.Clone()
}

// Snapshot returns a copy of the current snapshot, or nil.
func (r *Reducer) Snapshot() *VehicleSnapshot {
	return r.current.Clone()
}

// Reset clears the current snapshot.
func (r *Reducer) Reset() {
	r.current = nil
}
