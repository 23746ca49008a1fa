// Package capture defines the contract with the external capture engine and
// provides a replay implementation for development and tests. The engine
// pushes snapshots at its own cadence; consumers drain a bounded channel so
// delivery never requires shared mutable state.
package capture

import (
	"context"

	"github.com/roomscan/roomscan/internal/geo"
)

// Event is one delivery from the capture engine: either a snapshot or an
// error. Terminal errors end the capture stream; non-terminal ones are
// recoverable delivery hiccups.
type Event struct {
	Snapshot *geo.RoomSnapshot
	Err      error
	Terminal bool
}

// Engine is the external capture engine. Start begins producing events,
// Stop requests a halt. The Events channel is closed once the engine is done
// producing, whether from Stop, stream end, or a terminal error.
type Engine interface {
	Start(ctx context.Context) error
	Stop()
	Events() <-chan Event
}
