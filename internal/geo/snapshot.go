// Package geo defines the room geometry model delivered by the capture
// engine. The core treats snapshots as read-only input; all derived values
// live in internal/measure.
package geo

// Vec3 is a 3D extent or position in metres.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Pose locates an element in the room frame. The capture engine hands over a
// full rigid transform; the core only reads its translation column.
type Pose struct {
	Position Vec3 `json:"position"`
}

// Confidence is the capture engine's detection confidence tier for an object.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Label renders the tier for display. Tiers the engine may add in the future
// map to "Unknown" rather than failing.
func (c Confidence) Label() string {
	switch c {
	case ConfidenceLow:
		return "Low"
	case ConfidenceMedium:
		return "Medium"
	case ConfidenceHigh:
		return "High"
	}
	return "Unknown"
}

// Surface is a planar room element: wall, door, window or opening. Extent.X
// is width, Extent.Y height and Extent.Z thickness in the element's local
// frame.
type Surface struct {
	Extent Vec3 `json:"extent"`
	Pose   Pose `json:"pose"`
}

// Object is a detected furniture item.
type Object struct {
	Category   string     `json:"category"`
	Extent     Vec3       `json:"extent"`
	Pose       Pose       `json:"pose"`
	Confidence Confidence `json:"confidence"`
}

// RoomSnapshot is a complete description of known room geometry at one point
// in time. Element order is the capture engine's encounter order and is
// preserved end to end.
type RoomSnapshot struct {
	Walls    []Surface `json:"walls"`
	Doors    []Surface `json:"doors"`
	Windows  []Surface `json:"windows"`
	Openings []Surface `json:"openings"`
	Objects  []Object  `json:"objects"`
}

// Clone returns a deep copy, used when a snapshot has to cross a goroutine
// boundary without sharing backing arrays.
func (r RoomSnapshot) Clone() RoomSnapshot {
	out := RoomSnapshot{
		Walls:    append([]Surface(nil), r.Walls...),
		Doors:    append([]Surface(nil), r.Doors...),
		Windows:  append([]Surface(nil), r.Windows...),
		Openings: append([]Surface(nil), r.Openings...),
		Objects:  append([]Object(nil), r.Objects...),
	}
	return out
}
