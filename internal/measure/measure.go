// Package measure derives a measurement summary and quality score from a room
// snapshot. Everything here is pure computation: no I/O, no failure modes.
package measure

import (
	"fmt"
	"math"

	"github.com/roomscan/roomscan/internal/geo"
)

// WallDetail describes one wall in encounter order. Index is 0-based.
type WallDetail struct {
	Index  int     `json:"index"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Area   float64 `json:"area"`
}

// ObjectDetail describes one detected object for display.
type ObjectDetail struct {
	Category   string `json:"category"`
	Dimensions string `json:"dimensions"`
	Confidence string `json:"confidence"`
}

// Measurements is the derived summary for one snapshot. Instances are
// immutable once returned; a newer snapshot supersedes the whole value.
type Measurements struct {
	FloorArea float64 `json:"floor_area"`
	WallArea  float64 `json:"wall_area"`
	Volume    float64 `json:"volume"`

	Width  float64 `json:"width"`
	Length float64 `json:"length"`
	Height float64 `json:"height"`

	WallCount    int `json:"wall_count"`
	DoorCount    int `json:"door_count"`
	WindowCount  int `json:"window_count"`
	OpeningCount int `json:"opening_count"`
	ObjectCount  int `json:"object_count"`

	Walls   []WallDetail   `json:"walls,omitempty"`
	Objects []ObjectDetail `json:"objects,omitempty"`

	// Score is the 0-100 capture quality heuristic.
	Score int `json:"score"`
}

// Compute derives Measurements from a snapshot. It is total: absent geometry
// yields a zero-valued result and malformed input (negative extents) is
// accepted as-is rather than rejected.
func Compute(room geo.RoomSnapshot) Measurements {
	m := Measurements{
		WallCount:    len(room.Walls),
		DoorCount:    len(room.Doors),
		WindowCount:  len(room.Windows),
		OpeningCount: len(room.Openings),
		ObjectCount:  len(room.Objects),
	}

	minX, minY, minZ := math.Inf(1), math.Inf(1), math.Inf(1)
	maxX, maxY, maxZ := math.Inf(-1), math.Inf(-1), math.Inf(-1)

	for i, wall := range room.Walls {
		area := wall.Extent.X * wall.Extent.Y
		m.WallArea += area
		m.Walls = append(m.Walls, WallDetail{
			Index:  i,
			Width:  wall.Extent.X,
			Height: wall.Extent.Y,
			Area:   area,
		})

		p := wall.Pose.Position
		minX = math.Min(minX, p.X-wall.Extent.X/2)
		maxX = math.Max(maxX, p.X+wall.Extent.X/2)
		minY = math.Min(minY, p.Y-wall.Extent.Y/2)
		maxY = math.Max(maxY, p.Y+wall.Extent.Y/2)
		minZ = math.Min(minZ, p.Z-wall.Extent.Z/2)
		maxZ = math.Max(maxZ, p.Z+wall.Extent.Z/2)
	}

	// Bounds are only meaningful once at least one wall exists; otherwise
	// width/length/height and the derived areas stay zero.
	if m.WallCount > 0 {
		m.Width = maxX - minX
		m.Length = maxZ - minZ
		m.Height = maxY - minY
		m.FloorArea = m.Width * m.Length
		m.Volume = m.FloorArea * m.Height
	}

	for _, obj := range room.Objects {
		m.Objects = append(m.Objects, ObjectDetail{
			Category:   obj.Category,
			Dimensions: fmt.Sprintf("%.2fm x %.2fm x %.2fm", obj.Extent.X, obj.Extent.Y, obj.Extent.Z),
			Confidence: obj.Confidence.Label(),
		})
	}

	m.Score = qualityScore(room, m)
	return m
}

// qualityScore applies deductions, then bonuses, and clamps only the net
// result. Clamping mid-sequence would let bonuses mask heavy penalties.
func qualityScore(room geo.RoomSnapshot, m Measurements) int {
	score := 100

	for _, obj := range room.Objects {
		if obj.Confidence == geo.ConfidenceLow {
			score -= 5
		}
	}

	if m.WallCount < 4 {
		score -= (4 - m.WallCount) * 10
	}

	if m.Height < 2.0 || m.Height > 5.0 {
		score -= 10
	}
	if m.FloorArea < 1.0 {
		score -= 20
	}

	if m.DoorCount > 0 {
		score += 5
	}
	if m.WindowCount > 0 {
		score += 5
	}

	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
