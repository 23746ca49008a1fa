package measure

import (
	"math"
	"testing"

	"github.com/roomscan/roomscan/internal/geo"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 0.0001
}

// boxRoom builds a rectangular room: four walls of the given width/depth
// footprint and height, centred on the origin.
func boxRoom(width, depth, height float64) geo.RoomSnapshot {
	wall := func(ext geo.Vec3, pos geo.Vec3) geo.Surface {
		return geo.Surface{Extent: ext, Pose: geo.Pose{Position: pos}}
	}
	halfH := height / 2
	return geo.RoomSnapshot{
		Walls: []geo.Surface{
			wall(geo.Vec3{X: width, Y: height, Z: 0.1}, geo.Vec3{Y: halfH, Z: -depth / 2}),
			wall(geo.Vec3{X: width, Y: height, Z: 0.1}, geo.Vec3{Y: halfH, Z: depth / 2}),
			wall(geo.Vec3{X: depth, Y: height, Z: 0.1}, geo.Vec3{X: -width / 2, Y: halfH}),
			wall(geo.Vec3{X: depth, Y: height, Z: 0.1}, geo.Vec3{X: width / 2, Y: halfH}),
		},
	}
}

func TestComputeEmptySnapshot(t *testing.T) {
	m := Compute(geo.RoomSnapshot{})

	if m.FloorArea != 0 || m.Volume != 0 || m.Width != 0 || m.Length != 0 || m.Height != 0 {
		t.Fatalf("zero-wall snapshot produced non-zero dimensions: %+v", m)
	}
	if math.IsNaN(m.FloorArea) || math.IsInf(m.Width, 0) {
		t.Fatalf("zero-wall snapshot leaked sentinel bounds: %+v", m)
	}
	if m.WallCount != 0 || m.ObjectCount != 0 {
		t.Fatalf("counts = %d walls %d objects, want 0", m.WallCount, m.ObjectCount)
	}
	// 100 - 40 (walls) - 10 (height) - 20 (area) = 30
	if m.Score != 30 {
		t.Fatalf("score = %d, want 30", m.Score)
	}
}

func TestComputeBoxRoomDimensions(t *testing.T) {
	room := boxRoom(4, 3, 2.5)
	m := Compute(room)

	if m.WallCount != 4 {
		t.Fatalf("wall count = %d, want 4", m.WallCount)
	}
	// Side walls span the X axis at +-width/2, so the X extent includes the
	// long walls' own width too. Footprint here is governed by wall placement.
	if !almostEqual(m.Height, 2.5) {
		t.Fatalf("height = %v, want 2.5", m.Height)
	}
	if !almostEqual(m.FloorArea, m.Width*m.Length) {
		t.Fatalf("floor area %v != width*length %v", m.FloorArea, m.Width*m.Length)
	}
	if !almostEqual(m.Volume, m.FloorArea*m.Height) {
		t.Fatalf("volume %v != floorArea*height %v", m.Volume, m.FloorArea*m.Height)
	}

	wantWallArea := 4*2.5 + 4*2.5 + 3*2.5 + 3*2.5
	if !almostEqual(m.WallArea, wantWallArea) {
		t.Fatalf("wall area = %v, want %v", m.WallArea, wantWallArea)
	}
}

func TestComputeWallDetailsEncounterOrder(t *testing.T) {
	room := boxRoom(4, 3, 2.5)
	m := Compute(room)

	if len(m.Walls) != 4 {
		t.Fatalf("wall details = %d, want 4", len(m.Walls))
	}
	for i, w := range m.Walls {
		if w.Index != i {
			t.Fatalf("wall %d has index %d", i, w.Index)
		}
		if !almostEqual(w.Area, w.Width*w.Height) {
			t.Fatalf("wall %d area %v != w*h %v", i, w.Area, w.Width*w.Height)
		}
	}
}

func TestComputeObjectDetails(t *testing.T) {
	room := geo.RoomSnapshot{
		Objects: []geo.Object{
			{Category: "Sofa", Extent: geo.Vec3{X: 2.1, Y: 0.85, Z: 0.9}, Confidence: geo.ConfidenceHigh},
			{Category: "Table", Extent: geo.Vec3{X: 1.2, Y: 0.75, Z: 0.8}, Confidence: geo.ConfidenceMedium},
			{Category: "Chair", Extent: geo.Vec3{X: 0.5, Y: 0.9, Z: 0.5}, Confidence: geo.Confidence("speculative")},
		},
	}
	m := Compute(room)

	if m.Objects[0].Dimensions != "2.10m x 0.85m x 0.90m" {
		t.Fatalf("dimensions = %q", m.Objects[0].Dimensions)
	}
	if m.Objects[0].Confidence != "High" || m.Objects[1].Confidence != "Medium" {
		t.Fatalf("confidence labels = %q, %q", m.Objects[0].Confidence, m.Objects[1].Confidence)
	}
	// Future tiers never error, they label as Unknown.
	if m.Objects[2].Confidence != "Unknown" {
		t.Fatalf("unrecognized tier label = %q, want Unknown", m.Objects[2].Confidence)
	}
}

func TestQualityScorePerfectRoom(t *testing.T) {
	room := boxRoom(4, 3, 2.5)
	room.Doors = []geo.Surface{{Extent: geo.Vec3{X: 0.9, Y: 2.0, Z: 0.05}}}
	room.Windows = []geo.Surface{{Extent: geo.Vec3{X: 1.2, Y: 1.0, Z: 0.05}}}

	m := Compute(room)
	if m.Score != 100 {
		t.Fatalf("score = %d, want 100 (bonuses clamped)", m.Score)
	}
}

func TestQualityScoreTwoWalls(t *testing.T) {
	room := boxRoom(4, 3, 2.5)
	room.Walls = room.Walls[:2]

	m := Compute(room)
	if m.Height < 2.0 || m.Height > 5.0 {
		t.Fatalf("test room height %v outside realistic range", m.Height)
	}
	if m.FloorArea < 1.0 {
		t.Fatalf("test room floor area %v too small", m.FloorArea)
	}
	if m.Score != 80 {
		t.Fatalf("score = %d, want 80 (two missing walls)", m.Score)
	}
}

func TestQualityScoreClampedToRange(t *testing.T) {
	// Pathological: no walls, extreme height impossible, many low-confidence
	// objects. Internal total goes far below zero before clamping.
	room := geo.RoomSnapshot{}
	for i := 0; i < 30; i++ {
		room.Objects = append(room.Objects, geo.Object{Category: "Chair", Confidence: geo.ConfidenceLow})
	}
	m := Compute(room)
	if m.Score != 0 {
		t.Fatalf("score = %d, want 0", m.Score)
	}

	// And the bonus side can never push past 100.
	good := boxRoom(5, 4, 3)
	good.Doors = []geo.Surface{{}, {}}
	good.Windows = []geo.Surface{{}, {}}
	if s := Compute(good).Score; s < 0 || s > 100 {
		t.Fatalf("score %d outside [0,100]", s)
	}
}

func TestQualityScoreBonusOffsetsPenaltyBeforeClamp(t *testing.T) {
	// Three walls, a door and a window: 100 - 10 + 5 + 5 = 100 only if the
	// height/area checks pass; build it so they do.
	room := boxRoom(4, 3, 2.5)
	room.Walls = room.Walls[:3]
	room.Doors = []geo.Surface{{}}
	room.Windows = []geo.Surface{{}}

	m := Compute(room)
	if m.Score != 100 {
		t.Fatalf("score = %d, want 100", m.Score)
	}
}

func TestComputeNegativeExtentsAcceptedAsIs(t *testing.T) {
	room := geo.RoomSnapshot{
		Walls: []geo.Surface{{Extent: geo.Vec3{X: -2, Y: 2.5, Z: 0.1}}},
	}
	m := Compute(room)
	// Deliberately not "fixed": the engine is total over whatever the capture
	// engine hands it, even when the output is unrealistic.
	if !almostEqual(m.WallArea, -5) {
		t.Fatalf("wall area = %v, want -5", m.WallArea)
	}
	if m.Score < 0 || m.Score > 100 {
		t.Fatalf("score %d outside [0,100]", m.Score)
	}
}
