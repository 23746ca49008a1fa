package repository

import "time"

// ScanRecord is the durable summary of one completed scan: identity, artifact
// paths, the flattened measurement fields and user-editable name/notes.
type ScanRecord struct {
	ID       string
	Name     string
	ScanDate time.Time

	ModelPath  *string
	DataPath   *string
	ReportPath *string
	Thumbnail  []byte

	FloorArea  float64
	WallArea   float64
	Volume     float64
	RoomWidth  float64
	RoomLength float64
	RoomHeight float64

	WallCount    int
	DoorCount    int
	WindowCount  int
	OpeningCount int
	ObjectCount  int
	QualityScore int

	Notes     string
	CreatedAt time.Time
	UpdatedAt time.Time
}
