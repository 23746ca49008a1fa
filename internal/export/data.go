package export

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/roomscan/roomscan/internal/geo"
	"github.com/roomscan/roomscan/internal/measure"
)

// scanDocument is the authoritative structured record of one captured room.
// Key names are part of the format and stay stable across releases; numeric
// fields round-trip losslessly through encoding/json.
type scanDocument struct {
	Name         string               `json:"name"`
	CapturedAt   string               `json:"captured_at"`
	Measurements measure.Measurements `json:"measurements"`
	Room         geo.RoomSnapshot     `json:"room"`
}

// EncodeScanData serializes a room snapshot plus its measurement summary as
// indented JSON.
func EncodeScanData(name string, capturedAt time.Time, m measure.Measurements, room geo.RoomSnapshot) ([]byte, error) {
	doc := scanDocument{
		Name:         name,
		CapturedAt:   capturedAt.UTC().Format(time.RFC3339),
		Measurements: m,
		Room:         room,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode scan data: %w", err)
	}
	return data, nil
}

// DecodeScanData parses a serialized scan document. Round-tripping is part of
// the format contract and exercised in tests.
func DecodeScanData(data []byte) (string, time.Time, measure.Measurements, geo.RoomSnapshot, error) {
	var doc scanDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return "", time.Time{}, measure.Measurements{}, geo.RoomSnapshot{}, fmt.Errorf("decode scan data: %w", err)
	}
	ts, err := time.Parse(time.RFC3339, doc.CapturedAt)
	if err != nil {
		return "", time.Time{}, measure.Measurements{}, geo.RoomSnapshot{}, fmt.Errorf("decode captured_at: %w", err)
	}
	return doc.Name, ts, doc.Measurements, doc.Room, nil
}
