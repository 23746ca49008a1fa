package measure

import "fmt"

// FindingKind classifies an advisory validation result.
type FindingKind int

const (
	FindingLowQuality FindingKind = iota
	FindingInsufficientWalls
	FindingInvalidRoom
)

// Finding is advisory: it informs UI messaging and never blocks export.
type Finding struct {
	Kind  FindingKind
	Score int // set for FindingLowQuality
}

func (f Finding) String() string {
	switch f.Kind {
	case FindingLowQuality:
		return fmt.Sprintf("Low quality scan detected (Score: %d/100)", f.Score)
	case FindingInsufficientWalls:
		return "Not enough walls detected. Please scan more of the room"
	case FindingInvalidRoom:
		return "Invalid room data captured"
	}
	return "Unknown finding"
}

// Validate reports advisory findings for a measurement summary. Findings may
// co-occur; order is fixed: low quality, insufficient walls, invalid room.
func Validate(m Measurements) []Finding {
	var out []Finding
	if m.Score < 50 {
		out = append(out, Finding{Kind: FindingLowQuality, Score: m.Score})
	}
	if m.WallCount < 3 {
		out = append(out, Finding{Kind: FindingInsufficientWalls})
	}
	if m.FloorArea < 0.5 {
		out = append(out, Finding{Kind: FindingInvalidRoom})
	}
	return out
}

// Severity buckets a quality score for presentation.
type Severity int

const (
	SeverityPoor Severity = iota
	SeverityFair
	SeverityGood
	SeverityExcellent
)

// Feedback maps a quality score to a user-facing message and severity bucket.
func Feedback(score int) (string, Severity) {
	switch {
	case score >= 90:
		return "Excellent scan quality!", SeverityExcellent
	case score >= 70:
		return "Good scan quality", SeverityGood
	case score >= 50:
		return "Fair scan quality - consider rescanning", SeverityFair
	default:
		return "Poor scan quality - please rescan", SeverityPoor
	}
}
