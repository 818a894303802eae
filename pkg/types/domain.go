package types

import "time"

// SentinelDistanceCM is the distance recorded for a slot that has never been
// observed by the hardware. Matches the seed value shown on the dashboard.
const SentinelDistanceCM = 999

// SlotSnapshot is the canonical state of one physical parking slot.
type SlotSnapshot struct {
	// Stable identifier of the physical slot.
	// example: 1
	SlotID int `json:"id" example:"1"`
	// Hardware-asserted occupancy. The sensor is the sole authority; the
	// server never derives this from distance.
	// example: true
	Occupied bool `json:"is_occupied" example:"true"`
	// Last distance reading in centimeters. Advisory, for display only.
	// example: 12.5
	DistanceCM float64 `json:"distance_cm" example:"12.5"`
	// Time of the report that produced this snapshot. Zero means the slot
	// has never been observed.
	ObservedAt time.Time `json:"updated_at"`
}

// TransitionKind distinguishes a car arriving from a car leaving.
type TransitionKind string

const (
	TransitionEntry TransitionKind = "entry"
	TransitionExit  TransitionKind = "exit"
)

// TransitionEvent records a single occupancy flip, derived from two
// consecutive snapshots of the same slot. Immutable once appended.
type TransitionEvent struct {
	// Unique event id.
	// example: 7f9c24e8-3b0a-4f0e-9c7d-1a2b3c4d5e6f
	ID string `json:"id"`
	// Slot the transition happened on.
	// example: 1
	SlotID int `json:"slot_id" example:"1"`
	// entry or exit.
	// example: entry
	Kind TransitionKind `json:"event_type" example:"entry"`
	// Distance reading at the moment of the transition, in centimeters.
	// example: 12.5
	DistanceCM float64 `json:"distance_cm" example:"12.5"`
	// Number of occupied slots after the report that produced this event.
	// example: 1
	TotalOccupied int `json:"total_occupied" example:"1"`
	// When the transition was observed.
	OccurredAt time.Time `json:"created_at"`
}

// OccupancyLevel is the coarse forecast bucket.
type OccupancyLevel string

const (
	LevelLow    OccupancyLevel = "Low"
	LevelMedium OccupancyLevel = "Medium"
	LevelHigh   OccupancyLevel = "High"
)

// ForecastSource tags which path produced a forecast.
type ForecastSource string

const (
	// SourceExternal means the reasoning service answered with a complete payload.
	SourceExternal ForecastSource = "external"
	// SourceExternalPartial means the reasoning service answered but the
	// payload was missing required fields; heuristic values filled the gaps.
	SourceExternalPartial ForecastSource = "external-partial"
	// SourceHeuristic means the deterministic fallback produced the result.
	SourceHeuristic ForecastSource = "heuristic"
)

// DayNames are the canonical English day-of-week names accepted by the
// forecast API, indexed by time.Weekday (Sunday first).
var DayNames = [7]string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

// ValidDay reports whether s is one of the seven canonical day names.
func ValidDay(s string) bool {
	for _, d := range DayNames {
		if d == s {
			return true
		}
	}
	return false
}
