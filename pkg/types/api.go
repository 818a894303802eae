package types

import (
	"encoding/json"
	"time"
)

// SlotReading is one slot's worth of a hardware report. Distance and Occupied
// are pointers so the boundary can tell "absent" from zero/false.
type SlotReading struct {
	// Slot the reading belongs to.
	// example: 1
	SlotID int `json:"id" example:"1"`
	// Required distance reading in centimeters.
	// example: 10
	DistanceCM *float64 `json:"distance"`
	// Required hardware-asserted occupancy.
	// example: true
	Occupied *bool `json:"occupied"`
}

// ReportRequest is the ingress payload posted by the sensor board. It must
// carry exactly one reading per configured slot.
type ReportRequest struct {
	Slots []SlotReading `json:"slots"`
}

// StatusResponse is the aggregate view returned by GET /api/status and pushed
// to stream subscribers. Derived on every reconciliation, never stored.
type StatusResponse struct {
	// Always true on a 2xx response.
	// example: true
	Success bool `json:"success" example:"true"`
	// Number of free slots (total minus occupied).
	// example: 1
	FreeSpots int `json:"free_spots" example:"1"`
	// Configured slot count.
	// example: 2
	TotalSlots int `json:"total_slots" example:"2"`
	// True while at least one slot is free.
	// example: true
	GateOpen bool `json:"gate_open" example:"true"`
	// Per-slot snapshots ordered by slot id.
	Slots []SlotSnapshot `json:"slots"`
	// Time of the report this status derives from.
	Timestamp time.Time `json:"timestamp"`
}

// ReportResponse is returned by POST /api/report.
type ReportResponse struct {
	StatusResponse
	// Transitions detected by this report, in slot id order.
	Events []TransitionEvent `json:"events,omitempty"`
}

// ForecastQuery selects the target day and hour for a prediction.
type ForecastQuery struct {
	// One of the seven canonical English day names.
	// example: Tuesday
	DayOfWeek string `json:"day_of_week" example:"Tuesday"`
	// Hour of day, 0-23.
	// example: 14
	Hour int `json:"hour" example:"14"`
}

// ForecastResult is the outcome of one forecast, whichever path produced it.
type ForecastResult struct {
	// Low, Medium or High.
	// example: Medium
	PredictedLevel OccupancyLevel `json:"predicted_occupancy" example:"Medium"`
	// Probability of the lot being full, 0-100.
	// example: 55
	Probability int `json:"probability_score" example:"55"`
	// Human-readable advice for the queried day and hour.
	// example: Moderate activity on Tuesday at 14:00. Consider arriving a few minutes early.
	Recommendation string `json:"recommendation"`
	// Which path produced this result: external, external-partial or heuristic.
	// example: heuristic
	Source ForecastSource `json:"source" example:"heuristic"`
	// Raw reasoning-service payload, kept when it parsed but was incomplete.
	Raw json.RawMessage `json:"raw,omitempty"`
	// Sanitized failure detail when the external path was attempted and lost.
	Detail string `json:"error,omitempty"`
}

// ForecastResponse is returned by POST /api/predict.
type ForecastResponse struct {
	// Always true on a 2xx response.
	// example: true
	Success bool `json:"success" example:"true"`
	// Echo of the validated query.
	Query ForecastQuery `json:"query"`
	// The prediction itself.
	Prediction ForecastResult `json:"prediction"`
	// Number of historical events fed into the forecast.
	// example: 42
	LogsAnalyzed int `json:"logs_analyzed" example:"42"`
	// Server time of the response.
	Timestamp time.Time `json:"timestamp"`
}

// HealthResponse is returned by GET /api/health.
type HealthResponse struct {
	// Fixed value "ok".
	// example: ok
	Status string `json:"status" example:"ok"`
	// Seconds since the daemon started.
	// example: 3600.5
	UptimeSeconds float64 `json:"uptime" example:"3600.5"`
	// Server time of the response.
	Timestamp time.Time `json:"timestamp"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}
