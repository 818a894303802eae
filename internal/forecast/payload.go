package forecast

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"spotd/pkg/types"
)

// externalPayload is the shape the reasoning service is asked to return.
// Pointer fields distinguish "absent" from zero.
type externalPayload struct {
	PredictedOccupancy string   `json:"predicted_occupancy"`
	ProbabilityScore   *float64 `json:"probability_score"`
	Recommendation     string   `json:"recommendation"`
}

func (p externalPayload) complete() bool {
	if p.ProbabilityScore == nil || p.Recommendation == "" {
		return false
	}
	switch types.OccupancyLevel(p.PredictedOccupancy) {
	case types.LevelLow, types.LevelMedium, types.LevelHigh:
		return true
	}
	return false
}

func (p externalPayload) level() types.OccupancyLevel {
	return types.OccupancyLevel(p.PredictedOccupancy)
}

var codeFence = regexp.MustCompile("(?i)```(?:json)?\\s*")

// parsePayload extracts the JSON object from the service's text, tolerating
// markdown code fences around it.
func parsePayload(text string) (externalPayload, json.RawMessage, error) {
	cleaned := strings.TrimSpace(codeFence.ReplaceAllString(text, ""))
	var p externalPayload
	if err := json.Unmarshal([]byte(cleaned), &p); err != nil {
		return externalPayload{}, nil, fmt.Errorf("decode reasoning payload: %w", err)
	}
	return p, json.RawMessage(cleaned), nil
}

// buildPrompt serializes the event window and the query the way the
// reasoning service expects: raw JSON answer, no markdown.
func buildPrompt(q types.ForecastQuery, events []types.TransitionEvent) string {
	logJSON, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		logJSON = []byte("[]")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Act as a parking data analyst. Here are the parking occupancy logs from the last 14 days for a small parking lot:\n\n")
	b.Write(logJSON)
	fmt.Fprintf(&b, "\n\nBased on this historical trend, calculate the probability (%%) of the parking lot being full on %s at %02d:00.\n\n", q.DayOfWeek, q.Hour)
	b.WriteString(`IMPORTANT: Return ONLY a valid JSON object with no markdown formatting, no code blocks, no extra text. Just the raw JSON:
{
  "predicted_occupancy": "High" or "Medium" or "Low",
  "probability_score": <number 0-100>,
  "recommendation": "<actionable advice string>"
}`)
	return b.String()
}
