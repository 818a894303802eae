package forecast

import (
	"fmt"
	"math"

	"spotd/pkg/types"
)

// emptyWindowRatio is the conservative ratio used when no historical events
// match the queried window. Chosen to bias toward "Low", same as the
// empty-log case; a product choice rather than a statistical one.
const emptyWindowRatio = 0.2

// Heuristic is the deterministic forecasting path. It never fails and always
// returns a probability in [0,100].
func Heuristic(q types.ForecastQuery, events []types.TransitionEvent) types.ForecastResult {
	if len(events) == 0 {
		return types.ForecastResult{
			PredictedLevel: types.LevelLow,
			Probability:    20,
			Recommendation: fmt.Sprintf("Not enough historical data yet. The lot is likely available on %s at %d:00.", q.DayOfWeek, q.Hour),
			Source:         types.SourceHeuristic,
		}
	}

	var entries, exits int
	for _, ev := range events {
		if !matchesWindow(ev, q) {
			continue
		}
		switch ev.Kind {
		case types.TransitionEntry:
			entries++
		case types.TransitionExit:
			exits++
		}
	}

	ratio := emptyWindowRatio
	if entries+exits > 0 {
		ratio = float64(entries) / float64(entries+exits)
	}
	score := int(math.Round(ratio * 100))

	level := types.LevelLow
	recommendation := fmt.Sprintf("Parking is usually available on %s around %d:00. You should be fine.", q.DayOfWeek, q.Hour)
	switch {
	case score > 70:
		level = types.LevelHigh
		recommendation = fmt.Sprintf("The lot tends to be busy on %s at %d:00. Arrive at least 15 minutes early.", q.DayOfWeek, q.Hour)
	case score > 40:
		level = types.LevelMedium
		recommendation = fmt.Sprintf("Moderate activity on %s at %d:00. Consider arriving a few minutes early.", q.DayOfWeek, q.Hour)
	}

	return types.ForecastResult{
		PredictedLevel: level,
		Probability:    score,
		Recommendation: recommendation,
		Source:         types.SourceHeuristic,
	}
}

// matchesWindow keeps events on the queried weekday within one hour of the
// queried hour, inclusive on both sides.
func matchesWindow(ev types.TransitionEvent, q types.ForecastQuery) bool {
	if types.DayNames[ev.OccurredAt.Weekday()] != q.DayOfWeek {
		return false
	}
	h := ev.OccurredAt.Hour()
	return h >= q.Hour-1 && h <= q.Hour+1
}
