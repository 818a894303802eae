// Package forecast turns a window of transition events into an occupancy
// prediction for a target day and hour. An external reasoning service is
// tried first, bounded by a timeout; a deterministic heuristic always backs
// it up, so Forecast never fails.
package forecast

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"spotd/pkg/types"
)

// DefaultTimeout bounds the single external attempt per forecast.
const DefaultTimeout = 20 * time.Second

// Forecaster evaluates the two-tier strategy. Stateless aside from its
// collaborator handles; safe for unlimited concurrent use.
type Forecaster struct {
	reasoner Reasoner
	timeout  time.Duration
	log      zerolog.Logger
}

// New builds a Forecaster. reasoner may be nil, in which case every forecast
// takes the heuristic path.
func New(reasoner Reasoner, timeout time.Duration, log zerolog.Logger) *Forecaster {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Forecaster{reasoner: reasoner, timeout: timeout, log: log}
}

// Forecast produces a result for q over events. The external path is
// attempted at most once; any failure or malformed response degrades to the
// heuristic with the source tag recording what happened.
func (f *Forecaster) Forecast(ctx context.Context, q types.ForecastQuery, events []types.TransitionEvent) types.ForecastResult {
	fallback := Heuristic(q, events)
	if f.reasoner == nil {
		return fallback
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	text, err := f.reasoner.Analyze(ctx, buildPrompt(q, events))
	if err != nil {
		f.log.Warn().Err(err).Msg("reasoning service call failed, using heuristic")
		res := fallback
		res.Detail = failureDetail(err)
		return res
	}

	payload, raw, err := parsePayload(text)
	if err != nil {
		f.log.Warn().Err(err).Msg("reasoning service response unparseable, using heuristic")
		res := fallback
		res.Detail = "unparseable reasoning response"
		return res
	}
	if !payload.complete() {
		f.log.Warn().Msg("reasoning service response incomplete, filling from heuristic")
		res := fallback
		res.Source = types.SourceExternalPartial
		res.Raw = raw
		return res
	}

	return types.ForecastResult{
		PredictedLevel: payload.level(),
		Probability:    clampProbability(*payload.ProbabilityScore),
		Recommendation: payload.Recommendation,
		Source:         types.SourceExternal,
	}
}

// failureDetail maps a transport failure to a diagnostic string that is safe
// to hand to callers.
func failureDetail(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "reasoning service timeout"
	}
	return "reasoning service unavailable"
}

func clampProbability(p float64) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return int(p + 0.5)
}
