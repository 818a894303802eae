// Package tracker reconciles raw hardware reports into canonical slot
// snapshots, derives entry/exit transition events, and fronts the store,
// broadcaster and forecaster as the service consumed by the HTTP layer.
package tracker

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"spotd/internal/broadcast"
	"spotd/internal/forecast"
	"spotd/internal/store"
	"spotd/pkg/types"
)

// DefaultLookback is the historical window handed to the forecaster.
const DefaultLookback = 14 * 24 * time.Hour

// Config wires a Tracker's collaborators.
type Config struct {
	Store       *store.Store
	Broadcaster *broadcast.Broadcaster
	Forecaster  *forecast.Forecaster
	SlotCount   int
	Lookback    time.Duration
	Log         zerolog.Logger
}

// Tracker is the single writer over the slot snapshot set. All Reconcile
// calls are serialized so transition detection always compares against the
// immediately preceding committed snapshot.
type Tracker struct {
	mu sync.Mutex

	store     *store.Store
	bc        *broadcast.Broadcaster
	fc        *forecast.Forecaster
	slotCount int
	lookback  time.Duration
	start     time.Time
	log       zerolog.Logger

	// now is injectable for tests.
	now func() time.Time
}

func New(cfg Config) *Tracker {
	if cfg.SlotCount <= 0 {
		cfg.SlotCount = 2
	}
	if cfg.Lookback <= 0 {
		cfg.Lookback = DefaultLookback
	}
	return &Tracker{
		store:     cfg.Store,
		bc:        cfg.Broadcaster,
		fc:        cfg.Forecaster,
		slotCount: cfg.SlotCount,
		lookback:  cfg.Lookback,
		start:     time.Now(),
		log:       cfg.Log,
		now:       time.Now,
	}
}

// Ready reports whether the tracker can serve state.
func (t *Tracker) Ready() bool { return t.store != nil }

// Status derives the aggregate view from the current snapshots.
func (t *Tracker) Status() types.StatusResponse {
	return aggregate(t.store.GetAll(), t.now())
}

// Health returns liveness info for the /api/health endpoint.
func (t *Tracker) Health() types.HealthResponse {
	now := t.now()
	return types.HealthResponse{
		Status:        "ok",
		UptimeSeconds: now.Sub(t.start).Seconds(),
		Timestamp:     now,
	}
}

// Reconcile applies one hardware report: validates it, compares each slot
// against its previous snapshot, commits the new snapshot set, appends any
// transition events, publishes the fresh status to subscribers and returns
// it. Logically atomic; concurrent calls are serialized.
func (t *Tracker) Reconcile(ctx context.Context, req types.ReportRequest) (types.ReportResponse, error) {
	readings, err := normalizeReport(req, t.slotCount)
	if err != nil {
		return types.ReportResponse{}, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	prev := t.store.GetAll()
	now := t.now()

	next := make([]types.SlotSnapshot, len(prev))
	occupied := 0
	for i, p := range prev {
		r := readings[p.SlotID]
		next[i] = types.SlotSnapshot{
			SlotID:     p.SlotID,
			Occupied:   *r.Occupied,
			DistanceCM: *r.DistanceCM,
			ObservedAt: now,
		}
		if next[i].Occupied {
			occupied++
		}
	}

	// Transition detection. A slot with a zero ObservedAt has no prior
	// state, so its first report never produces an event.
	var events []types.TransitionEvent
	for i, p := range prev {
		if p.ObservedAt.IsZero() || p.Occupied == next[i].Occupied {
			continue
		}
		kind := types.TransitionExit
		if next[i].Occupied {
			kind = types.TransitionEntry
		}
		events = append(events, types.TransitionEvent{
			SlotID:        p.SlotID,
			Kind:          kind,
			DistanceCM:    next[i].DistanceCM,
			TotalOccupied: occupied,
			OccurredAt:    now,
		})
	}

	t.store.PutAll(next)
	t.store.Append(events)

	st := aggregate(next, now)
	for _, ev := range events {
		t.log.Info().Int("slot", ev.SlotID).Str("kind", string(ev.Kind)).
			Int("total_occupied", ev.TotalOccupied).Msg("transition")
	}
	t.bc.Publish(st)

	return types.ReportResponse{StatusResponse: st, Events: events}, nil
}

// Forecast runs the two-tier prediction over the lookback window.
func (t *Tracker) Forecast(ctx context.Context, q types.ForecastQuery) types.ForecastResponse {
	now := t.now()
	events := t.store.Range(now.Add(-t.lookback))
	res := t.fc.Forecast(ctx, q, events)
	return types.ForecastResponse{
		Success:      true,
		Query:        q,
		Prediction:   res,
		LogsAnalyzed: len(events),
		Timestamp:    now,
	}
}

// normalizeReport checks that the report carries exactly one complete
// reading per configured slot and indexes it by slot id.
func normalizeReport(req types.ReportRequest, slotCount int) (map[int]types.SlotReading, error) {
	readings := make(map[int]types.SlotReading, slotCount)
	for _, r := range req.Slots {
		if r.SlotID < 1 || r.SlotID > slotCount {
			return nil, errMalformedReport("unknown slot id %d", r.SlotID)
		}
		if _, dup := readings[r.SlotID]; dup {
			return nil, errMalformedReport("duplicate reading for slot %d", r.SlotID)
		}
		if r.Occupied == nil {
			return nil, errMalformedReport("slot %d is missing its occupied flag; hardware must send occupancy state", r.SlotID)
		}
		if r.DistanceCM == nil {
			return nil, errMalformedReport("slot %d is missing its distance reading", r.SlotID)
		}
		if math.IsNaN(*r.DistanceCM) || math.IsInf(*r.DistanceCM, 0) {
			return nil, errMalformedReport("slot %d distance is not a number", r.SlotID)
		}
		readings[r.SlotID] = r
	}
	if len(readings) != slotCount {
		return nil, errMalformedReport("expected readings for %d slots, got %d", slotCount, len(readings))
	}
	return readings, nil
}

func aggregate(slots []types.SlotSnapshot, asOf time.Time) types.StatusResponse {
	occupied := 0
	for _, s := range slots {
		if s.Occupied {
			occupied++
		}
	}
	free := len(slots) - occupied
	return types.StatusResponse{
		Success:    true,
		FreeSpots:  free,
		TotalSlots: len(slots),
		GateOpen:   free > 0,
		Slots:      slots,
		Timestamp:  asOf,
	}
}
