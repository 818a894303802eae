package e2e

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"spotd/internal/broadcast"
	"spotd/internal/forecast"
	"spotd/internal/httpapi"
	"spotd/internal/store"
	"spotd/internal/tracker"
	"spotd/pkg/types"
)

// newStack wires the full service the way cmd/spotd does, backed by an
// in-memory store unless dir is set.
func newStack(t *testing.T, dir string, slotCount int) (*httptest.Server, *store.Store) {
	t.Helper()
	log := zerolog.Nop()
	st := store.Open(store.Config{
		Dir:        dir,
		InMemory:   dir == "",
		SlotCount:  slotCount,
		LoadWindow: tracker.DefaultLookback,
	}, log)
	t.Cleanup(func() { st.Close() })
	hub := broadcast.New(log)
	fc := forecast.New(nil, time.Second, log)
	trk := tracker.New(tracker.Config{
		Store:       st,
		Broadcaster: hub,
		Forecaster:  fc,
		SlotCount:   slotCount,
		Log:         log,
	})
	srv := httptest.NewServer(httpapi.NewMux(trk, hub))
	t.Cleanup(srv.Close)
	return srv, st
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

func TestReportStatusRoundTrip(t *testing.T) {
	srv, _ := newStack(t, "", 2)

	// Baseline: both slots free, no events yet.
	resp := post(t, srv.URL+"/api/report", `{"slots":[{"id":1,"distance":250,"occupied":false},{"id":2,"distance":300,"occupied":false}]}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("baseline status = %d", resp.StatusCode)
	}
	rr := decode[types.ReportResponse](t, resp)
	if len(rr.Events) != 0 || rr.FreeSpots != 2 || rr.GateOpen != true {
		t.Fatalf("unexpected baseline response: %+v", rr)
	}

	// Slot 2 becomes occupied: one entry event.
	resp = post(t, srv.URL+"/api/report", `{"slots":[{"id":1,"distance":250,"occupied":false},{"id":2,"distance":15,"occupied":true}]}`)
	rr = decode[types.ReportResponse](t, resp)
	if len(rr.Events) != 1 {
		t.Fatalf("events = %+v, want one entry", rr.Events)
	}
	ev := rr.Events[0]
	if ev.SlotID != 2 || ev.Kind != types.TransitionEntry || ev.TotalOccupied != 1 || ev.ID == "" {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if rr.FreeSpots != 1 {
		t.Fatalf("free spots = %d, want 1", rr.FreeSpots)
	}

	// Status reflects the last committed report.
	resp, err := http.Get(srv.URL + "/api/status")
	if err != nil {
		t.Fatalf("GET /api/status: %v", err)
	}
	st := decode[types.StatusResponse](t, resp)
	if st.FreeSpots != 1 || st.TotalSlots != 2 || !st.GateOpen {
		t.Fatalf("unexpected status: %+v", st)
	}
	for _, slot := range st.Slots {
		if slot.SlotID == 2 && (!slot.Occupied || slot.DistanceCM != 15) {
			t.Fatalf("slot 2 snapshot not updated: %+v", slot)
		}
	}
}

func TestMalformedReportRejected(t *testing.T) {
	srv, _ := newStack(t, "", 2)

	resp := post(t, srv.URL+"/api/report", `{"slots":[{"id":7,"distance":10,"occupied":true},{"id":1,"distance":250,"occupied":false}]}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}

	// State untouched: seeded slots are still all free.
	resp, err := http.Get(srv.URL + "/api/status")
	if err != nil {
		t.Fatalf("GET /api/status: %v", err)
	}
	st := decode[types.StatusResponse](t, resp)
	if st.FreeSpots != 2 {
		t.Fatalf("free spots = %d after rejected report", st.FreeSpots)
	}
}

func TestPredictHeuristicFromRecordedEvents(t *testing.T) {
	srv, _ := newStack(t, "", 2)

	// Record one entry now so the heuristic has at least one event in the
	// lookback window.
	post(t, srv.URL+"/api/report", `{"slots":[{"id":1,"distance":250,"occupied":false},{"id":2,"distance":300,"occupied":false}]}`).Body.Close()
	post(t, srv.URL+"/api/report", `{"slots":[{"id":1,"distance":12,"occupied":true},{"id":2,"distance":300,"occupied":false}]}`).Body.Close()

	now := time.Now()
	q := types.ForecastQuery{DayOfWeek: types.DayNames[now.Weekday()], Hour: now.Hour()}
	body, _ := json.Marshal(q)
	resp := post(t, srv.URL+"/api/predict", string(body))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	fr := decode[types.ForecastResponse](t, resp)
	if fr.Prediction.Source != types.SourceHeuristic {
		t.Fatalf("source = %s, want heuristic", fr.Prediction.Source)
	}
	// One entry, zero exits in the window.
	if fr.Prediction.PredictedLevel != types.LevelHigh || fr.Prediction.Probability != 100 {
		t.Fatalf("unexpected prediction: %+v", fr.Prediction)
	}
	if fr.LogsAnalyzed != 1 {
		t.Fatalf("logs analyzed = %d, want 1", fr.LogsAnalyzed)
	}
}

func TestStreamSeesReconcileUpdates(t *testing.T) {
	srv, _ := newStack(t, "", 2)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/stream", nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /api/stream: %v", err)
	}
	defer resp.Body.Close()

	sc := bufio.NewScanner(resp.Body)
	readEvent := func() types.StatusResponse {
		for sc.Scan() {
			if data, ok := strings.CutPrefix(sc.Text(), "data: "); ok {
				var st types.StatusResponse
				if err := json.Unmarshal([]byte(data), &st); err != nil {
					t.Fatalf("decode event: %v", err)
				}
				return st
			}
		}
		t.Fatalf("stream ended: %v", sc.Err())
		return types.StatusResponse{}
	}

	if first := readEvent(); first.FreeSpots != 2 {
		t.Fatalf("initial snapshot: %+v", first)
	}

	post(t, srv.URL+"/api/report", `{"slots":[{"id":1,"distance":10,"occupied":true},{"id":2,"distance":300,"occupied":false}]}`).Body.Close()
	if update := readEvent(); update.FreeSpots != 1 {
		t.Fatalf("pushed snapshot: %+v", update)
	}
}

func TestStatePersistsAcrossRestart(t *testing.T) {
	dir := t.TempDir()

	srv, st := newStack(t, dir, 2)
	post(t, srv.URL+"/api/report", `{"slots":[{"id":1,"distance":250,"occupied":false},{"id":2,"distance":300,"occupied":false}]}`).Body.Close()
	post(t, srv.URL+"/api/report", `{"slots":[{"id":1,"distance":14,"occupied":true},{"id":2,"distance":300,"occupied":false}]}`).Body.Close()
	srv.Close()
	if err := st.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	srv2, _ := newStack(t, dir, 2)
	resp, err := http.Get(srv2.URL + "/api/status")
	if err != nil {
		t.Fatalf("GET /api/status after restart: %v", err)
	}
	status := decode[types.StatusResponse](t, resp)
	if status.FreeSpots != 1 {
		t.Fatalf("free spots after restart = %d, want 1", status.FreeSpots)
	}

	// Recorded events survive too and still feed predictions.
	now := time.Now()
	q := types.ForecastQuery{DayOfWeek: types.DayNames[now.Weekday()], Hour: now.Hour()}
	body, _ := json.Marshal(q)
	resp = post(t, srv2.URL+"/api/predict", string(body))
	fr := decode[types.ForecastResponse](t, resp)
	if fr.LogsAnalyzed != 1 {
		t.Fatalf("logs analyzed after restart = %d, want 1", fr.LogsAnalyzed)
	}
}
