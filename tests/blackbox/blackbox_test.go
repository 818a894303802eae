package blackbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

// findFreePort picks an available TCP port on localhost.
func findFreePort(t *testing.T) (int, func()) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil { t.Fatalf("listen: %v", err) }
	addr := ln.Addr().String()
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil { t.Fatalf("split: %v", err) }
	cleanup := func(){ _ = ln.Close() }
	var port int
	fmt.Sscanf(portStr, "%d", &port)
	return port, cleanup
}

func projectRootFromThisFile(t *testing.T) string {
	t.Helper()
	_, thisFile, _, ok := runtime.Caller(0)
	if !ok { t.Fatal("runtime.Caller failed") }
	// this file: <root>/tests/blackbox/blackbox_test.go
	bbDir := filepath.Dir(thisFile)
	root := filepath.Dir(filepath.Dir(bbDir))
	return root
}

func buildBinary(t *testing.T) string {
	t.Helper()
	root := projectRootFromThisFile(t)
	outDir := t.TempDir()
	binPath := filepath.Join(outDir, "spotd")
	cmd := exec.Command("go", "build", "-o", binPath, "./cmd/spotd")
	cmd.Dir = root
	cmd.Env = append(os.Environ(), "CGO_ENABLED=0")
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("go build failed: %v\n%s", err, string(out))
	}
	return binPath
}

type serverProc struct {
	cmd  *exec.Cmd
	base string // http base URL, e.g. http://127.0.0.1:18080
}

// cleanEnv strips reasoner credentials so the forecast path is deterministic.
func cleanEnv() []string {
	var env []string
	for _, kv := range os.Environ() {
		if strings.HasPrefix(kv, "OPENAI_API_KEY=") {
			continue
		}
		env = append(env, kv)
	}
	return env
}

func startServer(t *testing.T, bin string, dataDir string, slotCount int, port int) *serverProc {
	t.Helper()
	addr := fmt.Sprintf(":%d", port)
	base := fmt.Sprintf("http://127.0.0.1:%d", port)
	args := []string{
		"--addr", addr,
		"--data-dir", dataDir,
		"--slot-count", fmt.Sprint(slotCount),
	}
	cmd := exec.Command(bin, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = cleanEnv()
	if err := cmd.Start(); err != nil {
		t.Fatalf("start server: %v", err)
	}
	// Wait for healthz
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := http.Get(base + "/healthz")
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK { break }
		}
		if time.Now().After(deadline) {
			_ = cmd.Process.Kill()
			t.Fatalf("server did not become healthy in time")
		}
		time.Sleep(50 * time.Millisecond)
	}
	sp := &serverProc{cmd: cmd, base: base}
	t.Cleanup(func(){ _ = cmd.Process.Kill() })
	return sp
}

func get(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	if err != nil { t.Fatalf("new req: %v", err) }
	resp, err := http.DefaultClient.Do(req)
	if err != nil { t.Fatalf("do: %v", err) }
	b, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, b
}

func postJSON(t *testing.T, url string, payload []byte) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, bytes.NewReader(payload))
	if err != nil { t.Fatalf("new req: %v", err) }
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil { t.Fatalf("do: %v", err) }
	b, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, b
}

func TestBlackbox_Flow(t *testing.T) {
	bin := buildBinary(t)
	dataDir := t.TempDir()
	// Reserve a free port, then release listener before starting the server
	port, release := findFreePort(t)
	release()
	sp := startServer(t, bin, dataDir, 2, port)

	// /healthz
	resp, body := get(t, sp.base+"/healthz")
	if resp.StatusCode != http.StatusOK { t.Fatalf("/healthz %d %s", resp.StatusCode, string(body)) }

	// /readyz: state is seeded at startup, so ready immediately
	resp, body = get(t, sp.base+"/readyz")
	if resp.StatusCode != http.StatusOK { t.Fatalf("/readyz %d %s", resp.StatusCode, string(body)) }

	// Initial /api/status: all slots free
	resp, body = get(t, sp.base+"/api/status")
	if resp.StatusCode != http.StatusOK { t.Fatalf("/api/status %d %s", resp.StatusCode, string(body)) }
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "application/json") { t.Fatalf("/api/status content-type=%s", ct) }
	var statusResp struct {
		FreeSpots  int  `json:"free_spots"`
		TotalSlots int  `json:"total_slots"`
		GateOpen   bool `json:"gate_open"`
	}
	if err := json.Unmarshal(body, &statusResp); err != nil { t.Fatalf("/api/status json: %v body=%s", err, string(body)) }
	if statusResp.FreeSpots != 2 || statusResp.TotalSlots != 2 || !statusResp.GateOpen {
		t.Fatalf("unexpected initial status: %+v", statusResp)
	}

	// Baseline report: no events
	resp, body = postJSON(t, sp.base+"/api/report", []byte(`{"slots":[{"id":1,"distance":250,"occupied":false},{"id":2,"distance":300,"occupied":false}]}`))
	if resp.StatusCode != http.StatusOK { t.Fatalf("/api/report baseline %d %s", resp.StatusCode, string(body)) }

	// Slot 1 fills: one entry event in the response
	resp, body = postJSON(t, sp.base+"/api/report", []byte(`{"slots":[{"id":1,"distance":12,"occupied":true},{"id":2,"distance":300,"occupied":false}]}`))
	if resp.StatusCode != http.StatusOK { t.Fatalf("/api/report entry %d %s", resp.StatusCode, string(body)) }
	var reportResp struct {
		FreeSpots int `json:"free_spots"`
		Events    []struct {
			ID        string `json:"id"`
			EventType string `json:"event_type"`
		} `json:"events"`
	}
	if err := json.Unmarshal(body, &reportResp); err != nil { t.Fatalf("/api/report json: %v body=%s", err, string(body)) }
	if reportResp.FreeSpots != 1 || len(reportResp.Events) != 1 || reportResp.Events[0].EventType != "entry" {
		t.Fatalf("unexpected report response: %s", string(body))
	}

	// /api/predict without a reasoner key falls back to the heuristic
	resp, body = postJSON(t, sp.base+"/api/predict", []byte(`{"day_of_week":"Friday","hour":18}`))
	if resp.StatusCode != http.StatusOK { t.Fatalf("/api/predict %d %s", resp.StatusCode, string(body)) }
	var predictResp struct {
		Prediction struct {
			Source string `json:"source"`
		} `json:"prediction"`
	}
	if err := json.Unmarshal(body, &predictResp); err != nil { t.Fatalf("/api/predict json: %v body=%s", err, string(body)) }
	if predictResp.Prediction.Source != "heuristic" {
		t.Fatalf("expected heuristic source, got %s", string(body))
	}
}

func TestBlackbox_MalformedReport_400(t *testing.T) {
	bin := buildBinary(t)
	port, release := findFreePort(t)
	release()
	sp := startServer(t, bin, t.TempDir(), 2, port)

	resp, body := postJSON(t, sp.base+"/api/report", []byte(`{"slots":[{"id":9,"distance":10,"occupied":true},{"id":1,"distance":250,"occupied":false}]}`))
	if resp.StatusCode != http.StatusBadRequest { t.Fatalf("expected 400, got %d, body=%s", resp.StatusCode, string(body)) }
}

func TestBlackbox_BadPredictQuery_400(t *testing.T) {
	bin := buildBinary(t)
	port, release := findFreePort(t)
	release()
	sp := startServer(t, bin, t.TempDir(), 2, port)

	resp, body := postJSON(t, sp.base+"/api/predict", []byte(`{"day_of_week":"Caturday","hour":12}`))
	if resp.StatusCode != http.StatusBadRequest { t.Fatalf("expected 400, got %d, body=%s", resp.StatusCode, string(body)) }
}
