package healthprobe

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	json "github.com/goccy/go-json"
)

func get(t *testing.T, handler http.HandlerFunc) (int, HealthResponse) {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	handler(w, req)

	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %s, want application/json", ct)
	}

	var resp HealthResponse
	err := json.NewDecoder(w.Body).Decode(&resp)
	if err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return w.Code, resp
}

func TestNew(t *testing.T) {
	hc := New()

	if time.Since(hc.startTime) > time.Second {
		t.Errorf("Start time is too old: %v", hc.startTime)
	}
	if hc.ready.Load() {
		t.Error("HealthChecker should not be ready by default")
	}
	if hc.Phase() != "starting" {
		t.Errorf("Phase = %q, want starting", hc.Phase())
	}
}

func TestHealth_AlwaysReturnsOK(t *testing.T) {
	hc := New()

	for _, ready := range []bool{false, true} {
		hc.SetReady(ready)

		code, resp := get(t, hc.Health())
		if code != http.StatusOK {
			t.Errorf("Health status = %d, want %d (ready=%v)", code, http.StatusOK, ready)
		}
		if resp.Status != "healthy" {
			t.Errorf("Status = %s, want healthy", resp.Status)
		}
		if resp.Uptime == "" {
			t.Error("Uptime is empty")
		}
	}
}

func TestReady_FollowsState(t *testing.T) {
	hc := New()

	code, resp := get(t, hc.Ready())
	if code != http.StatusServiceUnavailable {
		t.Errorf("Initial ready status = %d, want %d", code, http.StatusServiceUnavailable)
	}
	if resp.Status != "not_ready" || resp.Message != "simulation is starting" {
		t.Errorf("unexpected not-ready response %+v", resp)
	}

	hc.SetPhase("valuing")
	hc.SetReady(true)
	code, resp = get(t, hc.Ready())
	if code != http.StatusOK {
		t.Errorf("Ready status after SetReady(true) = %d, want %d", code, http.StatusOK)
	}
	if resp.Status != "ready" || resp.Phase != "valuing" {
		t.Errorf("unexpected ready response %+v", resp)
	}

	hc.SetPhase("aborted")
	hc.SetReady(false)
	code, resp = get(t, hc.Ready())
	if code != http.StatusServiceUnavailable {
		t.Errorf("Ready status after abort = %d, want %d", code, http.StatusServiceUnavailable)
	}
	if resp.Message != "simulation is aborted" {
		t.Errorf("Message = %q", resp.Message)
	}
}

func TestHealthChecker_ConcurrentAccess(t *testing.T) {
	hc := New()
	handler := hc.Ready()

	done := make(chan bool)

	go func() {
		for i := 0; i < 100; i++ {
			hc.SetReady(i%2 == 0)
			hc.SetPhase("advancing")
		}
		done <- true
	}()

	go func() {
		for i := 0; i < 100; i++ {
			req := httptest.NewRequest(http.MethodGet, "/ready", nil)
			w := httptest.NewRecorder()
			handler(w, req)
		}
		done <- true
	}()

	<-done
	<-done
}
