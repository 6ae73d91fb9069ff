package metrics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealthHandlerAllGatesReady(t *testing.T) {
	ResetGatesForTest()
	SetCartographerReady(true, "")
	SetClockReady(true, "")
	SetTransportReady(true, "")
	defer ResetGatesForTest()

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	HealthHandler()(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}

	var status Status
	if err := json.NewDecoder(w.Body).Decode(&status); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if status.Status != "healthy" {
		t.Errorf("expected status 'healthy', got %q", status.Status)
	}
	if len(status.Components) != 3 {
		t.Errorf("expected 3 components, got %d", len(status.Components))
	}
}

func TestHealthHandlerGateNotReady(t *testing.T) {
	ResetGatesForTest()
	SetCartographerReady(true, "")
	SetClockReady(false, "no slot observed yet")
	SetTransportReady(true, "")
	defer ResetGatesForTest()

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	HealthHandler()(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", w.Code)
	}

	var status Status
	if err := json.NewDecoder(w.Body).Decode(&status); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if status.Status != "unhealthy" {
		t.Errorf("expected status 'unhealthy', got %q", status.Status)
	}
	if status.Components["clock"].Ready {
		t.Error("expected clock gate to report not ready")
	}
	if status.Components["clock"].Message != "no slot observed yet" {
		t.Errorf("unexpected clock message: %q", status.Components["clock"].Message)
	}
}

func TestReadyHandlerAllGatesReady(t *testing.T) {
	ResetGatesForTest()
	SetCartographerReady(true, "")
	SetClockReady(true, "")
	SetTransportReady(true, "")
	defer ResetGatesForTest()

	req := httptest.NewRequest("GET", "/ready", nil)
	w := httptest.NewRecorder()
	ReadyHandler()(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}

	var status Status
	if err := json.NewDecoder(w.Body).Decode(&status); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if status.Status != "ready" {
		t.Errorf("expected status 'ready', got %q", status.Status)
	}
}

func TestReadyHandlerMissingGate(t *testing.T) {
	ResetGatesForTest()
	SetTransportReady(true, "")
	// cartographer and clock left at their initial not-ready state
	defer ResetGatesForTest()

	req := httptest.NewRequest("GET", "/ready", nil)
	w := httptest.NewRecorder()
	ReadyHandler()(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", w.Code)
	}

	var status Status
	if err := json.NewDecoder(w.Body).Decode(&status); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if status.Status != "not_ready" {
		t.Errorf("expected status 'not_ready', got %q", status.Status)
	}
	if status.Components["cartographer"].Ready {
		t.Error("expected cartographer gate to report not ready")
	}
}

func TestLivenessHandler(t *testing.T) {
	req := httptest.NewRequest("GET", "/live", nil)
	w := httptest.NewRecorder()
	LivenessHandler()(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}

	var response map[string]string
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response["status"] != "alive" {
		t.Errorf("expected status 'alive', got %q", response["status"])
	}
	if response["uptime"] == "" {
		t.Error("uptime should not be empty")
	}
}
