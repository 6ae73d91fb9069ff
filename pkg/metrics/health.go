package metrics

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

var startTime = time.Now()

// bootstrapGate tracks one of scramjet's three startup dependencies.
type bootstrapGate struct {
	mu      sync.RWMutex
	ready   bool
	message string
}

func (g *bootstrapGate) set(ready bool, message string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ready = ready
	g.message = message
}

func (g *bootstrapGate) snapshot() (bool, string) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.ready, g.message
}

var (
	cartographerGate = &bootstrapGate{message: "waiting for initial topology/schedule refresh"}
	clockGate        = &bootstrapGate{message: "waiting for first slot observation"}
	transportGate    = &bootstrapGate{message: "waiting for QUIC socket bind"}
)

// SetCartographerReady reports whether the cartographer's initial
// topology and leader-schedule refresh has completed.
func SetCartographerReady(ready bool, message string) { cartographerGate.set(ready, message) }

// SetClockReady reports whether the clock source's first slot
// observation (streaming connect or polling fetch) has succeeded.
func SetClockReady(ready bool, message string) { clockGate.set(ready, message) }

// SetTransportReady reports whether the QUIC engine has bound its
// UDP socket and is ready to dial.
func SetTransportReady(ready bool, message string) { transportGate.set(ready, message) }

// ResetGatesForTest restores all three bootstrap gates to their
// initial not-ready state. Test-only: production code only ever
// moves a gate from not-ready to ready.
func ResetGatesForTest() {
	cartographerGate.set(false, "waiting for initial topology/schedule refresh")
	clockGate.set(false, "waiting for first slot observation")
	transportGate.set(false, "waiting for QUIC socket bind")
}

// gateStatus is one component's contribution to /health and /ready.
type gateStatus struct {
	Ready   bool   `json:"ready"`
	Message string `json:"message,omitempty"`
}

// Status is the body served by /health and /ready.
type Status struct {
	Status     string                `json:"status"`
	Timestamp  time.Time             `json:"timestamp"`
	Components map[string]gateStatus `json:"components"`
	Uptime     string                `json:"uptime"`
}

func gateSnapshot() (map[string]gateStatus, bool) {
	gates := map[string]*bootstrapGate{
		"cartographer": cartographerGate,
		"clock":        clockGate,
		"transport":    transportGate,
	}
	components := make(map[string]gateStatus, len(gates))
	allReady := true
	for name, g := range gates {
		ready, message := g.snapshot()
		components[name] = gateStatus{Ready: ready, Message: message}
		if !ready {
			allReady = false
		}
	}
	return components, allReady
}

// HealthHandler serves /health: scramjet has exactly three components
// (cartographer, clock, transport), so health and readiness share the
// same three-gate snapshot, reported as "healthy"/"unhealthy".
func HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		components, allReady := gateSnapshot()
		status := "healthy"
		statusCode := http.StatusOK
		if !allReady {
			status = "unhealthy"
			statusCode = http.StatusServiceUnavailable
		}
		writeStatus(w, statusCode, Status{
			Status:     status,
			Timestamp:  time.Now(),
			Components: components,
			Uptime:     time.Since(startTime).String(),
		})
	}
}

// ReadyHandler serves /ready: ready only once the cartographer, clock,
// and transport gates have all reported ready.
func ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		components, allReady := gateSnapshot()
		status := "ready"
		statusCode := http.StatusOK
		if !allReady {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
		}
		writeStatus(w, statusCode, Status{
			Status:     status,
			Timestamp:  time.Now(),
			Components: components,
			Uptime:     time.Since(startTime).String(),
		})
	}
}

// LivenessHandler serves /live: 200 as long as the process is running.
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status": "alive",
			"uptime": time.Since(startTime).String(),
		})
	}
}

func writeStatus(w http.ResponseWriter, code int, s Status) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(s)
}
