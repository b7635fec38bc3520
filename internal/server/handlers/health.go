package handlers

import (
	"net/http"
	"sync"
	"time"
)

type healthManager struct {
	mu      sync.RWMutex
	version string
	started time.Time
	ready   bool
}

var health = &healthManager{version: "dev", started: time.Now()}

// InitHealthManager records the binary version and resets uptime. Call
// once at startup before serving.
func InitHealthManager(version string) {
	health.mu.Lock()
	defer health.mu.Unlock()
	health.version = version
	health.started = time.Now()
	health.ready = true
}

// SetReady flips the readiness gate, e.g. while the registry is still
// loading persisted records.
func SetReady(ready bool) {
	health.mu.Lock()
	defer health.mu.Unlock()
	health.ready = ready
}

type healthStatus struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
}

// Health reports liveness plus version and uptime.
func Health(w http.ResponseWriter, r *http.Request) {
	health.mu.RLock()
	status := healthStatus{
		Status:  "healthy",
		Version: health.version,
		Uptime:  time.Since(health.started).Round(time.Second).String(),
	}
	ready := health.ready
	health.mu.RUnlock()

	if !ready {
		status.Status = "starting"
		writeJSON(w, http.StatusServiceUnavailable, status)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// Version reports the binary version.
func Version(w http.ResponseWriter, r *http.Request) {
	health.mu.RLock()
	v := health.version
	health.mu.RUnlock()
	writeJSON(w, http.StatusOK, map[string]string{"version": v})
}
