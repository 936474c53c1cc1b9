package httpapi

import (
	"net/http"
	"time"

	"sauron-gateway/internal/liveness"
	"sauron-gateway/internal/readings"
)

// Snapshotter is the read side of the readings store.
type Snapshotter interface {
	Snapshot() readings.Snapshot
}

// VitalsSource supplies host figures for /metrics.
type VitalsSource interface {
	FreeMemory() (uint64, error)
	Uptime() time.Duration
}

// HealthSource supplies the liveness evaluation for /healthz.
type HealthSource interface {
	Status() liveness.Status
}

type Deps struct {
	Store   Snapshotter
	Vitals  VitalsSource
	Health  HealthSource
	AppName string
	// Now defaults to time.Now.
	Now func() time.Time
}

func NewMux(deps Deps) *http.ServeMux {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	api := &gatewayAPI{deps: deps}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", api.handleRoot)
	mux.HandleFunc("GET /metrics", api.handleMetrics)
	mux.HandleFunc("GET /sensors/{name}", api.handleSensor)
	mux.HandleFunc("GET /healthz", api.handleHealthz)
	mux.HandleFunc("/", handleNotFound)
	return mux
}
