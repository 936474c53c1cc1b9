package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"sauron-gateway/internal/exposition"
	"sauron-gateway/internal/utils"
)

const contentTypeText = "text/plain; charset=utf-8"

type gatewayAPI struct {
	deps Deps
}

func (a *gatewayAPI) handleRoot(w http.ResponseWriter, r *http.Request) {
	utils.WriteText(w, http.StatusOK, contentTypeText, "hello from "+a.deps.AppName+"!")
}

func (a *gatewayAPI) handleMetrics(w http.ResponseWriter, r *http.Request) {
	snap := a.deps.Store.Snapshot()

	var v exposition.Vitals
	if a.deps.Vitals != nil {
		free, err := a.deps.Vitals.FreeMemory()
		if err != nil {
			slog.Warn("metrics: free memory unavailable", "error", err)
		}
		v.FreeMemory = free
		v.Uptime = a.deps.Vitals.Uptime()
	}
	if len(snap.Sensors) > 0 {
		v.Lag = a.deps.Now().Sub(snap.LastUpdate)
		v.HasLag = true
	}

	utils.WriteText(w, http.StatusOK, exposition.ContentTypeMetrics, exposition.RenderMetrics(snap, v))
}

func (a *gatewayAPI) handleSensor(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	body := exposition.RenderDevice(a.deps.Store.Snapshot(), name)
	utils.WriteText(w, http.StatusOK, contentTypeText, body)
}

type healthResponse struct {
	Status     string     `json:"status"`
	Stuck      bool       `json:"stuck"`
	LowMemory  bool       `json:"low_memory"`
	FreeMemory uint64     `json:"free_memory_bytes"`
	LastUpdate *time.Time `json:"last_update,omitempty"`
	Sensors    int        `json:"sensors"`
}

func (a *gatewayAPI) handleHealthz(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:  "ok",
		Sensors: len(a.deps.Store.Snapshot().Sensors),
	}
	status := http.StatusOK

	if a.deps.Health != nil {
		st := a.deps.Health.Status()
		resp.Stuck = st.Stuck
		resp.LowMemory = st.LowMemory
		resp.FreeMemory = st.FreeMemory
		if !st.LastUpdate.IsZero() {
			last := st.LastUpdate.UTC()
			resp.LastUpdate = &last
		}
		if !st.Healthy() {
			resp.Status = "unhealthy"
			status = http.StatusServiceUnavailable
		}
	}

	utils.WriteJSON(w, status, resp)
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	utils.WriteText(w, http.StatusNotFound, contentTypeText, "Not found")
}
