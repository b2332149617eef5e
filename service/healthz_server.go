package service

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/log"
	"github.com/rs/cors"
)

// HealthzServer answers liveness probes with the application version and the
// state of the current test run, if one has been announced.
type HealthzServer struct {
	ctx     context.Context
	server  *http.Server
	version string
	run     atomic.Pointer[RunStatus]
}

// RunStatus describes the test run the healthz endpoint reports on.
type RunStatus struct {
	RunID   string `json:"run_id"`
	Running bool   `json:"running"`
}

type healthzResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	RunID   string `json:"run_id,omitempty"`
	Running bool   `json:"running"`
}

func NewHealthzServer(version string) *HealthzServer {
	return &HealthzServer{version: version}
}

// SetRunStatus announces the run the endpoint should report on.
func (h *HealthzServer) SetRunStatus(runID string, running bool) {
	h.run.Store(&RunStatus{RunID: runID, Running: running})
}

func (h *HealthzServer) Start(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.handle)

	h.ctx = ctx
	h.server = &http.Server{
		Addr: addr,
		Handler: cors.New(cors.Options{
			AllowedOrigins: []string{"*"},
		}).Handler(mux),
	}
	return h.server.ListenAndServe()
}

func (h *HealthzServer) Shutdown() error {
	if h.server == nil {
		return nil
	}
	return h.server.Shutdown(h.ctx)
}

func (h *HealthzServer) handle(w http.ResponseWriter, r *http.Request) {
	log.Debug("Received health check request", "path", r.URL.Path, "remote", r.RemoteAddr)

	response := healthzResponse{Status: "ok", Version: h.version}
	if status := h.run.Load(); status != nil {
		response.RunID = status.RunID
		response.Running = status.Running
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Error("Failed to write health check response", "err", err)
	}
}
