package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/jeongseonghan/waveform/internal/audio"
	"github.com/jeongseonghan/waveform/internal/config"
	"github.com/jeongseonghan/waveform/internal/metrics"
	"github.com/jeongseonghan/waveform/internal/scenario"
)

// LoadFunc builds the configuration of a run from request overrides.
type LoadFunc func(overrides ...config.Override) (*config.Config, error)

// RunState is what /api/status reports.
type RunState struct {
	Status   string           `json:"status"` // idle or running
	Scenario string           `json:"scenario,omitempty"`
	Started  time.Time        `json:"started,omitempty"`
	Last     *scenario.Report `json:"last,omitempty"`
	Error    string           `json:"error,omitempty"`
}

// Handlers holds the HTTP API handlers.
type Handlers struct {
	load        LoadFunc
	wsHub       *WSHub
	metrics     *metrics.Metrics
	listDevices func() ([]audio.DeviceInfo, error)

	// ctx bounds background runs; cancelled when the server stops.
	ctx context.Context

	mu    sync.Mutex
	state RunState
	// dumps maps run IDs to their data store directory.
	dumps map[string]string
}

// NewHandlers creates new API handlers.
func NewHandlers(ctx context.Context, load LoadFunc, hub *WSHub, m *metrics.Metrics) *Handlers {
	return &Handlers{
		load:        load,
		wsHub:       hub,
		metrics:     m,
		listDevices: audio.ListDevices,
		ctx:         ctx,
		state:       RunState{Status: "idle"},
		dumps:       make(map[string]string),
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"status": "error", "message": err.Error()})
}

// HandleWebSocket handles WebSocket upgrade requests.
func (h *Handlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("websocket upgrade")
		return
	}

	h.wsHub.AddClient(conn)

	// Viewers only listen; reading detects the close.
	go func() {
		defer h.wsHub.RemoveClient(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// RunRequest is the body of POST /api/run.
type RunRequest struct {
	Scenario string   `json:"scenario"`
	Set      []string `json:"set"` // key.path=value overrides
}

// HandleRun starts a scenario in the background. Only one run at a time.
func (h *Handlers) HandleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("parse request: %w", err))
		return
	}
	if !known(req.Scenario) {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: %q", scenario.ErrUnknownScenario, req.Scenario))
		return
	}
	overrides, err := config.ParseOverrides(req.Set)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	cfg, err := h.load(overrides...)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	h.mu.Lock()
	if h.state.Status == "running" {
		h.mu.Unlock()
		writeError(w, http.StatusConflict, fmt.Errorf("scenario %s is still running", h.state.Scenario))
		return
	}
	h.state.Status = "running"
	h.state.Scenario = req.Scenario
	h.state.Started = time.Now()
	h.mu.Unlock()

	go h.run(cfg, req.Scenario)

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":   "running",
		"scenario": req.Scenario,
	})
}

func (h *Handlers) run(cfg *config.Config, name string) {
	h.wsHub.BroadcastStatus("running", name)

	opts := []scenario.Option{scenario.WithSink(h.wsHub)}
	if h.metrics != nil {
		opts = append(opts, scenario.WithSink(h.metrics), scenario.WithObserver(h.metrics))
	}
	rep, err := scenario.NewRunner(cfg, opts...).Run(h.ctx, name)

	h.mu.Lock()
	h.state.Status = "idle"
	h.state.Last = &rep
	h.state.Error = ""
	if err != nil {
		h.state.Error = err.Error()
	}
	if rep.RunID != "" {
		h.dumps[rep.RunID] = filepath.Join(cfg.DataStore.Path, rep.RunID)
	}
	h.mu.Unlock()

	if err != nil {
		h.wsHub.BroadcastStatus("error", err.Error())
		return
	}
	h.wsHub.BroadcastStatus("completed", rep)
}

func known(name string) bool {
	for _, n := range scenario.Names() {
		if n == name {
			return true
		}
	}
	return false
}

// HandleStatus returns the current run state.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	state := h.state
	h.mu.Unlock()
	writeJSON(w, http.StatusOK, state)
}

// HandleScenarios lists the scenarios HandleRun accepts.
func (h *Handlers) HandleScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"scenarios": scenario.Names()})
}

// HandleDevices lists available audio devices.
func (h *Handlers) HandleDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := h.listDevices()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"devices": devices,
	})
}

// HandleDownload serves the archived records of a finished run.
func (h *Handlers) HandleDownload(w http.ResponseWriter, r *http.Request) {
	runID := strings.TrimPrefix(r.URL.Path, "/api/download/")
	if _, err := uuid.Parse(runID); err != nil {
		http.Error(w, "Run ID required", http.StatusBadRequest)
		return
	}

	h.mu.Lock()
	dir, ok := h.dumps[runID]
	h.mu.Unlock()
	if !ok {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}

	path := filepath.Join(dir, "records.json.zst")
	if info, err := os.Stat(path); err != nil || info.Size() == 0 {
		http.Error(w, "Run recorded nothing", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", runID+".json.zst"))
	http.ServeFile(w, r, path)
}
