package httpserver

import (
	"net/http"
	"strconv"

	json "github.com/goccy/go-json"
	"github.com/mselser95/basket-slippage/internal/simulation"
	"go.uber.org/zap"
)

// RunSource exposes the simulation in progress. *simulation.Driver implements it.
type RunSource interface {
	State() simulation.State
	CurrentRun() *simulation.Run
}

// RunHandler serves read-only views of the current run.
type RunHandler struct {
	runs   RunSource
	logger *zap.Logger
}

// NewRunHandler creates a new run handler.
func NewRunHandler(runs RunSource, logger *zap.Logger) *RunHandler {
	return &RunHandler{
		runs:   runs,
		logger: logger,
	}
}

// RunResponse is the body of GET /api/run.
type RunResponse struct {
	State   string             `json:"state"`
	Params  simulation.Params  `json:"params"`
	Summary simulation.Summary `json:"summary"`
}

// RecordsResponse is the body of GET /api/run/records.
type RecordsResponse struct {
	RunID   string                   `json:"run_id"`
	Records []simulation.CycleRecord `json:"records"`
}

// ErrorResponse represents an HTTP error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HandleRun handles GET /api/run.
func (h *RunHandler) HandleRun(w http.ResponseWriter, r *http.Request) {
	run := h.runs.CurrentRun()
	if run == nil {
		h.writeError(w, "no run started", http.StatusNotFound)
		return
	}

	h.writeJSON(w, http.StatusOK, RunResponse{
		State:   h.runs.State().String(),
		Params:  run.Params,
		Summary: run.Summary(),
	})
}

// HandleRecords handles GET /api/run/records?after=<cycle>.
// Only records of cycles after the given one are returned.
func (h *RunHandler) HandleRecords(w http.ResponseWriter, r *http.Request) {
	after := 0
	if s := r.URL.Query().Get("after"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			h.writeError(w, "after must be a non-negative integer", http.StatusBadRequest)
			return
		}
		after = n
	}

	run := h.runs.CurrentRun()
	if run == nil {
		h.writeError(w, "no run started", http.StatusNotFound)
		return
	}

	records := run.Records()
	out := make([]simulation.CycleRecord, 0, len(records))
	for i := range records {
		if records[i].Cycle > after {
			out = append(out, records[i])
		}
	}

	h.writeJSON(w, http.StatusOK, RecordsResponse{RunID: run.ID, Records: out})
}

func (h *RunHandler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		h.logger.Error("response-encode-failed", zap.Error(err))
	}
}

func (h *RunHandler) writeError(w http.ResponseWriter, message string, status int) {
	h.writeJSON(w, status, ErrorResponse{Error: message})
}
