package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/lienwatch/lienwatch/pipeline"
	"github.com/lienwatch/lienwatch/store"
)

type runRequest struct {
	RunType  string `json:"run_type,omitempty"`
	FromDate string `json:"from_date,omitempty"` // YYYY-MM-DD
	ToDate   string `json:"to_date,omitempty"`
}

// handleRun triggers a pipeline run. 202 with the run ID, or 409 while a
// run is already active.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	if req.RunType == "" {
		req.RunType = store.RunManual
	}
	if req.RunType != store.RunManual && req.RunType != store.RunScheduled {
		writeError(w, http.StatusBadRequest, "run_type must be manual or scheduled")
		return
	}

	runID, err := s.pl.Trigger(r.Context(), req.RunType, req.FromDate, req.ToDate)
	if err != nil {
		if errors.Is(err, pipeline.ErrAlreadyRunning) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"run_id": runID})
}

// handleStop raises the cooperative stop flag. Always 202: stopping an
// idle pipeline is a harmless no-op.
func (s *Server) handleStop(w http.ResponseWriter, _ *http.Request) {
	stopping := s.pl.Stop()
	writeJSON(w, http.StatusAccepted, map[string]bool{"stopping": stopping})
}

type statusResponse struct {
	*pipeline.Status
	SubRuns []*store.SubRun `json:"sub_runs,omitempty"`
}

// handleStatus reports the orchestrator state plus the latest run's
// sub-runs.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.pl.Status(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := statusResponse{Status: st}
	if st.LatestRun != nil {
		subs, err := s.store.ListSubRuns(r.Context(), st.LatestRun.ID)
		if err == nil {
			resp.SubRuns = subs
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
