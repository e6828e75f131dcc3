package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/lienwatch/lienwatch/schedule"
	"github.com/lienwatch/lienwatch/store"
	"github.com/lienwatch/lienwatch/syncgw"
)

// handleRetrySync re-submits one lien. 404 for an unknown lien, 400 when
// it has no document URL, 200 otherwise (already-synced is a no-op).
func (s *Server) handleRetrySync(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	l, err := s.store.GetLien(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if l == nil {
		writeError(w, http.StatusNotFound, "lien not found")
		return
	}

	synced, err := s.retrier.RetryOne(r.Context(), id)
	if err != nil {
		if errors.Is(err, syncgw.ErrNoDocURL) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, synced)
}

// handleListLiens serves recent liens, optionally filtered by status or a
// recorded-date range.
func (s *Server) handleListLiens(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := intParam(q.Get("limit"), 100)

	var liens []*store.Lien
	var err error
	switch {
	case q.Get("status") != "":
		liens, err = s.store.ListLiensByStatus(r.Context(), q.Get("status"), limit)
	case q.Get("from") != "" || q.Get("to") != "":
		liens, err = s.store.ListLiensByDateRange(r.Context(), q.Get("from"), q.Get("to"))
	default:
		liens, err = s.store.ListRecentLiens(r.Context(), limit)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if liens == nil {
		liens = []*store.Lien{}
	}
	writeJSON(w, http.StatusOK, liens)
}

// handleListAudit serves audit entries, newest first, optionally bounded
// by created-at milliseconds.
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := intParam(q.Get("limit"), 200)
	fromMs := int64Param(q.Get("from_ms"), 0)
	toMs := int64Param(q.Get("to_ms"), 0)

	entries, err := s.store.ListAuditEntriesByDateRange(r.Context(), fromMs, toMs, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entries == nil {
		entries = []*store.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleGetSchedule(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.sched.Config())
}

func (s *Server) handleSetSchedule(w http.ResponseWriter, r *http.Request) {
	var cfg schedule.Config
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.sched.Update(cfg); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.sched.Config())
}

func intParam(raw string, def int) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func int64Param(raw string, def int64) int64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return def
	}
	return n
}
