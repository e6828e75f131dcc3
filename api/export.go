package api

import (
	"encoding/csv"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/lienwatch/lienwatch/store"
)

// handleExportLiens streams liens as RFC-4180 CSV, optionally bounded by
// recorded date (?from=YYYY-MM-DD&to=YYYY-MM-DD).
func (s *Server) handleExportLiens(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	liens, err := s.store.ListLiensByDateRange(r.Context(), q.Get("from"), q.Get("to"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="liens.csv"`)

	if err := writeLiensCSV(w, liens); err != nil {
		// Headers are already out; all we can do is note the truncation.
		s.logger.Warn("liens export aborted mid-stream", "error", err)
	}
}

// writeLiensCSV writes the lien rows. csv.Writer errors are sticky, so one
// check after the final flush covers every row.
func writeLiensCSV(w io.Writer, liens []*store.Lien) error {
	cw := csv.NewWriter(w)
	cw.Write([]string{
		"doc_id", "recorded_date", "debtor_name", "debtor_address",
		"amount", "creditor_name", "creditor_address", "doc_url",
		"status", "external_id", "created_at",
	})
	for _, l := range liens {
		cw.Write([]string{
			l.DocID,
			l.RecordedDate,
			l.DebtorName,
			l.DebtorAddress,
			formatCents(l.AmountCents),
			l.CreditorName,
			l.CreditorAddress,
			l.DocURL,
			l.Status,
			l.ExternalID,
			time.UnixMilli(l.CreatedAt).UTC().Format(time.RFC3339),
		})
	}
	cw.Flush()
	return cw.Error()
}

// handleExportAudit streams the audit trail as CSV, optionally bounded by
// created-at milliseconds (?from_ms=&to_ms=).
func (s *Server) handleExportAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	fromMs := int64Param(q.Get("from_ms"), 0)
	toMs := int64Param(q.Get("to_ms"), 0)

	entries, err := s.store.ListAuditEntriesByDateRange(r.Context(), fromMs, toMs, intParam(q.Get("limit"), 10_000))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="audit.csv"`)

	if err := writeAuditCSV(w, entries); err != nil {
		s.logger.Warn("audit export aborted mid-stream", "error", err)
	}
}

func writeAuditCSV(w io.Writer, entries []*store.AuditEntry) error {
	cw := csv.NewWriter(w)
	cw.Write([]string{"created_at", "level", "component", "message", "metadata"})
	for _, e := range entries {
		cw.Write([]string{
			time.UnixMilli(e.CreatedAt).UTC().Format(time.RFC3339),
			e.Level,
			e.Component,
			e.Message,
			e.MetadataJSON,
		})
	}
	cw.Flush()
	return cw.Error()
}

// formatCents renders cents as a dollar figure like "25000.00".
func formatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return sign + strconv.FormatInt(cents/100, 10) + "." + pad2(cents%100)
}

func pad2(n int64) string {
	if n < 10 {
		return "0" + strconv.FormatInt(n, 10)
	}
	return strconv.FormatInt(n, 10)
}
