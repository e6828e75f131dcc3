package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lienwatch/lienwatch/registry"
)

func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	sources, err := s.reg.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if sources == nil {
		sources = []*registry.Source{}
	}
	writeJSON(w, http.StatusOK, sources)
}

func (s *Server) handleCreateSource(w http.ResponseWriter, r *http.Request) {
	var src registry.Source
	if err := json.NewDecoder(r.Body).Decode(&src); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.reg.Create(r.Context(), &src); err != nil {
		writeRegistryError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, &src)
}

// sourcePatch carries the mutable fields; nil means "leave as is".
type sourcePatch struct {
	Name              *string `json:"name,omitempty"`
	Strategy          *string `json:"strategy,omitempty"`
	BaseURL           *string `json:"base_url,omitempty"`
	SearchURLTemplate *string `json:"search_url_template,omitempty"`
	DocURLTemplate    *string `json:"doc_url_template,omitempty"`
	ResultsSelector   *string `json:"results_selector,omitempty"`
	NextPageSelector  *string `json:"next_page_selector,omitempty"`
	DisabledClass     *string `json:"disabled_class,omitempty"`
	PatternsJSON      *string `json:"patterns_json,omitempty"`
	RequestDelayMs    *int64  `json:"request_delay_ms,omitempty"`
	LoadWaitMs        *int64  `json:"load_wait_ms,omitempty"`
	MaxPages          *int    `json:"max_pages,omitempty"`
	Enabled           *bool   `json:"enabled,omitempty"`
}

func (s *Server) handlePatchSource(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	src, err := s.reg.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if src == nil {
		writeError(w, http.StatusNotFound, "source not found")
		return
	}

	var patch sourcePatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	applyPatch(src, &patch)

	if err := s.reg.Update(r.Context(), src); err != nil {
		writeRegistryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, src)
}

func applyPatch(src *registry.Source, p *sourcePatch) {
	if p.Name != nil {
		src.Name = *p.Name
	}
	if p.Strategy != nil {
		src.Strategy = *p.Strategy
	}
	if p.BaseURL != nil {
		src.BaseURL = *p.BaseURL
	}
	if p.SearchURLTemplate != nil {
		src.SearchURLTemplate = *p.SearchURLTemplate
	}
	if p.DocURLTemplate != nil {
		src.DocURLTemplate = *p.DocURLTemplate
	}
	if p.ResultsSelector != nil {
		src.ResultsSelector = *p.ResultsSelector
	}
	if p.NextPageSelector != nil {
		src.NextPageSelector = *p.NextPageSelector
	}
	if p.DisabledClass != nil {
		src.DisabledClass = *p.DisabledClass
	}
	if p.PatternsJSON != nil {
		src.PatternsJSON = *p.PatternsJSON
	}
	if p.RequestDelayMs != nil {
		src.RequestDelayMs = *p.RequestDelayMs
	}
	if p.LoadWaitMs != nil {
		src.LoadWaitMs = *p.LoadWaitMs
	}
	if p.MaxPages != nil {
		src.MaxPages = *p.MaxPages
	}
	if p.Enabled != nil {
		src.Enabled = *p.Enabled
	}
}

func writeRegistryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, registry.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, registry.ErrDuplicateSource):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, registry.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
