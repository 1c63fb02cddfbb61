package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/wonny/marketviews/internal/contracts"
	"github.com/wonny/marketviews/internal/dashboard"
	"github.com/wonny/marketviews/internal/store"
	"github.com/wonny/marketviews/internal/tabular"
	"github.com/wonny/marketviews/internal/validate"
	"github.com/wonny/marketviews/pkg/logger"
)

// ViewsHandler serves the view records and their projections
// ⭐ SSOT: views API handlers live only in this struct
type ViewsHandler struct {
	store     *store.Store
	dashboard *dashboard.Service
	validator *validate.Validator
	logger    *logger.Logger
}

// NewViewsHandler creates a new views handler
func NewViewsHandler(st *store.Store, dash *dashboard.Service, v *validate.Validator, log *logger.Logger) *ViewsHandler {
	return &ViewsHandler{
		store:     st,
		dashboard: dash,
		validator: v,
		logger:    log,
	}
}

// GetFilters returns the values available for each filter
// GET /api/filters?asset_class=
func (h *ViewsHandler) GetFilters(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.dashboard.Filters(dashboard.QueryFromValues(r.URL.Query())))
}

// RecordsResponse wraps a record listing
type RecordsResponse struct {
	Meta    dashboard.Meta         `json:"meta"`
	Records []contracts.ViewRecord `json:"records"`
}

// GetRecords lists the matching records in insertion order
// GET /api/records?asset_class=&manager=&subclass=
func (h *ViewsHandler) GetRecords(w http.ResponseWriter, r *http.Request) {
	records, meta := h.dashboard.Records(dashboard.QueryFromValues(r.URL.Query()))
	respondJSON(w, http.StatusOK, RecordsResponse{Meta: meta, Records: records})
}

// AppendResponse reports an accepted batch
type AppendResponse struct {
	Appended int                    `json:"appended"`
	Records  []contracts.ViewRecord `json:"records"`
}

// PostRecords appends a batch given as a JSON array or as CSV rows
// POST /api/records
func (h *ViewsHandler) PostRecords(w http.ResponseWriter, r *http.Request) {
	batch, ok := h.readBatch(w, r)
	if !ok {
		return
	}

	records, err := h.store.AppendRaw(r.Context(), batch)
	if err != nil {
		h.logger.WithError(err).Warn("Batch rejected")
		respondFailure(w, err, "Failed to append records")
		return
	}

	respondJSON(w, http.StatusCreated, AppendResponse{Appended: len(records), Records: records})
}

// ValidateResponse is the dry-run result of a batch
type ValidateResponse struct {
	Valid   bool                   `json:"valid"`
	Records []contracts.ViewRecord `json:"records,omitempty"`
	Rows    []int                  `json:"rows,omitempty"`
	Errors  []contracts.FieldError `json:"errors,omitempty"`
}

// ValidateRecords checks a batch without appending it
// POST /api/records/validate
func (h *ViewsHandler) ValidateRecords(w http.ResponseWriter, r *http.Request) {
	batch, ok := h.readBatch(w, r)
	if !ok {
		return
	}

	records, err := h.validator.Validate(batch)
	if err != nil {
		resp := ValidateResponse{Valid: false}
		var batchErr *contracts.BatchError
		if errors.As(err, &batchErr) {
			resp.Rows = batchErr.Rows()
			resp.Errors = batchErr.Errors
		}
		respondJSON(w, http.StatusOK, resp)
		return
	}

	respondJSON(w, http.StatusOK, ValidateResponse{Valid: true, Records: records})
}

// GetConsensus returns the consensus table
// GET /api/consensus?asset_class=&manager=&subclass=
func (h *ViewsHandler) GetConsensus(w http.ResponseWriter, r *http.Request) {
	q := dashboard.QueryFromValues(r.URL.Query())
	respondJSON(w, http.StatusOK, h.dashboard.Consensus(r.Context(), q))
}

// GetHeatmap returns the latest-view matrix
// GET /api/heatmap?asset_class=&manager=&subclass=&layout=subclass|manager
func (h *ViewsHandler) GetHeatmap(w http.ResponseWriter, r *http.Request) {
	q := dashboard.QueryFromValues(r.URL.Query())

	layout := r.URL.Query().Get("layout")
	if layout != "" && layout != "subclass" && layout != "manager" {
		respondError(w, http.StatusBadRequest, "layout must be 'subclass' or 'manager'")
		return
	}

	respondJSON(w, http.StatusOK, h.dashboard.Heatmap(r.Context(), q, layout == "manager"))
}

// GetTrajectory returns the history of one subclass
// GET /api/trajectory?subclass=EUA&manager=
func (h *ViewsHandler) GetTrajectory(w http.ResponseWriter, r *http.Request) {
	subclass := strings.TrimSpace(r.URL.Query().Get("subclass"))
	if subclass == "" {
		respondError(w, http.StatusBadRequest, "subclass is required")
		return
	}
	manager := strings.TrimSpace(r.URL.Query().Get("manager"))

	respondJSON(w, http.StatusOK, h.dashboard.Trajectory(r.Context(), subclass, manager))
}

// GetManagerViews returns the current views of one manager
// GET /api/managers/{manager}/views?asset_class=
func (h *ViewsHandler) GetManagerViews(w http.ResponseWriter, r *http.Request) {
	manager := mux.Vars(r)["manager"]
	q := dashboard.QueryFromValues(r.URL.Query())
	q.Managers = nil

	respondJSON(w, http.StatusOK, h.dashboard.CurrentViews(manager, q))
}

// Export writes the matching records in the tabular schema
// GET /api/export?asset_class=&manager=&subclass=
func (h *ViewsHandler) Export(w http.ResponseWriter, r *http.Request) {
	records, _ := h.dashboard.Records(dashboard.QueryFromValues(r.URL.Query()))

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="dados_mercado.csv"`)
	w.WriteHeader(http.StatusOK)

	if err := tabular.WriteViews(w, records); err != nil {
		h.logger.WithError(err).Error("Failed to write export")
	}
}

// readBatch decodes a raw batch from JSON (default) or CSV
func (h *ViewsHandler) readBatch(w http.ResponseWriter, r *http.Request) ([]contracts.RawRecord, bool) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "text/csv") {
		batch, err := tabular.ReadViews(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid CSV: "+err.Error())
			return nil, false
		}
		return batch, true
	}

	var batch []contracts.RawRecord
	if !decodeJSON(w, r, &batch) {
		return nil, false
	}
	return batch, true
}

// Reload rereads the source of record
// POST /api/reload
func (h *ViewsHandler) Reload(w http.ResponseWriter, r *http.Request) {
	result, err := h.store.Load(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Reload failed")
		respondError(w, http.StatusInternalServerError, "Failed to reload records")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// Health reports store state for the health endpoint
func (h *ViewsHandler) Health() map[string]interface{} {
	return map[string]interface{}{
		"backend": h.store.Backend(),
		"records": h.store.Len(),
		"version": h.store.Version(),
		"scale":   h.validator.Scale().Name(),
	}
}
