package handlers

import (
	"net/http"
	"time"

	"github.com/wonny/marketviews/internal/contracts"
	"github.com/wonny/marketviews/internal/hub"
)

// HubHandler serves the KPI and risk/opportunity tables
type HubHandler struct {
	hub *hub.Hub
}

// NewHubHandler creates a new hub handler
func NewHubHandler(h *hub.Hub) *HubHandler {
	return &HubHandler{hub: h}
}

// GetKPIs returns the macro indicators
// GET /api/hub/kpis
func (h *HubHandler) GetKPIs(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"kpis":      h.hub.KPIs(),
		"loaded_at": h.hub.LoadedAt(),
	})
}

// SignalsResponse splits the annotations by type
type SignalsResponse struct {
	Risks         []contracts.Signal `json:"risks"`
	Opportunities []contracts.Signal `json:"opportunities"`
	LoadedAt      time.Time          `json:"loaded_at"`
}

// GetSignals returns risks and opportunities, highest score first
// GET /api/hub/signals
func (h *HubHandler) GetSignals(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, SignalsResponse{
		Risks:         h.hub.Risks(),
		Opportunities: h.hub.Opportunities(),
		LoadedAt:      h.hub.LoadedAt(),
	})
}

// Reload rereads the KPI and signal tables
// POST /api/hub/reload
func (h *HubHandler) Reload(w http.ResponseWriter, r *http.Request) {
	if err := h.hub.Reload(); err != nil {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	h.GetSignals(w, r)
}
