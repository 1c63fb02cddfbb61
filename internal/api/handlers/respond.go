package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wonny/marketviews/internal/contracts"
	"github.com/wonny/marketviews/internal/extraction"
)

// maxBodyBytes bounds JSON and CSV request bodies
const maxBodyBytes = 4 << 20

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// ValidationResponse lists every schema violation of a rejected batch
type ValidationResponse struct {
	Error  string                 `json:"error"`
	Rows   []int                  `json:"rows"`
	Errors []contracts.FieldError `json:"errors"`
}

// UpstreamResponse describes a failed extraction; Raw is the model output
type UpstreamResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id"`
	Reason    string `json:"reason"`
	Raw       string `json:"raw"`
}

// respondFailure maps the error taxonomy onto status codes
func respondFailure(w http.ResponseWriter, err error, fallback string) bool {
	var batchErr *contracts.BatchError
	if errors.As(err, &batchErr) {
		respondJSON(w, http.StatusUnprocessableEntity, ValidationResponse{
			Error:  "schema violation",
			Rows:   batchErr.Rows(),
			Errors: batchErr.Errors,
		})
		return true
	}

	var upstream *extraction.UpstreamError
	if errors.As(err, &upstream) {
		respondJSON(w, http.StatusBadGateway, UpstreamResponse{
			Error:     upstream.Error(),
			RequestID: upstream.RequestID,
			Reason:    upstream.Reason,
			Raw:       upstream.Raw,
		})
		return true
	}

	if err != nil {
		respondError(w, http.StatusInternalServerError, fallback)
		return true
	}
	return false
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}
