package handlers

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/marketviews/internal/contracts"
	"github.com/wonny/marketviews/internal/extraction"
	"github.com/wonny/marketviews/internal/review"
	"github.com/wonny/marketviews/pkg/logger"
)

// maxUploadBytes bounds an uploaded report
const maxUploadBytes = 20 << 20

// Extractor prompts a model for candidate records
type Extractor interface {
	Extract(ctx context.Context, req extraction.Request) (*extraction.Result, error)
}

// ReviewHandler runs extraction uploads and the review workflow
type ReviewHandler struct {
	extractor Extractor // nil when no model is configured
	queue     *review.Queue
	logger    *logger.Logger
}

// NewReviewHandler creates a new review handler
func NewReviewHandler(extractor Extractor, queue *review.Queue, log *logger.Logger) *ReviewHandler {
	return &ReviewHandler{
		extractor: extractor,
		queue:     queue,
		logger:    log,
	}
}

// Extract reads an uploaded report, prompts the model and queues the candidates
// POST /api/extractions (multipart: manager, file or text)
func (h *ReviewHandler) Extract(w http.ResponseWriter, r *http.Request) {
	if h.extractor == nil {
		respondError(w, http.StatusServiceUnavailable, "Extraction is not configured")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	manager := strings.TrimSpace(r.FormValue("manager"))
	if manager == "" {
		respondError(w, http.StatusBadRequest, "manager is required")
		return
	}

	text, source, err := h.readReport(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.extractor.Extract(r.Context(), extraction.Request{
		Manager: manager,
		Text:    text,
		Today:   time.Now(),
	})
	if err != nil {
		var upstream *extraction.UpstreamError
		if !errors.As(err, &upstream) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		respondFailure(w, err, "Extraction failed")
		return
	}

	batch := h.queue.Submit(manager, source, result.Candidates, result.Raw)
	h.logger.WithFields(map[string]interface{}{
		"batch_id":   batch.ID,
		"request_id": result.RequestID,
		"candidates": len(batch.Candidates),
		"errors":     len(batch.Errors),
	}).Info("Extraction queued for review")

	respondJSON(w, http.StatusCreated, batch)
}

// readReport returns the report text from the file part or the text field
func (h *ReviewHandler) readReport(r *http.Request) (string, string, error) {
	file, header, err := r.FormFile("file")
	if err == http.ErrMissingFile {
		text := strings.TrimSpace(r.FormValue("text"))
		if text == "" {
			return "", "", errors.New("file or text is required")
		}
		return text, "text", nil
	}
	if err != nil {
		return "", "", errors.New("invalid file upload")
	}
	defer file.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, file); err != nil {
		return "", "", errors.New("failed to read upload")
	}

	kind := extraction.DetectKind(header.Filename, header.Header.Get("Content-Type"))
	text, err := extraction.ReadText(kind, buf.Bytes())
	if err != nil {
		h.logger.WithError(err).WithField("filename", header.Filename).Warn("Failed to read report text")
		return "", "", errors.New("could not read text from " + header.Filename)
	}
	return text, header.Filename, nil
}

// SubmitRequest is a manually pasted candidate batch
type SubmitRequest struct {
	Manager    string                `json:"manager"`
	Source     string                `json:"source"`
	Candidates []contracts.RawRecord `json:"candidates"`
}

// Submit queues a candidate batch given directly as JSON
// POST /api/reviews
func (h *ReviewHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Candidates) == 0 {
		respondError(w, http.StatusBadRequest, "candidates are required")
		return
	}

	source := req.Source
	if source == "" {
		source = "manual"
	}

	respondJSON(w, http.StatusCreated, h.queue.Submit(strings.TrimSpace(req.Manager), source, req.Candidates, ""))
}

// ListReviews lists batches, newest first
// GET /api/reviews?status=pending
func (h *ReviewHandler) ListReviews(w http.ResponseWriter, r *http.Request) {
	status := review.Status(r.URL.Query().Get("status"))
	switch status {
	case "", review.StatusPending, review.StatusApproved, review.StatusRejected:
	default:
		respondError(w, http.StatusBadRequest, "status must be pending, approved or rejected")
		return
	}

	batches := h.queue.List(status)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(batches),
		"batches": batches,
	})
}

// GetReview returns one batch
// GET /api/reviews/{id}
func (h *ReviewHandler) GetReview(w http.ResponseWriter, r *http.Request) {
	batch, err := h.queue.Get(mux.Vars(r)["id"])
	if err != nil {
		h.respondQueueError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, batch)
}

// UpdateRequest replaces the candidates of a pending batch
type UpdateRequest struct {
	Candidates []contracts.RawRecord `json:"candidates"`
}

// UpdateReview stores reviewer edits and revalidates
// PUT /api/reviews/{id}
func (h *ReviewHandler) UpdateReview(w http.ResponseWriter, r *http.Request) {
	var req UpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	batch, err := h.queue.Update(mux.Vars(r)["id"], req.Candidates)
	if err != nil {
		h.respondQueueError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, batch)
}

// Approve appends a pending batch to the store
// POST /api/reviews/{id}/approve
func (h *ReviewHandler) Approve(w http.ResponseWriter, r *http.Request) {
	batch, err := h.queue.Approve(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		var batchErr *contracts.BatchError
		if errors.As(err, &batchErr) {
			respondJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
				"error": "schema violation",
				"batch": batch,
			})
			return
		}
		h.respondQueueError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, batch)
}

// RejectRequest carries an optional reviewer note
type RejectRequest struct {
	Reason string `json:"reason"`
}

// Reject discards a pending batch
// POST /api/reviews/{id}/reject
func (h *ReviewHandler) Reject(w http.ResponseWriter, r *http.Request) {
	var req RejectRequest
	if r.ContentLength > 0 && !decodeJSON(w, r, &req) {
		return
	}

	batch, err := h.queue.Reject(mux.Vars(r)["id"], req.Reason)
	if err != nil {
		h.respondQueueError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, batch)
}

// ExportReview writes a validated batch as tabular rows
// GET /api/reviews/{id}/export?header=false
func (h *ReviewHandler) ExportReview(w http.ResponseWriter, r *http.Request) {
	header := r.URL.Query().Get("header") != "false"

	var buf bytes.Buffer
	if err := h.queue.Export(mux.Vars(r)["id"], &buf, header); err != nil {
		h.respondQueueError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="revisao.csv"`)
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func (h *ReviewHandler) respondQueueError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, review.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, review.ErrNotPending):
		respondError(w, http.StatusConflict, err.Error())
	default:
		h.logger.WithError(err).Warn("Review operation failed")
		respondFailure(w, err, "Review operation failed")
	}
}
