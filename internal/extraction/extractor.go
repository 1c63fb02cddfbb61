package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/marketviews/internal/contracts"
	"github.com/wonny/marketviews/internal/viewscale"
	"github.com/wonny/marketviews/pkg/logger"
	"github.com/wonny/marketviews/pkg/metrics"
)

// Failure reasons reported by UpstreamError
const (
	ReasonModel   = "model"
	ReasonTimeout = "timeout"
	ReasonDecode  = "decode"
	ReasonEmpty   = "empty"
)

// UpstreamError means the model failed or produced unusable output.
// Raw holds whatever the model returned, for manual inspection.
type UpstreamError struct {
	RequestID string
	Reason    string
	Raw       string
	Err       error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream extraction failed (%s): %v", e.Reason, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Request is one extraction job
type Request struct {
	Manager string
	Text    string
	// Today fills a missing report date in the prompt; zero means now
	Today time.Time
}

// Result holds the untrusted candidate batch and the raw model output
type Result struct {
	RequestID  string                `json:"request_id"`
	Manager    string                `json:"manager"`
	Model      string                `json:"model"`
	Candidates []contracts.RawRecord `json:"candidates"`
	Raw        string                `json:"raw"`
}

// Extractor turns report text into candidate records. It never writes
// to the store: candidates go to validation and review.
type Extractor struct {
	model   contracts.TextModel
	scale   *viewscale.Scale
	timeout time.Duration
	metrics *metrics.Metrics
	log     *logger.Logger
}

// NewExtractor creates an extractor; timeout bounds each model call
func NewExtractor(model contracts.TextModel, scale *viewscale.Scale, timeout time.Duration, m *metrics.Metrics, log *logger.Logger) *Extractor {
	return &Extractor{
		model:   model,
		scale:   scale,
		timeout: timeout,
		metrics: m,
		log:     log.Component("extraction"),
	}
}

// Extract prompts the model and parses its output
func (e *Extractor) Extract(ctx context.Context, req Request) (*Result, error) {
	requestID := uuid.NewString()
	log := e.log.WithFields(map[string]interface{}{
		"request_id": requestID,
		"manager":    req.Manager,
	})

	if strings.TrimSpace(req.Manager) == "" {
		return nil, fmt.Errorf("manager is required")
	}
	if strings.TrimSpace(req.Text) == "" {
		return nil, fmt.Errorf("report text is empty")
	}

	today := req.Today
	if today.IsZero() {
		today = time.Now()
	}
	prompt := BuildPrompt(req.Text, req.Manager, e.scale, today)

	callCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := time.Now()
	raw, err := e.model.Generate(callCtx, prompt)
	if err != nil {
		reason := ReasonModel
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			reason = ReasonTimeout
		}
		return nil, e.fail(log, requestID, reason, raw, err)
	}

	candidates, err := ParseCandidates(raw, req.Manager)
	if err != nil {
		return nil, e.fail(log, requestID, ReasonDecode, raw, err)
	}
	if len(candidates) == 0 {
		return nil, e.fail(log, requestID, ReasonEmpty, raw, errors.New("model returned no records"))
	}

	log.WithFields(map[string]interface{}{
		"candidates": len(candidates),
		"duration":   time.Since(start),
	}).Info("extraction completed")

	return &Result{
		RequestID:  requestID,
		Manager:    req.Manager,
		Model:      e.model.Name(),
		Candidates: candidates,
		Raw:        raw,
	}, nil
}

func (e *Extractor) fail(log *logger.Logger, requestID, reason, raw string, err error) error {
	e.metrics.IncrementExtractionFailure(reason)
	log.WithError(err).WithField("reason", reason).Warn("extraction failed")
	return &UpstreamError{RequestID: requestID, Reason: reason, Raw: raw, Err: err}
}

// ParseCandidates decodes model output into raw records. It accepts a
// JSON array, optionally inside a Markdown fence, or an object wrapping
// the array under "records". Missing managers are set to manager.
func ParseCandidates(raw, manager string) ([]contracts.RawRecord, error) {
	body := stripFence(raw)
	if body == "" {
		return nil, errors.New("empty model output")
	}

	var records []contracts.RawRecord
	if strings.HasPrefix(body, "{") {
		var wrapped struct {
			Records []contracts.RawRecord `json:"records"`
		}
		if err := decodeStrict(body, &wrapped); err != nil {
			return nil, err
		}
		records = wrapped.Records
	} else if err := decodeStrict(body, &records); err != nil {
		return nil, err
	}

	for i := range records {
		if strings.TrimSpace(records[i].Manager) == "" {
			records[i].Manager = manager
		}
	}
	return records, nil
}

func decodeStrict(body string, dest interface{}) error {
	dec := json.NewDecoder(strings.NewReader(body))
	if err := dec.Decode(dest); err != nil {
		return fmt.Errorf("decode model output: %w", err)
	}
	if dec.More() {
		return errors.New("decode model output: trailing data after JSON value")
	}
	return nil
}

// stripFence removes a surrounding ``` or ```json fence
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	if i := strings.LastIndex(s, "```"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
