package compliance

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/compliance-sentinel/sentinel/internal/audit"
	"github.com/compliance-sentinel/sentinel/pipeline"
	"github.com/compliance-sentinel/sentinel/pkg/handlers"
	"github.com/compliance-sentinel/sentinel/pkg/routes"
	"github.com/compliance-sentinel/sentinel/pkg/storage"
)

// Handler provides HTTP endpoints for document processing and audit
// retrieval.
type Handler struct {
	sys           *System
	trail         *audit.Trail
	logger        *slog.Logger
	maxUploadSize int64
}

// NewHandler creates a Handler with the given system, audit trail, logger,
// and upload size limit.
func NewHandler(sys *System, trail *audit.Trail, logger *slog.Logger, maxUploadSize int64) *Handler {
	return &Handler{
		sys:           sys,
		trail:         trail,
		logger:        logger.With("handler", "compliance"),
		maxUploadSize: maxUploadSize,
	}
}

// Routes returns the route group definition for processing endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/process",
		Routes: []routes.Route{
			{Method: "POST", Pattern: "", Handler: h.Submit},
			{Method: "GET", Pattern: "/{id}", Handler: h.Status},
			{Method: "POST", Pattern: "/{id}/cancel", Handler: h.Cancel},
		},
	}
}

// AuditRoutes returns the route group definition for audit endpoints.
func (h *Handler) AuditRoutes() routes.Group {
	return routes.Group{
		Prefix: "/audit",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "/{id}/download", Handler: h.DownloadAudit},
		},
	}
}

// SubmitResponse acknowledges an accepted upload.
type SubmitResponse struct {
	ProcessingID string `json:"processing_id"`
	Message      string `json:"message"`
}

// StatusResponse reports job progress; result fields are populated only
// once the job completes.
type StatusResponse struct {
	ProcessingID     string                          `json:"processing_id"`
	Status           JobStatus                       `json:"status"`
	DocumentType     string                          `json:"document_type,omitempty"`
	Violations       []pipeline.Violation            `json:"violations"`
	Suggestions      []pipeline.Suggestion           `json:"suggestions"`
	ApprovalDecision pipeline.Outcome                `json:"approval_decision,omitempty"`
	ApprovalReason   string                          `json:"approval_reason,omitempty"`
	ViolationScore   int                             `json:"violation_score"`
	AgentOutputs     map[string]pipeline.StageOutput `json:"agent_outputs"`
}

// Submit accepts a multipart upload and starts background processing. The
// form carries the file plus optional uploader_id, department, document_id,
// and pre-extracted text for binary formats.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		handlers.RespondError(w, h.logger, http.StatusRequestEntityTooLarge, ErrInvalidUpload)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrInvalidUpload)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrInvalidUpload)
		return
	}

	cmd := SubmitCommand{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
		UploaderID:  r.FormValue("uploader_id"),
		Department:  r.FormValue("department"),
		Text:        r.FormValue("text"),
		DocumentID:  r.FormValue("document_id"),
	}

	processingID, err := h.sys.Submit(r.Context(), cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, mapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusAccepted, SubmitResponse{
		ProcessingID: processingID,
		Message:      "Document uploaded and processing started",
	})
}

// Status returns the current state of a job by processing id.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	job, err := h.sys.Jobs().Find(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, mapHTTPStatus(err), err)
		return
	}

	if job.Status == StatusError {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, fmt.Errorf("processing error: %s", job.Error))
		return
	}

	resp := StatusResponse{
		ProcessingID: job.ProcessingID,
		Status:       job.Status,
		Violations:   []pipeline.Violation{},
		Suggestions:  []pipeline.Suggestion{},
		AgentOutputs: map[string]pipeline.StageOutput{},
	}

	if job.Status == StatusCompleted && job.Result != nil {
		res := job.Result
		resp.DocumentType = res.DocumentType
		resp.Violations = res.Violations
		resp.Suggestions = res.Suggestions
		resp.ApprovalDecision = res.ApprovalDecision
		resp.ApprovalReason = res.ApprovalReason
		resp.ViolationScore = res.ViolationScore
		resp.AgentOutputs = res.AgentOutputs
	}

	handlers.RespondJSON(w, http.StatusOK, resp)
}

// Cancel requests cooperative cancellation of a running job.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := h.sys.Jobs().Cancel(id); err != nil {
		handlers.RespondError(w, h.logger, mapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusAccepted, map[string]string{
		"processing_id": id,
		"message":       "Cancellation requested",
	})
}

// DownloadAudit streams the zipped audit bundle for a processed document.
func (h *Handler) DownloadAudit(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	bundle, err := h.trail.Bundle(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, mapHTTPStatus(err), err)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="audit_%s.zip"`, id))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(bundle); err != nil {
		h.logger.Error("write audit bundle", "processing_id", id, "error", err)
	}
}

func mapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrJobNotFound), errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidUpload), errors.Is(err, ErrUnsupportedFormat):
		return http.StatusBadRequest
	case errors.Is(err, ErrJobNotCancellable), errors.Is(err, ErrDuplicateJob):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
