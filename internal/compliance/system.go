package compliance

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/compliance-sentinel/sentinel/internal/audit"
	"github.com/compliance-sentinel/sentinel/internal/memorybank"
	"github.com/compliance-sentinel/sentinel/internal/metrics"
	"github.com/compliance-sentinel/sentinel/internal/tickets"
	"github.com/compliance-sentinel/sentinel/pipeline"
	"github.com/compliance-sentinel/sentinel/pkg/storage"
)

// Options tunes the service layer.
type Options struct {
	// MaxConcurrent bounds how many documents run through the pipeline at
	// once; further submissions queue.
	MaxConcurrent int

	// HashUploaderIDs replaces uploader ids with a truncated digest before
	// they enter pipeline metadata or the audit trail.
	HashUploaderIDs bool
}

// System coordinates document processing end to end.
type System struct {
	runtime *pipeline.Runtime
	jobs    *StatusStore
	trail   *audit.Trail
	metrics *metrics.Metrics
	tickets tickets.System
	memory  *memorybank.Bank
	storage storage.System
	logger  *slog.Logger
	opts    Options

	sem chan struct{}
	wg  sync.WaitGroup
}

// New creates the compliance system. Metrics may be nil in tests.
func New(
	rt *pipeline.Runtime,
	trail *audit.Trail,
	m *metrics.Metrics,
	ticketSys tickets.System,
	memory *memorybank.Bank,
	store storage.System,
	logger *slog.Logger,
	opts Options,
) *System {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 4
	}

	return &System{
		runtime: rt,
		jobs:    NewStatusStore(),
		trail:   trail,
		metrics: m,
		tickets: ticketSys,
		memory:  memory,
		storage: store,
		logger:  logger.With("system", "compliance"),
		opts:    opts,
		sem:     make(chan struct{}, opts.MaxConcurrent),
	}
}

// Jobs exposes the status store for handlers and tests.
func (s *System) Jobs() *StatusStore {
	return s.jobs
}

// SubmitCommand carries one uploaded document.
type SubmitCommand struct {
	Filename    string
	ContentType string
	Data        []byte
	UploaderID  string
	Department  string

	// Text carries pre-extracted document text for binary formats such as
	// PDF. Text-based uploads can leave it empty.
	Text string

	// DocumentID optionally fixes the processing id; must be a UUID.
	DocumentID string
}

// Submit validates and stores the upload, registers a queued job, and
// starts background processing. It returns the processing id immediately.
func (s *System) Submit(ctx context.Context, cmd SubmitCommand) (string, error) {
	if len(cmd.Data) == 0 {
		return "", fmt.Errorf("%w: empty file", ErrInvalidUpload)
	}

	documentID := uuid.New()
	if cmd.DocumentID != "" {
		parsed, err := uuid.Parse(cmd.DocumentID)
		if err != nil {
			return "", fmt.Errorf("%w: document_id must be a UUID", ErrInvalidUpload)
		}
		documentID = parsed
	}
	processingID := documentID.String()

	contentType := detectContentType(cmd.ContentType, cmd.Data)
	text := cmd.Text
	if text == "" {
		extracted, err := extractText(cmd.Data, contentType)
		if err != nil {
			return "", err
		}
		text = extracted
	}

	metadata := map[string]string{
		"uploader_id": s.uploaderID(cmd.UploaderID),
		"department":  department(cmd.Department),
		"filename":    cmd.Filename,
	}
	if count := pdfPageCount(s.logger, cmd.Data, contentType); count > 0 {
		metadata["page_count"] = strconv.Itoa(count)
	}

	key := path.Join("originals", processingID, sanitizeFilename(cmd.Filename))
	if err := s.storage.Upload(ctx, key, bytes.NewReader(cmd.Data), contentType); err != nil {
		return "", fmt.Errorf("store original: %w", err)
	}

	// The job outlives the upload request; only explicit cancellation or
	// process shutdown stops it.
	jobCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	if err := s.jobs.create(processingID, cancel); err != nil {
		cancel()
		return "", err
	}

	s.wg.Add(1)
	go s.process(jobCtx, cancel, processingID, documentID, text, metadata)

	s.logger.InfoContext(
		ctx, "document submitted",
		"processing_id", processingID,
		"filename", cmd.Filename,
		"content_type", contentType,
	)

	return processingID, nil
}

func (s *System) process(
	ctx context.Context,
	cancel context.CancelFunc,
	processingID string,
	documentID uuid.UUID,
	text string,
	metadata map[string]string,
) {
	defer s.wg.Done()
	defer cancel()

	select {
	case s.sem <- struct{}{}:
		defer func() { <-s.sem }()
	case <-ctx.Done():
		s.jobs.cancelled(processingID)
		return
	}

	s.jobs.setProcessing(processingID)
	started := time.Now()

	dc := pipeline.NewContext(documentID, text, metadata)
	res, err := pipeline.Execute(ctx, s.runtime, dc)
	if err != nil {
		if errors.Is(err, pipeline.ErrCancelled) {
			s.logger.Info("processing cancelled", "processing_id", processingID)
			s.jobs.cancelled(processingID)
			return
		}
		s.logger.Error("processing failed", "processing_id", processingID, "error", err)
		s.jobs.fail(processingID, err)
		return
	}

	s.jobs.complete(processingID, res)
	s.metrics.RecordResult(res, time.Since(started))
	s.publish(processingID, res, text)

	s.logger.Info(
		"document processed",
		"processing_id", processingID,
		"decision", res.ApprovalDecision,
		"violations", len(res.Violations),
		"duration", time.Since(started),
	)
}

// publish fans a completed result out to the audit trail, the violation
// memory, and ticketing. All of it is best effort: the result is already
// durable in the status store.
func (s *System) publish(processingID string, res *pipeline.Result, text string) {
	ctx, cancelPublish := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelPublish()

	if err := s.trail.Save(ctx, processingID, res, text); err != nil {
		s.logger.Error("audit trail save failed", "processing_id", processingID, "error", err)
	}

	for i, v := range res.Violations {
		s.memory.StoreViolation(fmt.Sprintf("%s-%d", processingID, i), v)
	}

	if res.ApprovalDecision == pipeline.OutcomeRequireReview {
		summary := fmt.Sprintf("%d violations, score %d: %s", len(res.Violations), res.ViolationScore, res.ApprovalReason)
		if _, err := s.tickets.Create(ctx, tickets.CreateCommand{
			DocumentID:       res.DocumentID.String(),
			ProcessingID:     processingID,
			ViolationSummary: summary,
			Severity:         topSeverity(res.Violations),
		}); err != nil {
			s.logger.Error("review ticket creation failed", "processing_id", processingID, "error", err)
		}
	}
}

// Drain blocks until in-flight jobs finish or the context expires. Wired
// as a shutdown hook.
func (s *System) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("drain jobs: %w", ctx.Err())
	}
}

func (s *System) uploaderID(id string) string {
	if id == "" {
		id = "anonymous"
	}
	if !s.opts.HashUploaderIDs {
		return id
	}

	sum := sha256.Sum256([]byte(id))
	return hex.EncodeToString(sum[:])[:16]
}

func department(d string) string {
	if d == "" {
		return "unknown"
	}
	return d
}

func topSeverity(violations []pipeline.Violation) string {
	for _, sev := range pipeline.Severities {
		for _, v := range violations {
			if v.Severity == sev {
				return string(sev)
			}
		}
	}
	return string(pipeline.SeverityLow)
}

func detectContentType(header string, data []byte) string {
	if header != "" && header != "application/octet-stream" {
		return header
	}
	return http.DetectContentType(data)
}

// extractText accepts text-based formats. Binary formats without a
// caller-supplied text field are rejected up front rather than scanned as
// garbage.
func extractText(data []byte, contentType string) (string, error) {
	base := contentType
	if i := strings.Index(base, ";"); i >= 0 {
		base = strings.TrimSpace(base[:i])
	}

	switch {
	case strings.HasPrefix(base, "text/"),
		base == "application/json",
		base == "":
		return string(data), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, base)
	}
}

func pdfPageCount(logger *slog.Logger, data []byte, contentType string) int {
	if contentType != "application/pdf" {
		return 0
	}

	count, err := api.PageCount(bytes.NewReader(data), nil)
	if err != nil {
		logger.Warn("failed to extract PDF page count", "error", err)
		return 0
	}

	return count
}

func sanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "" || name == "." || name == "/" {
		return "upload"
	}
	return name
}
