// Package audit persists the reviewable record of each pipeline run: the
// machine-readable result, per-stage outputs, the original text, a rendered
// diff of proposed fixes, and the fixed document when one was produced.
// Artifacts are blobs; the bundle endpoint zips them on demand.
package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"sort"

	"github.com/compliance-sentinel/sentinel/pipeline"
	"github.com/compliance-sentinel/sentinel/pkg/storage"
)

const (
	fileResult   = "result.json"
	fileOutputs  = "agent_outputs.json"
	fileOriginal = "original.txt"
	fileDiff     = "diff.html"
	fileFixed    = "final_document.txt"
)

// artifactFiles is every artifact a run can produce, in bundle order.
var artifactFiles = []string{fileResult, fileOutputs, fileOriginal, fileDiff, fileFixed}

// Trail writes and bundles audit artifacts for completed runs.
type Trail struct {
	storage storage.System
	logger  *slog.Logger
}

// New creates an audit trail backed by the given blob storage.
func New(store storage.System, logger *slog.Logger) *Trail {
	return &Trail{
		storage: store,
		logger:  logger.With("system", "audit"),
	}
}

func blobKey(processingID, name string) string {
	return path.Join("audit", processingID, name)
}

// Save writes the full artifact set for a completed run. The diff is only
// written when suggestions exist; the fixed document only when the decision
// was Auto-Fix.
func (t *Trail) Save(ctx context.Context, processingID string, res *pipeline.Result, documentText string) error {
	resultJSON, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	outputsJSON, err := json.MarshalIndent(res.AgentOutputs, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal agent outputs: %w", err)
	}

	artifacts := []struct {
		name        string
		contentType string
		data        []byte
	}{
		{fileResult, "application/json", resultJSON},
		{fileOutputs, "application/json", outputsJSON},
		{fileOriginal, "text/plain", []byte(documentText)},
	}

	if len(res.Suggestions) > 0 {
		modified := ApplyFixes(documentText, res.Suggestions)
		artifacts = append(artifacts, struct {
			name        string
			contentType string
			data        []byte
		}{fileDiff, "text/html", renderDiff(documentText, modified)})

		if res.ApprovalDecision == pipeline.OutcomeAutoFix {
			artifacts = append(artifacts, struct {
				name        string
				contentType string
				data        []byte
			}{fileFixed, "text/plain", []byte(modified)})
		}
	}

	for _, a := range artifacts {
		key := blobKey(processingID, a.name)
		if err := t.storage.Upload(ctx, key, bytes.NewReader(a.data), a.contentType); err != nil {
			return fmt.Errorf("upload %s: %w", key, err)
		}
	}

	t.logger.InfoContext(
		ctx, "audit trail saved",
		"processing_id", processingID,
		"artifacts", len(artifacts),
	)

	return nil
}

// Bundle zips every artifact present for a run and returns the archive
// bytes. Returns storage.ErrNotFound when no artifacts exist.
func (t *Trail) Bundle(ctx context.Context, processingID string) ([]byte, error) {
	var buf bytes.Buffer
	found, err := t.writeZip(ctx, &buf, processingID)
	if err != nil {
		return nil, err
	}
	if found == 0 {
		return nil, fmt.Errorf("audit trail %s: %w", processingID, storage.ErrNotFound)
	}
	return buf.Bytes(), nil
}

// ApplyFixes applies suggestion replacements to the original text. Spans
// are applied in descending start order so earlier offsets stay valid while
// later spans are rewritten.
func ApplyFixes(text string, suggestions []pipeline.Suggestion) string {
	sorted := make([]pipeline.Suggestion, len(suggestions))
	copy(sorted, suggestions)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].SpanStart > sorted[j].SpanStart
	})

	for _, sg := range sorted {
		start, end := sg.SpanStart, sg.SpanEnd
		if start < 0 || end > len(text) || start > end {
			continue
		}
		text = text[:start] + sg.Replacement + text[end:]
	}

	return text
}
