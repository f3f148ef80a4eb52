package pipeline

import (
	"context"
	"fmt"
	"strings"
)

const ScannerTemplateDrift = "template_detector"

// DriftThreshold is the similarity below which a chunk is flagged as
// drifting from its closest canonical template.
const DriftThreshold = 0.7

const minChunkLength = 50

// TemplateDriftScanner compares paragraph chunks against canonical
// templates in the retrieval collaborator and flags chunks whose best
// match falls under the drift threshold. Retrieval failure fails the
// scanner; the fan-out executor degrades it to an empty contribution.
type TemplateDriftScanner struct {
	memory Memory
}

// NewTemplateDriftScanner creates a drift scanner backed by the given
// retrieval collaborator.
func NewTemplateDriftScanner(memory Memory) *TemplateDriftScanner {
	return &TemplateDriftScanner{memory: memory}
}

func (s *TemplateDriftScanner) Name() string { return ScannerTemplateDrift }

func (s *TemplateDriftScanner) Scan(ctx context.Context, snap Snapshot) ([]Violation, StageOutput, error) {
	chunks := splitChunks(snap.DocumentText)

	var violations []Violation
	for idx, chunk := range chunks {
		matches, err := s.memory.SearchTemplates(ctx, chunk, 1)
		if err != nil {
			return nil, StageOutput{}, fmt.Errorf("%w: search templates: %w", ErrCollaboratorUnavailable, err)
		}

		start := strings.Index(snap.DocumentText, chunk)
		end := start + len(chunk)

		if len(matches) == 0 {
			violations = append(violations, Violation{
				Kind:       KindTemplateDrift,
				Severity:   SeverityLow,
				SpanStart:  start,
				SpanEnd:    end,
				Message:    "No matching template found",
				ChunkIndex: idx,
				Threshold:  DriftThreshold,
			})
			continue
		}

		similarity := matches[0].Similarity
		if similarity >= DriftThreshold {
			continue
		}

		severity := SeverityHigh
		if similarity > 0.5 {
			severity = SeverityMedium
		}

		violations = append(violations, Violation{
			Kind:       KindTemplateDrift,
			Severity:   severity,
			SpanStart:  start,
			SpanEnd:    end,
			Message:    fmt.Sprintf("Chunk deviates from template (similarity: %.2f)", similarity),
			ChunkIndex: idx,
			Similarity: similarity,
			Threshold:  DriftThreshold,
		})
	}

	return violations, StageOutput{
		ChunksChecked:   len(chunks),
		ViolationsFound: len(violations),
	}, nil
}

func splitChunks(text string) []string {
	var chunks []string
	for _, p := range strings.Split(text, "\n\n") {
		p = strings.TrimSpace(p)
		if len(p) > minChunkLength {
			chunks = append(chunks, p)
		}
	}
	return chunks
}
