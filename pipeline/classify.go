package pipeline

import (
	"context"
	"fmt"

	"github.com/JaimeStill/go-agents-orchestration/pkg/state"
)

// ClassifyTruncate bounds classification cost on huge documents: only the
// first ClassifyTruncate bytes are sent to the classifier.
const ClassifyTruncate = 1000

const stageClassifier = "classifier"

// ClassifyNode returns a state node that labels the document type from a
// bounded prefix of the text. Classification is idempotent: the same text
// always yields the same label and confidence. A classifier failure
// degrades to the unknown label so later stages still run; an unknown
// document simply has fewer applicable rules.
func ClassifyNode(rt *Runtime) state.StateNode {
	return stageNode(rt, stageClassifier, func(ctx context.Context, s state.State) (state.State, error) {
		dc, err := extractContext(s)
		if err != nil {
			return s, fmt.Errorf("classify: %w", err)
		}

		cls, clsErr := classify(ctx, rt, dc.DocumentText)
		if clsErr != nil {
			rt.Logger.WarnContext(
				ctx, "classifier degraded to unknown",
				"document_id", dc.DocumentID,
				"error", clsErr,
			)
			dc.AgentOutputs[stageClassifier] = StageOutput{
				Error:        clsErr.Error(),
				DocumentType: DocTypeUnknown,
			}
			dc.DocumentType = DocTypeUnknown
			dc.Confidence = 0
			return s.Set(KeyContext, dc), nil
		}

		dc.DocumentType = cls.Label
		dc.Confidence = cls.Confidence
		dc.Metadata["document_type"] = cls.Label
		dc.AgentOutputs[stageClassifier] = StageOutput{
			DocumentType: cls.Label,
			Confidence:   cls.Confidence,
		}

		rt.Logger.InfoContext(
			ctx, "classify node complete",
			"document_id", dc.DocumentID,
			"document_type", cls.Label,
			"confidence", cls.Confidence,
		)

		return s.Set(KeyContext, dc), nil
	})
}

func classify(ctx context.Context, rt *Runtime, text string) (Classification, error) {
	if len(text) > ClassifyTruncate {
		text = text[:ClassifyTruncate]
	}

	cls, err := rt.Generator.Classify(ctx, text)
	if err != nil {
		return Classification{}, &DetectorError{Stage: stageClassifier, Err: err}
	}

	if !documentTypes[cls.Label] {
		cls.Label = DocTypeUnknown
	}
	if cls.Confidence < 0 {
		cls.Confidence = 0
	}
	if cls.Confidence > 1 {
		cls.Confidence = 1
	}

	return cls, nil
}

func extractContext(s state.State) (*Context, error) {
	val, ok := s.Get(KeyContext)
	if !ok {
		return nil, fmt.Errorf("missing %s in state", KeyContext)
	}

	dc, ok := val.(*Context)
	if !ok {
		return nil, fmt.Errorf("%s is not *Context", KeyContext)
	}

	return dc, nil
}
