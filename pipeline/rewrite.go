package pipeline

import (
	"context"
	"fmt"

	"github.com/JaimeStill/go-agents-orchestration/pkg/state"
)

const stageRewrite = "rewrite_generator"

const rewriteStyleHint = "Maintain professional tone"

// RewriteNode returns a state node that produces exactly one suggestion per
// violation, in violation order. PII violations always get a deterministic
// redaction with no external dependency. Every other kind extracts the
// span, redacts any overlapping PII so no raw PII reaches the generation
// collaborator, attaches policy and template context, and asks the
// collaborator for a fix; if the collaborator is unavailable the stage
// falls back to an identity suggestion rather than breaking the 1:1
// pairing with violations.
func RewriteNode(rt *Runtime) state.StateNode {
	return stageNode(rt, stageRewrite, func(ctx context.Context, s state.State) (state.State, error) {
		dc, err := extractContext(s)
		if err != nil {
			return s, fmt.Errorf("rewrite: %w", err)
		}

		suggestions := make([]Suggestion, 0, len(dc.Violations))
		for _, v := range dc.Violations {
			suggestions = append(suggestions, suggestFix(ctx, rt, dc, v))
		}

		dc.Suggestions = suggestions
		dc.AgentOutputs[stageRewrite] = StageOutput{
			Suggestions: len(suggestions),
		}

		rt.Logger.InfoContext(
			ctx, "rewrite node complete",
			"document_id", dc.DocumentID,
			"suggestions", len(suggestions),
		)

		return s.Set(KeyContext, dc), nil
	})
}

func suggestFix(ctx context.Context, rt *Runtime, dc *Context, v Violation) Suggestion {
	if v.Kind == KindPII {
		return Suggestion{
			ViolationRef: v.PIIType,
			SpanStart:    v.SpanStart,
			SpanEnd:      v.SpanEnd,
			OriginalText: v.Text,
			Replacement:  "[REDACTED]",
			Explanation:  []string{fmt.Sprintf("Redact %s to protect privacy", v.PIIType)},
			Redaction:    true,
		}
	}

	original := dc.DocumentText[v.SpanStart:v.SpanEnd]
	redacted := RedactSpan(dc.DocumentText, v.SpanStart, v.SpanEnd, dc.Violations)

	req := RewriteRequest{
		RedactedSpan: redacted,
		StyleHint:    rewriteStyleHint,
	}

	if v.RuleID != "" {
		if snippet, ok, err := rt.Memory.PolicySnippet(ctx, v.RuleID); err == nil && ok {
			req.PolicySnippet = snippet
		}
	}
	if matches, err := rt.Memory.SearchTemplates(ctx, redacted, 1); err == nil && len(matches) > 0 {
		req.TemplateSnippet = matches[0].Text
	}

	result, err := rt.Generator.GenerateRewrite(ctx, req)
	if err != nil {
		rt.Logger.WarnContext(
			ctx, "rewrite generation degraded to identity suggestion",
			"document_id", dc.DocumentID,
			"kind", v.Kind,
			"error", err,
		)
		return Suggestion{
			ViolationRef: violationRef(v),
			SpanStart:    v.SpanStart,
			SpanEnd:      v.SpanEnd,
			OriginalText: original,
			Replacement:  original,
			Explanation:  []string{"No change: rewrite generation unavailable"},
		}
	}

	return Suggestion{
		ViolationRef: violationRef(v),
		SpanStart:    v.SpanStart,
		SpanEnd:      v.SpanEnd,
		OriginalText: original,
		Replacement:  result.Replacement,
		Explanation:  result.Explanation,
		Citations:    result.Citations,
		Redaction:    result.Redaction,
	}
}

func violationRef(v Violation) string {
	switch {
	case v.RuleID != "":
		return v.RuleID
	case v.PIIType != "":
		return v.PIIType
	default:
		return string(v.Kind)
	}
}
