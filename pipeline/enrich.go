package pipeline

import (
	"context"
	"fmt"

	"github.com/JaimeStill/go-agents-orchestration/pkg/state"
)

const stageEnrich = "enrichment"

const similarTopK = 3

// EnrichNode returns a state node that attaches retrieved context to each
// merged violation: the policy snippet for its rule id (absent is not an
// error) and up to three similar past violations. It builds a fresh list
// and replaces the context's violations wholesale only on full success;
// a retrieval failure partway leaves the pre-enrichment list intact and
// records an error marker instead of surfacing a half-enriched list.
// Order is preserved exactly; enrichment only adds fields.
func EnrichNode(rt *Runtime) state.StateNode {
	return stageNode(rt, stageEnrich, func(ctx context.Context, s state.State) (state.State, error) {
		dc, err := extractContext(s)
		if err != nil {
			return s, fmt.Errorf("enrich: %w", err)
		}

		enriched, enrichErr := enrichViolations(ctx, rt, dc.Violations)
		if enrichErr != nil {
			rt.Logger.WarnContext(
				ctx, "enrichment degraded, keeping pre-enrichment violations",
				"document_id", dc.DocumentID,
				"error", enrichErr,
			)
			dc.AgentOutputs[stageEnrich] = StageOutput{
				Error:           enrichErr.Error(),
				ViolationsFound: len(dc.Violations),
			}
			return s.Set(KeyContext, dc), nil
		}

		dc.Violations = enriched
		dc.AgentOutputs[stageEnrich] = StageOutput{
			ViolationsFound: len(enriched),
			Enriched:        len(enriched),
		}

		rt.Logger.InfoContext(
			ctx, "enrich node complete",
			"document_id", dc.DocumentID,
			"violations", len(enriched),
		)

		return s.Set(KeyContext, dc), nil
	})
}

func enrichViolations(ctx context.Context, rt *Runtime, violations []Violation) ([]Violation, error) {
	enriched := make([]Violation, 0, len(violations))

	for i, v := range violations {
		if v.RuleID != "" {
			snippet, ok, err := rt.Memory.PolicySnippet(ctx, v.RuleID)
			if err != nil {
				return nil, fmt.Errorf("%w: policy snippet %s: %w", ErrCollaboratorUnavailable, v.RuleID, err)
			}
			if ok {
				v.PolicySnippet = snippet
			}
		}

		lookup := v.Text
		if lookup == "" {
			lookup = v.Message
		}
		if lookup != "" {
			similar, err := rt.Memory.SearchViolations(ctx, lookup, similarTopK)
			if err != nil {
				return nil, fmt.Errorf("%w: search violations (index %d): %w", ErrCollaboratorUnavailable, i, err)
			}
			v.SimilarViolations = similar
		}

		enriched = append(enriched, v)
	}

	return enriched, nil
}
