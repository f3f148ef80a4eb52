package pipeline

import (
	"context"
	"fmt"

	"github.com/JaimeStill/go-agents-orchestration/pkg/state"
)

const stageApproval = "approval_scorer"

// ApprovalPolicy holds the severity weights and decision thresholds. These
// are business policy: configurable, but the defaults must not drift
// without product input.
type ApprovalPolicy struct {
	Weights          map[Severity]int
	AutoFixThreshold int
	ReviewThreshold  int
}

// DefaultApprovalPolicy returns the standard weights (critical=10, high=5,
// medium=2, low=1) and thresholds (auto-fix <=2, review <=5).
func DefaultApprovalPolicy() ApprovalPolicy {
	return ApprovalPolicy{
		Weights: map[Severity]int{
			SeverityCritical: 10,
			SeverityHigh:     5,
			SeverityMedium:   2,
			SeverityLow:      1,
		},
		AutoFixThreshold: 2,
		ReviewThreshold:  5,
	}
}

// Weight returns the weight for a severity; unknown or missing severities
// count as low.
func (p ApprovalPolicy) Weight(s Severity) int {
	if w, ok := p.Weights[s]; ok {
		return w
	}
	return p.Weights[SeverityLow]
}

// ComputeDecision is the approval decision engine: a pure function of the
// final violation and suggestion lists. The decision table is evaluated in
// order, first match wins. An auto-fix-eligible score with zero suggestions
// falls through to review, never to approval. A document with unresolved
// violations is not auto-approved just because no fixes were generated.
func ComputeDecision(policy ApprovalPolicy, violations []Violation, suggestions []Suggestion) Decision {
	counts := map[Severity]int{
		SeverityCritical: 0,
		SeverityHigh:     0,
		SeverityMedium:   0,
		SeverityLow:      0,
	}

	score := 0
	for _, v := range violations {
		score += policy.Weight(v.Severity)

		bucket := v.Severity
		if _, ok := counts[bucket]; !ok {
			bucket = SeverityLow
		}
		counts[bucket]++
	}

	var (
		outcome Outcome
		reason  string
	)
	switch {
	case score == 0:
		outcome = OutcomeAutoApprove
		reason = "No violations detected"
	case score <= policy.AutoFixThreshold && len(suggestions) > 0:
		outcome = OutcomeAutoFix
		reason = fmt.Sprintf("Low severity violations (%d points) with available fixes", score)
	case score <= policy.ReviewThreshold:
		outcome = OutcomeRequireReview
		reason = fmt.Sprintf("Medium severity violations (%d points) require human review", score)
	default:
		outcome = OutcomeReject
		reason = fmt.Sprintf("High severity violations (%d points) cannot be auto-fixed", score)
	}

	return Decision{
		Outcome: outcome,
		Reason:  reason,
		Score:   score,
		Counts:  counts,
	}
}

// ApproveNode returns a state node that computes the terminal approval
// decision. No I/O; cannot fail except for missing state.
func ApproveNode(rt *Runtime) state.StateNode {
	return stageNode(rt, stageApproval, func(ctx context.Context, s state.State) (state.State, error) {
		dc, err := extractContext(s)
		if err != nil {
			return s, fmt.Errorf("approve: %w", err)
		}

		decision := ComputeDecision(rt.Approval, dc.Violations, dc.Suggestions)
		dc.Decision = &decision
		dc.AgentOutputs[stageApproval] = StageOutput{
			ViolationsFound: len(dc.Violations),
			Decision:        &decision,
		}

		rt.Logger.InfoContext(
			ctx, "approve node complete",
			"document_id", dc.DocumentID,
			"decision", decision.Outcome,
			"score", decision.Score,
		)

		return s.Set(KeyContext, dc), nil
	})
}
