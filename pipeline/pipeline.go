package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	gaoconfig "github.com/JaimeStill/go-agents-orchestration/pkg/config"
	"github.com/JaimeStill/go-agents-orchestration/pkg/state"
)

// DefaultScanners returns the fixed scanner registration order: PII,
// policy rules, template drift, signature. The merge step's output order
// follows this registration order regardless of completion order.
func DefaultScanners(rules RuleSource, memory Memory) []Scanner {
	return []Scanner{
		NewPIIScanner(),
		NewPolicyRuleScanner(rules),
		NewTemplateDriftScanner(memory),
		NewSignatureScanner(),
	}
}

// Execute runs the compliance pipeline for a single document. It creates a
// session, builds the state graph (classify → scan → enrich? → rewrite →
// approve), executes it with a checkpoint to the session store after every
// stage, and extracts the Result from the final state. Cancellation is
// cooperative between stages and surfaces as ErrCancelled; session store
// failures and span invariant breaches abort the document, everything else
// degrades in place.
func Execute(ctx context.Context, rt *Runtime, dc *Context) (*Result, error) {
	sessionID, err := rt.Sessions.Create(ctx, dc.DocumentID.String())
	if err != nil {
		return nil, fmt.Errorf("%w: create session: %w", ErrSessionStore, err)
	}
	dc.SessionID = sessionID

	graph, err := buildGraph(rt)
	if err != nil {
		return nil, fmt.Errorf("build graph: %w", err)
	}

	initialState := state.New(nil).Set(KeyContext, dc)

	finalState, err := graph.Execute(ctx, initialState)
	if err != nil {
		if errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("%w: %w", ErrCancelled, err)
		}
		return nil, fmt.Errorf("execute graph: %w", err)
	}

	return extractResult(finalState)
}

func buildGraph(rt *Runtime) (state.StateGraph, error) {
	cfg := gaoconfig.DefaultGraphConfig("compliance-pipeline")
	cfg.Observer = "noop"

	graph, err := state.NewGraph(cfg)
	if err != nil {
		return nil, err
	}

	if err := graph.AddNode("classify", ClassifyNode(rt)); err != nil {
		return nil, err
	}

	if err := graph.AddNode("scan", ScanNode(rt)); err != nil {
		return nil, err
	}

	if err := graph.AddNode("enrich", EnrichNode(rt)); err != nil {
		return nil, err
	}

	if err := graph.AddNode("rewrite", RewriteNode(rt)); err != nil {
		return nil, err
	}

	if err := graph.AddNode("approve", ApproveNode(rt)); err != nil {
		return nil, err
	}

	// classify → scan (unconditional)
	if err := graph.AddEdge("classify", "scan", nil); err != nil {
		return nil, err
	}

	// scan → enrich (when the merged list has findings)
	if err := graph.AddEdge("scan", "enrich", hasViolations); err != nil {
		return nil, err
	}

	// scan → rewrite (nothing to enrich; rewrite still runs to keep the
	// zero-violations → zero-suggestions contract explicit)
	if err := graph.AddEdge("scan", "rewrite", state.Not(hasViolations)); err != nil {
		return nil, err
	}

	// enrich → rewrite (unconditional)
	if err := graph.AddEdge("enrich", "rewrite", nil); err != nil {
		return nil, err
	}

	// rewrite → approve (unconditional)
	if err := graph.AddEdge("rewrite", "approve", nil); err != nil {
		return nil, err
	}

	if err := graph.SetEntryPoint("classify"); err != nil {
		return nil, err
	}

	if err := graph.SetExitPoint("approve"); err != nil {
		return nil, err
	}

	return graph, nil
}

// stageNode wraps a stage function with the driver's cross-cutting
// behavior: a cooperative cancellation check before the stage starts and a
// session checkpoint after it completes. No stage starts while a
// checkpoint is outstanding.
func stageNode(
	rt *Runtime,
	name string,
	fn func(ctx context.Context, s state.State) (state.State, error),
) state.StateNode {
	return state.NewFunctionNode(func(ctx context.Context, s state.State) (state.State, error) {
		if err := ctx.Err(); err != nil {
			return s, fmt.Errorf("%w: before %s: %w", ErrCancelled, name, err)
		}

		next, err := fn(ctx, s)
		if err != nil {
			return s, err
		}

		dc, err := extractContext(next)
		if err != nil {
			return next, err
		}

		if err := rt.Sessions.SaveState(ctx, dc.SessionID, dc); err != nil {
			return next, fmt.Errorf("%w: checkpoint after %s: %w", ErrSessionStore, name, err)
		}

		return next, nil
	})
}

func hasViolations(s state.State) bool {
	dc, err := extractContext(s)
	if err != nil {
		return false
	}
	return len(dc.Violations) > 0
}

func extractResult(s state.State) (*Result, error) {
	dc, err := extractContext(s)
	if err != nil {
		return nil, fmt.Errorf("final state: %w", err)
	}

	if dc.Decision == nil {
		return nil, fmt.Errorf("final state: missing approval decision")
	}

	return &Result{
		DocumentID:       dc.DocumentID,
		SessionID:        dc.SessionID,
		DocumentType:     dc.DocumentType,
		Violations:       dc.Violations,
		Suggestions:      dc.Suggestions,
		ApprovalDecision: dc.Decision.Outcome,
		ApprovalReason:   dc.Decision.Reason,
		ViolationScore:   dc.Decision.Score,
		AgentOutputs:     dc.AgentOutputs,
		CompletedAt:      time.Now(),
	}, nil
}
