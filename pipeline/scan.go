package pipeline

import (
	"context"
	"fmt"

	"github.com/JaimeStill/go-agents-orchestration/pkg/state"
	"golang.org/x/sync/errgroup"
)

// Scanner is the capability every fan-out detector implements. Scan reads a
// shared immutable Snapshot and returns its own findings; it never sees or
// mutates another scanner's output.
type Scanner interface {
	Name() string
	Scan(ctx context.Context, snap Snapshot) ([]Violation, StageOutput, error)
}

type scanResult struct {
	violations []Violation
	output     StageOutput
	err        error
}

// ScanNode returns a state node that runs all registered scanners
// concurrently against a read-only snapshot, waits for every scanner to
// finish, then merges findings in registration order with exact-match
// dedup. A failing scanner contributes an empty list and an error marker
// in AgentOutputs; one low-value scanner must not block the checks a
// compliance system has to surface. Only a span invariant breach aborts.
func ScanNode(rt *Runtime) state.StateNode {
	return stageNode(rt, "scan", func(ctx context.Context, s state.State) (state.State, error) {
		dc, err := extractContext(s)
		if err != nil {
			return s, fmt.Errorf("scan: %w", err)
		}

		results := fanOut(ctx, rt, dc.Snapshot())

		merged, err := mergeResults(rt, dc, results)
		if err != nil {
			return s, fmt.Errorf("scan: %w", err)
		}

		dc.Violations = append(dc.Violations, merged...)

		rt.Logger.InfoContext(
			ctx, "scan node complete",
			"document_id", dc.DocumentID,
			"scanners", len(rt.Scanners),
			"violations", len(merged),
		)

		return s.Set(KeyContext, dc), nil
	})
}

// fanOut executes all scanners concurrently and blocks until every one has
// finished. The barrier is absolute: no partial fan-out results are ever
// consumed. Results are slotted by registration index so completion order
// cannot influence merge order.
func fanOut(ctx context.Context, rt *Runtime, snap Snapshot) []scanResult {
	results := make([]scanResult, len(rt.Scanners))

	var g errgroup.Group
	for i, sc := range rt.Scanners {
		g.Go(func() error {
			results[i] = runScanner(ctx, sc, snap)
			return nil
		})
	}
	g.Wait()

	return results
}

func runScanner(ctx context.Context, sc Scanner, snap Snapshot) (res scanResult) {
	defer func() {
		if r := recover(); r != nil {
			res = scanResult{
				err: &DetectorError{Stage: sc.Name(), Err: fmt.Errorf("panic: %v", r)},
			}
		}
	}()

	violations, output, err := sc.Scan(ctx, snap)
	if err != nil {
		return scanResult{err: &DetectorError{Stage: sc.Name(), Err: err}}
	}

	return scanResult{violations: violations, output: output}
}

// mergeResults concatenates per-scanner findings in registration order,
// records each scanner's stage output (or error marker), validates spans,
// and deduplicates exact structural matches. Overlapping-but-not-identical
// violations from different scanners are both retained: co-located findings
// are still distinct compliance concerns.
func mergeResults(rt *Runtime, dc *Context, results []scanResult) ([]Violation, error) {
	var merged []Violation
	for i, res := range results {
		name := rt.Scanners[i].Name()

		if res.err != nil {
			rt.Logger.Warn(
				"scanner degraded",
				"document_id", dc.DocumentID,
				"scanner", name,
				"error", res.err,
			)
			dc.AgentOutputs[name] = StageOutput{Error: res.err.Error()}
			continue
		}

		for _, v := range res.violations {
			if err := v.ValidateSpan(len(dc.DocumentText)); err != nil {
				return nil, fmt.Errorf("scanner %s: %w", name, err)
			}
		}

		dc.AgentOutputs[name] = res.output
		merged = append(merged, res.violations...)
	}

	return dedupExact(merged), nil
}

// dedupExact removes violations structurally equal to an earlier entry,
// keeping first occurrences and preserving order. Exact equality only; no
// fuzzy or overlap merging.
func dedupExact(violations []Violation) []Violation {
	if len(violations) == 0 {
		return violations
	}

	deduped := make([]Violation, 0, len(violations))
	for _, v := range violations {
		duplicate := false
		for _, kept := range deduped {
			if v.Equal(kept) {
				duplicate = true
				break
			}
		}
		if !duplicate {
			deduped = append(deduped, v)
		}
	}

	return deduped
}
