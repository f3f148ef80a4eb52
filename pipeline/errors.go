// Package pipeline implements the document-compliance pipeline: sequential
// classification, concurrent scanner fan-out with deterministic merge,
// per-violation enrichment, rewrite generation, and the approval decision
// engine, driven by a state graph (classify → scan → enrich? → rewrite →
// approve) with session checkpointing between stages.
package pipeline

import (
	"errors"
	"fmt"
)

// Sentinel errors for pipeline operations.
var (
	ErrClassifyFailed = errors.New("classification failed")
	ErrScanFailed     = errors.New("scanner fan-out failed")
	ErrEnrichFailed   = errors.New("enrichment failed")
	ErrRewriteFailed  = errors.New("rewrite generation failed")

	// ErrSpanOutOfBounds marks an internal invariant breach; it aborts the
	// document rather than degrading.
	ErrSpanOutOfBounds = errors.New("violation span out of bounds")

	// ErrCollaboratorUnavailable marks an unreachable retrieval or
	// generation collaborator. Recoverable for enrichment and rewrite.
	ErrCollaboratorUnavailable = errors.New("collaborator unavailable")

	// ErrSessionStore marks a session persistence failure. Fatal: a document
	// whose state cannot be checkpointed is reported as an error, not lost.
	ErrSessionStore = errors.New("session store failure")

	// ErrCancelled is the terminal status of a pipeline cancelled between
	// stages.
	ErrCancelled = errors.New("pipeline cancelled")
)

// DetectorError wraps a stage-local failure with the stage that produced it.
// The fan-out executor records these in AgentOutputs instead of aborting.
type DetectorError struct {
	Stage string
	Err   error
}

func (e *DetectorError) Error() string {
	return fmt.Sprintf("detector %s: %v", e.Stage, e.Err)
}

func (e *DetectorError) Unwrap() error {
	return e.Err
}
