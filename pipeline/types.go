package pipeline

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

const KeyContext = "compliance_context"

// ViolationKind identifies which scanner family produced a violation.
// The set is closed: stage logic switches exhaustively over these values.
type ViolationKind string

// Violation kinds.
const (
	KindPII              ViolationKind = "pii"
	KindPolicyRule       ViolationKind = "policy_violation"
	KindTemplateDrift    ViolationKind = "template_drift"
	KindMissingSignature ViolationKind = "missing_signature"
)

// Severity ranks a violation's impact. Ordering: critical > high > medium > low.
type Severity string

// Severity levels.
const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Severities lists all levels from most to least severe.
var Severities = []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow}

// DocumentType labels from classification. Unknown never blocks later stages;
// it only reduces the set of applicable rules.
const (
	DocTypeContract = "contract"
	DocTypePolicy   = "policy"
	DocTypeInvoice  = "invoice"
	DocTypeHRForm   = "hr_form"
	DocTypeUnknown  = "unknown"
)

var documentTypes = map[string]bool{
	DocTypeContract: true,
	DocTypePolicy:   true,
	DocTypeInvoice:  true,
	DocTypeHRForm:   true,
	DocTypeUnknown:  true,
}

// Match is one retrieval result: a similar template or past violation.
type Match struct {
	Text       string            `json:"text"`
	Similarity float64           `json:"similarity"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Violation is one detected compliance issue. Span offsets are half-open
// byte offsets into the original document text and never refer to a
// modified version. A violation is created by exactly one scanner and is
// mutated only by the enrichment stage, which adds PolicySnippet and
// SimilarViolations.
type Violation struct {
	Kind      ViolationKind `json:"kind"`
	Severity  Severity      `json:"severity"`
	SpanStart int           `json:"span_start"`
	SpanEnd   int           `json:"span_end"`
	Text      string        `json:"text,omitempty"`
	Message   string        `json:"message,omitempty"`

	// PII fields.
	PIIType    string  `json:"pii_type,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`

	// PolicyRule fields.
	RuleID   string `json:"rule_id,omitempty"`
	RuleName string `json:"rule_name,omitempty"`

	// TemplateDrift fields.
	ChunkIndex int     `json:"chunk_index,omitempty"`
	Similarity float64 `json:"similarity,omitempty"`
	Threshold  float64 `json:"threshold,omitempty"`

	// Enrichment fields, populated only by the enrichment stage.
	PolicySnippet     string  `json:"policy_snippet,omitempty"`
	SimilarViolations []Match `json:"similar_violations,omitempty"`
}

// Equal reports structural equality over scanner-produced fields.
// Enrichment fields are excluded: dedup runs before enrichment, and two
// findings that differ only in retrieved context are the same finding.
func (v Violation) Equal(o Violation) bool {
	return v.Kind == o.Kind &&
		v.Severity == o.Severity &&
		v.SpanStart == o.SpanStart &&
		v.SpanEnd == o.SpanEnd &&
		v.Text == o.Text &&
		v.Message == o.Message &&
		v.PIIType == o.PIIType &&
		v.Confidence == o.Confidence &&
		v.RuleID == o.RuleID &&
		v.RuleName == o.RuleName &&
		v.ChunkIndex == o.ChunkIndex &&
		v.Similarity == o.Similarity &&
		v.Threshold == o.Threshold
}

// ValidateSpan checks the span invariant 0 <= start <= end <= len(text).
// A breach is fatal for the document: clamping would corrupt every
// downstream offset-based operation (redaction, diffing).
func (v Violation) ValidateSpan(textLen int) error {
	if v.SpanStart < 0 || v.SpanStart > v.SpanEnd || v.SpanEnd > textLen {
		return fmt.Errorf(
			"%w: kind=%s span=[%d,%d) len=%d",
			ErrSpanOutOfBounds, v.Kind, v.SpanStart, v.SpanEnd, textLen,
		)
	}
	return nil
}

// Suggestion is one proposed fix, produced by the rewrite stage 1:1 with
// the violation list and in the same order.
type Suggestion struct {
	ViolationRef string   `json:"violation_id"`
	SpanStart    int      `json:"span_start"`
	SpanEnd      int      `json:"span_end"`
	OriginalText string   `json:"original_text"`
	Replacement  string   `json:"replacement"`
	Explanation  []string `json:"explanation"`
	Citations    []string `json:"citations,omitempty"`
	Redaction    bool     `json:"redaction_flag"`
}

// Outcome is the terminal approval decision.
type Outcome string

// Approval outcomes, first match wins in this order.
const (
	OutcomeAutoApprove   Outcome = "Auto-Approve"
	OutcomeAutoFix       Outcome = "Auto-Fix"
	OutcomeRequireReview Outcome = "Require Review"
	OutcomeReject        Outcome = "Reject"
)

// Decision is the approval engine's output: a pure function of the final
// violation and suggestion lists.
type Decision struct {
	Outcome Outcome          `json:"decision"`
	Reason  string           `json:"reason"`
	Score   int              `json:"violation_score"`
	Counts  map[Severity]int `json:"violation_counts"`
}

// StageOutput records one stage's structured output in AgentOutputs.
// Write-once per stage name; used for observability and audit, never
// consumed by later stages' logic.
type StageOutput struct {
	Error           string    `json:"error,omitempty"`
	DocumentType    string    `json:"document_type,omitempty"`
	Confidence      float64   `json:"confidence,omitempty"`
	RulesChecked    int       `json:"rules_checked,omitempty"`
	ChunksChecked   int       `json:"chunks_checked,omitempty"`
	SignaturesFound int       `json:"signatures_found,omitempty"`
	ViolationsFound int       `json:"violations_found"`
	Enriched        int       `json:"enriched,omitempty"`
	Suggestions     int       `json:"suggestions_generated,omitempty"`
	Decision        *Decision `json:"decision,omitempty"`
}

// Context is the unit of work state threaded through every stage. A single
// stage owns it at a time; during scanner fan-out it is read through an
// immutable Snapshot only.
type Context struct {
	DocumentID   uuid.UUID              `json:"document_id"`
	SessionID    string                 `json:"session_id"`
	DocumentText string                 `json:"document_text"`
	Metadata     map[string]string      `json:"metadata,omitempty"`
	DocumentType string                 `json:"document_type,omitempty"`
	Confidence   float64                `json:"classification_confidence,omitempty"`
	AgentOutputs map[string]StageOutput `json:"agent_outputs"`
	Violations   []Violation            `json:"violations"`
	Suggestions  []Suggestion           `json:"suggestions"`
	Decision     *Decision              `json:"approval,omitempty"`
}

// NewContext creates a Context for one processing request.
func NewContext(documentID uuid.UUID, text string, metadata map[string]string) *Context {
	if metadata == nil {
		metadata = make(map[string]string)
	}
	return &Context{
		DocumentID:   documentID,
		DocumentText: text,
		Metadata:     metadata,
		AgentOutputs: make(map[string]StageOutput),
	}
}

// Snapshot returns the read-only view scanners share during fan-out.
// It is established after classification and never mutated during the
// parallel region.
func (c *Context) Snapshot() Snapshot {
	meta := make(map[string]string, len(c.Metadata))
	for k, v := range c.Metadata {
		meta[k] = v
	}
	return Snapshot{
		DocumentText: c.DocumentText,
		DocumentType: c.DocumentType,
		Metadata:     meta,
	}
}

// Snapshot is the immutable context view handed to concurrent scanners.
type Snapshot struct {
	DocumentText string
	DocumentType string
	Metadata     map[string]string
}

// Result is the stable output schema external consumers depend on.
type Result struct {
	DocumentID       uuid.UUID              `json:"document_id"`
	SessionID        string                 `json:"session_id"`
	DocumentType     string                 `json:"document_type"`
	Violations       []Violation            `json:"violations"`
	Suggestions      []Suggestion           `json:"suggestions"`
	ApprovalDecision Outcome                `json:"approval_decision"`
	ApprovalReason   string                 `json:"approval_reason"`
	ViolationScore   int                    `json:"violation_score"`
	AgentOutputs     map[string]StageOutput `json:"agent_outputs"`
	CompletedAt      time.Time              `json:"completed_at"`
}
