package pipeline

import (
	"context"
	"log/slog"
)

// Classification is the generation collaborator's label output.
type Classification struct {
	Label      string  `json:"document_type"`
	Confidence float64 `json:"confidence"`
}

// RewriteRequest carries the redacted span and retrieved context sent to the
// generation collaborator. The span is always redacted before this point; no
// raw PII crosses this boundary.
type RewriteRequest struct {
	RedactedSpan    string
	PolicySnippet   string
	TemplateSnippet string
	StyleHint       string
}

// RewriteResult is the generation collaborator's proposed fix.
type RewriteResult struct {
	Replacement string   `json:"replacement"`
	Explanation []string `json:"explanation"`
	Citations   []string `json:"citations"`
	Redaction   bool     `json:"redaction_flag"`
}

// Generator is the generation collaborator (LLM or deterministic stub).
// Implementations are swappable without touching orchestration logic.
type Generator interface {
	Classify(ctx context.Context, text string) (Classification, error)
	GenerateRewrite(ctx context.Context, req RewriteRequest) (RewriteResult, error)
}

// Memory is the retrieval collaborator: policy text and similarity search
// over templates and past violations. Implementations must be safe for
// concurrent calls from parallel scanners.
type Memory interface {
	PolicySnippet(ctx context.Context, ruleID string) (string, bool, error)
	SearchTemplates(ctx context.Context, query string, topK int) ([]Match, error)
	SearchViolations(ctx context.Context, query string, topK int) ([]Match, error)
}

// SessionStore persists pipeline state, keyed by session id. The driver
// checkpoints after every stage, not just at the end.
type SessionStore interface {
	Create(ctx context.Context, documentID string) (string, error)
	SaveState(ctx context.Context, sessionID string, dc *Context) error
	GetState(ctx context.Context, sessionID string) (*Context, bool, error)
}

// Runtime bundles the collaborators pipeline stages require. It is
// constructed once by composition code and shared by all in-flight
// documents; every field must tolerate concurrent use.
type Runtime struct {
	Generator Generator
	Memory    Memory
	Sessions  SessionStore
	Scanners  []Scanner
	Approval  ApprovalPolicy
	Logger    *slog.Logger
}
