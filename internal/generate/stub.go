// Package generate provides the pipeline's generation collaborator in two
// flavors: a deterministic stub for development and tests, and an
// agent-backed implementation for real inference.
package generate

import (
	"context"
	"strings"

	"github.com/compliance-sentinel/sentinel/pipeline"
)

type stubClass struct {
	label    string
	keywords []string
}

// Evaluated in order; first keyword hit wins.
var stubClasses = []stubClass{
	{pipeline.DocTypeContract, []string{"contract", "agreement", "terms and conditions"}},
	{pipeline.DocTypePolicy, []string{"policy", "procedure", "guideline"}},
	{pipeline.DocTypeInvoice, []string{"invoice", "bill", "payment", "amount due"}},
	{pipeline.DocTypeHRForm, []string{"employee", "hr", "human resources", "approval form"}},
}

// Stub is a deterministic Generator with no external dependencies. The same
// input always produces the same output, which keeps pipeline runs
// idempotent end to end.
type Stub struct{}

// NewStub creates the stub generator.
func NewStub() *Stub {
	return &Stub{}
}

// Classify labels the document by keyword lookup over the (already
// truncated) text prefix.
func (s *Stub) Classify(_ context.Context, text string) (pipeline.Classification, error) {
	lower := strings.ToLower(text)
	for _, class := range stubClasses {
		for _, keyword := range class.keywords {
			if strings.Contains(lower, keyword) {
				return pipeline.Classification{Label: class.label, Confidence: 0.9}, nil
			}
		}
	}
	return pipeline.Classification{Label: pipeline.DocTypeUnknown, Confidence: 0.5}, nil
}

// GenerateRewrite appends a fix marker to the redacted span. Useful for
// exercising the suggestion plumbing without an inference backend.
func (s *Stub) GenerateRewrite(_ context.Context, req pipeline.RewriteRequest) (pipeline.RewriteResult, error) {
	return pipeline.RewriteResult{
		Replacement: req.RedactedSpan + " [COMPLIANCE FIX APPLIED]",
		Explanation: []string{
			"Applied policy compliance fix",
			"Maintains document intent",
			"Follows template guidelines",
		},
		Citations: []string{"POLICY_001"},
	}, nil
}
