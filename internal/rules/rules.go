// Package rules holds the deterministic compliance rule set and its
// registry. Rules are keyword checks over the full document text; anything
// requiring retrieval or generation lives in the pipeline collaborators
// instead.
package rules

import (
	"strings"

	"github.com/compliance-sentinel/sentinel/pipeline"
)

// Registry is the built-in rule set plus any rules registered at startup.
// It is immutable after construction and safe for concurrent reads.
type Registry struct {
	rules []pipeline.Rule
}

// NewRegistry creates a registry preloaded with the built-in rules.
func NewRegistry() *Registry {
	return &Registry{rules: builtin()}
}

// Register appends a rule. Call during startup only; the registry is read
// concurrently once the pipeline is serving.
func (r *Registry) Register(rule pipeline.Rule) {
	r.rules = append(r.rules, rule)
}

// ForDocumentType returns the rules applicable to a document type, in
// registration order.
func (r *Registry) ForDocumentType(docType string) []pipeline.Rule {
	var applicable []pipeline.Rule
	for _, rule := range r.rules {
		if rule.AppliesTo(docType) {
			applicable = append(applicable, rule)
		}
	}
	return applicable
}

func builtin() []pipeline.Rule {
	return []pipeline.Rule{
		{
			ID:            "CONTRACT_001",
			Name:          "Contract Termination Clause",
			Description:   "Contracts must include a termination clause",
			Severity:      pipeline.SeverityHigh,
			DocumentTypes: []string{"contract", "agreement"},
			Check: requireKeywords(
				"Contract missing termination clause",
				"termination", "terminate", "end of agreement", "contract end",
			),
		},
		{
			ID:            "HR_001",
			Name:          "HR Manager Approval",
			Description:   "HR forms must include manager approval field",
			Severity:      pipeline.SeverityMedium,
			DocumentTypes: []string{"hr_form", "hr_document"},
			Check: requireKeywords(
				"HR form missing manager approval field",
				"manager approval", "approved by", "signature", "manager sign",
			),
		},
		{
			ID:            "POLICY_001",
			Name:          "Policy Version",
			Description:   "Policy documents must include version number",
			Severity:      pipeline.SeverityMedium,
			DocumentTypes: []string{"policy", "policy_document"},
			Check: requireKeywords(
				"Policy document missing version number",
				"version", "v.", "v ",
			),
		},
		{
			ID:            "POLICY_002",
			Name:          "Policy Effective Date",
			Description:   "Policy documents must include an effective date",
			Severity:      pipeline.SeverityMedium,
			DocumentTypes: []string{"policy", "policy_document"},
			Check: requireKeywords(
				"Policy document missing effective date",
				"effective date", "date:", "dated", "as of",
			),
		},
		{
			ID:            "INVOICE_001",
			Name:          "Invoice Tax ID",
			Description:   "Invoices must include tax identification number",
			Severity:      pipeline.SeverityHigh,
			DocumentTypes: []string{"invoice", "bill"},
			Check: requireKeywords(
				"Invoice missing tax identification number",
				"tax id", "tax identification", "tin", "ein", "vat",
			),
		},
	}
}

// requireKeywords builds a check that flags the whole document when none of
// the keywords appear in it. Matching is case-insensitive substring search.
func requireKeywords(message string, keywords ...string) func(string, map[string]string) []pipeline.Violation {
	return func(text string, _ map[string]string) []pipeline.Violation {
		lower := strings.ToLower(text)
		for _, keyword := range keywords {
			if strings.Contains(lower, keyword) {
				return nil
			}
		}
		return []pipeline.Violation{{
			SpanStart: 0,
			SpanEnd:   len(text),
			Message:   message,
		}}
	}
}
