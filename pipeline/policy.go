package pipeline

import (
	"context"
	"slices"
)

const ScannerPolicyRules = "policy_rule_engine"

// Rule is one deterministic compliance rule. Check receives the full
// document text and request metadata and returns zero or more violations;
// the scanner stamps rule identity and kind afterward.
type Rule struct {
	ID            string
	Name          string
	Description   string
	Severity      Severity
	DocumentTypes []string
	Check         func(text string, metadata map[string]string) []Violation
}

// AppliesTo reports whether the rule covers the given document type.
func (r Rule) AppliesTo(docType string) bool {
	return slices.Contains(r.DocumentTypes, docType) || slices.Contains(r.DocumentTypes, "all")
}

// RuleSource supplies the rules applicable to a document type. Configured
// once at startup; must be safe for concurrent reads.
type RuleSource interface {
	ForDocumentType(docType string) []Rule
}

// PolicyRuleScanner applies the deterministic rule set for the classified
// document type. An unknown type simply matches fewer rules.
type PolicyRuleScanner struct {
	rules RuleSource
}

// NewPolicyRuleScanner creates a policy scanner backed by the given rules.
func NewPolicyRuleScanner(rules RuleSource) *PolicyRuleScanner {
	return &PolicyRuleScanner{rules: rules}
}

func (s *PolicyRuleScanner) Name() string { return ScannerPolicyRules }

func (s *PolicyRuleScanner) Scan(ctx context.Context, snap Snapshot) ([]Violation, StageOutput, error) {
	applicable := s.rules.ForDocumentType(snap.DocumentType)

	var violations []Violation
	for _, rule := range applicable {
		for _, v := range rule.Check(snap.DocumentText, snap.Metadata) {
			v.Kind = KindPolicyRule
			v.RuleID = rule.ID
			v.RuleName = rule.Name
			if v.Severity == "" {
				v.Severity = rule.Severity
			}
			violations = append(violations, v)
		}
	}

	return violations, StageOutput{
		RulesChecked:    len(applicable),
		ViolationsFound: len(violations),
	}, nil
}
