package rules_test

import (
	"testing"

	"github.com/compliance-sentinel/sentinel/internal/rules"
	"github.com/compliance-sentinel/sentinel/pipeline"
)

func ruleIDs(applicable []pipeline.Rule) []string {
	ids := make([]string, 0, len(applicable))
	for _, r := range applicable {
		ids = append(ids, r.ID)
	}
	return ids
}

func TestForDocumentType(t *testing.T) {
	tests := []struct {
		docType string
		want    []string
	}{
		{"contract", []string{"CONTRACT_001"}},
		{"agreement", []string{"CONTRACT_001"}},
		{"hr_form", []string{"HR_001"}},
		{"policy", []string{"POLICY_001", "POLICY_002"}},
		{"invoice", []string{"INVOICE_001"}},
		{"unknown", nil},
	}

	registry := rules.NewRegistry()

	for _, tt := range tests {
		t.Run(tt.docType, func(t *testing.T) {
			got := ruleIDs(registry.ForDocumentType(tt.docType))
			if len(got) != len(tt.want) {
				t.Fatalf("rules = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("rules = %v, want %v", got, tt.want)
					break
				}
			}
		})
	}
}

func TestRegister(t *testing.T) {
	registry := rules.NewRegistry()
	registry.Register(pipeline.Rule{
		ID:            "CUSTOM_001",
		DocumentTypes: []string{"all"},
		Check:         func(string, map[string]string) []pipeline.Violation { return nil },
	})

	got := ruleIDs(registry.ForDocumentType("unknown"))
	if len(got) != 1 || got[0] != "CUSTOM_001" {
		t.Errorf("rules = %v, want [CUSTOM_001]", got)
	}
}

func TestContractTerminationRule(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"termination clause present", "Either party may initiate termination with notice.", 0},
		{"terminate variant", "The client may terminate this engagement.", 0},
		{"end of agreement variant", "Obligations survive the end of agreement.", 0},
		{"missing clause", "Both parties agree to the scope of work.", 1},
	}

	registry := rules.NewRegistry()
	rule := registry.ForDocumentType("contract")[0]

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			violations := rule.Check(tt.text, nil)
			if len(violations) != tt.want {
				t.Fatalf("violations = %d, want %d", len(violations), tt.want)
			}
			if tt.want == 1 {
				v := violations[0]
				if v.SpanStart != 0 || v.SpanEnd != len(tt.text) {
					t.Errorf("span = [%d,%d), want whole document", v.SpanStart, v.SpanEnd)
				}
				if v.Message != "Contract missing termination clause" {
					t.Errorf("message = %q", v.Message)
				}
			}
		})
	}
}

func TestHRApprovalRule(t *testing.T) {
	registry := rules.NewRegistry()
	rule := registry.ForDocumentType("hr_form")[0]

	if got := rule.Check("Request approved by: Dana Winters.", nil); len(got) != 0 {
		t.Errorf("expected no violations, got %v", got)
	}
	if got := rule.Check("Employee leave request for next month.", nil); len(got) != 1 {
		t.Errorf("expected one violation, got %v", got)
	}
}

func TestPolicyRulesAreIndependent(t *testing.T) {
	registry := rules.NewRegistry()
	applicable := registry.ForDocumentType("policy")
	if len(applicable) != 2 {
		t.Fatalf("policy rules = %d, want 2", len(applicable))
	}

	// Has a version but no effective date: only the date rule fires.
	text := "Data handling policy, version 2.1. All staff must comply."

	version, date := applicable[0], applicable[1]
	if got := version.Check(text, nil); len(got) != 0 {
		t.Errorf("version rule fired with version present: %v", got)
	}
	if got := date.Check(text, nil); len(got) != 1 {
		t.Errorf("date rule did not fire: %v", got)
	}
}

func TestKeywordMatchingCaseInsensitive(t *testing.T) {
	registry := rules.NewRegistry()
	rule := registry.ForDocumentType("invoice")[0]

	if got := rule.Check("VAT registration number: GB123.", nil); len(got) != 0 {
		t.Errorf("uppercase keyword missed: %v", got)
	}
}
