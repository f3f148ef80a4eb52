package pipeline_test

import (
	"context"
	"errors"
	"testing"

	"github.com/compliance-sentinel/sentinel/pipeline"
)

type staticRules struct {
	rules []pipeline.Rule
}

func (s staticRules) ForDocumentType(docType string) []pipeline.Rule {
	var applicable []pipeline.Rule
	for _, r := range s.rules {
		if r.AppliesTo(docType) {
			applicable = append(applicable, r)
		}
	}
	return applicable
}

// fakeMemory serves canned retrieval results and records failures to inject.
type fakeMemory struct {
	snippets        map[string]string
	templateMatches []pipeline.Match
	templateErr     error
	violationHits   []pipeline.Match
	violationErr    error
	snippetErr      error
}

func (m *fakeMemory) PolicySnippet(ctx context.Context, ruleID string) (string, bool, error) {
	if m.snippetErr != nil {
		return "", false, m.snippetErr
	}
	s, ok := m.snippets[ruleID]
	return s, ok, nil
}

func (m *fakeMemory) SearchTemplates(ctx context.Context, query string, topK int) ([]pipeline.Match, error) {
	if m.templateErr != nil {
		return nil, m.templateErr
	}
	if topK < len(m.templateMatches) {
		return m.templateMatches[:topK], nil
	}
	return m.templateMatches, nil
}

func (m *fakeMemory) SearchViolations(ctx context.Context, query string, topK int) ([]pipeline.Match, error) {
	if m.violationErr != nil {
		return nil, m.violationErr
	}
	if topK < len(m.violationHits) {
		return m.violationHits[:topK], nil
	}
	return m.violationHits, nil
}

func TestPolicyRuleScannerStampsIdentity(t *testing.T) {
	rule := pipeline.Rule{
		ID:            "TEST_001",
		Name:          "Test rule",
		Severity:      pipeline.SeverityHigh,
		DocumentTypes: []string{"contract"},
		Check: func(text string, metadata map[string]string) []pipeline.Violation {
			return []pipeline.Violation{{
				SpanStart: 0,
				SpanEnd:   len(text),
				Message:   "flagged",
			}}
		},
	}

	scanner := pipeline.NewPolicyRuleScanner(staticRules{rules: []pipeline.Rule{rule}})
	snap := pipeline.Snapshot{DocumentText: "some contract text", DocumentType: "contract"}

	violations, output, err := scanner.Scan(context.Background(), snap)
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if len(violations) != 1 {
		t.Fatalf("violations = %d, want 1", len(violations))
	}

	v := violations[0]
	if v.Kind != pipeline.KindPolicyRule {
		t.Errorf("kind = %s, want %s", v.Kind, pipeline.KindPolicyRule)
	}
	if v.RuleID != "TEST_001" {
		t.Errorf("rule id = %s, want TEST_001", v.RuleID)
	}
	if v.RuleName != "Test rule" {
		t.Errorf("rule name = %s, want Test rule", v.RuleName)
	}
	if v.Severity != pipeline.SeverityHigh {
		t.Errorf("severity = %s, want high (inherited from rule)", v.Severity)
	}
	if output.RulesChecked != 1 {
		t.Errorf("rules checked = %d, want 1", output.RulesChecked)
	}
}

func TestPolicyRuleScannerSkipsInapplicableRules(t *testing.T) {
	fired := false
	rule := pipeline.Rule{
		ID:            "CONTRACT_ONLY",
		DocumentTypes: []string{"contract"},
		Check: func(text string, metadata map[string]string) []pipeline.Violation {
			fired = true
			return nil
		},
	}

	scanner := pipeline.NewPolicyRuleScanner(staticRules{rules: []pipeline.Rule{rule}})
	snap := pipeline.Snapshot{DocumentText: "an invoice", DocumentType: "invoice"}

	violations, output, err := scanner.Scan(context.Background(), snap)
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if fired {
		t.Error("inapplicable rule was evaluated")
	}
	if len(violations) != 0 || output.RulesChecked != 0 {
		t.Errorf("violations = %d, rules checked = %d, want 0 and 0", len(violations), output.RulesChecked)
	}
}

func TestRuleAppliesToAll(t *testing.T) {
	rule := pipeline.Rule{DocumentTypes: []string{"all"}}
	for _, docType := range []string{"contract", "invoice", "unknown"} {
		if !rule.AppliesTo(docType) {
			t.Errorf("rule with all should apply to %s", docType)
		}
	}
}

func TestSignatureScanner(t *testing.T) {
	tests := []struct {
		name           string
		text           string
		docType        string
		wantViolations int
		wantFound      int
	}{
		{
			name:           "contract without signature flagged",
			text:           "This agreement sets forth the terms.",
			docType:        "contract",
			wantViolations: 1,
			wantFound:      0,
		},
		{
			name:           "contract with signature passes",
			text:           "Signed by: Jordan Reyes, Director",
			docType:        "contract",
			wantViolations: 0,
			wantFound:      1,
		},
		{
			name:           "hr form with approval passes",
			text:           "Approved by the department manager.",
			docType:        "hr_form",
			wantViolations: 0,
			wantFound:      1,
		},
		{
			name:           "invoice never requires signature",
			text:           "Total due: $4,200.",
			docType:        "invoice",
			wantViolations: 0,
			wantFound:      0,
		},
		{
			name:           "unknown type never requires signature",
			text:           "Unstructured notes.",
			docType:        "unknown",
			wantViolations: 0,
			wantFound:      0,
		},
	}

	scanner := pipeline.NewSignatureScanner()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := pipeline.Snapshot{DocumentText: tt.text, DocumentType: tt.docType}
			violations, output, err := scanner.Scan(context.Background(), snap)
			if err != nil {
				t.Fatalf("scan failed: %v", err)
			}
			if len(violations) != tt.wantViolations {
				t.Errorf("violations = %d, want %d", len(violations), tt.wantViolations)
			}
			if output.SignaturesFound != tt.wantFound {
				t.Errorf("signatures found = %d, want %d", output.SignaturesFound, tt.wantFound)
			}
		})
	}
}

func TestSignatureScannerViolationShape(t *testing.T) {
	scanner := pipeline.NewSignatureScanner()
	text := "This agreement sets forth the terms."
	snap := pipeline.Snapshot{DocumentText: text, DocumentType: "contract"}

	violations, _, err := scanner.Scan(context.Background(), snap)
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if len(violations) != 1 {
		t.Fatalf("violations = %d, want 1", len(violations))
	}

	v := violations[0]
	if v.Kind != pipeline.KindMissingSignature {
		t.Errorf("kind = %s, want %s", v.Kind, pipeline.KindMissingSignature)
	}
	if v.Severity != pipeline.SeverityHigh {
		t.Errorf("severity = %s, want high", v.Severity)
	}
	if v.SpanStart != 0 || v.SpanEnd != len(text) {
		t.Errorf("span = [%d,%d), want whole document [0,%d)", v.SpanStart, v.SpanEnd, len(text))
	}
}

const driftChunk = "This paragraph is comfortably longer than the minimum chunk length used by the drift detector."

func TestTemplateDriftScanner(t *testing.T) {
	tests := []struct {
		name         string
		matches      []pipeline.Match
		wantCount    int
		wantSeverity pipeline.Severity
	}{
		{
			name:      "similar chunk passes",
			matches:   []pipeline.Match{{Text: "template", Similarity: 0.92}},
			wantCount: 0,
		},
		{
			name:         "moderate drift flags medium",
			matches:      []pipeline.Match{{Text: "template", Similarity: 0.6}},
			wantCount:    1,
			wantSeverity: pipeline.SeverityMedium,
		},
		{
			name:         "severe drift flags high",
			matches:      []pipeline.Match{{Text: "template", Similarity: 0.2}},
			wantCount:    1,
			wantSeverity: pipeline.SeverityHigh,
		},
		{
			name:         "no template match flags low",
			matches:      nil,
			wantCount:    1,
			wantSeverity: pipeline.SeverityLow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			memory := &fakeMemory{templateMatches: tt.matches}
			scanner := pipeline.NewTemplateDriftScanner(memory)
			snap := pipeline.Snapshot{DocumentText: driftChunk, DocumentType: "policy"}

			violations, output, err := scanner.Scan(context.Background(), snap)
			if err != nil {
				t.Fatalf("scan failed: %v", err)
			}
			if output.ChunksChecked != 1 {
				t.Errorf("chunks checked = %d, want 1", output.ChunksChecked)
			}
			if len(violations) != tt.wantCount {
				t.Fatalf("violations = %d, want %d", len(violations), tt.wantCount)
			}
			if tt.wantCount == 1 {
				v := violations[0]
				if v.Kind != pipeline.KindTemplateDrift {
					t.Errorf("kind = %s, want %s", v.Kind, pipeline.KindTemplateDrift)
				}
				if v.Severity != tt.wantSeverity {
					t.Errorf("severity = %s, want %s", v.Severity, tt.wantSeverity)
				}
				if v.Threshold != pipeline.DriftThreshold {
					t.Errorf("threshold = %v, want %v", v.Threshold, pipeline.DriftThreshold)
				}
			}
		})
	}
}

func TestTemplateDriftScannerShortChunksSkipped(t *testing.T) {
	memory := &fakeMemory{}
	scanner := pipeline.NewTemplateDriftScanner(memory)
	snap := pipeline.Snapshot{DocumentText: "short\n\nalso short"}

	violations, output, err := scanner.Scan(context.Background(), snap)
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if output.ChunksChecked != 0 || len(violations) != 0 {
		t.Errorf("chunks = %d, violations = %d, want 0 and 0", output.ChunksChecked, len(violations))
	}
}

func TestTemplateDriftScannerRetrievalFailure(t *testing.T) {
	memory := &fakeMemory{templateErr: errors.New("index offline")}
	scanner := pipeline.NewTemplateDriftScanner(memory)
	snap := pipeline.Snapshot{DocumentText: driftChunk}

	_, _, err := scanner.Scan(context.Background(), snap)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, pipeline.ErrCollaboratorUnavailable) {
		t.Errorf("error %v does not wrap ErrCollaboratorUnavailable", err)
	}
}
