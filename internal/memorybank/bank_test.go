package memorybank_test

import (
	"context"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/compliance-sentinel/sentinel/internal/memorybank"
	"github.com/compliance-sentinel/sentinel/pipeline"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeDoc(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestEmbedDeterministic(t *testing.T) {
	first := memorybank.Embed("the quarterly compliance report")
	second := memorybank.Embed("the quarterly compliance report")

	if len(first) != memorybank.EmbeddingDim {
		t.Fatalf("dimension = %d, want %d", len(first), memorybank.EmbeddingDim)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("embedding differs at %d", i)
		}
	}
}

func TestEmbedUnitNorm(t *testing.T) {
	vec := memorybank.Embed("termination clause for service agreements")

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	if math.Abs(norm-1.0) > 1e-9 {
		t.Errorf("squared norm = %f, want 1", norm)
	}
}

func TestEmbedEmptyText(t *testing.T) {
	vec := memorybank.Embed("")
	for i, v := range vec {
		if v != 0 {
			t.Fatalf("empty text produced non-zero component at %d", i)
		}
	}
}

func TestSeedFromDirectories(t *testing.T) {
	policiesDir := t.TempDir()
	templatesDir := t.TempDir()

	writeDoc(t, policiesDir, "CONTRACT_001.txt", "Contracts must include a termination clause.")
	writeDoc(t, policiesDir, "HR_001.md", "HR forms require manager approval.")
	writeDoc(t, policiesDir, "ignored.pdf", "binary")
	writeDoc(t, templatesDir, "contract-standard.txt", "This agreement is made between the parties.")

	bank, err := memorybank.New(policiesDir, templatesDir, testLogger())
	if err != nil {
		t.Fatalf("new failed: %v", err)
	}

	snippet, ok, err := bank.PolicySnippet(context.Background(), "CONTRACT_001")
	if err != nil || !ok {
		t.Fatalf("policy snippet missing: ok=%v err=%v", ok, err)
	}
	if snippet != "Contracts must include a termination clause." {
		t.Errorf("snippet = %q", snippet)
	}

	if _, ok, _ := bank.PolicySnippet(context.Background(), "HR_001"); !ok {
		t.Error("markdown policy not seeded")
	}
	if _, ok, _ := bank.PolicySnippet(context.Background(), "ignored"); ok {
		t.Error("non-document file seeded")
	}

	matches, err := bank.SearchTemplates(context.Background(), "agreement between the parties", 1)
	if err != nil {
		t.Fatalf("search templates failed: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("matches = %d, want 1", len(matches))
	}
	if matches[0].Metadata["template_id"] != "contract-standard" {
		t.Errorf("template id = %q", matches[0].Metadata["template_id"])
	}
}

func TestMissingDirectoriesAreEmpty(t *testing.T) {
	bank, err := memorybank.New("does/not/exist", "also/missing", testLogger())
	if err != nil {
		t.Fatalf("new failed: %v", err)
	}

	if _, ok, _ := bank.PolicySnippet(context.Background(), "anything"); ok {
		t.Error("empty bank returned a snippet")
	}
	matches, err := bank.SearchTemplates(context.Background(), "query", 3)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("matches = %d, want 0", len(matches))
	}
}

func TestSearchRanking(t *testing.T) {
	bank, err := memorybank.New("", "", testLogger())
	if err != nil {
		t.Fatalf("new failed: %v", err)
	}

	bank.StoreTemplate("close", "termination clause for the service agreement", nil)
	bank.StoreTemplate("far", "quarterly invoice payment schedule", nil)

	matches, err := bank.SearchTemplates(context.Background(), "termination clause agreement", 2)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("matches = %d, want 2", len(matches))
	}
	if matches[0].Text != "termination clause for the service agreement" {
		t.Errorf("best match = %q", matches[0].Text)
	}
	if matches[0].Similarity <= matches[1].Similarity {
		t.Errorf(
			"ranking not descending: %f then %f",
			matches[0].Similarity, matches[1].Similarity,
		)
	}
}

func TestSearchTopK(t *testing.T) {
	bank, err := memorybank.New("", "", testLogger())
	if err != nil {
		t.Fatalf("new failed: %v", err)
	}

	for _, id := range []string{"a", "b", "c", "d"} {
		bank.StoreTemplate(id, "template text "+id, nil)
	}

	matches, _ := bank.SearchTemplates(context.Background(), "template text", 2)
	if len(matches) != 2 {
		t.Errorf("matches = %d, want 2", len(matches))
	}

	matches, _ = bank.SearchTemplates(context.Background(), "template text", 0)
	if matches != nil {
		t.Errorf("topK 0 returned %v, want nil", matches)
	}
}

func TestStoreViolation(t *testing.T) {
	bank, err := memorybank.New("", "", testLogger())
	if err != nil {
		t.Fatalf("new failed: %v", err)
	}

	bank.StoreViolation("run-1-0", pipeline.Violation{
		Kind:     pipeline.KindPolicyRule,
		Severity: pipeline.SeverityHigh,
		RuleID:   "CONTRACT_001",
		Message:  "Contract missing termination clause",
	})

	matches, err := bank.SearchViolations(context.Background(), "missing termination clause", 3)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("matches = %d, want 1", len(matches))
	}
	if matches[0].Metadata["rule_id"] != "CONTRACT_001" {
		t.Errorf("rule id = %q", matches[0].Metadata["rule_id"])
	}
	if matches[0].Metadata["severity"] != "high" {
		t.Errorf("severity = %q", matches[0].Metadata["severity"])
	}
}

func TestStoreViolationWithoutTextSkipped(t *testing.T) {
	bank, err := memorybank.New("", "", testLogger())
	if err != nil {
		t.Fatalf("new failed: %v", err)
	}

	bank.StoreViolation("empty", pipeline.Violation{Kind: pipeline.KindPII})

	matches, _ := bank.SearchViolations(context.Background(), "anything", 3)
	if len(matches) != 0 {
		t.Errorf("matches = %d, want 0", len(matches))
	}
}

func TestStorePolicyOverwrite(t *testing.T) {
	bank, err := memorybank.New("", "", testLogger())
	if err != nil {
		t.Fatalf("new failed: %v", err)
	}

	bank.StorePolicy("RULE_X", "first")
	bank.StorePolicy("RULE_X", "second")

	snippet, ok, _ := bank.PolicySnippet(context.Background(), "RULE_X")
	if !ok || snippet != "second" {
		t.Errorf("snippet = %q, ok = %v, want second", snippet, ok)
	}
}
