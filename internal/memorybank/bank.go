// Package memorybank provides the pipeline's retrieval collaborator: policy
// snippets keyed by rule id, approved template chunks, and a growing corpus
// of past violations, each searchable by embedding similarity.
package memorybank

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/compliance-sentinel/sentinel/pipeline"
)

// Bank is the in-process memory bank. Reads are lock-free against the
// pipeline's hot path apart from per-index read locks; writes happen at
// startup (seeding) and after each completed run (violation storage).
type Bank struct {
	logger *slog.Logger

	mu       sync.RWMutex
	policies map[string]string

	templates  *index
	violations *index
}

// New creates a memory bank seeded from the given directories. Policy files
// (.txt or .md) become snippets keyed by filename without extension; template
// files become entries in the template index. A missing directory seeds
// nothing and is not an error.
func New(policiesDir, templatesDir string, logger *slog.Logger) (*Bank, error) {
	b := &Bank{
		logger:     logger,
		policies:   make(map[string]string),
		templates:  newIndex(),
		violations: newIndex(),
	}

	if err := b.loadPolicies(policiesDir); err != nil {
		return nil, fmt.Errorf("load policies: %w", err)
	}
	if err := b.loadTemplates(templatesDir); err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}

	logger.Info(
		"memory bank seeded",
		"policies", len(b.policies),
		"templates", b.templates.len(),
	)

	return b, nil
}

func (b *Bank) loadPolicies(dir string) error {
	return eachDocFile(dir, func(id, content string) {
		b.policies[id] = content
	})
}

func (b *Bank) loadTemplates(dir string) error {
	return eachDocFile(dir, func(id, content string) {
		b.templates.add(id, content, map[string]string{"template_id": id})
	})
}

func eachDocFile(dir string, fn func(id, content string)) error {
	if dir == "" {
		return nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, e := range entries {
		if e.IsDir() {
			continue
		}

		ext := filepath.Ext(e.Name())
		if ext != ".txt" && ext != ".md" {
			continue
		}

		content, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return err
		}

		fn(strings.TrimSuffix(e.Name(), ext), string(content))
	}

	return nil
}

// PolicySnippet returns the policy text for a rule id. Absence is reported
// through the bool, not an error.
func (b *Bank) PolicySnippet(_ context.Context, ruleID string) (string, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	snippet, ok := b.policies[ruleID]
	return snippet, ok, nil
}

// SearchTemplates returns up to topK approved templates ranked by
// similarity to the query text.
func (b *Bank) SearchTemplates(_ context.Context, query string, topK int) ([]pipeline.Match, error) {
	return b.templates.search(query, topK), nil
}

// SearchViolations returns up to topK past violations ranked by similarity
// to the query text.
func (b *Bank) SearchViolations(_ context.Context, query string, topK int) ([]pipeline.Match, error) {
	return b.violations.search(query, topK), nil
}

// StorePolicy adds or replaces a policy snippet.
func (b *Bank) StorePolicy(id, content string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.policies[id] = content
}

// StoreTemplate adds an approved template chunk to the template index.
func (b *Bank) StoreTemplate(id, text string, metadata map[string]string) {
	b.templates.add(id, text, metadata)
}

// StoreViolation records a confirmed violation so future runs can surface
// it as precedent. Violations without text fall back to their message.
func (b *Bank) StoreViolation(id string, v pipeline.Violation) {
	text := v.Text
	if text == "" {
		text = v.Message
	}
	if text == "" {
		return
	}

	b.violations.add(id, text, map[string]string{
		"violation_id": id,
		"kind":         string(v.Kind),
		"severity":     string(v.Severity),
		"rule_id":      v.RuleID,
	})
}
