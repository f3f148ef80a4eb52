package pipeline

import (
	"context"
	"crypto/sha256"
	"fmt"
	"regexp"
	"sort"
)

const ScannerPII = "pii_scanner"

type piiPattern struct {
	piiType  string
	pattern  *regexp.Regexp
	severity Severity
}

// Detection order is fixed so findings within one scanner are deterministic.
var piiPatterns = []piiPattern{
	{"email", regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`), SeverityMedium},
	{"phone", regexp.MustCompile(`(\+?\d{1,3}[-.\s]?)?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}`), SeverityMedium},
	{"ssn", regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`), SeverityHigh},
	{"credit_card", regexp.MustCompile(`\b\d{4}[\s-]?\d{4}[\s-]?\d{4}[\s-]?\d{4}\b`), SeverityHigh},
	{"iban", regexp.MustCompile(`\b[A-Z]{2}\d{2}[A-Z0-9]{4,30}\b`), SeverityMedium},
	{"account_number", regexp.MustCompile(`\b\d{8,12}\b`), SeverityMedium},
}

const piiConfidence = 0.95

// PIIScanner detects personally identifiable information with regex
// patterns. Purely local: no collaborator calls, cannot fail.
type PIIScanner struct{}

// NewPIIScanner creates the PII scanner.
func NewPIIScanner() *PIIScanner {
	return &PIIScanner{}
}

func (s *PIIScanner) Name() string { return ScannerPII }

func (s *PIIScanner) Scan(ctx context.Context, snap Snapshot) ([]Violation, StageOutput, error) {
	var violations []Violation

	for _, p := range piiPatterns {
		for _, loc := range p.pattern.FindAllStringIndex(snap.DocumentText, -1) {
			violations = append(violations, Violation{
				Kind:       KindPII,
				Severity:   p.severity,
				SpanStart:  loc[0],
				SpanEnd:    loc[1],
				Text:       snap.DocumentText[loc[0]:loc[1]],
				PIIType:    p.piiType,
				Confidence: piiConfidence,
			})
		}
	}

	return violations, StageOutput{ViolationsFound: len(violations)}, nil
}

// RedactSpan replaces every PII violation intersecting [spanStart, spanEnd)
// with an irreversible hash placeholder, working over the extracted span.
// Used before any span text is sent to the generation collaborator.
func RedactSpan(documentText string, spanStart, spanEnd int, piiViolations []Violation) string {
	span := documentText[spanStart:spanEnd]

	// Overlaps sorted by start descending so earlier replacements don't
	// shift later offsets.
	overlaps := make([]Violation, 0, len(piiViolations))
	for _, v := range piiViolations {
		if v.Kind == KindPII && v.SpanStart < spanEnd && v.SpanEnd > spanStart {
			overlaps = append(overlaps, v)
		}
	}
	sort.Slice(overlaps, func(i, j int) bool {
		return overlaps[i].SpanStart > overlaps[j].SpanStart
	})

	for _, v := range overlaps {
		start := max(v.SpanStart, spanStart) - spanStart
		end := min(v.SpanEnd, spanEnd) - spanStart
		hash := sha256.Sum256([]byte(span[start:end]))
		span = span[:start] + fmt.Sprintf("[REDACTED_%x]", hash[:4]) + span[end:]
	}

	return span
}
