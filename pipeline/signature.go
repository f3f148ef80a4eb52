package pipeline

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"
)

const ScannerSignature = "signature_checker"

var signaturePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)signed\s+by`),
	regexp.MustCompile(`(?i)signature`),
	regexp.MustCompile(`(?i)approved\s+by`),
	regexp.MustCompile(`(?i)authorized\s+signature`),
}

var signatureRequired = []string{DocTypeContract, DocTypeHRForm, "agreement", DocTypePolicy}

// SignatureScanner checks for signature and approval fields. Document
// types that require a signature produce a single high-severity violation
// spanning the whole document when none is found.
type SignatureScanner struct{}

// NewSignatureScanner creates the signature scanner.
func NewSignatureScanner() *SignatureScanner {
	return &SignatureScanner{}
}

func (s *SignatureScanner) Name() string { return ScannerSignature }

func (s *SignatureScanner) Scan(ctx context.Context, snap Snapshot) ([]Violation, StageOutput, error) {
	found := 0
	for _, pattern := range signaturePatterns {
		found += len(pattern.FindAllStringIndex(snap.DocumentText, -1))
	}

	// Heuristic for embedded signature images referenced in extracted text.
	lower := strings.ToLower(snap.DocumentText)
	if strings.Contains(lower, "signature") &&
		(strings.Contains(lower, "image") || strings.Contains(lower, "png") || strings.Contains(lower, "jpg")) {
		found++
	}

	var violations []Violation
	if found == 0 && slices.Contains(signatureRequired, snap.DocumentType) {
		violations = append(violations, Violation{
			Kind:      KindMissingSignature,
			Severity:  SeverityHigh,
			SpanStart: 0,
			SpanEnd:   len(snap.DocumentText),
			Message:   fmt.Sprintf("%s document missing required signature/approval", snap.DocumentType),
		})
	}

	return violations, StageOutput{
		SignaturesFound: found,
		ViolationsFound: len(violations),
	}, nil
}
