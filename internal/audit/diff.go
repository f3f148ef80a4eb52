package audit

import (
	"html"
	"strings"
)

type diffKind int

const (
	diffEqual diffKind = iota
	diffDelete
	diffInsert
)

type diffOp struct {
	kind diffKind
	text string
}

// renderDiff produces an HTML view of the change from original to
// modified: a line-based diff with deletions struck out and insertions
// highlighted. Reviewers open this straight from the audit bundle.
func renderDiff(original, modified string) []byte {
	ops := diffLines(
		strings.SplitAfter(original, "\n"),
		strings.SplitAfter(modified, "\n"),
	)

	var b strings.Builder
	b.WriteString("<html><body><pre>")
	for _, op := range ops {
		switch op.kind {
		case diffDelete:
			b.WriteString(`<del style="background:#ffe6e6;">`)
			b.WriteString(html.EscapeString(op.text))
			b.WriteString("</del>")
		case diffInsert:
			b.WriteString(`<ins style="background:#e6ffe6;text-decoration:none;">`)
			b.WriteString(html.EscapeString(op.text))
			b.WriteString("</ins>")
		default:
			b.WriteString(html.EscapeString(op.text))
		}
	}
	b.WriteString("</pre></body></html>")

	return []byte(b.String())
}

// diffLines computes a longest-common-subsequence diff over lines.
// Quadratic in line count, which is fine at document scale.
func diffLines(a, b []string) []diffOp {
	lcs := make([][]int, len(a)+1)
	for i := range lcs {
		lcs[i] = make([]int, len(b)+1)
	}
	for i := len(a) - 1; i >= 0; i-- {
		for j := len(b) - 1; j >= 0; j-- {
			if a[i] == b[j] {
				lcs[i][j] = lcs[i+1][j+1] + 1
			} else {
				lcs[i][j] = max(lcs[i+1][j], lcs[i][j+1])
			}
		}
	}

	var ops []diffOp
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			ops = append(ops, diffOp{diffEqual, a[i]})
			i++
			j++
		case lcs[i+1][j] >= lcs[i][j+1]:
			ops = append(ops, diffOp{diffDelete, a[i]})
			i++
		default:
			ops = append(ops, diffOp{diffInsert, b[j]})
			j++
		}
	}
	for ; i < len(a); i++ {
		ops = append(ops, diffOp{diffDelete, a[i]})
	}
	for ; j < len(b); j++ {
		ops = append(ops, diffOp{diffInsert, b[j]})
	}

	return ops
}
