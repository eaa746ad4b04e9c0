package render

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Op is the kind of a diff edit.
type Op int

// Diff operations.
const (
	Equal Op = iota
	Insert
	Delete
)

// Edit is a run of notation tokens kept, inserted or deleted.
type Edit struct {
	Op     Op
	Tokens []string
}

// Diff compares two notation strings token by token.
func Diff(before, after string) []Edit {
	dmp := diffmatchpatch.New()

	src, dst, tokens := dmp.DiffLinesToRunes(tokenLines(before), tokenLines(after))
	diffs := dmp.DiffMainRunes(src, dst, false)
	diffs = dmp.DiffCleanupMerge(dmp.DiffCharsToLines(diffs, tokens))

	edits := make([]Edit, 0, len(diffs))

	for _, d := range diffs {
		e := Edit{Tokens: strings.Fields(d.Text)}

		switch d.Type {
		case diffmatchpatch.DiffInsert:
			e.Op = Insert
		case diffmatchpatch.DiffDelete:
			e.Op = Delete
		case diffmatchpatch.DiffEqual:
			e.Op = Equal
		}

		edits = append(edits, e)
	}

	return edits
}

// DiffStats counts inserted and deleted tokens.
func DiffStats(edits []Edit) (inserted, deleted int) {
	for _, e := range edits {
		switch e.Op {
		case Insert:
			inserted += len(e.Tokens)
		case Delete:
			deleted += len(e.Tokens)
		case Equal:
		}
	}

	return inserted, deleted
}

// FormatDiff writes edits inline, marking deletions with '-' and insertions
// with '+'.
func FormatDiff(edits []Edit) string {
	var parts []string

	for _, e := range edits {
		for _, tok := range e.Tokens {
			switch e.Op {
			case Insert:
				parts = append(parts, "+"+tok)
			case Delete:
				parts = append(parts, "-"+tok)
			case Equal:
				parts = append(parts, tok)
			}
		}
	}

	return strings.Join(parts, " ")
}

// tokenLines puts each notation token on its own line so the line-mode
// diff compares whole tokens.
func tokenLines(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}

	return strings.Join(fields, "\n") + "\n"
}
