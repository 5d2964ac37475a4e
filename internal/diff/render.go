package diff

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// maxListed caps how many model names a summary prints per provider and direction.
const maxListed = 20

// RenderSummary renders change sets as a markdown report, used for the CLI
// diff command and pull request bodies.
func RenderSummary(sets []*ChangeSet) string {
	var b strings.Builder

	changed := 0
	for _, cs := range sets {
		if cs.HasChanges() {
			changed++
		}
	}
	if changed == 0 {
		b.WriteString("No model changes.\n")
		return b.String()
	}

	b.WriteString("| Provider | Added | Removed | Unchanged |\n")
	b.WriteString("|---|---:|---:|---:|\n")
	for _, cs := range sets {
		if !cs.HasChanges() {
			continue
		}
		fmt.Fprintf(&b, "| %s | %d | %d | %d |\n", cs.Provider, len(cs.Added), len(cs.Removed), cs.Unchanged)
	}

	for _, cs := range sets {
		if !cs.HasChanges() {
			continue
		}
		fmt.Fprintf(&b, "\n### %s\n", cs.Provider)
		if cs.Reordered {
			b.WriteString("\nSections regrouped, no models added or removed.\n")
		}
		writeList(&b, "Added", "+", cs.Added)
		writeList(&b, "Removed", "-", cs.Removed)
		if len(cs.PossibleRenames) > 0 {
			b.WriteString("\nPossible renames:\n")
			for _, rp := range cs.PossibleRenames {
				fmt.Fprintf(&b, "- `%s` → `%s` (%s)\n", rp.OldName, rp.NewName, rp.Reason)
			}
		}
	}
	return b.String()
}

func writeList(b *strings.Builder, title, sign string, ids []string) {
	if len(ids) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s (%d):\n```diff\n", title, len(ids))
	for i, id := range ids {
		if i == maxListed {
			fmt.Fprintf(b, "%s ... and %d more\n", sign, len(ids)-maxListed)
			break
		}
		fmt.Fprintf(b, "%s %s\n", sign, id)
	}
	b.WriteString("```\n")
}

// Text renders a line-based unified-style diff between two versions of a
// document. Unchanged runs longer than 2*context lines are collapsed. An
// empty string means the texts are equal.
func Text(name, oldText, newText string, context int) string {
	if oldText == newText {
		return ""
	}

	dmp := diffmatchpatch.New()
	rOld, rNew, lineArray := dmp.DiffLinesToRunes(oldText, newText)
	diffs := dmp.DiffCleanupMerge(dmp.DiffMainRunes(rOld, rNew, false))

	decode := func(s string) []string {
		out := make([]string, 0, len(s))
		for _, r := range s {
			if idx := int(r); idx >= 0 && idx < len(lineArray) {
				out = append(out, strings.TrimSuffix(lineArray[idx], "\n"))
			}
		}
		return out
	}

	var b strings.Builder
	fmt.Fprintf(&b, "--- a/%s\n+++ b/%s\n", name, name)

	for i, d := range diffs {
		lines := decode(d.Text)
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			for _, l := range lines {
				b.WriteString("-" + l + "\n")
			}
		case diffmatchpatch.DiffInsert:
			for _, l := range lines {
				b.WriteString("+" + l + "\n")
			}
		case diffmatchpatch.DiffEqual:
			writeContext(&b, lines, context, i == 0, i == len(diffs)-1)
		}
	}
	return b.String()
}

func writeContext(b *strings.Builder, lines []string, context int, first, last bool) {
	head, tail := context, context
	if first {
		head = 0
	}
	if last {
		tail = 0
	}
	if len(lines) <= head+tail {
		for _, l := range lines {
			b.WriteString(" " + l + "\n")
		}
		return
	}
	for _, l := range lines[:head] {
		b.WriteString(" " + l + "\n")
	}
	fmt.Fprintf(b, "@@ %d unchanged lines @@\n", len(lines)-head-tail)
	for _, l := range lines[len(lines)-tail:] {
		b.WriteString(" " + l + "\n")
	}
}
