package document

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// patch records where one rewritten entry's models block sits in the
// original bytes. Line numbers are 0-based indexes into Document.lines.
type patch struct {
	entry *yaml.Node

	hasModels    bool
	parentIndent int // indent of the entry keys, used when models is missing
	indent       int // indent of the keys inside models
	seqIndent    int // indent of the "- " of default items
	insertAt     int // where missing keys are inserted

	defaultStart int // -1 when the default key is absent
	defaultEnd   int
	defaultHead  string

	fetchLine   int // -1 when the fetch key is absent
	fetchPrefix string
	fetchSuffix string

	defaultDirty bool
	fetchDirty   bool
}

// edit replaces lines [start, end) with text. start == end inserts.
type edit struct {
	start, end int
	text       []string
}

// findPatch returns the patch already recorded for entry, if any.
func (d *Document) findPatch(entry *yaml.Node) *patch {
	for _, p := range d.patches {
		if p.entry == entry {
			return p
		}
	}
	return nil
}

// locate captures the positions of entry's models block before it is
// mutated. It reports false when the block cannot be rewritten line by line.
func (d *Document) locate(entry *yaml.Node) (*patch, bool) {
	p := &patch{entry: entry, defaultStart: -1, fetchLine: -1}
	if entry.Style&yaml.FlowStyle != 0 || len(entry.Content) < 2 || entry.Content[0].Line == 0 {
		return p, false
	}

	mk, mv := mappingPair(entry, keyModels)
	if mk == nil {
		n := len(entry.Content)
		p.parentIndent = entry.Content[0].Column - 1
		p.indent = p.parentIndent + d.indent
		p.seqIndent = p.indent + d.seqOffset
		p.insertAt = d.valueEnd(entry.Content[n-2], entry.Content[n-1])
		return p, true
	}
	if mv.Kind != yaml.MappingNode || mv.Style&yaml.FlowStyle != 0 || len(mv.Content) < 2 {
		return p, false
	}

	n := len(mv.Content)
	p.hasModels = true
	p.indent = mv.Content[0].Column - 1
	p.seqIndent = p.indent + d.seqOffset
	p.insertAt = d.valueEnd(mv.Content[n-2], mv.Content[n-1])

	if k, v := mappingPair(mv, keyDefault); k != nil {
		head, ok := d.keyHead(k, v)
		if !ok {
			return p, false
		}
		p.defaultStart = k.Line - 1
		p.defaultEnd = d.valueEnd(k, v)
		p.defaultHead = head
		if ind, ok := d.dashIndent(v); ok {
			p.seqIndent = ind
		}
	}

	if k, v := mappingPair(mv, keyFetch); k != nil {
		if v.Kind != yaml.ScalarNode || v.Line != k.Line {
			return p, false
		}
		line := []rune(trimEOL(d.lines[v.Line-1]))
		if v.Column-1 > len(line) {
			return p, false
		}
		p.fetchLine = v.Line - 1
		p.fetchPrefix = string(line[:v.Column-1])
		rest := string(line[v.Column-1:])
		if i := strings.Index(rest, " #"); i >= 0 && v.Style&(yaml.SingleQuotedStyle|yaml.DoubleQuotedStyle) == 0 {
			p.fetchSuffix = rest[len(strings.TrimRight(rest[:i], " ")):]
		}
	}
	return p, true
}

// splice writes the recorded patches into the original bytes, leaving
// every other line as it was.
func (d *Document) splice() ([]byte, error) {
	eol := "\n"
	if strings.Contains(string(d.original), "\r\n") {
		eol = "\r\n"
	}

	var edits []edit
	for _, p := range d.patches {
		e, err := d.patchEdits(p, eol)
		if err != nil {
			return nil, err
		}
		edits = append(edits, e...)
	}

	sort.Slice(edits, func(i, j int) bool {
		if edits[i].start != edits[j].start {
			return edits[i].start < edits[j].start
		}
		return edits[i].end < edits[j].end
	})
	for i := 1; i < len(edits); i++ {
		if edits[i].start < edits[i-1].end {
			return nil, fmt.Errorf("overlapping edits at line %d", edits[i].start+1)
		}
	}

	var out []string
	next := 0
	for _, e := range edits {
		out = append(out, d.lines[next:e.start]...)
		if n := len(out); n > 0 && !strings.HasSuffix(out[n-1], "\n") {
			out[n-1] += eol
		}
		out = append(out, e.text...)
		next = e.end
	}
	out = append(out, d.lines[next:]...)

	return []byte(strings.Join(out, "")), nil
}

func (d *Document) patchEdits(p *patch, eol string) ([]edit, error) {
	var (
		edits   []edit
		missing []string
	)

	if p.defaultDirty {
		seq := mappingValue(mappingValue(p.entry, keyModels), keyDefault)
		items, err := itemLines(seq, p.seqIndent, eol)
		if err != nil {
			return nil, err
		}
		if p.defaultStart >= 0 {
			text := append([]string{p.defaultHead + eol}, items...)
			edits = append(edits, edit{start: p.defaultStart, end: p.defaultEnd, text: text})
		} else {
			missing = append(missing, pad(p.indent)+keyDefault+":"+eol)
			missing = append(missing, items...)
		}
	}

	if p.fetchDirty {
		if p.fetchLine >= 0 {
			line := p.fetchPrefix + "false" + p.fetchSuffix + eol
			edits = append(edits, edit{start: p.fetchLine, end: p.fetchLine + 1, text: []string{line}})
		} else {
			missing = append(missing, pad(p.indent)+keyFetch+": false"+eol)
		}
	}

	if len(missing) > 0 {
		if !p.hasModels {
			missing = append([]string{pad(p.parentIndent) + keyModels + ":" + eol}, missing...)
		}
		edits = append(edits, edit{start: p.insertAt, end: p.insertAt, text: missing})
	}
	return edits, nil
}

// itemLines renders seq as block sequence lines. Each scalar is encoded on
// its own so quoting follows the node style.
func itemLines(seq *yaml.Node, indent int, eol string) ([]string, error) {
	if seq == nil || seq.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("models.default is not a sequence")
	}
	lines := make([]string, 0, len(seq.Content))
	for _, item := range seq.Content {
		out, err := yaml.Marshal(item)
		if err != nil {
			return nil, fmt.Errorf("encoding %q: %w", item.Value, err)
		}
		text := strings.TrimSuffix(string(out), "\n")
		if strings.Contains(text, "\n") {
			return nil, fmt.Errorf("model %q does not fit on one line", item.Value)
		}
		lines = append(lines, pad(indent)+"- "+text+eol)
	}
	return lines, nil
}

// valueEnd returns the line after the last content line of the value of
// key. Trailing blank lines and comments are left outside the range.
func (d *Document) valueEnd(key, value *yaml.Node) int {
	keyIndent := key.Column - 1
	ind, ok := d.dashIndent(value)
	indentless := ok && ind == keyIndent

	end := key.Line
	for i := key.Line; i < len(d.lines); i++ {
		text := trimEOL(d.lines[i])
		trimmed := strings.TrimLeft(text, " ")
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		n := len(text) - len(trimmed)
		if n > keyIndent || (indentless && n == keyIndent && (trimmed == "-" || strings.HasPrefix(trimmed, "- "))) {
			end = i + 1
			continue
		}
		break
	}
	return end
}

// keyHead returns the text of the key line up to where its value starts.
func (d *Document) keyHead(key, value *yaml.Node) (string, bool) {
	line := []rune(trimEOL(d.lines[key.Line-1]))
	if value != nil && value.Line == key.Line {
		if value.Column-1 > len(line) || value.Column < key.Column {
			return "", false
		}
		line = line[:value.Column-1]
	}
	return strings.TrimRight(string(line), " "), true
}

// dashIndent reports the indent of the "- " that opens a block sequence.
func (d *Document) dashIndent(seq *yaml.Node) (int, bool) {
	if seq == nil || seq.Kind != yaml.SequenceNode || seq.Style&yaml.FlowStyle != 0 || len(seq.Content) == 0 {
		return 0, false
	}
	first := seq.Content[0]
	if first.Line < 1 || first.Line > len(d.lines) {
		return 0, false
	}
	text := trimEOL(d.lines[first.Line-1])
	trimmed := strings.TrimLeft(text, " ")
	if !strings.HasPrefix(trimmed, "-") {
		return 0, false
	}
	return len(text) - len(trimmed), true
}

// detectSeqOffset finds how far the document indents block sequences
// relative to their key, e.g. 0 for "key:\n- item".
func (d *Document) detectSeqOffset() int {
	offset, found := 0, false
	var walk func(*yaml.Node)
	walk = func(node *yaml.Node) {
		if found {
			return
		}
		if node.Kind == yaml.MappingNode {
			for i := 0; i+1 < len(node.Content); i += 2 {
				if ind, ok := d.dashIndent(node.Content[i+1]); ok {
					offset, found = ind-(node.Content[i].Column-1), true
					return
				}
				walk(node.Content[i+1])
				if found {
					return
				}
			}
			return
		}
		for _, child := range node.Content {
			walk(child)
		}
	}
	walk(&d.root)
	if !found || offset < 0 {
		return d.indent
	}
	return offset
}

func mappingPair(node *yaml.Node, key string) (*yaml.Node, *yaml.Node) {
	if node == nil || node.Kind != yaml.MappingNode {
		return nil, nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i], node.Content[i+1]
		}
	}
	return nil, nil
}

func trimEOL(s string) string {
	return strings.TrimRight(s, "\r\n")
}

func pad(n int) string {
	return strings.Repeat(" ", n)
}
