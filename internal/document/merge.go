// Package document loads gateway configuration YAML files as node trees,
// replaces provider model lists in place and writes them back with a backup.
package document

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/everstacklabs/modelsync/internal/catalog"
	"github.com/everstacklabs/modelsync/internal/group"
)

// DefaultEntriesPath locates the endpoint entries inside a document.
var DefaultEntriesPath = []string{"endpoints", "custom"}

const (
	keyName    = "name"
	keyModels  = "models"
	keyDefault = "default"
	keyFetch   = "fetch"
)

// Document is a configuration file held as a yaml.v3 node tree. The tree
// locates endpoint entries; a save rewrites only the lines of the models
// blocks that changed, so everything else keeps its bytes.
type Document struct {
	Path string

	original    []byte
	lines       []string
	root        yaml.Node
	entriesPath []string
	indent      int
	seqOffset   int
	changed     bool

	patches  []*patch
	reencode bool
}

// Option configures a Document.
type Option func(*Document)

// WithEntriesPath overrides where endpoint entries are looked up.
func WithEntriesPath(path []string) Option {
	return func(d *Document) {
		if len(path) > 0 {
			d.entriesPath = path
		}
	}
}

// WithIndent sets the indentation used for new nested keys and when the
// document is re-encoded as a whole.
func WithIndent(n int) Option {
	return func(d *Document) {
		if n > 0 {
			d.indent = n
		}
	}
}

// Load reads and parses the document at path.
func Load(path string, opts ...Option) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Path: path, Op: OpLoad, Err: err}
	}
	return Parse(path, data, opts...)
}

// Parse builds a Document from raw bytes.
func Parse(path string, data []byte, opts ...Option) (*Document, error) {
	d := &Document{
		Path:        path,
		original:    data,
		entriesPath: DefaultEntriesPath,
		indent:      2,
	}
	for _, opt := range opts {
		opt(d)
	}

	if err := d.reset(data); err != nil {
		return nil, &Error{Path: path, Op: OpLoad, Err: err}
	}
	return d, nil
}

// reset parses data as the document's new original content.
func (d *Document) reset(data []byte) error {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return fmt.Errorf("parsing YAML: %w", err)
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return ErrEmptyDocument
	}
	if root.Content[0].Kind != yaml.MappingNode {
		return ErrNotMapping
	}

	d.original = data
	d.lines = strings.SplitAfter(string(data), "\n")
	d.root = root
	d.seqOffset = d.detectSeqOffset()
	d.changed = false
	d.patches = nil
	d.reencode = false
	return nil
}

// Changed reports whether Apply or ConvertBlockStyle modified the tree.
func (d *Document) Changed() bool { return d.changed }

// Original returns the bytes the document was loaded from.
func (d *Document) Original() []byte { return d.original }

// Endpoint is a read-only view of one endpoint entry.
type Endpoint struct {
	Name   string
	Models []string
	Fetch  bool
}

// Endpoints lists the endpoint entries in document order.
func (d *Document) Endpoints() []Endpoint {
	var out []Endpoint
	for _, entry := range d.entries() {
		name := scalarValue(mappingValue(entry, keyName))
		if name == "" {
			continue
		}
		ep := Endpoint{Name: name}
		if models := mappingValue(entry, keyModels); models != nil {
			ep.Models = sequenceValues(mappingValue(models, keyDefault))
			ep.Fetch = scalarValue(mappingValue(models, keyFetch)) == "true"
		}
		out = append(out, ep)
	}
	return out
}

// Models returns the current default model list of the named endpoint.
func (d *Document) Models(provider string) ([]string, bool) {
	for _, ep := range d.Endpoints() {
		if ep.Name == provider {
			return ep.Models, true
		}
	}
	return nil, false
}

// Apply writes every catalog list into the endpoint entry of the same name
// and pins it by setting fetch to false. Entries without a catalog list are
// left alone. It returns the names of the entries that actually changed.
func (d *Document) Apply(c catalog.ProviderCatalog) []string {
	var updated []string
	for _, entry := range d.entries() {
		name := scalarValue(mappingValue(entry, keyName))
		models, ok := c[name]
		if !ok || name == "" || len(models) == 0 {
			continue
		}

		p := d.findPatch(entry)
		fresh := p == nil
		spliceable := true
		if fresh {
			p, spliceable = d.locate(entry)
		}

		defaultChanged, fetchChanged := applyModels(entry, models)
		if !defaultChanged && !fetchChanged {
			continue
		}
		if fresh {
			d.patches = append(d.patches, p)
			if !spliceable {
				d.reencode = true
			}
		}
		p.defaultDirty = p.defaultDirty || defaultChanged
		p.fetchDirty = p.fetchDirty || fetchChanged
		updated = append(updated, name)
	}
	if len(updated) > 0 {
		d.changed = true
	}
	return updated
}

// ConvertBlockStyle rewrites every flow-style sequence as a block sequence.
// It returns the number of sequences converted. A converted document is
// re-encoded as a whole on save.
func (d *Document) ConvertBlockStyle() int {
	n := 0
	var walk func(*yaml.Node)
	walk = func(node *yaml.Node) {
		if node.Kind == yaml.SequenceNode && node.Style&yaml.FlowStyle != 0 {
			node.Style &^= yaml.FlowStyle
			n++
		}
		for _, child := range node.Content {
			walk(child)
		}
	}
	walk(&d.root)
	if n > 0 {
		d.changed = true
		d.reencode = true
	}
	return n
}

// Encode renders the document. Unchanged documents return their original
// bytes; applied model lists are spliced into the original lines.
func (d *Document) Encode() ([]byte, error) {
	if !d.changed {
		return d.original, nil
	}
	if !d.reencode {
		data, err := d.splice()
		if err == nil {
			return data, nil
		}
		slog.Debug("re-encoding document", "document", d.Path, "reason", err)
	}
	return d.encodeTree()
}

func (d *Document) encodeTree() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(d.indent)
	if err := enc.Encode(&d.root); err != nil {
		return nil, fmt.Errorf("encoding YAML: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encoding YAML: %w", err)
	}
	return buf.Bytes(), nil
}

// entries returns the endpoint entry mappings.
func (d *Document) entries() []*yaml.Node {
	node := d.root.Content[0]
	for _, key := range d.entriesPath {
		node = mappingValue(node, key)
		if node == nil {
			return nil
		}
	}
	if node.Kind != yaml.SequenceNode {
		return nil
	}
	var out []*yaml.Node
	for _, item := range node.Content {
		if item.Kind == yaml.MappingNode {
			out = append(out, item)
		}
	}
	return out
}

// applyModels replaces models.default and sets models.fetch to false,
// reporting which of the two differed.
func applyModels(entry *yaml.Node, models []string) (defaultChanged, fetchChanged bool) {
	modelsNode := mappingValue(entry, keyModels)
	if modelsNode == nil || modelsNode.Kind != yaml.MappingNode {
		fresh := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		setMappingValue(entry, keyModels, fresh)
		modelsNode = fresh
	}

	current := mappingValue(modelsNode, keyDefault)
	if !equalStrings(sequenceValues(current), models) {
		setMappingValue(modelsNode, keyDefault, buildSequence(current, models))
		defaultChanged = true
	}

	fetch := mappingValue(modelsNode, keyFetch)
	switch {
	case fetch == nil:
		setMappingValue(modelsNode, keyFetch, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: "false"})
		fetchChanged = true
	case fetch.Kind != yaml.ScalarNode || fetch.Value != "false":
		fetch.Kind = yaml.ScalarNode
		fetch.Tag = "!!bool"
		fetch.Value = "false"
		fetch.Style = 0
		fetch.Content = nil
		fetchChanged = true
	}

	return defaultChanged, fetchChanged
}

// buildSequence creates the block sequence for models. Items whose value
// already existed keep their original quoting style; markers are single-quoted.
func buildSequence(prev *yaml.Node, models []string) *yaml.Node {
	styles := make(map[string]yaml.Style)
	seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
	if prev != nil {
		if prev.Kind == yaml.SequenceNode {
			for _, item := range prev.Content {
				if item.Kind == yaml.ScalarNode {
					styles[item.Value] = item.Style
				}
			}
		}
		seq.HeadComment = prev.HeadComment
		seq.LineComment = prev.LineComment
		seq.FootComment = prev.FootComment
	}

	for _, m := range models {
		item := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: m}
		if style, ok := styles[m]; ok {
			item.Style = style
		} else if group.IsMarker(m) {
			item.Style = yaml.SingleQuotedStyle
		}
		seq.Content = append(seq.Content, item)
	}
	return seq
}

func mappingValue(node *yaml.Node, key string) *yaml.Node {
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

// setMappingValue replaces the value of key in place, or appends the pair.
func setMappingValue(node *yaml.Node, key string, value *yaml.Node) {
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			node.Content[i+1] = value
			return
		}
	}
	node.Content = append(node.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
		value,
	)
}

func scalarValue(node *yaml.Node) string {
	if node == nil || node.Kind != yaml.ScalarNode {
		return ""
	}
	return strings.TrimSpace(node.Value)
}

func sequenceValues(node *yaml.Node) []string {
	if node == nil || node.Kind != yaml.SequenceNode {
		return nil
	}
	out := make([]string, 0, len(node.Content))
	for _, item := range node.Content {
		if item.Kind == yaml.ScalarNode {
			out = append(out, item.Value)
		}
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
