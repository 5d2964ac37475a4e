// Package normalize turns raw provider responses into sorted, deduplicated
// lists of model identifiers using a declarative per-provider Rule.
package normalize

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Op is a predicate comparison operator.
type Op string

const (
	OpContains  Op = "contains"   // list field contains Value
	OpEquals    Op = "equals"     // field equals Value
	OpNotEquals Op = "not_equals" // field is absent or differs from Value
	OpTruthy    Op = "truthy"     // field is present and truthy
	OpFalsy     Op = "falsy"      // field is absent or falsy
	OpBelow     Op = "below"      // numeric field is strictly below Value
)

// Predicate selects eligible entries of a response.
type Predicate struct {
	Field string `mapstructure:"field" yaml:"field"`
	Op    Op     `mapstructure:"op" yaml:"op"`
	Value string `mapstructure:"value" yaml:"value"`
}

// Alias accepts entries that point at an already accepted identifier, e.g.
// proxy entries naming the chat model they forward to.
type Alias struct {
	When        []Predicate `mapstructure:"when" yaml:"when"`
	TargetField string      `mapstructure:"target_field" yaml:"target_field"`
}

// Rule describes where identifiers live in a provider response.
type Rule struct {
	// IDField names the identifier field. Empty means entries are bare strings.
	IDField string `mapstructure:"id_field" yaml:"id_field"`
	// Path is a dot-separated path to the entry collection. Empty means the
	// body itself. A mapping at the path is treated as the collection of its values.
	Path    string      `mapstructure:"path" yaml:"path"`
	Filters []Predicate `mapstructure:"filters" yaml:"filters"`
	Alias   *Alias      `mapstructure:"alias" yaml:"alias"`
	// Pattern, when set, replaces each identifier with its first capture group.
	// Identifiers that do not match are dropped.
	Pattern string `mapstructure:"pattern" yaml:"pattern"`
}

// Validate reports configuration errors in the rule.
func (r Rule) Validate() error {
	for _, p := range r.Filters {
		if err := p.validate(); err != nil {
			return err
		}
	}
	if r.Alias != nil {
		if r.Alias.TargetField == "" {
			return fmt.Errorf("alias: target_field is required")
		}
		for _, p := range r.Alias.When {
			if err := p.validate(); err != nil {
				return fmt.Errorf("alias: %w", err)
			}
		}
	}
	if r.Pattern != "" {
		if _, err := regexp.Compile(r.Pattern); err != nil {
			return fmt.Errorf("pattern: %w", err)
		}
	}
	return nil
}

func (p Predicate) validate() error {
	if p.Field == "" {
		return fmt.Errorf("predicate %q: field is required", p.Op)
	}
	switch p.Op {
	case OpContains, OpEquals, OpNotEquals, OpTruthy, OpFalsy:
	case OpBelow:
		if _, err := strconv.ParseFloat(p.Value, 64); err != nil {
			return fmt.Errorf("predicate below on %s: value %q is not a number", p.Field, p.Value)
		}
	default:
		return fmt.Errorf("unknown predicate op %q", p.Op)
	}
	return nil
}

// Normalize extracts identifiers from a decoded response body. Missing
// fields and unexpected shapes yield an empty result.
func Normalize(raw any, rule Rule) []string {
	return NormalizeAll([]any{raw}, rule)
}

// NormalizeAll extracts identifiers from several response bodies (pages or
// typed queries of one provider) and returns their sorted union.
func NormalizeAll(bodies []any, rule Rule) []string {
	var pattern *regexp.Regexp
	if rule.Pattern != "" {
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return []string{}
		}
		pattern = re
	}

	var entries []any
	for _, body := range bodies {
		entries = append(entries, collection(body, rule.Path)...)
	}

	seen := make(map[string]struct{})
	for _, e := range entries {
		if !matchesAll(e, rule.Filters) {
			continue
		}
		if id, ok := identifier(e, rule.IDField); ok {
			seen[id] = struct{}{}
		}
	}

	if rule.Alias != nil {
		for _, e := range entries {
			if !matchesAll(e, rule.Alias.When) {
				continue
			}
			target, ok := lookup(e, rule.Alias.TargetField)
			if !ok {
				continue
			}
			if _, accepted := seen[fmt.Sprint(target)]; !accepted {
				continue
			}
			if id, ok := identifier(e, rule.IDField); ok {
				seen[id] = struct{}{}
			}
		}
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		if pattern != nil {
			m := pattern.FindStringSubmatch(id)
			if m == nil {
				continue
			}
			if len(m) > 1 {
				id = m[1]
			} else {
				id = m[0]
			}
		}
		if id == "" || looksLikeMarker(id) {
			continue
		}
		ids = append(ids, id)
	}
	return SortUnique(ids)
}

// SortUnique sorts ids ascending by byte comparison and drops duplicates.
func SortUnique(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// collection navigates path and returns the entries found there.
func collection(body any, path string) []any {
	node := body
	if path != "" {
		for _, key := range strings.Split(path, ".") {
			m, ok := node.(map[string]any)
			if !ok {
				return nil
			}
			if node, ok = m[key]; !ok {
				return nil
			}
		}
	}

	switch v := node.(type) {
	case []any:
		return v
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]any, 0, len(v))
		for _, k := range keys {
			out = append(out, v[k])
		}
		return out
	default:
		return nil
	}
}

func identifier(entry any, field string) (string, bool) {
	var v any = entry
	if field != "" {
		var ok bool
		if v, ok = lookup(entry, field); !ok {
			return "", false
		}
	}
	switch id := v.(type) {
	case string:
		id = strings.TrimSpace(id)
		return id, id != ""
	case float64, int, int64, bool:
		return fmt.Sprint(id), true
	default:
		return "", false
	}
}

// lookup resolves a dot-separated field inside an entry.
func lookup(entry any, field string) (any, bool) {
	node := entry
	for _, key := range strings.Split(field, ".") {
		m, ok := node.(map[string]any)
		if !ok {
			return nil, false
		}
		if node, ok = m[key]; !ok {
			return nil, false
		}
	}
	return node, true
}

func matchesAll(entry any, preds []Predicate) bool {
	for _, p := range preds {
		if !p.Match(entry) {
			return false
		}
	}
	return true
}

// Match reports whether entry satisfies the predicate.
func (p Predicate) Match(entry any) bool {
	v, ok := lookup(entry, p.Field)
	switch p.Op {
	case OpContains:
		list, isList := v.([]any)
		if !ok || !isList {
			return false
		}
		for _, item := range list {
			if fmt.Sprint(item) == p.Value {
				return true
			}
		}
		return false
	case OpEquals:
		return ok && scalarString(v) == p.Value
	case OpNotEquals:
		return !ok || scalarString(v) != p.Value
	case OpTruthy:
		return ok && truthy(v)
	case OpFalsy:
		return !ok || !truthy(v)
	case OpBelow:
		limit, err := strconv.ParseFloat(p.Value, 64)
		if err != nil || !ok {
			return false
		}
		n, isNum := number(v)
		return isNum && n < limit
	default:
		return false
	}
}

func scalarString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	default:
		return fmt.Sprint(s)
	}
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != "" && !strings.EqualFold(t, "false")
	case float64:
		return t != 0
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		return true
	}
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// looksLikeMarker mirrors group.IsMarker without importing it; section
// markers are never real identifiers.
func looksLikeMarker(s string) bool {
	return len(s) > 6 && strings.HasPrefix(s, "---") && strings.HasSuffix(s, "---")
}

// Entries returns the raw entry collection at path, or nil when the body has
// no collection there. Paginated sources use it to detect a short last page.
func Entries(raw any, path string) []any {
	return collection(raw, path)
}
