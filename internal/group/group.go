// Package group orders a flat identifier list into labelled sections so that
// large provider catalogs stay readable in configuration files.
package group

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	markerDelim = "---"
	othersLabel = "OTHERS"
)

// DefaultMaxDissolve is the prefix group size at or below which the group
// is folded into OTHERS.
const DefaultMaxDissolve = 2

// Policy configures grouping for one provider.
type Policy struct {
	// PinnedFirst is emitted at position 0, without a marker, when present.
	PinnedFirst string `mapstructure:"pinned_first" yaml:"pinned_first"`
	// Suffixes are checked in priority order; the first match wins.
	Suffixes []string `mapstructure:"suffixes" yaml:"suffixes"`
	// MaxDissolve folds prefix groups of this size or smaller into OTHERS.
	// Zero means DefaultMaxDissolve.
	MaxDissolve int `mapstructure:"max_dissolve" yaml:"max_dissolve"`
	// Extras are identifiers not present in the provider response that get
	// their own section after the first suffix section.
	Extras      []string `mapstructure:"extras" yaml:"extras"`
	ExtrasLabel string   `mapstructure:"extras_label" yaml:"extras_label"`
}

// Item is either a section marker or a model identifier.
type Item struct {
	Name   string
	Marker bool
}

// Entry returns an identifier item.
func Entry(id string) Item { return Item{Name: id} }

// Marker returns a section marker item.
func Marker(label string) Item { return Item{Name: label, Marker: true} }

// String renders the item in its document form.
func (it Item) String() string {
	if it.Marker {
		return markerDelim + it.Name + markerDelim
	}
	return it.Name
}

var upper = cases.Upper(language.Und)

// Group partitions ids into suffix sections, prefix sections and OTHERS.
// Every input identifier appears exactly once in the result.
func Group(ids []string, p Policy) []Item {
	maxDissolve := p.MaxDissolve
	if maxDissolve <= 0 {
		maxDissolve = DefaultMaxDissolve
	}

	present := make(map[string]struct{}, len(ids))
	var remaining []string
	for _, id := range ids {
		if _, dup := present[id]; dup || id == "" {
			continue
		}
		present[id] = struct{}{}
		if id != p.PinnedFirst {
			remaining = append(remaining, id)
		}
	}

	var out []Item
	if _, ok := present[p.PinnedFirst]; ok && p.PinnedFirst != "" {
		out = append(out, Entry(p.PinnedFirst))
	}

	bySuffix := make(map[string][]string, len(p.Suffixes))
	byPrefix := make(map[string][]string)
	for _, id := range remaining {
		if s := matchSuffix(id, p.Suffixes); s != "" {
			bySuffix[s] = append(bySuffix[s], id)
			continue
		}
		prefix := Prefix(id)
		byPrefix[prefix] = append(byPrefix[prefix], id)
	}

	extras := extrasSection(p, present)
	extrasEmitted := len(extras) == 0

	for _, s := range p.Suffixes {
		members := bySuffix[s]
		if len(members) == 0 {
			continue
		}
		sort.Strings(members)
		out = appendSection(out, suffixLabel(s), members)
		if !extrasEmitted {
			out = appendSection(out, extrasLabel(p), extras)
			extrasEmitted = true
		}
		// a suffix listed twice must not be emitted twice
		delete(bySuffix, s)
	}
	if !extrasEmitted {
		out = appendSection(out, extrasLabel(p), extras)
	}

	used := map[string]bool{othersLabel: true}
	for _, it := range out {
		if it.Marker {
			used[it.Name] = true
		}
	}

	var others []string
	prefixes := make([]string, 0, len(byPrefix))
	for prefix, members := range byPrefix {
		// labels stay unique; a prefix whose label is taken joins OTHERS
		if len(members) <= maxDissolve || used[upper.String(prefix)] {
			others = append(others, members...)
			continue
		}
		prefixes = append(prefixes, prefix)
	}
	sort.Strings(prefixes)
	for _, prefix := range prefixes {
		members := byPrefix[prefix]
		sort.Strings(members)
		out = appendSection(out, upper.String(prefix), members)
	}

	if len(others) > 0 {
		sort.Strings(others)
		out = appendSection(out, othersLabel, others)
	}
	return out
}

// Prefix returns the part of id before the first '/', or id itself.
func Prefix(id string) string {
	if i := strings.IndexByte(id, '/'); i >= 0 {
		return id[:i]
	}
	return id
}

func matchSuffix(id string, suffixes []string) string {
	for _, s := range suffixes {
		if s != "" && strings.HasSuffix(id, s) {
			return s
		}
	}
	return ""
}

func suffixLabel(s string) string {
	return upper.String(strings.TrimLeft(s, ":@-_."))
}

func extrasLabel(p Policy) string {
	if p.ExtrasLabel != "" {
		return upper.String(p.ExtrasLabel)
	}
	return "EXTRA"
}

// extrasSection returns the sorted extras that are not already listed.
func extrasSection(p Policy, present map[string]struct{}) []string {
	seen := make(map[string]struct{}, len(p.Extras))
	var out []string
	for _, e := range p.Extras {
		e = strings.TrimSpace(e)
		if e == "" || IsMarker(e) {
			continue
		}
		if _, ok := present[e]; ok {
			continue
		}
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}

func appendSection(out []Item, label string, members []string) []Item {
	if len(members) == 0 {
		return out
	}
	out = append(out, Marker(label))
	for _, m := range members {
		out = append(out, Entry(m))
	}
	return out
}

// Strings serializes items into the marker-string convention used in
// configuration documents.
func Strings(items []Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.String()
	}
	return out
}

// Parse converts a serialized list back into items.
func Parse(list []string) []Item {
	out := make([]Item, 0, len(list))
	for _, s := range list {
		if IsMarker(s) {
			out = append(out, Marker(strings.TrimSuffix(strings.TrimPrefix(s, markerDelim), markerDelim)))
			continue
		}
		out = append(out, Entry(s))
	}
	return out
}

// IsMarker reports whether s uses the section marker convention.
func IsMarker(s string) bool {
	return len(s) > 2*len(markerDelim) &&
		strings.HasPrefix(s, markerDelim) && strings.HasSuffix(s, markerDelim)
}

// StripMarkers returns list without section markers.
func StripMarkers(list []string) []string {
	out := make([]string, 0, len(list))
	for _, s := range list {
		if !IsMarker(s) {
			out = append(out, s)
		}
	}
	return out
}

// Section returns the identifiers listed under the marker named label, up to
// the next marker.
func Section(list []string, label string) []string {
	var out []string
	in := false
	for _, it := range Parse(list) {
		if it.Marker {
			if in {
				break
			}
			in = strings.EqualFold(it.Name, label)
			continue
		}
		if in {
			out = append(out, it.Name)
		}
	}
	return out
}
