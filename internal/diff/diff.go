package diff

import (
	"sort"
	"strings"

	"github.com/everstacklabs/modelsync/internal/catalog"
	"github.com/everstacklabs/modelsync/internal/group"
)

// Compute compares the model list currently in a document against a fetched one.
func Compute(provider string, existing, fetched []string) *ChangeSet {
	cs := &ChangeSet{Provider: provider}

	oldSet := toSet(group.StripMarkers(existing))
	newSet := toSet(group.StripMarkers(fetched))

	for id := range newSet {
		if oldSet[id] {
			cs.Unchanged++
		} else {
			cs.Added = append(cs.Added, id)
		}
	}
	for id := range oldSet {
		if !newSet[id] {
			cs.Removed = append(cs.Removed, id)
		}
	}
	sort.Strings(cs.Added)
	sort.Strings(cs.Removed)

	cs.PossibleRenames = detectRenames(cs.Added, cs.Removed)

	if len(cs.Added) == 0 && len(cs.Removed) == 0 {
		cs.Reordered = !sameSequence(existing, fetched)
	}
	return cs
}

// Catalog computes a ChangeSet for every provider present in both existing
// and c, ordered by provider name.
func Catalog(existing map[string][]string, c catalog.ProviderCatalog) []*ChangeSet {
	var out []*ChangeSet
	for _, name := range c.Names() {
		current, ok := existing[name]
		if !ok {
			continue
		}
		out = append(out, Compute(name, current, c[name]))
	}
	return out
}

// detectRenames pairs removed and added models that share a base name once
// their date segments are dropped, e.g. gpt-4o-2024-05-13 -> gpt-4o-2024-08-06.
func detectRenames(added, removed []string) []RenamePair {
	var renames []RenamePair
	for _, oldName := range removed {
		oldBase, ok := snapshotBase(oldName)
		if !ok {
			continue
		}
		for _, newName := range added {
			if newBase, ok := snapshotBase(newName); ok && newBase == oldBase {
				renames = append(renames, RenamePair{
					OldName: oldName,
					NewName: newName,
					Reason:  "same model, different dated snapshot",
				})
			}
		}
	}
	return renames
}

// snapshotBase strips date-like segments (YYYY, YYYYMMDD, MMDD or
// YYYY-MM-DD) from a model name. It reports false when there was none.
func snapshotBase(name string) (string, bool) {
	parts := strings.Split(name, "-")
	if len(parts) < 2 {
		return "", false
	}
	kept := parts[:1]
	found := false
	for i := 1; i < len(parts); i++ {
		p := parts[i]
		if i+2 < len(parts) && len(p) == 4 && len(parts[i+1]) == 2 && len(parts[i+2]) == 2 &&
			isAllDigits(p) && isAllDigits(parts[i+1]) && isAllDigits(parts[i+2]) {
			found = true
			i += 2
			continue
		}
		if (len(p) == 4 || len(p) == 8) && isAllDigits(p) {
			found = true
			continue
		}
		kept = append(kept, p)
	}
	return strings.Join(kept, "-"), found
}

func isAllDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return len(s) > 0
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func sameSequence(a, b []string) bool {
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
