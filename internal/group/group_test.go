package group

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var openRouterPolicy = Policy{
	PinnedFirst: "openrouter/auto",
	Suffixes:    []string{":free", ":nitro", ":beta", ":extended"},
	ExtrasLabel: "stealth",
}

func TestGroup_PinnedSuffixAndPrefix(t *testing.T) {
	in := []string{"openrouter/auto", "meta/llama-3:free", "meta/llama-2:free", "acme/x", "acme/y", "acme/z"}
	got := Strings(Group(in, Policy{PinnedFirst: "openrouter/auto", Suffixes: []string{":free"}}))

	want := []string{
		"openrouter/auto",
		"---FREE---", "meta/llama-2:free", "meta/llama-3:free",
		"---ACME---", "acme/x", "acme/y", "acme/z",
	}
	assert.Equal(t, want, got)
}

func TestGroup_SmallGroupsDissolveIntoOthers(t *testing.T) {
	got := Strings(Group([]string{"solo/a", "pair/a", "pair/b"}, Policy{}))
	assert.Equal(t, []string{"---OTHERS---", "pair/a", "pair/b", "solo/a"}, got)
}

func TestGroup_Empty(t *testing.T) {
	assert.Empty(t, Group(nil, openRouterPolicy))
	assert.Empty(t, Group([]string{}, openRouterPolicy))
}

func TestGroup_SuffixPriority(t *testing.T) {
	// sections follow the configured suffix order, not lexicographic order
	in := []string{"a/m:free", "b/m:nitro", "c/m:beta", "d/m:extended"}
	got := Strings(Group(in, Policy{Suffixes: []string{":nitro", ":free", ":beta", ":extended"}}))
	assert.Equal(t, []string{
		"---NITRO---", "b/m:nitro",
		"---FREE---", "a/m:free",
		"---BETA---", "c/m:beta",
		"---EXTENDED---", "d/m:extended",
	}, got)
}

func TestGroup_OverlappingSuffixGoesToEarliest(t *testing.T) {
	in := []string{"x/model:beta:free"}
	got := Strings(Group(in, Policy{Suffixes: []string{"beta:free", ":free"}}))
	assert.Equal(t, []string{"---BETA:FREE---", "x/model:beta:free"}, got)
}

func TestGroup_NoSeparatorIsOwnPrefix(t *testing.T) {
	in := []string{"gpt-4", "gpt-4", "x/1", "x/2", "x/3"}
	got := Strings(Group(in, Policy{}))
	assert.Equal(t, []string{"---X---", "x/1", "x/2", "x/3", "---OTHERS---", "gpt-4"}, got)
}

func TestGroup_PrefixLabelCollisionsJoinOthers(t *testing.T) {
	in := []string{"others/a", "others/b", "others/c", "free/x", "free/y", "free/z", "m/1:free", "solo/x"}
	got := Strings(Group(in, Policy{Suffixes: []string{":free"}}))

	assert.Equal(t, []string{
		"---FREE---", "m/1:free",
		"---OTHERS---", "free/x", "free/y", "free/z", "others/a", "others/b", "others/c", "solo/x",
	}, got)

	others := Section(got, "OTHERS")
	assert.Len(t, others, 7)
	assert.Contains(t, others, "solo/x")
}

func TestGroup_CustomDissolveThreshold(t *testing.T) {
	in := []string{"a/1", "a/2", "b/1"}
	got := Strings(Group(in, Policy{MaxDissolve: 1}))
	assert.Equal(t, []string{"---A---", "a/1", "a/2", "---OTHERS---", "b/1"}, got)
}

func TestGroup_ExtrasAfterFirstSuffixSection(t *testing.T) {
	p := openRouterPolicy
	p.Extras = []string{"stealth/zeta", " stealth/alpha ", "meta/l:free", "stealth/alpha", ""}
	in := []string{"meta/l:free", "x/a:beta", "openrouter/auto"}

	got := Strings(Group(in, p))
	assert.Equal(t, []string{
		"openrouter/auto",
		"---FREE---", "meta/l:free",
		"---STEALTH---", "stealth/alpha", "stealth/zeta",
		"---BETA---", "x/a:beta",
	}, got)
}

func TestGroup_ExtrasWithoutSuffixSections(t *testing.T) {
	p := Policy{Suffixes: []string{":free"}, Extras: []string{"s/1"}, ExtrasLabel: "stealth"}
	got := Strings(Group([]string{"a/1"}, p))
	assert.Equal(t, []string{"---STEALTH---", "s/1", "---OTHERS---", "a/1"}, got)
}

func TestGroup_EveryIdentifierExactlyOnce(t *testing.T) {
	in := []string{
		"openrouter/auto", "google/gemini", "google/gemma", "google/palm", "google/gemini:free",
		"anthropic/claude", "anthropic/claude:beta", "mistral/a", "mistral/b", "mistral/c",
		"mistral/d:nitro", "cohere/command", "perplexity/sonar:extended", "solo",
	}
	items := Group(in, openRouterPolicy)
	require.NotEmpty(t, items)
	assert.Equal(t, "openrouter/auto", items[0].Name)
	assert.False(t, items[0].Marker)

	counts := make(map[string]int)
	for _, it := range items {
		if !it.Marker {
			counts[it.Name]++
		}
	}
	assert.Len(t, counts, len(in))
	for _, id := range in {
		assert.Equal(t, 1, counts[id], id)
	}
}

func TestParseAndSection(t *testing.T) {
	list := []string{"openrouter/auto", "---FREE---", "a:free", "---STEALTH---", "s/1", "s/2", "---OTHERS---", "z/1"}

	items := Parse(list)
	assert.Equal(t, list, Strings(items))
	assert.True(t, items[1].Marker)
	assert.Equal(t, "FREE", items[1].Name)

	assert.Equal(t, []string{"s/1", "s/2"}, Section(list, "stealth"))
	assert.Empty(t, Section(list, "missing"))
	assert.Equal(t, []string{"openrouter/auto", "a:free", "s/1", "s/2", "z/1"}, StripMarkers(list))
}

func TestIsMarker(t *testing.T) {
	assert.True(t, IsMarker("---FREE---"))
	assert.False(t, IsMarker("------"))
	assert.False(t, IsMarker("--x--"))
	assert.False(t, IsMarker("meta/llama---"))
}
