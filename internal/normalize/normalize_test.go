package normalize

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, s string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(s), &v))
	return v
}

func TestNormalize_DataList(t *testing.T) {
	body := decode(t, `{"data":[{"id":"b"},{"id":"a"},{"id":"b"},{"object":"model"}]}`)
	got := Normalize(body, Rule{IDField: "id", Path: "data"})
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestNormalize_BareList(t *testing.T) {
	body := decode(t, `[{"name":"gpt-4o"},{"name":"Phi-3"}]`)
	got := Normalize(body, Rule{IDField: "name"})
	assert.Equal(t, []string{"Phi-3", "gpt-4o"}, got, "byte order puts uppercase first")
}

func TestNormalize_StringEntriesWithPattern(t *testing.T) {
	body := decode(t, `["llama-3@together-ai@extra","gpt-4o@openai","junk"]`)
	got := Normalize(body, Rule{Pattern: `^([^@]+@[^@]+)`})
	assert.Equal(t, []string{"gpt-4o@openai", "llama-3@together-ai"}, got)
}

func TestNormalize_MappingCollection(t *testing.T) {
	body := decode(t, `{"models":{"text":{"x":{"model":"chatgpt-4o"},"y":{"model":"claude-3"},"z":"bogus"}}}`)
	got := Normalize(body, Rule{IDField: "model", Path: "models.text"})
	assert.Equal(t, []string{"chatgpt-4o", "claude-3"}, got)
}

func TestNormalize_Filters(t *testing.T) {
	tests := []struct {
		name string
		body string
		rule Rule
		want []string
	}{
		{
			name: "capability contains chat",
			body: `{"models":[{"name":"command-r","endpoints":["chat","generate"]},{"name":"embed-v3","endpoints":["embed"]}]}`,
			rule: Rule{IDField: "name", Path: "models", Filters: []Predicate{{Field: "endpoints", Op: OpContains, Value: "chat"}}},
			want: []string{"command-r"},
		},
		{
			name: "exclude literal identifier and image models",
			body: `{"data":[{"id":"TTS"},{"id":"llama","supports_image_input":false},{"id":"qwen-vl","supports_image_input":true}]}`,
			rule: Rule{IDField: "id", Path: "data", Filters: []Predicate{
				{Field: "id", Op: OpNotEquals, Value: "TTS"},
				{Field: "supports_image_input", Op: OpFalsy},
			}},
			want: []string{"llama"},
		},
		{
			name: "type equals",
			body: `[{"id":"a","type":"chat"},{"id":"b","type":"image"}]`,
			rule: Rule{IDField: "id", Filters: []Predicate{{Field: "type", Op: OpEquals, Value: "chat"}}},
			want: []string{"a"},
		},
		{
			name: "below size threshold",
			body: `{"data":[{"id":"small","params":7},{"id":"huge","params":405},{"id":"unknown"}]}`,
			rule: Rule{IDField: "id", Path: "data", Filters: []Predicate{{Field: "params", Op: OpBelow, Value: "100"}}},
			want: []string{"small"},
		},
		{
			name: "truthy flag",
			body: `{"data":[{"id":"a","supports_chat":true},{"id":"b","supports_chat":false},{"id":"c"}]}`,
			rule: Rule{IDField: "id", Path: "data", Filters: []Predicate{{Field: "supports_chat", Op: OpTruthy}}},
			want: []string{"a"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(decode(t, tt.body), tt.rule)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalize_Alias(t *testing.T) {
	body := decode(t, `{"data":[
		{"id":"shuttle-3","object":"model","type":"chat.completions"},
		{"id":"s3","object":"proxy","proxy_to":"shuttle-3"},
		{"id":"img","object":"proxy","proxy_to":"dalle"},
		{"id":"dalle","object":"model","type":"images.generations"}
	]}`)
	rule := Rule{
		IDField: "id",
		Path:    "data",
		Filters: []Predicate{
			{Field: "object", Op: OpEquals, Value: "model"},
			{Field: "type", Op: OpEquals, Value: "chat.completions"},
		},
	}
	assert.Equal(t, []string{"shuttle-3"}, Normalize(body, rule))

	rule.Alias = &Alias{
		When:        []Predicate{{Field: "object", Op: OpEquals, Value: "proxy"}},
		TargetField: "proxy_to",
	}
	assert.Equal(t, []string{"s3", "shuttle-3"}, Normalize(body, rule))
}

func TestNormalize_MalformedInputYieldsEmpty(t *testing.T) {
	inputs := []any{
		nil,
		"a string",
		42.0,
		map[string]any{"data": "not a list"},
		map[string]any{"other": []any{}},
		[]any{nil, 1.5, []any{"nested"}},
	}
	for _, in := range inputs {
		got := Normalize(in, Rule{IDField: "id", Path: "data"})
		assert.NotNil(t, got)
		assert.Empty(t, got)
	}
}

func TestNormalize_DropsMarkerLookalikes(t *testing.T) {
	body := decode(t, `["---FREE---","real/model"]`)
	assert.Equal(t, []string{"real/model"}, Normalize(body, Rule{}))
}

func TestNormalizeAll_Union(t *testing.T) {
	vision := decode(t, `[{"id":"gpt-4o"},{"id":"llava"}]`)
	llm := decode(t, `[{"id":"gpt-4o"},{"id":"claude"}]`)
	got := NormalizeAll([]any{vision, llm}, Rule{IDField: "id"})
	assert.Equal(t, []string{"claude", "gpt-4o", "llava"}, got)
}

func TestNormalize_SortedAndUnique(t *testing.T) {
	body := decode(t, `[{"id":"z"},{"id":"a"},{"id":"m"},{"id":"a"},{"id":"Z"}]`)
	got := Normalize(body, Rule{IDField: "id"})
	assert.True(t, sort.StringsAreSorted(got))
	assert.Len(t, got, 4)
}

func TestRuleValidate(t *testing.T) {
	assert.NoError(t, Rule{IDField: "id"}.Validate())
	assert.Error(t, Rule{Filters: []Predicate{{Field: "x", Op: "between"}}}.Validate())
	assert.Error(t, Rule{Filters: []Predicate{{Field: "x", Op: OpBelow, Value: "ten"}}}.Validate())
	assert.Error(t, Rule{Pattern: "("}.Validate())
	assert.Error(t, Rule{Alias: &Alias{}}.Validate())
}

func TestParseArtifact(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"json array", `["b", "---FREE---", "a"]`, []string{"b", "---FREE---", "a"}},
		{"json objects", `[{"id":"x"},{"name":"y"}]`, []string{"x", "y"}},
		{"lines", "alpha\n\n  beta  \n\"gamma\",\n", []string{"alpha", "beta", "gamma"}},
		{"broken json falls back to lines", "[\n\"a\",\n\"b\"\n", []string{"a", "b"}},
		{"empty", "  \n", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseArtifact([]byte(tt.in))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestArtifactRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "openrouter.txt")
	ids := []string{"openrouter/auto", "---FREE---", "meta/llama-3:free"}
	require.NoError(t, WriteArtifact(path, ids))

	got, err := ReadArtifact(path)
	require.NoError(t, err)
	assert.Equal(t, ids, got)

	_, err = ReadArtifact(filepath.Join(t.TempDir(), "missing.txt"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
