package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/everstacklabs/modelsync/internal/group"
	"github.com/everstacklabs/modelsync/internal/httpclient"
	"github.com/everstacklabs/modelsync/internal/normalize"
)

func serve(t *testing.T, h http.HandlerFunc) string {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestBuiltinSpecsValidate(t *testing.T) {
	reg, err := NewRegistry(Builtin()...)
	require.NoError(t, err)

	ids := reg.List()
	assert.Contains(t, ids, "openrouter")
	assert.Contains(t, ids, "huggingface")
	assert.IsIncreasing(t, ids)

	keys := ArtifactKeys(reg.Specs())
	assert.Equal(t, "github", keys["Github Models"])
	assert.Equal(t, "togetherai", keys["together.ai"])
}

func TestFetchWithoutCredentialIsSkipped(t *testing.T) {
	var calls atomic.Int32
	url := serve(t, func(w http.ResponseWriter, r *http.Request) { calls.Add(1) })

	src := NewSource(Spec{ID: "xai", Name: "xai", URL: url, Format: FormatJSON, CredentialEnv: "XAI_API_KEY", Rule: dataIDs}, httpclient.New())
	_, err := src.Fetch(context.Background())

	assert.ErrorIs(t, err, ErrNoCredential)
	assert.Zero(t, calls.Load(), "no request should be made without a credential")
}

func TestFetchSendsBearerToken(t *testing.T) {
	url := serve(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer k" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `{"data":[{"id":"grok-3"},{"id":"grok-2"},{"id":"grok-2"}]}`)
	})

	src := NewSource(Spec{ID: "xai", Name: "xai", URL: url, Format: FormatJSON, CredentialEnv: "XAI_API_KEY", Rule: dataIDs},
		httpclient.New(), WithCredential("k"))
	ids, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"grok-2", "grok-3"}, ids)
}

func TestFetchStatusErrorPropagates(t *testing.T) {
	url := serve(t, func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusInternalServerError) })
	_, err := NewSource(Spec{ID: "nvidia", Name: "Nvidia", URL: url, Format: FormatJSON, Rule: dataIDs}, httpclient.New()).
		Fetch(context.Background())

	var se *httpclient.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusInternalServerError, se.StatusCode)
}

func TestFetchUnionsQueries(t *testing.T) {
	url := serve(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("type") {
		case "vision":
			fmt.Fprint(w, `[{"id":"v1"},{"id":"shared"}]`)
		case "llm":
			fmt.Fprint(w, `[{"id":"l1"},{"id":"shared"}]`)
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	})

	spec := Spec{ID: "apipie", Name: "APIpie", URL: url, Format: FormatJSON,
		Queries: []map[string]string{{"type": "vision"}, {"type": "llm"}},
		Rule:    normalize.Rule{IDField: "id"}}
	ids, err := NewSource(spec, httpclient.New()).Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"l1", "shared", "v1"}, ids)
}

func TestFetchPaginates(t *testing.T) {
	var (
		mu    sync.Mutex
		pages []int
	)
	url := serve(t, func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		mu.Lock()
		pages = append(pages, page)
		mu.Unlock()
		switch page {
		case 1:
			fmt.Fprint(w, `[{"modelId":"a","pipeline_tag":"text-generation"},{"modelId":"img","pipeline_tag":"text-to-image"}]`)
		case 2:
			fmt.Fprint(w, `[{"modelId":"b","pipeline_tag":"text-generation"}]`)
		default:
			t.Errorf("unexpected page %d", page)
		}
	})

	spec := Spec{ID: "huggingface", Name: "HuggingFace", URL: url, Format: FormatJSON,
		Pagination: &Pagination{PageParam: "page", Start: 1, MaxPages: 5, PageSize: 2},
		Rule: normalize.Rule{IDField: "modelId",
			Filters: []normalize.Predicate{{Field: "pipeline_tag", Op: normalize.OpEquals, Value: "text-generation"}}}}

	ids, err := NewSource(spec, httpclient.New()).Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 2}, pages, "a short page ends pagination")
}

func TestFetchPaginationKeepsEarlierPages(t *testing.T) {
	url := serve(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "1" {
			fmt.Fprint(w, `[{"id":"a"},{"id":"b"}]`)
			return
		}
		w.WriteHeader(http.StatusBadGateway)
	})

	spec := Spec{ID: "p", Name: "P", URL: url, Format: FormatJSON,
		Pagination: &Pagination{PageParam: "page", Start: 1, MaxPages: 3, PageSize: 2},
		Rule:       normalize.Rule{IDField: "id"}}
	ids, err := NewSource(spec, httpclient.New()).Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)
}

func TestFetchGroupsWithExtras(t *testing.T) {
	url := serve(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[{"id":"openrouter/auto"},{"id":"meta/l:free"},{"id":"x/a"}]}`)
	})

	policy := OpenRouterPolicy
	spec := Spec{ID: "openrouter", Name: "OpenRouter", URL: url, Format: FormatJSON, Rule: dataIDs, Group: &policy}
	ids, err := NewSource(spec, httpclient.New(), WithExtras([]string{"stealth/one"})).Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{
		"openrouter/auto",
		"---FREE---", "meta/l:free",
		"---STEALTH---", "stealth/one",
		"---OTHERS---", "x/a",
	}, ids)
	assert.Empty(t, policy.Extras, "spec policy must not be mutated")
}

func TestFetchEmptyResponseIsNotGrouped(t *testing.T) {
	url := serve(t, func(w http.ResponseWriter, r *http.Request) { fmt.Fprint(w, `{"data":[]}`) })
	policy := group.Policy{ExtrasLabel: "STEALTH"}
	spec := Spec{ID: "openrouter", Name: "OpenRouter", URL: url, Format: FormatJSON, Rule: dataIDs, Group: &policy}

	ids, err := NewSource(spec, httpclient.New(), WithExtras([]string{"s/1"})).Fetch(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestFetchHTMLSources(t *testing.T) {
	url := serve(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<table><thead><tr><th>Model</th></tr></thead><tbody>
			<tr><td>sonar-pro</td></tr><tr><td>sonar</td></tr></tbody></table>
			<p><code>DeepSeek-R1</code><code>DeepSeek-R1</code></p>`)
	})

	table := NewSource(Spec{ID: "perplexity", Name: "Perplexity", URL: url, Format: FormatHTMLTable, Selector: "table"}, httpclient.New())
	ids, err := table.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"sonar", "sonar-pro"}, ids)

	code := NewSource(Spec{ID: "sambanova", Name: "SambaNova", URL: url, Format: FormatHTMLText, Selector: "code"}, httpclient.New())
	ids, err = code.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"DeepSeek-R1"}, ids)
}

func TestSpecValidate(t *testing.T) {
	base := Spec{ID: "x", Name: "X", URL: "https://example.com/models", Format: FormatJSON, Rule: dataIDs}
	require.NoError(t, base.Validate())

	tests := []struct {
		name   string
		mutate func(*Spec)
	}{
		{"missing id", func(s *Spec) { s.ID = "" }},
		{"missing name", func(s *Spec) { s.Name = "" }},
		{"bad url", func(s *Spec) { s.URL = "not a url" }},
		{"unknown format", func(s *Spec) { s.Format = "xml" }},
		{"html without selector", func(s *Spec) { s.Format = FormatHTMLText }},
		{"bad rule", func(s *Spec) { s.Rule.Filters = []normalize.Predicate{{Field: "f", Op: "like"}} }},
		{"bad pagination", func(s *Spec) { s.Pagination = &Pagination{PageParam: "page"} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := base
			tt.mutate(&s)
			assert.Error(t, s.Validate())
		})
	}
}

func TestRegistry(t *testing.T) {
	reg, err := NewRegistry(Builtin()...)
	require.NoError(t, err)

	_, err = reg.Get("nope")
	assert.Error(t, err)

	override := Spec{ID: "xai", Name: "Grok", URL: "https://example.com/v1/models", Format: FormatJSON, Rule: dataIDs}
	require.NoError(t, reg.Register(override))
	got, err := reg.Get("xai")
	require.NoError(t, err)
	assert.Equal(t, "Grok", got.Name)

	reg.Remove("xai", "unknown")
	assert.NotContains(t, reg.List(), "xai")

	sel, err := reg.Select([]string{"nvidia", "github"})
	require.NoError(t, err)
	assert.Len(t, sel, 2)
	_, err = reg.Select([]string{"missing"})
	assert.Error(t, err)
}
