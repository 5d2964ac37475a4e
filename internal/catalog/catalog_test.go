package catalog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestNamesSorted(t *testing.T) {
	c := ProviderCatalog{"xai": {"grok"}, "OpenRouter": {"a"}, "cohere": {"c"}}
	got := c.Names()
	want := []string{"OpenRouter", "cohere", "xai"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Names() = %v, want %v", got, want)
		}
	}
}

func TestModelNamesReturnsCopy(t *testing.T) {
	c := ProviderCatalog{"xai": {"grok-2", "grok-3"}}
	names := c.ModelNames("xai")
	names[0] = "mutated"
	if c["xai"][0] != "grok-2" {
		t.Error("ModelNames should not alias the catalog slice")
	}
	if c.ModelNames("missing") != nil {
		t.Error("unknown provider should return nil")
	}
}

func TestArtifactsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	c := ProviderCatalog{
		"OpenRouter":    {"openrouter/auto", "---OTHERS---", "x/y"},
		"Github Models": {"gpt-4o"},
	}
	keys := map[string]string{"OpenRouter": "openrouter", "Github Models": "github"}

	if err := WriteArtifacts(dir, c, keys); err != nil {
		t.Fatalf("WriteArtifacts: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "openrouter.txt")); err != nil {
		t.Fatalf("expected openrouter.txt: %v", err)
	}

	keys["xai"] = "xai"
	loaded, missing, err := LoadArtifacts(dir, keys)
	if err != nil {
		t.Fatalf("LoadArtifacts: %v", err)
	}
	if len(missing) != 1 || missing[0] != "xai" {
		t.Errorf("missing = %v, want [xai]", missing)
	}
	if got := loaded["OpenRouter"]; len(got) != 3 || got[1] != "---OTHERS---" {
		t.Errorf("OpenRouter = %v", got)
	}
}

func TestLoadArtifactsLineFormat(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "perplexity.txt"), []byte("sonar\nsonar-pro\n"), 0o644)

	loaded, missing, err := LoadArtifacts(dir, map[string]string{"Perplexity": "perplexity"})
	if err != nil {
		t.Fatal(err)
	}
	if len(missing) != 0 {
		t.Errorf("unexpected missing: %v", missing)
	}
	if got := loaded["Perplexity"]; len(got) != 2 || got[1] != "sonar-pro" {
		t.Errorf("Perplexity = %v", got)
	}
}

func TestManifest(t *testing.T) {
	dir := t.TempDir()
	c := ProviderCatalog{
		"OpenRouter": {"openrouter/auto", "---FREE---", "a:free", "---OTHERS---", "b/c"},
		"xai":        {"grok-2"},
	}
	m := BuildManifest(c, map[string]string{"OpenRouter": "openrouter"}, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))

	if m.Stats.TotalProviders != 2 || m.Stats.TotalModels != 4 {
		t.Errorf("stats = %+v", m.Stats)
	}
	if m.Providers[0].Sections != 2 || m.Providers[0].File != "openrouter.txt" {
		t.Errorf("OpenRouter entry = %+v", m.Providers[0])
	}

	if err := WriteManifest(dir, m); err != nil {
		t.Fatalf("WriteManifest: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "manifest.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "# Provider model artifacts") {
		t.Error("manifest should start with the header comment")
	}
	var back Manifest
	if err := yaml.Unmarshal(data, &back); err != nil {
		t.Fatalf("parsing manifest: %v", err)
	}
	if back.GeneratedAt != "2026-01-02T03:04:05Z" {
		t.Errorf("generated_at = %q", back.GeneratedAt)
	}
}
