// Package catalog holds the per-run mapping from provider name to its model
// list, plus the optional on-disk artifacts written for auditing.
package catalog

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/everstacklabs/modelsync/internal/normalize"
)

// ProviderCatalog maps a provider name (as it appears in configuration
// documents) to its ordered model list. Lists may contain section markers.
type ProviderCatalog map[string][]string

// Names returns provider names in lexicographic order.
func (c ProviderCatalog) Names() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ModelNames returns a copy of the model list for a provider.
func (c ProviderCatalog) ModelNames(provider string) []string {
	models, ok := c[provider]
	if !ok {
		return nil
	}
	out := make([]string, len(models))
	copy(out, models)
	return out
}

// ArtifactPath returns the artifact file for a provider key inside dir.
func ArtifactPath(dir, key string) string {
	return filepath.Join(dir, artifactFilename(key))
}

func artifactFilename(key string) string {
	r := strings.NewReplacer("/", "_", string(filepath.Separator), "_", " ", "_")
	return r.Replace(strings.ToLower(key)) + ".txt"
}

// WriteArtifacts writes one <key>.txt per provider. keys maps provider name
// to artifact key (usually the fetcher id).
func WriteArtifacts(dir string, c ProviderCatalog, keys map[string]string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating artifacts dir: %w", err)
	}
	for _, name := range c.Names() {
		key := keys[name]
		if key == "" {
			key = name
		}
		if err := normalize.WriteArtifact(ArtifactPath(dir, key), c[name]); err != nil {
			return fmt.Errorf("provider %s: %w", name, err)
		}
	}
	return nil
}

// LoadArtifacts reads artifacts for the given provider keys. Missing or empty
// artifacts are reported in the second return value rather than as errors.
func LoadArtifacts(dir string, keys map[string]string) (ProviderCatalog, []string, error) {
	cat := make(ProviderCatalog)
	var missing []string

	names := make([]string, 0, len(keys))
	for name := range keys {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		ids, err := normalize.ReadArtifact(ArtifactPath(dir, keys[name]))
		if errors.Is(err, fs.ErrNotExist) {
			missing = append(missing, name)
			continue
		}
		if err != nil {
			return nil, nil, fmt.Errorf("loading %s: %w", name, err)
		}
		if len(ids) == 0 {
			missing = append(missing, name)
			continue
		}
		cat[name] = ids
	}
	return cat, missing, nil
}
