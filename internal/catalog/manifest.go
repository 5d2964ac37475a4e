package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/everstacklabs/modelsync/internal/group"
)

// ManifestProvider describes a provider entry in the manifest.
type ManifestProvider struct {
	Name     string `yaml:"name"`
	File     string `yaml:"file"`
	Models   int    `yaml:"models"`
	Sections int    `yaml:"sections,omitempty"`
}

// ManifestStats holds aggregate counts.
type ManifestStats struct {
	TotalProviders int `yaml:"total_providers"`
	TotalModels    int `yaml:"total_models"`
}

// Manifest summarizes the artifacts written by a run.
type Manifest struct {
	GeneratedAt   string             `yaml:"generated_at"`
	SchemaVersion string             `yaml:"schema_version"`
	Providers     []ManifestProvider `yaml:"providers"`
	Stats         ManifestStats      `yaml:"stats"`
}

// BuildManifest describes c. Section markers are counted separately from models.
func BuildManifest(c ProviderCatalog, keys map[string]string, now time.Time) Manifest {
	m := Manifest{
		GeneratedAt:   now.UTC().Format(time.RFC3339),
		SchemaVersion: "1.0",
	}
	for _, name := range c.Names() {
		key := keys[name]
		if key == "" {
			key = name
		}
		list := c[name]
		models := len(group.StripMarkers(list))
		m.Providers = append(m.Providers, ManifestProvider{
			Name:     name,
			File:     artifactFilename(key),
			Models:   models,
			Sections: len(list) - models,
		})
		m.Stats.TotalModels += models
	}
	m.Stats.TotalProviders = len(m.Providers)
	return m
}

// WriteManifest writes manifest.yaml into dir.
func WriteManifest(dir string, m Manifest) error {
	data, err := yaml.Marshal(&m)
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}

	header := "# Provider model artifacts\n# Auto-generated - DO NOT EDIT MANUALLY\n\n"
	output := header + string(data)

	return os.WriteFile(filepath.Join(dir, "manifest.yaml"), []byte(output), 0o644)
}
