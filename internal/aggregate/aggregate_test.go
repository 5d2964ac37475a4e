package aggregate

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/everstacklabs/modelsync/internal/catalog"
	"github.com/everstacklabs/modelsync/internal/provider"
)

type fakeFetcher struct {
	key, name string
	ids       []string
	err       error
	delay     time.Duration
	running   *atomic.Int32
	peak      *atomic.Int32
}

func (f *fakeFetcher) Key() string      { return f.key }
func (f *fakeFetcher) Endpoint() string { return f.name }

func (f *fakeFetcher) Fetch(ctx context.Context) ([]string, error) {
	if f.running != nil {
		n := f.running.Add(1)
		defer f.running.Add(-1)
		for {
			p := f.peak.Load()
			if n <= p || f.peak.CompareAndSwap(p, n) {
				break
			}
		}
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.ids, f.err
}

type recorder struct {
	mu       sync.Mutex
	statuses map[string]string
}

func (r *recorder) ObserveFetch(p, status string, models int, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.statuses == nil {
		r.statuses = make(map[string]string)
	}
	r.statuses[p] = status
}

func TestRunClassifiesProviders(t *testing.T) {
	fetchers := []Fetcher{
		&fakeFetcher{key: "xai", name: "xai", ids: []string{"grok-2", "grok-3"}},
		&fakeFetcher{key: "cohere", name: "cohere", err: fmt.Errorf("cohere: %w", provider.ErrNoCredential)},
		&fakeFetcher{key: "nvidia", name: "Nvidia", err: errors.New("connection refused")},
		&fakeFetcher{key: "kluster", name: "Kluster", ids: []string{}},
		&fakeFetcher{key: "openrouter", name: "OpenRouter", ids: []string{"openrouter/auto", "---OTHERS---", "a/b"}},
	}
	rec := &recorder{}

	cat, stats := New(fetchers, WithObserver(rec)).Run(context.Background())

	assert.Equal(t, []string{"OpenRouter", "xai"}, cat.Names())
	assert.Equal(t, 2, stats.ProviderCounts["OpenRouter"], "markers are not counted as models")
	assert.ElementsMatch(t, []string{"Nvidia", "Kluster"}, stats.FailedProviders)
	assert.Equal(t, []string{"cohere"}, stats.SkippedProviders)

	var fe *FetchError
	require.True(t, errors.As(stats.ProviderErrors["Kluster"], &fe))
	assert.ErrorIs(t, fe, ErrNoModels)

	assert.Equal(t, StatusSkipped, rec.statuses["cohere"])
	assert.Equal(t, StatusFailed, rec.statuses["nvidia"])
	assert.Equal(t, StatusOK, rec.statuses["xai"])
}

func TestSkippedProviderAbsentFromCatalogAndFailures(t *testing.T) {
	cat, stats := New([]Fetcher{
		&fakeFetcher{key: "deepseek", name: "deepseek", err: provider.ErrNoCredential},
	}).Run(context.Background())

	assert.NotContains(t, cat, "deepseek")
	assert.NotContains(t, stats.FailedProviders, "deepseek")
	assert.NotContains(t, stats.Render(), "✗ deepseek")
}

func TestRunRespectsConcurrencyLimit(t *testing.T) {
	var running, peak atomic.Int32
	var fetchers []Fetcher
	for i := 0; i < 8; i++ {
		fetchers = append(fetchers, &fakeFetcher{
			key: fmt.Sprint(i), name: fmt.Sprint(i), ids: []string{"m"},
			delay: 20 * time.Millisecond, running: &running, peak: &peak,
		})
	}

	cat, _ := New(fetchers, WithConcurrency(2)).Run(context.Background())

	assert.Len(t, cat, 8, "every fetch completes before Run returns")
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestRunTimeoutIsPerProvider(t *testing.T) {
	cat, stats := New([]Fetcher{
		&fakeFetcher{key: "slow", name: "Slow", ids: []string{"x"}, delay: time.Second},
		&fakeFetcher{key: "fast", name: "Fast", ids: []string{"y"}},
	}, WithTimeout(30*time.Millisecond)).Run(context.Background())

	assert.Equal(t, []string{"Fast"}, cat.Names())
	assert.Equal(t, []string{"Slow"}, stats.FailedProviders)
	assert.ErrorIs(t, stats.ProviderErrors["Slow"], context.DeadlineExceeded)
}

func TestStatsRender(t *testing.T) {
	s := NewStats()
	s.AddProvider("xai", 3)
	s.AddProvider("OpenRouter", 200)
	s.FailProvider("Nvidia", errors.New("boom"))
	s.SkipProvider("cohere")
	s.AddFile("librechat.yaml", true, nil)
	s.AddFile("librechat-f.yaml", false, nil)
	s.AddFile("librechat-hf.yaml", false, errors.New("parse error"))

	out := s.Render()
	for _, want := range []string{
		"✓ OpenRouter: 200 models\n✓ xai: 3 models",
		"✗ Nvidia: boom",
		"- cohere",
		"✓ librechat.yaml",
		"= librechat-f.yaml (unchanged)",
		"✗ librechat-hf.yaml: parse error",
		"Summary: 2 providers updated, 1 failed, 1 skipped, 1 files updated, 1 unchanged, 1 files failed",
	} {
		assert.Contains(t, out, want)
	}
	assert.Less(t, strings.Index(out, "OpenRouter"), strings.Index(out, "xai"))
	assert.False(t, s.Succeeded(), "a failed file fails the update")
	assert.Equal(t, 203, s.TotalModels())
}

func TestStatsSucceeded(t *testing.T) {
	s := NewStats()
	assert.False(t, s.Succeeded(), "no providers")
	s.AddProvider("xai", 1)
	s.AddFile("a.yaml", false, nil)
	assert.True(t, s.Succeeded())
}

func TestFromArtifacts(t *testing.T) {
	dir := t.TempDir()
	keys := map[string]string{"xai": "xai", "OpenRouter": "openrouter", "Nvidia": "nvidia"}
	require.NoError(t, catalog.WriteArtifacts(dir, catalog.ProviderCatalog{
		"xai":        {"grok-2"},
		"OpenRouter": {"---OTHERS---"},
	}, keys))

	cat, stats, err := FromArtifacts(dir, keys)
	require.NoError(t, err)
	assert.Equal(t, []string{"xai"}, cat.Names())
	assert.ElementsMatch(t, []string{"Nvidia", "OpenRouter"}, stats.FailedProviders)

	_, _, err = FromArtifacts(filepath.Join(dir, "missing"), keys)
	assert.NoError(t, err, "a missing directory only means every provider is missing")
}
