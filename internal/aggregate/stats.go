package aggregate

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Stats records the outcome of one run: per-provider model counts, failed
// and skipped providers, and per-document results.
type Stats struct {
	mu sync.Mutex

	ProviderCounts   map[string]int
	FailedProviders  []string
	SkippedProviders []string
	ProviderErrors   map[string]error

	UpdatedFiles   []string
	UnchangedFiles []string
	FailedFiles    []string
	FileErrors     map[string]error

	Started  time.Time
	Finished time.Time
}

// NewStats creates an empty Stats.
func NewStats() *Stats {
	return &Stats{
		ProviderCounts: make(map[string]int),
		ProviderErrors: make(map[string]error),
		FileErrors:     make(map[string]error),
		Started:        time.Now(),
	}
}

// AddProvider records a fetched provider. A zero count counts as failed.
func (s *Stats) AddProvider(name string, models int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if models > 0 {
		s.ProviderCounts[name] = models
		return
	}
	s.FailedProviders = append(s.FailedProviders, name)
}

// FailProvider records a provider whose fetch failed.
func (s *Stats) FailProvider(name string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FailedProviders = append(s.FailedProviders, name)
	if err != nil {
		s.ProviderErrors[name] = err
	}
}

// SkipProvider records a provider without a configured credential.
func (s *Stats) SkipProvider(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SkippedProviders = append(s.SkippedProviders, name)
}

// AddFile records a document result. A nil error with updated=false means
// the document needed no change.
func (s *Stats) AddFile(name string, updated bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case err != nil:
		s.FailedFiles = append(s.FailedFiles, name)
		s.FileErrors[name] = err
	case updated:
		s.UpdatedFiles = append(s.UpdatedFiles, name)
	default:
		s.UnchangedFiles = append(s.UnchangedFiles, name)
	}
}

// Finish stamps the end of the run.
func (s *Stats) Finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Finished = time.Now()
}

// Succeeded reports whether the update step worked: at least one provider
// produced models and no document failed.
func (s *Stats) Succeeded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ProviderCounts) > 0 && len(s.FailedFiles) == 0
}

// TotalModels sums the model counts of all successful providers.
func (s *Stats) TotalModels() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.ProviderCounts {
		total += n
	}
	return total
}

// Render formats the run summary. Every list is sorted so output is
// reproducible regardless of fetch order.
func (s *Stats) Render() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var b strings.Builder
	b.WriteString("Update Summary\n==============\n")

	section(&b, "Provider Statistics")
	names := make([]string, 0, len(s.ProviderCounts))
	for name := range s.ProviderCounts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&b, "✓ %s: %d models\n", name, s.ProviderCounts[name])
	}

	if len(s.FailedProviders) > 0 {
		section(&b, "Failed Providers")
		for _, name := range sorted(s.FailedProviders) {
			if err := s.ProviderErrors[name]; err != nil {
				fmt.Fprintf(&b, "✗ %s: %v\n", name, err)
			} else {
				fmt.Fprintf(&b, "✗ %s\n", name)
			}
		}
	}

	if len(s.SkippedProviders) > 0 {
		section(&b, "Skipped Providers (no credential)")
		for _, name := range sorted(s.SkippedProviders) {
			fmt.Fprintf(&b, "- %s\n", name)
		}
	}

	section(&b, "File Updates")
	for _, f := range sorted(s.UpdatedFiles) {
		fmt.Fprintf(&b, "✓ %s\n", f)
	}
	for _, f := range sorted(s.UnchangedFiles) {
		fmt.Fprintf(&b, "= %s (unchanged)\n", f)
	}

	if len(s.FailedFiles) > 0 {
		section(&b, "Failed Files")
		for _, f := range sorted(s.FailedFiles) {
			fmt.Fprintf(&b, "✗ %s: %v\n", f, s.FileErrors[f])
		}
	}

	fmt.Fprintf(&b, "\nSummary: %d providers updated, %d failed, %d skipped, %d files updated, %d unchanged, %d files failed\n",
		len(s.ProviderCounts), len(s.FailedProviders), len(s.SkippedProviders),
		len(s.UpdatedFiles), len(s.UnchangedFiles), len(s.FailedFiles))
	return b.String()
}

func section(b *strings.Builder, title string) {
	fmt.Fprintf(b, "\n%s:\n%s\n", title, strings.Repeat("-", len(title)+1))
}

func sorted(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}
