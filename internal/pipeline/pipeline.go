package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/everstacklabs/modelsync/internal/aggregate"
	"github.com/everstacklabs/modelsync/internal/cache"
	"github.com/everstacklabs/modelsync/internal/catalog"
	"github.com/everstacklabs/modelsync/internal/config"
	"github.com/everstacklabs/modelsync/internal/document"
	"github.com/everstacklabs/modelsync/internal/httpclient"
	"github.com/everstacklabs/modelsync/internal/metrics"
	"github.com/everstacklabs/modelsync/internal/prompt"
	"github.com/everstacklabs/modelsync/internal/provider"
	"github.com/everstacklabs/modelsync/internal/validate"
)

// ExitCode constants for CLI.
const (
	ExitSuccess          = 0
	ExitUpdateFailed     = 1 // No provider succeeded or a document could not be written
	ExitValidationFailed = 2 // An updated document failed validation
)

// Pipeline orchestrates fetch, merge and validation.
type Pipeline struct {
	cfg      *config.Config
	prompter prompt.Prompter
	metrics  *metrics.Recorder
	out      io.Writer
	now      func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithPrompter enables interactive questions. Without one the pipeline runs
// from configuration alone.
func WithPrompter(p prompt.Prompter) Option {
	return func(pl *Pipeline) { pl.prompter = p }
}

// WithMetrics records run metrics.
func WithMetrics(m *metrics.Recorder) Option {
	return func(pl *Pipeline) { pl.metrics = m }
}

// WithOutput sets where summaries and diffs are printed.
func WithOutput(w io.Writer) Option {
	return func(pl *Pipeline) { pl.out = w }
}

// New creates a new Pipeline.
func New(cfg *config.Config, opts ...Option) *Pipeline {
	p := &Pipeline{cfg: cfg, out: os.Stdout, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// FetchOptions select what to fetch.
type FetchOptions struct {
	// Providers narrows the configured provider list.
	Providers []string
	// FromArtifacts reads lists written by an earlier fetch instead of the network.
	FromArtifacts bool
	// Extras maps provider ID to injected identifiers.
	Extras map[string][]string
}

// Fetch runs every selected provider and returns the catalog with stats.
func (p *Pipeline) Fetch(ctx context.Context, opts FetchOptions) (catalog.ProviderCatalog, *aggregate.Stats, []provider.Spec, error) {
	specs, err := p.cfg.ProviderSpecs(opts.Providers)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("selecting providers: %w", err)
	}
	keys := provider.ArtifactKeys(specs)

	if opts.FromArtifacts {
		cat, stats, err := aggregate.FromArtifacts(p.cfg.ArtifactsDir, keys)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("loading artifacts: %w", err)
		}
		slog.Info("catalog loaded from artifacts", "dir", p.cfg.ArtifactsDir, "providers", len(cat))
		return cat, stats, specs, nil
	}

	client, err := p.httpClient()
	if err != nil {
		return nil, nil, nil, err
	}

	fetchers := make([]aggregate.Fetcher, 0, len(specs))
	for _, s := range specs {
		var sopts []provider.SourceOption
		if key := p.cfg.Credentials[s.ID]; key != "" {
			sopts = append(sopts, provider.WithCredential(key))
		}
		if extras := opts.Extras[s.ID]; len(extras) > 0 {
			sopts = append(sopts, provider.WithExtras(extras))
		}
		fetchers = append(fetchers, provider.NewSource(s, client, sopts...))
	}

	aopts := []aggregate.Option{
		aggregate.WithConcurrency(p.cfg.Concurrency),
		aggregate.WithTimeout(p.cfg.Timeout),
	}
	if p.metrics != nil {
		aopts = append(aopts, aggregate.WithObserver(p.metrics))
	}

	slog.Info("fetching providers", "count", len(fetchers), "concurrency", p.cfg.Concurrency)
	cat, stats := aggregate.New(fetchers, aopts...).Run(ctx)
	slog.Info("fetch complete",
		"providers", len(cat),
		"failed", len(stats.FailedProviders),
		"skipped", len(stats.SkippedProviders),
		"models", stats.TotalModels())
	return cat, stats, specs, nil
}

// SaveArtifacts writes one list per provider plus a manifest.
func (p *Pipeline) SaveArtifacts(cat catalog.ProviderCatalog, specs []provider.Spec) error {
	keys := provider.ArtifactKeys(specs)
	if err := catalog.WriteArtifacts(p.cfg.ArtifactsDir, cat, keys); err != nil {
		return fmt.Errorf("writing artifacts: %w", err)
	}
	if err := catalog.WriteManifest(p.cfg.ArtifactsDir, catalog.BuildManifest(cat, keys, p.now())); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	slog.Info("artifacts written", "dir", p.cfg.ArtifactsDir, "providers", len(cat))
	return nil
}

func (p *Pipeline) httpClient() (*httpclient.Client, error) {
	opts := []httpclient.Option{
		httpclient.WithTimeout(httpclient.DefaultTimeout),
		httpclient.WithUserAgent(p.cfg.UserAgent),
	}
	if p.cfg.RateLimit > 0 {
		opts = append(opts, httpclient.WithRateLimit(p.cfg.RateLimit))
	}
	if p.cfg.NoCache {
		opts = append(opts, httpclient.WithNoCache())
	} else {
		fc, err := cache.New(p.cfg.CacheDir, p.cfg.CacheTTL)
		if err != nil {
			return nil, fmt.Errorf("opening cache: %w", err)
		}
		if p.cfg.CacheTTL > 0 {
			if n, err := fc.Purge(24 * p.cfg.CacheTTL); err != nil {
				slog.Warn("purging cache", "error", err)
			} else if n > 0 {
				slog.Debug("purged cache entries", "count", n)
			}
		}
		opts = append(opts, httpclient.WithCache(fc))
	}
	return httpclient.New(opts...), nil
}

// loadDocuments loads every configured document. Missing files are skipped
// with a warning; unreadable ones are returned as failures.
func (p *Pipeline) loadDocuments() ([]*document.Document, map[string]error) {
	var docs []*document.Document
	failed := make(map[string]error)
	for _, path := range p.cfg.Documents {
		d, err := document.Load(path, p.docOptions()...)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			slog.Warn("document not found, skipping", "path", path)
		case err != nil:
			slog.Error("loading document", "path", path, "error", err)
			failed[path] = err
		default:
			docs = append(docs, d)
		}
	}
	return docs, failed
}

func (p *Pipeline) docOptions() []document.Option {
	opts := []document.Option{document.WithEntriesPath(p.cfg.EntriesPath)}
	if p.cfg.Indent > 0 {
		opts = append(opts, document.WithIndent(p.cfg.Indent))
	}
	return opts
}

func (p *Pipeline) validateOptions() validate.Options {
	opts := validate.DefaultOptions()
	if len(p.cfg.RequiredKeys) > 0 {
		opts.RequiredKeys = p.cfg.RequiredKeys
	}
	opts.EntriesPath = p.cfg.EntriesPath
	return opts
}

// Validate checks every configured document that exists.
func (p *Pipeline) Validate() *validate.Result {
	result := &validate.Result{}
	opts := p.validateOptions()
	for _, path := range p.cfg.Documents {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			slog.Warn("document not found, skipping", "path", path)
			continue
		}
		r := validate.File(path, opts)
		if r.HasErrors() {
			slog.Error("validation failed", "document", filepath.Base(path), "errors", len(r.Errors()))
		} else {
			slog.Info("document validated", "document", filepath.Base(path), "warnings", len(r.Warnings()))
		}
		result.Merge(r)
	}
	return result
}

// Convert rewrites flow-style sequences in every document as block style.
// It returns the paths of documents that changed.
func (p *Pipeline) Convert(dryRun bool) ([]string, error) {
	docs, failed := p.loadDocuments()
	var changed []string
	var errs []error
	for _, err := range failed {
		errs = append(errs, err)
	}
	for _, d := range docs {
		n := d.ConvertBlockStyle()
		if n == 0 {
			continue
		}
		slog.Info("converted sequences", "document", d.Path, "sequences", n)
		changed = append(changed, d.Path)
		if dryRun {
			continue
		}
		if _, err := d.Save(); err != nil {
			errs = append(errs, err)
		}
	}
	return changed, errors.Join(errs...)
}
