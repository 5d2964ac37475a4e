// Package aggregate runs every configured provider fetch and collects the
// results into a catalog plus run statistics.
package aggregate

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/everstacklabs/modelsync/internal/catalog"
	"github.com/everstacklabs/modelsync/internal/group"
	"github.com/everstacklabs/modelsync/internal/httpclient"
	"github.com/everstacklabs/modelsync/internal/provider"
)

// DefaultConcurrency bounds simultaneous provider fetches.
const DefaultConcurrency = 4

// Fetcher is one provider's fetch-and-normalize procedure.
type Fetcher interface {
	Key() string
	Endpoint() string
	Fetch(ctx context.Context) ([]string, error)
}

// Fetch outcomes reported to an Observer.
const (
	StatusOK      = "ok"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// Observer receives one call per finished provider fetch.
type Observer interface {
	ObserveFetch(provider, status string, models int, elapsed time.Duration)
}

// Aggregator fans provider fetches out and waits for all of them.
type Aggregator struct {
	fetchers    []Fetcher
	concurrency int
	timeout     time.Duration
	observer    Observer
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithConcurrency bounds simultaneous fetches. Values below 1 mean 1.
func WithConcurrency(n int) Option {
	return func(a *Aggregator) {
		if n < 1 {
			n = 1
		}
		a.concurrency = n
	}
}

// WithTimeout bounds each provider fetch, pagination included.
func WithTimeout(d time.Duration) Option {
	return func(a *Aggregator) { a.timeout = d }
}

// WithObserver reports per-provider outcomes, e.g. to metrics.
func WithObserver(o Observer) Option {
	return func(a *Aggregator) { a.observer = o }
}

// New creates an Aggregator over fetchers.
func New(fetchers []Fetcher, opts ...Option) *Aggregator {
	a := &Aggregator{
		fetchers:    fetchers,
		concurrency: DefaultConcurrency,
		timeout:     2 * httpclient.DefaultTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run fetches every provider and returns the catalog of those that produced
// models. Providers without a credential are skipped; any other failure is
// recorded in stats and never stops the remaining fetches. Run returns only
// after every fetch has finished.
func (a *Aggregator) Run(ctx context.Context) (catalog.ProviderCatalog, *Stats) {
	var (
		mu  sync.Mutex
		cat = make(catalog.ProviderCatalog)
	)
	stats := NewStats()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)

	for _, f := range a.fetchers {
		g.Go(func() error {
			name := f.Endpoint()
			start := time.Now()

			fetchCtx := ctx
			if a.timeout > 0 {
				var cancel context.CancelFunc
				fetchCtx, cancel = context.WithTimeout(ctx, a.timeout)
				defer cancel()
			}

			ids, err := f.Fetch(fetchCtx)
			elapsed := time.Since(start)
			models := len(group.StripMarkers(ids))

			switch {
			case errors.Is(err, provider.ErrNoCredential):
				slog.Info("skipping provider", "provider", f.Key(), "reason", "no credential")
				stats.SkipProvider(name)
				a.observe(f.Key(), StatusSkipped, 0, elapsed)
			case err != nil:
				slog.Warn("provider fetch failed", "provider", f.Key(), "error", err)
				stats.FailProvider(name, &FetchError{Provider: f.Key(), Err: err})
				a.observe(f.Key(), StatusFailed, 0, elapsed)
			case models == 0:
				slog.Warn("provider returned no models", "provider", f.Key())
				stats.FailProvider(name, &FetchError{Provider: f.Key(), Err: ErrNoModels})
				a.observe(f.Key(), StatusFailed, 0, elapsed)
			default:
				slog.Info("provider fetched", "provider", f.Key(), "models", models, "elapsed", elapsed.Round(time.Millisecond))
				mu.Lock()
				cat[name] = ids
				mu.Unlock()
				stats.AddProvider(name, models)
				a.observe(f.Key(), StatusOK, models, elapsed)
			}
			return nil
		})
	}

	// Goroutines never return errors; Wait is the barrier before merging.
	_ = g.Wait()
	return cat, stats
}

func (a *Aggregator) observe(key, status string, models int, elapsed time.Duration) {
	if a.observer != nil {
		a.observer.ObserveFetch(key, status, models, elapsed)
	}
}

// FromArtifacts builds a catalog from previously written artifact files
// instead of the network. keys maps endpoint name to artifact key; missing
// artifacts are recorded as failed providers.
func FromArtifacts(dir string, keys map[string]string) (catalog.ProviderCatalog, *Stats, error) {
	cat, missing, err := catalog.LoadArtifacts(dir, keys)
	if err != nil {
		return nil, nil, err
	}
	stats := NewStats()
	for _, name := range cat.Names() {
		n := len(group.StripMarkers(cat[name]))
		if n == 0 {
			delete(cat, name)
			stats.FailProvider(name, &FetchError{Provider: keys[name], Err: ErrNoModels})
			continue
		}
		stats.AddProvider(name, n)
	}
	for _, name := range missing {
		stats.FailProvider(name, &FetchError{Provider: keys[name], Err: ErrNoModels})
	}
	return cat, stats, nil
}
