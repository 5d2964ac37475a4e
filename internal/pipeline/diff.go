package pipeline

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/everstacklabs/modelsync/internal/diff"
)

// Diff fetches every provider and reports how the lists differ from the
// documents, without writing anything. With text set it also prints the
// line diff each document would receive.
func (p *Pipeline) Diff(ctx context.Context, opts FetchOptions, text bool) ([]*diff.ChangeSet, error) {
	docs, _ := p.loadDocuments()

	if opts.Extras == nil {
		specs, err := p.cfg.ProviderSpecs(opts.Providers)
		if err != nil {
			return nil, fmt.Errorf("selecting providers: %w", err)
		}
		if opts.Extras, err = p.resolveExtras(specs, docs); err != nil {
			return nil, err
		}
	}

	cat, _, _, err := p.Fetch(ctx, opts)
	if err != nil {
		return nil, err
	}

	changes := diff.Catalog(existingLists(docs, cat.Names()), cat)
	fmt.Fprint(p.out, diff.RenderSummary(changes))

	if text {
		for _, d := range docs {
			if len(d.Apply(cat)) == 0 {
				continue
			}
			data, err := d.Encode()
			if err != nil {
				return changes, err
			}
			fmt.Fprint(p.out, diff.Text(filepath.Base(d.Path), string(d.Original()), string(data), 3))
		}
	}
	return changes, nil
}
