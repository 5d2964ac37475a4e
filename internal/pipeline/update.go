package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/everstacklabs/modelsync/internal/aggregate"
	"github.com/everstacklabs/modelsync/internal/diff"
	"github.com/everstacklabs/modelsync/internal/document"
	"github.com/everstacklabs/modelsync/internal/metrics"
	"github.com/everstacklabs/modelsync/internal/validate"
)

// UpdateOptions control one update run.
type UpdateOptions struct {
	FetchOptions
	// DryRun computes and prints changes without writing documents.
	DryRun bool
}

// UpdateResult holds the outcome of an update run.
type UpdateResult struct {
	Stats      *aggregate.Stats
	Changes    []*diff.ChangeSet
	Validation *validate.Result
	PRNumber   int
	ExitCode   int
}

// Update fetches every provider, merges the lists into each document,
// validates the results and optionally opens a pull request. Documents are
// only touched after every fetch has finished.
func (p *Pipeline) Update(ctx context.Context, opts UpdateOptions) (*UpdateResult, error) {
	docs, loadFailures := p.loadDocuments()

	convert, err := p.confirm("Convert flow-style lists to block style?", p.cfg.ConvertStyle)
	if err != nil {
		return nil, err
	}
	updateModels, err := p.confirm("Fetch providers and update model lists?", true)
	if err != nil {
		return nil, err
	}

	stats := aggregate.NewStats()
	res := &UpdateResult{Stats: stats, Validation: &validate.Result{}}

	if updateModels {
		specs, err := p.cfg.ProviderSpecs(opts.Providers)
		if err != nil {
			return nil, fmt.Errorf("selecting providers: %w", err)
		}
		if opts.Extras == nil {
			opts.Extras, err = p.resolveExtras(specs, docs)
			if err != nil {
				return nil, err
			}
		}

		cat, fetchStats, _, err := p.Fetch(ctx, opts.FetchOptions)
		if err != nil {
			return nil, err
		}
		stats = fetchStats
		res.Stats = stats

		res.Changes = diff.Catalog(existingLists(docs, cat.Names()), cat)
		for _, d := range docs {
			if names := d.Apply(cat); len(names) > 0 {
				slog.Info("document updated", "document", d.Path, "endpoints", names)
			}
		}
	}

	if convert {
		for _, d := range docs {
			if n := d.ConvertBlockStyle(); n > 0 {
				slog.Info("converted sequences", "document", d.Path, "sequences", n)
			}
		}
	}

	for path, err := range loadFailures {
		stats.AddFile(filepath.Base(path), false, err)
		p.observeDocument(metrics.DocumentFailed)
	}
	for _, d := range docs {
		p.finishDocument(d, stats, res.Validation, opts.DryRun)
	}
	stats.Finish()

	fmt.Fprintln(p.out, stats.Render())
	if len(res.Changes) > 0 {
		fmt.Fprintln(p.out, diff.RenderSummary(res.Changes))
	}

	res.ExitCode = p.exitCode(res, updateModels)
	if res.ExitCode == ExitValidationFailed {
		if err := writeGitHubEnv(p.cfg.GitHubEnv, res.Validation); err != nil {
			slog.Warn("writing GitHub environment", "error", err)
		}
	}

	if res.ExitCode == ExitSuccess && !opts.DryRun && len(stats.UpdatedFiles) > 0 && p.cfg.GitHub.Enabled() {
		files := make([]string, 0, len(docs))
		for _, d := range docs {
			files = append(files, d.Path)
		}
		num, err := p.createPR(ctx, files, res.Changes, stats)
		if err != nil {
			return res, fmt.Errorf("creating PR: %w", err)
		}
		res.PRNumber = num
	}

	p.writeMetrics()
	return res, nil
}

// finishDocument saves (or, in a dry run, diffs) one document and validates
// the result.
func (p *Pipeline) finishDocument(d *document.Document, stats *aggregate.Stats, vr *validate.Result, dryRun bool) {
	name := filepath.Base(d.Path)
	changed := d.Changed()

	data, err := d.Encode()
	if err != nil {
		stats.AddFile(name, false, err)
		p.observeDocument(metrics.DocumentFailed)
		return
	}

	if dryRun {
		if changed {
			fmt.Fprint(p.out, diff.Text(name, string(d.Original()), string(data), 3))
		}
	} else if changed {
		backup, err := d.Save()
		if err != nil {
			slog.Error("saving document", "document", d.Path, "error", err)
			stats.AddFile(name, false, err)
			p.observeDocument(metrics.DocumentFailed)
			return
		}
		slog.Info("document saved", "document", d.Path, "backup", backup)
	}

	stats.AddFile(name, changed, nil)
	if changed {
		p.observeDocument(metrics.DocumentUpdated)
	} else {
		p.observeDocument(metrics.DocumentUnchanged)
	}

	r := validate.Document(name, data, p.validateOptions())
	if r.HasErrors() {
		slog.Error("validation failed", "document", name, "errors", len(r.Errors()))
		p.observeDocument(metrics.DocumentInvalid)
	}
	vr.Merge(r)
}

// exitCode maps the run outcome. An update failure wins over a validation
// failure; a run that skipped fetching only fails on document errors.
func (p *Pipeline) exitCode(res *UpdateResult, fetched bool) int {
	s := res.Stats
	updateOK := len(s.FailedFiles) == 0
	if fetched {
		updateOK = s.Succeeded()
	}
	switch {
	case !updateOK:
		return ExitUpdateFailed
	case res.Validation.HasErrors():
		return ExitValidationFailed
	}
	return ExitSuccess
}

func (p *Pipeline) confirm(question string, def bool) (bool, error) {
	if p.prompter == nil {
		return def, nil
	}
	return p.prompter.Confirm(question, def)
}

func (p *Pipeline) observeDocument(result string) {
	if p.metrics != nil {
		p.metrics.ObserveDocument(result)
	}
}

func (p *Pipeline) writeMetrics() {
	if p.metrics == nil {
		return
	}
	p.metrics.Finish(p.now())
	if p.cfg.MetricsFile == "" {
		return
	}
	if err := p.metrics.WriteTextfile(p.cfg.MetricsFile); err != nil {
		slog.Warn("writing metrics", "error", err)
	}
}

// existingLists returns, per endpoint, the list from the first document that
// has one. It is the baseline changes are reported against.
func existingLists(docs []*document.Document, names []string) map[string][]string {
	out := make(map[string][]string)
	for _, name := range names {
		for _, d := range docs {
			if models, ok := d.Models(name); ok {
				out[name] = models
				break
			}
		}
	}
	return out
}
