package pipeline

import (
	"fmt"
	"log/slog"

	"github.com/everstacklabs/modelsync/internal/document"
	"github.com/everstacklabs/modelsync/internal/group"
	"github.com/everstacklabs/modelsync/internal/prompt"
	"github.com/everstacklabs/modelsync/internal/provider"
)

// resolveExtras decides the injected identifiers for every provider whose
// group policy has an extras section. Configured extras win; otherwise the
// operator is asked, and without a prompter the section already present in
// the documents is carried forward.
func (p *Pipeline) resolveExtras(specs []provider.Spec, docs []*document.Document) (map[string][]string, error) {
	out := make(map[string][]string)
	for _, s := range specs {
		if s.Group == nil || s.Group.ExtrasLabel == "" {
			continue
		}
		label := s.Group.ExtrasLabel
		existing := recoverSection(docs, s.Name, label)

		var extras []string
		switch {
		case len(p.cfg.Extras) > 0:
			extras = p.cfg.Extras
		case p.prompter != nil:
			q := fmt.Sprintf("%s %s models, comma separated (empty keeps %d existing):", s.Name, label, len(existing))
			ans, err := p.prompter.Ask(q)
			if err != nil {
				return nil, fmt.Errorf("asking for %s extras: %w", s.ID, err)
			}
			extras = prompt.SplitList(ans)
			if extras == nil {
				extras = existing
			}
		default:
			extras = existing
		}

		if len(extras) > 0 {
			slog.Info("injecting extra models", "provider", s.ID, "section", label, "models", len(extras))
			out[s.ID] = extras
		}
	}
	return out, nil
}

// recoverSection returns the identifiers under label in the first document
// whose endpoint has that section.
func recoverSection(docs []*document.Document, endpoint, label string) []string {
	for _, d := range docs {
		models, ok := d.Models(endpoint)
		if !ok {
			continue
		}
		if ids := group.Section(models, label); len(ids) > 0 {
			return ids
		}
	}
	return nil
}
