// Package provider describes model catalog sources as configuration data and
// fetches their identifier lists.
package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/everstacklabs/modelsync/internal/group"
	"github.com/everstacklabs/modelsync/internal/htmlutil"
	"github.com/everstacklabs/modelsync/internal/httpclient"
	"github.com/everstacklabs/modelsync/internal/normalize"
)

// ErrNoCredential is returned by Fetch when the provider needs a credential
// that is not configured. Callers treat it as "skip", not as a failure.
var ErrNoCredential = errors.New("no credential configured")

// Format identifies how a source publishes its model list.
type Format string

const (
	FormatJSON      Format = "json"       // JSON API response
	FormatHTMLTable Format = "html_table" // a column of an HTML table
	FormatHTMLText  Format = "html_text"  // text of matching HTML elements
)

// Pagination describes page-numbered listing endpoints.
type Pagination struct {
	PageParam string `mapstructure:"page_param" yaml:"page_param"`
	Start     int    `mapstructure:"start" yaml:"start"`
	MaxPages  int    `mapstructure:"max_pages" yaml:"max_pages"`
	// PageSize is the full page length; a shorter page ends the listing.
	PageSize int `mapstructure:"page_size" yaml:"page_size"`
}

// Spec is one provider's fetch configuration.
type Spec struct {
	// ID keys the provider in config, credentials and artifact names.
	ID string `mapstructure:"id" yaml:"id"`
	// Name is the endpoint name used in configuration documents.
	Name   string `mapstructure:"name" yaml:"name"`
	URL    string `mapstructure:"url" yaml:"url"`
	Format Format `mapstructure:"format" yaml:"format"`
	// Queries are fetched separately and their results unioned.
	Queries []map[string]string `mapstructure:"queries" yaml:"queries,omitempty"`
	// CredentialEnv names the environment variable holding the API key.
	// Empty means the endpoint is public.
	CredentialEnv string         `mapstructure:"credential_env" yaml:"credential_env,omitempty"`
	Rule          normalize.Rule `mapstructure:"rule" yaml:"rule"`
	Pagination    *Pagination    `mapstructure:"pagination" yaml:"pagination,omitempty"`
	// Selector and Column apply to HTML formats.
	Selector string `mapstructure:"selector" yaml:"selector,omitempty"`
	Column   int    `mapstructure:"column" yaml:"column,omitempty"`
	// Group, when set, orders the list into sections.
	Group *group.Policy `mapstructure:"group" yaml:"group,omitempty"`
	// MinModels is the smallest plausible result; fewer only logs a warning.
	MinModels int `mapstructure:"min_models" yaml:"min_models,omitempty"`
}

// Validate reports configuration errors.
func (s Spec) Validate() error {
	if s.ID == "" {
		return errors.New("provider id is required")
	}
	if s.Name == "" {
		return fmt.Errorf("provider %s: name is required", s.ID)
	}
	if _, err := url.ParseRequestURI(s.URL); err != nil {
		return fmt.Errorf("provider %s: invalid url: %w", s.ID, err)
	}
	switch s.Format {
	case FormatJSON:
		if err := s.Rule.Validate(); err != nil {
			return fmt.Errorf("provider %s: rule: %w", s.ID, err)
		}
	case FormatHTMLTable, FormatHTMLText:
		if s.Selector == "" {
			return fmt.Errorf("provider %s: selector is required for %s", s.ID, s.Format)
		}
		if s.Column < 0 {
			return fmt.Errorf("provider %s: column must not be negative", s.ID)
		}
	default:
		return fmt.Errorf("provider %s: unknown format %q", s.ID, s.Format)
	}
	if p := s.Pagination; p != nil && (p.PageParam == "" || p.MaxPages <= 0) {
		return fmt.Errorf("provider %s: pagination needs page_param and max_pages", s.ID)
	}
	return nil
}

// Source is a configured, fetchable provider.
type Source struct {
	Spec
	credential string
	extras     []string
	client     *httpclient.Client
}

// SourceOption configures a Source.
type SourceOption func(*Source)

// WithCredential sets the API key sent as a bearer token.
func WithCredential(key string) SourceOption {
	return func(s *Source) { s.credential = key }
}

// WithExtras sets identifiers injected by the group policy (e.g. unlisted
// preview models).
func WithExtras(ids []string) SourceOption {
	return func(s *Source) { s.extras = ids }
}

// NewSource binds a spec to an HTTP client.
func NewSource(spec Spec, client *httpclient.Client, opts ...SourceOption) *Source {
	s := &Source{Spec: spec, client: client}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fetch retrieves and normalizes the provider's model list. It returns
// ErrNoCredential when a required key is missing.
func (s *Source) Fetch(ctx context.Context) ([]string, error) {
	if s.CredentialEnv != "" && s.credential == "" {
		return nil, fmt.Errorf("%s: %w (%s)", s.ID, ErrNoCredential, s.CredentialEnv)
	}

	var (
		ids []string
		err error
	)
	switch s.Format {
	case FormatJSON:
		ids, err = s.fetchJSON(ctx)
	case FormatHTMLTable, FormatHTMLText:
		ids, err = s.fetchHTML(ctx)
	default:
		err = fmt.Errorf("unknown format %q", s.Format)
	}
	if err != nil {
		return nil, err
	}

	if s.MinModels > 0 && len(ids) > 0 && len(ids) < s.MinModels {
		slog.Warn("fewer models than expected", "provider", s.ID, "models", len(ids), "min", s.MinModels)
	}

	if s.Group == nil || len(ids) == 0 {
		return ids, nil
	}
	policy := *s.Group
	policy.Extras = append(append([]string(nil), policy.Extras...), s.extras...)
	return group.Strings(group.Group(ids, policy)), nil
}

func (s *Source) headers() map[string]string {
	if s.credential == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + s.credential}
}

func (s *Source) fetchJSON(ctx context.Context) ([]string, error) {
	queries := s.Queries
	if len(queries) == 0 {
		queries = []map[string]string{nil}
	}

	var bodies []any
	for _, q := range queries {
		params := url.Values{}
		for k, v := range q {
			params.Set(k, v)
		}

		if s.Pagination == nil {
			body, err := s.getJSON(ctx, params)
			if err != nil {
				return nil, err
			}
			bodies = append(bodies, body)
			continue
		}

		pages, err := s.fetchPages(ctx, params)
		if err != nil {
			return nil, err
		}
		bodies = append(bodies, pages...)
	}
	return normalize.NormalizeAll(bodies, s.Rule), nil
}

// fetchPages walks numbered pages until MaxPages, a short page, or a page
// without eligible entries. A failure after the first page keeps what was
// already collected.
func (s *Source) fetchPages(ctx context.Context, params url.Values) ([]any, error) {
	p := s.Pagination
	var bodies []any
	for i := 0; i < p.MaxPages; i++ {
		page := p.Start + i
		params.Set(p.PageParam, strconv.Itoa(page))

		body, err := s.getJSON(ctx, params)
		if err != nil {
			if i == 0 {
				return nil, err
			}
			slog.Warn("stopping pagination", "provider", s.ID, "page", page, "error", err)
			break
		}

		if len(normalize.Normalize(body, s.Rule)) == 0 {
			break
		}
		bodies = append(bodies, body)
		slog.Debug("fetched page", "provider", s.ID, "page", page)

		if p.PageSize > 0 && len(normalize.Entries(body, s.Rule.Path)) < p.PageSize {
			break
		}
	}
	return bodies, nil
}

func (s *Source) getJSON(ctx context.Context, params url.Values) (any, error) {
	u, err := httpclient.WithQuery(s.URL, params)
	if err != nil {
		return nil, err
	}
	return s.client.GetJSON(ctx, u, s.headers())
}

func (s *Source) fetchHTML(ctx context.Context) ([]string, error) {
	doc, err := htmlutil.Fetch(ctx, s.client, s.URL)
	if err != nil {
		return nil, err
	}

	var texts []string
	if s.Format == FormatHTMLTable {
		texts = htmlutil.TableColumn(doc, s.Selector, s.Column)
	} else {
		texts = htmlutil.Texts(doc, s.Selector)
	}

	raw := make([]any, len(texts))
	for i, t := range texts {
		raw[i] = t
	}
	return normalize.Normalize(raw, normalize.Rule{Pattern: s.Rule.Pattern}), nil
}

// Key returns the provider ID.
func (s *Source) Key() string { return s.ID }

// Endpoint returns the endpoint name the list is merged into.
func (s *Source) Endpoint() string { return s.Name }
