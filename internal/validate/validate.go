package validate

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/everstacklabs/modelsync/internal/group"
)

// Severity classifies validation issues.
type Severity int

const (
	SeverityError   Severity = iota // Blocks promotion of the update
	SeverityWarning                 // Reported but doesn't block
)

// Issue represents a single validation problem.
type Issue struct {
	Severity Severity
	Document string
	Field    string
	Message  string
}

func (i Issue) String() string {
	sev := "ERROR"
	if i.Severity == SeverityWarning {
		sev = "WARN"
	}
	if i.Field == "" {
		return fmt.Sprintf("[%s] %s: %s", sev, i.Document, i.Message)
	}
	return fmt.Sprintf("[%s] %s: %s: %s", sev, i.Document, i.Field, i.Message)
}

// Result holds all validation issues.
type Result struct {
	Issues []Issue
}

// HasErrors returns true if there are any blocking errors.
func (r *Result) HasErrors() bool {
	for _, i := range r.Issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Errors returns only error-severity issues.
func (r *Result) Errors() []Issue {
	var errs []Issue
	for _, i := range r.Issues {
		if i.Severity == SeverityError {
			errs = append(errs, i)
		}
	}
	return errs
}

// Warnings returns only warning-severity issues.
func (r *Result) Warnings() []Issue {
	var warns []Issue
	for _, i := range r.Issues {
		if i.Severity == SeverityWarning {
			warns = append(warns, i)
		}
	}
	return warns
}

// Merge appends the issues of other.
func (r *Result) Merge(other *Result) {
	if other != nil {
		r.Issues = append(r.Issues, other.Issues...)
	}
}

// Err returns a *Error when the result has blocking issues.
func (r *Result) Err() error {
	if !r.HasErrors() {
		return nil
	}
	return &Error{Issues: r.Errors()}
}

// Options controls the structural checks.
type Options struct {
	RequiredKeys []string
	EntriesPath  []string
}

// DefaultOptions matches the gateway configuration layout.
func DefaultOptions() Options {
	return Options{
		RequiredKeys: []string{"version", "endpoints"},
		EntriesPath:  []string{"endpoints", "custom"},
	}
}

// File reads and validates the document at path.
func File(path string, opts Options) *Result {
	data, err := os.ReadFile(path)
	if err != nil {
		return &Result{Issues: []Issue{{SeverityError, path, "", fmt.Sprintf("reading file: %v", err)}}}
	}
	return Document(path, data, opts)
}

// Document checks that data parses as YAML, that its root is a mapping
// holding every required key, and reports suspicious endpoint entries as
// warnings.
func Document(name string, data []byte, opts Options) *Result {
	r := &Result{}

	var root any
	if err := yaml.Unmarshal(data, &root); err != nil {
		r.Issues = append(r.Issues, Issue{SeverityError, name, "", "invalid YAML:\n" + yaml.FormatError(err, false, true)})
		return r
	}

	doc, ok := root.(map[string]any)
	if !ok {
		r.Issues = append(r.Issues, Issue{SeverityError, name, "", fmt.Sprintf("root must be a mapping, got %s", kindOf(root))})
		return r
	}

	for _, key := range opts.RequiredKeys {
		if _, ok := doc[key]; !ok {
			r.Issues = append(r.Issues, Issue{SeverityError, name, key, "required key is missing"})
		}
	}

	if len(opts.EntriesPath) > 0 {
		checkEntries(r, name, doc, opts.EntriesPath)
	}
	return r
}

func checkEntries(r *Result, name string, doc map[string]any, path []string) {
	field := strings.Join(path, ".")

	var node any = doc
	for _, key := range path {
		m, ok := node.(map[string]any)
		if !ok {
			return
		}
		node, ok = m[key]
		if !ok {
			return
		}
	}

	entries, ok := node.([]any)
	if !ok {
		r.Issues = append(r.Issues, Issue{SeverityError, name, field, fmt.Sprintf("must be a list, got %s", kindOf(node))})
		return
	}

	seen := make(map[string]int)
	for i, raw := range entries {
		at := fmt.Sprintf("%s[%d]", field, i)
		entry, ok := raw.(map[string]any)
		if !ok {
			r.Issues = append(r.Issues, Issue{SeverityWarning, name, at, "entry is not a mapping"})
			continue
		}
		entryName, _ := entry["name"].(string)
		if strings.TrimSpace(entryName) == "" {
			r.Issues = append(r.Issues, Issue{SeverityWarning, name, at + ".name", "entry has no name"})
		} else {
			seen[entryName]++
		}

		models, ok := entry["models"].(map[string]any)
		if !ok {
			r.Issues = append(r.Issues, Issue{SeverityWarning, name, at + ".models", "entry has no models block"})
			continue
		}
		list, _ := models["default"].([]any)
		if fetch, _ := models["fetch"].(bool); !fetch && len(realModels(list)) == 0 {
			r.Issues = append(r.Issues, Issue{SeverityWarning, name, at + ".models.default", "fetch is off and no models are listed"})
		}
	}

	var dups []string
	for n, count := range seen {
		if count > 1 {
			dups = append(dups, n)
		}
	}
	sort.Strings(dups)
	for _, n := range dups {
		r.Issues = append(r.Issues, Issue{SeverityWarning, name, field, fmt.Sprintf("endpoint %q is defined %d times", n, seen[n])})
	}
}

func realModels(list []any) []string {
	var ids []string
	for _, v := range list {
		if s, ok := v.(string); ok {
			ids = append(ids, s)
		}
	}
	return group.StripMarkers(ids)
}

func kindOf(v any) string {
	switch v.(type) {
	case nil:
		return "empty document"
	case []any:
		return "list"
	case map[string]any:
		return "mapping"
	default:
		return fmt.Sprintf("scalar (%T)", v)
	}
}

// FormatResult formats validation results for display.
func FormatResult(r *Result) string {
	if len(r.Issues) == 0 {
		return "Validation passed: no issues found."
	}

	var b strings.Builder
	errors := r.Errors()
	warnings := r.Warnings()

	if len(errors) > 0 {
		b.WriteString(fmt.Sprintf("Errors (%d):\n", len(errors)))
		for _, e := range errors {
			b.WriteString(fmt.Sprintf("  %s\n", e))
		}
	}

	if len(warnings) > 0 {
		b.WriteString(fmt.Sprintf("Warnings (%d):\n", len(warnings)))
		for _, w := range warnings {
			b.WriteString(fmt.Sprintf("  %s\n", w))
		}
	}

	return b.String()
}
