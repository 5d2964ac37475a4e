package pipeline

import (
	"fmt"
	"os"
	"strings"

	"github.com/everstacklabs/modelsync/internal/validate"
)

// writeGitHubEnv appends the validation outcome to the GitHub Actions
// environment file so later workflow steps can skip the pull request.
// An empty path is a no-op.
func writeGitHubEnv(path string, r *validate.Result) error {
	if path == "" {
		return nil
	}

	msgs := make([]string, 0, len(r.Errors()))
	for _, i := range r.Errors() {
		msg := i.Message
		if i.Field != "" {
			msg = i.Field + ": " + msg
		}
		msgs = append(msgs, i.Document+": "+msg)
	}
	// Values are single-line; the env file format ends an entry at the newline.
	joined := strings.ReplaceAll(strings.Join(msgs, "; "), "\n", " ")

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	_, err = fmt.Fprintf(f, "YAML_VALIDATION_FAILED=true\nVALIDATION_ERRORS=%s\n", joined)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
