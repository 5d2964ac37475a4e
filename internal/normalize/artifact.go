package normalize

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// ParseArtifact decodes a provider list artifact. Both a JSON array of
// strings and one bare identifier per line are accepted. Order is kept, since
// grouped lists carry section markers in a meaningful order.
func ParseArtifact(data []byte) ([]string, error) {
	content := strings.TrimSpace(string(data))
	if content == "" {
		return nil, nil
	}

	if strings.HasPrefix(content, "[") {
		var raw []any
		if err := json.Unmarshal([]byte(content), &raw); err == nil {
			return fromJSON(raw), nil
		}
	}

	var ids []string
	for _, line := range strings.Split(content, "\n") {
		id := strings.Trim(line, " \t\r\",")
		if id == "" || id == "[" || id == "]" {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func fromJSON(raw []any) []string {
	ids := make([]string, 0, len(raw))
	for _, item := range raw {
		switch v := item.(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				ids = append(ids, s)
			}
		case map[string]any:
			for _, key := range []string{"id", "name"} {
				if s, ok := v[key].(string); ok && s != "" {
					ids = append(ids, s)
					break
				}
			}
		}
	}
	return ids
}

// ReadArtifact reads a provider artifact file. A missing file is reported as
// an error so callers can distinguish it from an empty list.
func ReadArtifact(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading artifact: %w", err)
	}
	ids, err := ParseArtifact(data)
	if err != nil {
		return nil, fmt.Errorf("parsing artifact %s: %w", path, err)
	}
	return ids, nil
}

// WriteArtifact writes ids as an indented JSON array.
func WriteArtifact(path string, ids []string) error {
	if ids == nil {
		ids = []string{}
	}
	data, err := json.MarshalIndent(ids, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling artifact: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing artifact: %w", err)
	}
	return nil
}
