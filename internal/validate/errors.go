package validate

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidDocument matches any *Error.
var ErrInvalidDocument = errors.New("document failed validation")

// Error carries the blocking issues of a failed validation.
type Error struct {
	Issues []Issue
}

func (e *Error) Error() string {
	msgs := make([]string, len(e.Issues))
	for i, issue := range e.Issues {
		msgs[i] = issue.String()
	}
	return fmt.Sprintf("%d validation error(s): %s", len(e.Issues), strings.Join(msgs, "; "))
}

func (e *Error) Is(target error) bool {
	return target == ErrInvalidDocument
}
