package domain

import (
	"errors"
	"strings"
)

var (
	ErrContentNotFound     = errors.New("content not found")
	ErrSearchQueryRequired = errors.New("search query required")
)

// Issue is a single failed field check.
type Issue struct {
	Path    string
	Message string
}

// ValidationError lists every problem found in a ContentInput.
type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Issues) == 0 {
		return "Validation error"
	}
	parts := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		parts = append(parts, issue.Message+" at \""+issue.Path+"\"")
	}
	return "Validation error: " + strings.Join(parts, "; ")
}

// IsValidationError reports whether err carries a ValidationError.
func IsValidationError(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}
