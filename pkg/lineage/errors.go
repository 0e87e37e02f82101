package lineage

import (
	"fmt"
	"strings"
)

// AmbiguousReferenceError reports an unqualified column reference that
// matches more than one table in scope.
type AmbiguousReferenceError struct {
	Column     string
	Candidates []string // Tables that could supply the column
}

func (e *AmbiguousReferenceError) Error() string {
	return fmt.Sprintf("ambiguous column reference %q: candidates [%s]",
		e.Column, strings.Join(e.Candidates, ", "))
}

// ResolveError represents an error during scope resolution.
type ResolveError struct {
	Message string
}

func (e *ResolveError) Error() string {
	return "resolve error: " + e.Message
}
