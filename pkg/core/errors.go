package core

import (
	"fmt"
	"strings"
)

// CircularDependencyError reports a dependency cycle in the object graph.
// Path holds the qualified names along the cycle, first node repeated at
// the end: [a, b, c, a].
type CircularDependencyError struct {
	Path []string
}

func (e *CircularDependencyError) Error() string {
	return "circular dependency: " + strings.Join(e.Path, " -> ")
}

// IdentityConflictError reports an object whose logical identity collides
// with an existing object of a different kind or source.
type IdentityConflictError struct {
	QualifiedName string
	ExistingID    string
	Reason        string
}

func (e *IdentityConflictError) Error() string {
	return fmt.Sprintf("identity conflict for %q (existing %s): %s",
		e.QualifiedName, e.ExistingID, e.Reason)
}

// StoreTransactionError wraps a failed storage transaction. Callers may
// retry the operation; the wrapped error carries the driver detail.
type StoreTransactionError struct {
	Op  string
	Err error
}

func (e *StoreTransactionError) Error() string {
	return fmt.Sprintf("store transaction %s: %v", e.Op, e.Err)
}

func (e *StoreTransactionError) Unwrap() error {
	return e.Err
}
