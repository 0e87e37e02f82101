package core

import "time"

// ObjectStatus represents the resolution outcome for one data object.
type ObjectStatus string

// Object status constants.
const (
	// StatusResolved means the object's SQL parsed and every reference resolved.
	StatusResolved ObjectStatus = "resolved"
	// StatusPartial means lineage was recorded at reduced fidelity
	// (table-level fallback, ambiguity, or fallback dialect).
	StatusPartial ObjectStatus = "partial"
	// StatusFailed means no lineage could be recorded for the object.
	StatusFailed ObjectStatus = "failed"
)

// ObjectResult reports the outcome of resolving a single object. A failed
// object never aborts its batch; the failure is recorded here instead.
type ObjectResult struct {
	QualifiedName string
	Status        ObjectStatus
	Edges         int
	Columns       int
	// Error holds the resolution error message for partial/failed objects
	Error string
}

// BatchSummary aggregates the outcome of a batch resolution run.
type BatchSummary struct {
	Total    int
	Resolved int
	Partial  int
	Failed   int
	// Stale counts objects newly marked stale; StaleEdges counts edges.
	Stale      int
	StaleEdges int
	// LastSync is the completion time of this run, for the caller to pass
	// back on the next batch
	LastSync time.Time
	// Cycles holds every dependency cycle detected, each as a qualified
	// name path with the first node repeated at the end
	Cycles [][]string
	// Results holds the per-object outcomes in input order
	Results []ObjectResult
}

// Add records one object result into the summary counts.
func (s *BatchSummary) Add(result ObjectResult) {
	s.Total++
	switch result.Status {
	case StatusResolved:
		s.Resolved++
	case StatusPartial:
		s.Partial++
	case StatusFailed:
		s.Failed++
	}
	s.Results = append(s.Results, result)
}
