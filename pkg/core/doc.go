// Package core defines the shared language of the lineage system.
//
// This package contains:
//   - Domain entities (DataSource, DataObject, LineageEdge, etc.)
//   - Service interfaces (Store)
//   - The error taxonomy shared by resolution, graph building, and storage
//
// The Golden Rule: pkg/core imports only the standard library.
// All other packages depend on core, not the reverse.
package core
