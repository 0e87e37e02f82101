package engine

import (
	"context"
	"fmt"

	"github.com/lineal-dev/lineal/pkg/core"
)

// Direction selects which way impact analysis walks the graph.
type Direction string

// Direction constants.
const (
	// DirectionUpstream walks toward the objects this one reads from.
	DirectionUpstream Direction = "upstream"
	// DirectionDownstream walks toward the objects that read from this one.
	DirectionDownstream Direction = "downstream"
)

// ImpactRequest describes one impact analysis query.
type ImpactRequest struct {
	// Source is the data source name
	Source string
	// Object is the qualified object name
	Object string
	// Column narrows the walk to a single column when set
	Column string
	// Direction is upstream or downstream (default downstream)
	Direction Direction
	// MaxDepth bounds the walk; zero or negative means unbounded
	MaxDepth int
}

// ImpactResult holds the objects (or columns) reached by an impact query.
type ImpactResult struct {
	Object       *core.PersistedObject
	Traces       []*core.TraceResult
	ColumnTraces []*core.ColumnTraceResult
}

// Impact walks the persisted graph from one object and returns everything
// reachable in the requested direction, with hop distance.
func (e *Engine) Impact(ctx context.Context, req ImpactRequest) (*ImpactResult, error) {
	source, err := e.store.GetDataSource(ctx, req.Source)
	if err != nil {
		return nil, err
	}
	if source == nil {
		return nil, fmt.Errorf("data source not found: %s", req.Source)
	}

	object, err := e.store.GetObjectByName(ctx, source.ID, req.Object)
	if err != nil {
		return nil, err
	}
	if object == nil {
		return nil, fmt.Errorf("object not found: %s", req.Object)
	}

	direction := req.Direction
	if direction == "" {
		direction = DirectionDownstream
	}

	result := &ImpactResult{Object: object}
	switch {
	case req.Column != "" && direction == DirectionUpstream:
		result.ColumnTraces, err = e.store.TraceColumnUpstream(ctx, object.ID, req.Column, req.MaxDepth)
	case req.Column != "":
		result.ColumnTraces, err = e.store.TraceColumnDownstream(ctx, object.ID, req.Column, req.MaxDepth)
	case direction == DirectionUpstream:
		result.Traces, err = e.store.Upstream(ctx, object.ID, req.MaxDepth)
	default:
		result.Traces, err = e.store.Downstream(ctx, object.ID, req.MaxDepth)
	}
	if err != nil {
		return nil, err
	}

	return result, nil
}
