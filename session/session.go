// Package session manages editing contexts over workflow graphs: the
// session stack used to navigate into and out of nested subgraphs, the
// materialization of subgraph definitions into editable graphs with
// synthesized boundary nodes, and the per-session overlay of staged widget
// edits.
package session

import (
	"errors"

	"github.com/google/uuid"
	"github.com/jaeone94/comfy-mobile-graph/graph"
)

var (
	ErrDefinitionNotFound = errors.New("subgraph definition not found")
	ErrCannotExitRoot     = errors.New("root session cannot be exited")
	ErrIndexOutOfRange    = errors.New("session index out of range")
)

// Session is one editing context: a live graph, the subgraph definition it
// was materialized from (nil for the root document), and its own overlay of
// staged widget edits. The ID is the identity async results are checked
// against, so work started for a session that has since been dropped is
// never applied.
type Session struct {
	ID         uuid.UUID
	Graph      *graph.Graph
	SubgraphID string
	Definition *graph.SubgraphDefinition
	Overlay    *Overlay
	Title      string
}

// IsRoot reports whether this is the root document's session.
func (s *Session) IsRoot() bool {
	return s.SubgraphID == ""
}

func newRootSession(g *graph.Graph, title string) *Session {
	return &Session{
		ID:      uuid.New(),
		Graph:   g,
		Overlay: NewOverlay(),
		Title:   title,
	}
}
