package session

import (
	"github.com/google/uuid"
	"github.com/jaeone94/comfy-mobile-graph/graph"
	"github.com/rs/zerolog/log"
)

// Stack is the ordered, never-empty list of editing contexts. Index 0 is
// always the root document's session; the last element is the active one.
// The stack is an explicit service passed to its callers, never an ambient
// global.
type Stack struct {
	sessions []*Session
}

// NewStack opens an editing stack over a loaded root graph.
func NewStack(root *graph.Graph, title string) *Stack {
	return &Stack{sessions: []*Session{newRootSession(root, title)}}
}

// Active returns the current editing context.
func (t *Stack) Active() *Session {
	return t.sessions[len(t.sessions)-1]
}

// Root returns the root document's session.
func (t *Stack) Root() *Session {
	return t.sessions[0]
}

// Depth returns the number of sessions on the stack; 1 means root only.
func (t *Stack) Depth() int {
	return len(t.sessions)
}

// At returns the session at stack index i.
func (t *Stack) At(i int) (*Session, error) {
	if i < 0 || i >= len(t.sessions) {
		return nil, ErrIndexOutOfRange
	}
	return t.sessions[i], nil
}

// Breadcrumbs returns the session titles from root to active.
func (t *Stack) Breadcrumbs() []string {
	titles := make([]string, len(t.sessions))
	for i, s := range t.sessions {
		titles[i] = s.Title
	}
	return titles
}

// Contains reports whether a session with the given identity is still on
// the stack. Async work captured for a session must check this before
// applying its result.
func (t *Stack) Contains(id uuid.UUID) bool {
	for _, s := range t.sessions {
		if s.ID == id {
			return true
		}
	}
	return false
}

// resolveDefinition searches for a definition id in the active session's
// graph first, then each ancestor down to the root document. The
// most-recently-entered scope wins, so a definition embedded in a nested
// subgraph shadows an outer one with the same id.
func (t *Stack) resolveDefinition(id string) (*graph.SubgraphDefinition, bool) {
	for i := len(t.sessions) - 1; i >= 0; i-- {
		if def, ok := t.sessions[i].Graph.SubgraphByID(id); ok {
			return def, true
		}
	}
	return nil, false
}

// EnterSubgraph materializes the definition with the given id and pushes a
// new session for it. If no definition is visible from any scope the stack
// is left unchanged and ErrDefinitionNotFound is returned; there is no
// fallback definition source.
func (t *Stack) EnterSubgraph(id, title string) (*Session, error) {
	def, ok := t.resolveDefinition(id)
	if !ok {
		log.Warn().Str("subgraph_id", id).Msg("subgraph definition not found in any visible scope")
		return nil, ErrDefinitionNotFound
	}

	if title == "" {
		title = def.Name
	}
	sess := &Session{
		ID:         uuid.New(),
		Graph:      Materialize(def),
		SubgraphID: id,
		Definition: def,
		Overlay:    NewOverlay(),
		Title:      title,
	}
	t.sessions = append(t.sessions, sess)
	log.Debug().Str("subgraph_id", id).Int("depth", len(t.sessions)).Msg("entered subgraph")
	return sess, nil
}

// Exit pops the active session and returns the session that becomes active.
// The popped graph needs no merge-back: its nodes live by reference inside
// the definition the root document serializes.
func (t *Stack) Exit() (*Session, error) {
	if len(t.sessions) == 1 {
		return nil, ErrCannotExitRoot
	}
	t.sessions[len(t.sessions)-1] = nil
	t.sessions = t.sessions[:len(t.sessions)-1]
	return t.Active(), nil
}

// JumpTo truncates the stack so that the session at index i becomes active,
// the breadcrumb-navigation analog of popping repeatedly.
func (t *Stack) JumpTo(i int) (*Session, error) {
	if i < 0 || i >= len(t.sessions) {
		return nil, ErrIndexOutOfRange
	}
	for j := i + 1; j < len(t.sessions); j++ {
		t.sessions[j] = nil
	}
	t.sessions = t.sessions[:i+1]
	return t.Active(), nil
}
