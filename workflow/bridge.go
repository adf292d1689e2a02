package workflow

import (
	"context"
	"sort"
	"sync"

	"github.com/jaeone94/comfy-mobile-graph/graph"
	"github.com/jaeone94/comfy-mobile-graph/registry"
	"github.com/jaeone94/comfy-mobile-graph/session"
	"github.com/rs/zerolog/log"
)

// SaveListener is notified after each persistence attempt. A non-nil error
// is informational only: the in-memory graph stays the source of truth and
// editing is never blocked or rolled back by a failed save.
type SaveListener func(docID string, err error)

// Bridge routes structural mutations to the correct nesting level of a
// document and persists the result. Mutations apply synchronously to the
// active session's graph; when that session is a subgraph, the membership
// changes are mirrored into the SubgraphDefinition embedded in the root
// document. Persistence is asynchronous and always serializes the root
// graph's live state at write time, so a queued save can never clobber newer
// edits with a stale snapshot.
type Bridge struct {
	store Store
	stack *session.Stack
	docID string
	reg   *registry.Registry
	onSave SaveListener

	// mu serializes mutations against the saver's snapshot of the root
	// graph; each mutation is atomic relative to a save
	mu    sync.Mutex
	dirty chan struct{}
	done  chan struct{}
	wg    sync.WaitGroup
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithSaveListener registers a callback invoked after every save attempt.
func WithSaveListener(fn SaveListener) Option {
	return func(b *Bridge) { b.onSave = fn }
}

// WithRegistry supplies capability metadata, used to coerce committed widget
// values through their validation bounds.
func WithRegistry(reg *registry.Registry) Option {
	return func(b *Bridge) { b.reg = reg }
}

// NewBridge wires a session stack to a store and starts the background
// saver.
func NewBridge(store Store, stack *session.Stack, docID string, opts ...Option) *Bridge {
	b := &Bridge{
		store: store,
		stack: stack,
		docID: docID,
		dirty: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}

	b.wg.Add(1)
	go b.saver()
	return b
}

// Close performs a final save of any pending changes and stops the saver.
func (b *Bridge) Close() {
	select {
	case <-b.dirty:
		b.saveNow()
	default:
	}
	close(b.done)
	b.wg.Wait()
}

// Stack exposes the underlying session stack for read-only consumers such
// as breadcrumb rendering.
func (b *Bridge) Stack() *session.Stack {
	return b.stack
}

func (b *Bridge) saver() {
	defer b.wg.Done()
	for {
		select {
		case <-b.done:
			return
		case <-b.dirty:
			b.saveNow()
		}
	}
}

// saveNow serializes the root graph under the mutation lock and writes it.
// Saves run on one goroutine, so writes for this document reach storage in
// the order their triggering mutations occurred.
func (b *Bridge) saveNow() {
	b.mu.Lock()
	err := b.store.Save(context.Background(), b.docID, b.stack.Root().Graph)
	b.mu.Unlock()

	if err != nil {
		log.Error().Str("doc_id", b.docID).Err(err).Msg("workflow save failed")
	}
	if b.onSave != nil {
		b.onSave(b.docID, err)
	}
}

// scheduleSave requests an asynchronous save. Requests coalesce: at most one
// is pending, and the save reads live state when it runs.
func (b *Bridge) scheduleSave() {
	select {
	case b.dirty <- struct{}{}:
	default:
	}
}

// Flush saves synchronously. Explicit Save actions use it so the caller can
// surface the result immediately.
func (b *Bridge) Flush(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.store.Save(ctx, b.docID, b.stack.Root().Graph)
}

// syncDefinition mirrors the active subgraph session's graph back into its
// definition: node/link/group membership, id watermarks, and the promoted
// ports' link bindings. Boundary nodes stay out of the definition's node
// list; they are an artifact of materialization.
func (b *Bridge) syncDefinition(sess *session.Session) {
	def := sess.Definition
	if def == nil {
		return
	}
	g := sess.Graph

	nodes := make([]*graph.Node, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		if n.Type == session.SubgraphInputType || n.Type == session.SubgraphOutputType {
			continue
		}
		nodes = append(nodes, n)
	}
	def.Nodes = nodes

	links := make([]*graph.Link, 0, len(g.Links))
	for _, l := range g.Links {
		links = append(links, l)
	}
	sort.Slice(links, func(i, j int) bool { return links[i].ID < links[j].ID })
	def.Links = links
	def.Groups = g.Groups
	def.State.LastNodeID = g.LastNodeID
	def.State.LastLinkID = g.LastLinkID

	if in := boundaryNode(g, session.SubgraphInputType); in != nil {
		for i := range def.Inputs {
			if i < len(in.Outputs) {
				def.Inputs[i].LinkIDs = append([]int(nil), in.Outputs[i].Links...)
			}
		}
	}
	if out := boundaryNode(g, session.SubgraphOutputType); out != nil {
		for i := range def.Outputs {
			if i < len(out.Inputs) {
				if out.Inputs[i].Link != 0 {
					def.Outputs[i].LinkIDs = []int{out.Inputs[i].Link}
				} else {
					def.Outputs[i].LinkIDs = nil
				}
			}
		}
	}
}

// boundaryNode returns the materialized boundary node of the given type,
// wherever its id landed.
func boundaryNode(g *graph.Graph, nodeType string) *graph.Node {
	for _, n := range g.Nodes {
		if n.Type == nodeType {
			return n
		}
	}
	return nil
}

// mutate runs fn against the active session's graph, mirrors the result to
// the session's definition when nested, and schedules a save.
func (b *Bridge) mutate(fn func(g *graph.Graph) error) error {
	b.mu.Lock()
	sess := b.stack.Active()
	err := fn(sess.Graph)
	if err == nil && !sess.IsRoot() {
		b.syncDefinition(sess)
	}
	b.mu.Unlock()

	if err != nil {
		return err
	}
	b.scheduleSave()
	return nil
}

// AddNode inserts a node into the active graph.
func (b *Bridge) AddNode(n *graph.Node) (*graph.Node, error) {
	err := b.mutate(func(g *graph.Graph) error {
		g.AddNode(n)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return n, nil
}

// RemoveNode removes a node together with every link it participates in.
func (b *Bridge) RemoveNode(id int) error {
	return b.mutate(func(g *graph.Graph) error { return g.RemoveNodeWithLinks(id) })
}

// MoveNode sets a node's position.
func (b *Bridge) MoveNode(id int, pos graph.Pos) error {
	return b.mutate(func(g *graph.Graph) error { return g.SetPosition(id, pos) })
}

// ResizeNode sets a node's size.
func (b *Bridge) ResizeNode(id int, size graph.Size) error {
	return b.mutate(func(g *graph.Graph) error { return g.SetSize(id, size) })
}

// SetCollapsed sets a node's collapsed flag.
func (b *Bridge) SetCollapsed(id int, collapsed bool) error {
	return b.mutate(func(g *graph.Graph) error { return g.SetCollapsed(id, collapsed) })
}

// SetMode sets a node's execution mode.
func (b *Bridge) SetMode(id int, mode graph.NodeMode) error {
	return b.mutate(func(g *graph.Graph) error { return g.SetMode(id, mode) })
}

// SetTitle sets a node's title.
func (b *Bridge) SetTitle(id int, title string) error {
	return b.mutate(func(g *graph.Graph) error { return g.SetTitle(id, title) })
}

// SetColor sets a node's display colors.
func (b *Bridge) SetColor(id int, color, bgcolor string) error {
	return b.mutate(func(g *graph.Graph) error { return g.SetColor(id, color, bgcolor) })
}

// Connect creates a link in the active graph.
func (b *Bridge) Connect(originID, originSlot, targetID, targetSlot int) (*graph.Link, error) {
	var l *graph.Link
	err := b.mutate(func(g *graph.Graph) error {
		var err error
		l, err = g.Connect(originID, originSlot, targetID, targetSlot)
		return err
	})
	if err != nil {
		return nil, err
	}
	return l, nil
}

// RemoveLink deletes a link from the active graph.
func (b *Bridge) RemoveLink(id int) error {
	return b.mutate(func(g *graph.Graph) error { return g.RemoveLink(id) })
}

// ApplyBatch applies a set of link additions and removals together.
func (b *Bridge) ApplyBatch(batch graph.LinkBatch) ([]*graph.Link, error) {
	var added []*graph.Link
	err := b.mutate(func(g *graph.Graph) error {
		var err error
		added, err = g.ApplyBatch(batch)
		return err
	})
	if err != nil {
		return nil, err
	}
	return added, nil
}

// AddGroup inserts a group into the active graph.
func (b *Bridge) AddGroup(g *graph.Group) (*graph.Group, error) {
	err := b.mutate(func(gr *graph.Graph) error {
		gr.AddGroup(g)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return g, nil
}

// RemoveGroup deletes a group from the active graph.
func (b *Bridge) RemoveGroup(id int) error {
	return b.mutate(func(g *graph.Graph) error { return g.RemoveGroup(id) })
}

// MoveGroup shifts a group rectangle.
func (b *Bridge) MoveGroup(id int, dx, dy float64) error {
	return b.mutate(func(g *graph.Graph) error {
		for _, grp := range g.Groups {
			if grp.ID == id {
				grp.Move(dx, dy)
				return nil
			}
		}
		return graph.ErrGroupNotFound
	})
}

// ResizeGroup sets a group rectangle's dimensions.
func (b *Bridge) ResizeGroup(id int, w, h float64) error {
	return b.mutate(func(g *graph.Graph) error {
		for _, grp := range g.Groups {
			if grp.ID == id {
				grp.Resize(w, h)
				return nil
			}
		}
		return graph.ErrGroupNotFound
	})
}

// EnterSubgraph pushes an editing session for a nested definition. The
// persistence write target follows the active session automatically.
func (b *Bridge) EnterSubgraph(id, title string) (*session.Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stack.EnterSubgraph(id, title)
}

// ExitSubgraph pops the active subgraph session.
func (b *Bridge) ExitSubgraph() (*session.Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stack.Exit()
}

// JumpTo truncates the stack for breadcrumb navigation.
func (b *Bridge) JumpTo(i int) (*session.Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stack.JumpTo(i)
}

// StageWidget stages a widget edit in the active session's overlay. Nothing
// is persisted until CommitOverlay.
func (b *Bridge) StageWidget(nodeID int, name string, v graph.WidgetValue) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stack.Active().Overlay.Set(nodeID, name, v)
}

// WidgetValue reads a widget through the active overlay: staged value first,
// then the node's stored value, then fallback.
func (b *Bridge) WidgetValue(nodeID int, name string, fallback graph.WidgetValue) graph.WidgetValue {
	b.mu.Lock()
	defer b.mu.Unlock()
	sess := b.stack.Active()
	return sess.Overlay.Get(sess.Graph, nodeID, name, fallback)
}

// CommitOverlay writes the active session's staged edits into the graph,
// clears the overlay, and schedules a save. This is the Save action; running
// a pipeline goes through BuildPrompt instead and commits nothing.
func (b *Bridge) CommitOverlay() {
	b.mu.Lock()
	sess := b.stack.Active()
	sess.Overlay.Commit(sess.Graph, b.reg)
	if !sess.IsRoot() {
		b.syncDefinition(sess)
	}
	b.mu.Unlock()
	b.scheduleSave()
}

// BuildPrompt converts the root graph to the execution wire format with the
// root session's staged values folded in. The graph and the stored document
// are untouched; submitting a pipeline never silently rewrites the saved
// workflow.
func (b *Bridge) BuildPrompt(clientID string) (*graph.Prompt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	root := b.stack.Root()
	return root.Graph.ToPrompt(clientID, root.Overlay.Resolver())
}
