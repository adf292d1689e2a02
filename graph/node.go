package graph

// NodeMode governs whether a node participates in execution. The numeric
// values are the ones found in persisted workflows.
type NodeMode int

const (
	ModeAlways    NodeMode = 0
	ModeOnEvent   NodeMode = 1
	ModeMute      NodeMode = 2
	ModeOnTrigger NodeMode = 3
	ModeBypass    NodeMode = 4
)

// Valid reports whether m is one of the five known modes.
func (m NodeMode) Valid() bool {
	return m >= ModeAlways && m <= ModeBypass
}

func (m NodeMode) String() string {
	switch m {
	case ModeAlways:
		return "ALWAYS"
	case ModeOnEvent:
		return "ON_EVENT"
	case ModeMute:
		return "MUTE"
	case ModeOnTrigger:
		return "ON_TRIGGER"
	case ModeBypass:
		return "BYPASS"
	}
	return "UNKNOWN"
}

// NodeFlags are presentation flags stored alongside the node.
type NodeFlags struct {
	Collapsed bool `json:"collapsed,omitempty"`
	Pinned    bool `json:"pinned,omitempty"`
}

// Node is a typed unit of computation within a Graph.
type Node struct {
	ID           int                    `json:"id"`
	Type         string                 `json:"type"`
	Title        string                 `json:"title,omitempty"`
	Position     Pos                    `json:"pos"`
	Size         Size                   `json:"size"`
	Flags        NodeFlags              `json:"flags,omitempty"`
	Order        int                    `json:"order"`
	Mode         NodeMode               `json:"mode"`
	Color        string                 `json:"color,omitempty"`
	BGColor      string                 `json:"bgcolor,omitempty"`
	Inputs       []Slot                 `json:"inputs,omitempty"`
	Outputs      []Slot                 `json:"outputs,omitempty"`
	WidgetValues *WidgetValues          `json:"widgets_values,omitempty"`
	Properties   map[string]interface{} `json:"properties,omitempty"`

	Graph *Graph `json:"-"`
}

// IsVirtual reports whether the node is a frontend-only helper that never
// reaches the execution server.
func (n *Node) IsVirtual() bool {
	switch n.Type {
	case "PrimitiveNode", "Reroute", "Note":
		return true
	}
	return false
}

// InputSlot returns the input slot at index i.
func (n *Node) InputSlot(i int) (*Slot, error) {
	if i < 0 || i >= len(n.Inputs) {
		return nil, ErrSlotOutOfRange
	}
	return &n.Inputs[i], nil
}

// OutputSlot returns the output slot at index i.
func (n *Node) OutputSlot(i int) (*Slot, error) {
	if i < 0 || i >= len(n.Outputs) {
		return nil, ErrSlotOutOfRange
	}
	return &n.Outputs[i], nil
}

// InputWithName returns the first input slot with the given name.
func (n *Node) InputWithName(name string) *Slot {
	for i := range n.Inputs {
		if n.Inputs[i].Name == name {
			return &n.Inputs[i]
		}
	}
	return nil
}

// OutputWithName returns the first output slot with the given name.
func (n *Node) OutputWithName(name string) *Slot {
	for i := range n.Outputs {
		if n.Outputs[i].Name == name {
			return &n.Outputs[i]
		}
	}
	return nil
}

// LinkIDs returns every link id the node participates in, as origin or
// target, in slot order.
func (n *Node) LinkIDs() []int {
	retv := make([]int, 0)
	for i := range n.Inputs {
		if n.Inputs[i].Link != 0 {
			retv = append(retv, n.Inputs[i].Link)
		}
	}
	for i := range n.Outputs {
		retv = append(retv, n.Outputs[i].Links...)
	}
	return retv
}

// NodeForInput returns the node feeding input slot i, or nil if the slot is
// unconnected.
func (n *Node) NodeForInput(i int) *Node {
	if n.Graph == nil || i < 0 || i >= len(n.Inputs) {
		return nil
	}
	l, ok := n.Graph.LinkByID(n.Inputs[i].Link)
	if !ok {
		return nil
	}
	nd, _ := n.Graph.NodeByID(l.OriginID)
	return nd
}
