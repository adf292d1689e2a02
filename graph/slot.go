package graph

// SlotWidget marks an input slot as an exported widget value; Name names the
// widget on the owning node.
type SlotWidget struct {
	Name string `json:"name"`
}

// Slot is a named, typed connection point on a node. Input slots carry at
// most one link; output slots fan out to any number of links. Link ids start
// at 1, so a zero Link means unconnected.
type Slot struct {
	Name      string      `json:"name"`
	Type      string      `json:"type"`
	Link      int         `json:"link,omitempty"`
	Links     []int       `json:"links,omitempty"`
	Widget    *SlotWidget `json:"widget,omitempty"`
	Shape     *int        `json:"shape,omitempty"`
	SlotIndex *int        `json:"slot_index,omitempty"`
}

// Connected reports whether an input slot holds a link.
func (s *Slot) Connected() bool {
	return s.Link != 0
}

func (s *Slot) hasLink(id int) bool {
	for _, l := range s.Links {
		if l == id {
			return true
		}
	}
	return false
}

func (s *Slot) appendLink(id int) {
	if !s.hasLink(id) {
		s.Links = append(s.Links, id)
	}
}

func (s *Slot) stripLink(id int) {
	for i, l := range s.Links {
		if l == id {
			s.Links = append(s.Links[:i], s.Links[i+1:]...)
			return
		}
	}
}
