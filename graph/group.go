package graph

// Group is a visual clustering rectangle. Membership is derived from
// geometry, never stored.
type Group struct {
	ID       int        `json:"id,omitempty"`
	Title    string     `json:"title"`
	Bounding [4]float64 `json:"bounding"`
	Color    string     `json:"color,omitempty"`
}

// IntersectsOrContains reports whether the node's box overlaps the group's
// bounding rectangle.
func (r *Group) IntersectsOrContains(node *Node) bool {
	rx, ry, rw, rh := r.Bounding[0], r.Bounding[1], r.Bounding[2], r.Bounding[3]

	nx := node.Position.X
	ny := node.Position.Y
	nw := node.Size.Width
	nh := node.Size.Height

	return !(rx > nx+nw ||
		rx+rw < nx ||
		ry > ny+nh ||
		ry+rh < ny)
}

// Move shifts the group rectangle by (dx, dy).
func (r *Group) Move(dx, dy float64) {
	r.Bounding[0] += dx
	r.Bounding[1] += dy
}

// Resize sets the group rectangle's width and height.
func (r *Group) Resize(w, h float64) {
	r.Bounding[2] = w
	r.Bounding[3] = h
}
