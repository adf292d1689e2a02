package graph

import (
	"fmt"
)

// The functions in this file are the only code that creates or destroys
// links. A link lives in three places at once: the graph's link table, the
// origin node's output slot and the target node's input slot. Every mutation
// here updates all three together so the cross-references never disagree.

// Connect creates a link from an output slot to an input slot and returns
// it. When the target input already holds a link, that link is fully removed
// first (cross-references and table entry), so a reconnect never leaks the
// old link id. On any validation failure the graph is left untouched.
func (t *Graph) Connect(originID, originSlot, targetID, targetSlot int) (*Link, error) {
	origin, ok := t.nodesByID[originID]
	if !ok {
		return nil, fmt.Errorf("origin %d: %w", originID, ErrNodeNotFound)
	}
	target, ok := t.nodesByID[targetID]
	if !ok {
		return nil, fmt.Errorf("target %d: %w", targetID, ErrNodeNotFound)
	}
	out, err := origin.OutputSlot(originSlot)
	if err != nil {
		return nil, fmt.Errorf("origin %d output %d: %w", originID, originSlot, err)
	}
	in, err := target.InputSlot(targetSlot)
	if err != nil {
		return nil, fmt.Errorf("target %d input %d: %w", targetID, targetSlot, err)
	}

	// replace-on-reconnect: an input holds at most one link
	if in.Link != 0 {
		if err := t.RemoveLink(in.Link); err != nil {
			return nil, fmt.Errorf("replacing link %d: %w", in.Link, err)
		}
	}

	t.LastLinkID++
	l := &Link{
		ID:         t.LastLinkID,
		OriginID:   originID,
		OriginSlot: originSlot,
		TargetID:   targetID,
		TargetSlot: targetSlot,
		Type:       out.Type,
	}
	out.appendLink(l.ID)
	in.Link = l.ID
	t.Links[l.ID] = l
	return l, nil
}

// RemoveLink deletes a link from the table and strips both slot
// cross-references.
func (t *Graph) RemoveLink(id int) error {
	l, ok := t.Links[id]
	if !ok {
		return ErrLinkNotFound
	}

	if origin, ok := t.nodesByID[l.OriginID]; ok {
		if out, err := origin.OutputSlot(l.OriginSlot); err == nil {
			out.stripLink(id)
		}
	}
	if target, ok := t.nodesByID[l.TargetID]; ok {
		if in, err := target.InputSlot(l.TargetSlot); err == nil && in.Link == id {
			in.Link = 0
		}
	}
	delete(t.Links, id)
	return nil
}

// RemoveNodeWithLinks removes a node together with every link it
// participates in, as origin or target. The link set is computed up front and
// applied as one logical unit, so there is no intermediate state with a
// removed node and a dangling link.
func (t *Graph) RemoveNodeWithLinks(id int) error {
	n, ok := t.nodesByID[id]
	if !ok {
		return ErrNodeNotFound
	}

	ids := n.LinkIDs()
	// slots can be stale after a structural corruption; sweep the table too
	for lid, l := range t.Links {
		if l.OriginID == id || l.TargetID == id {
			ids = append(ids, lid)
		}
	}

	seen := make(map[int]bool, len(ids))
	for _, lid := range ids {
		if seen[lid] {
			continue
		}
		seen[lid] = true
		if err := t.RemoveLink(lid); err != nil && err != ErrLinkNotFound {
			return err
		}
	}
	return t.RemoveNode(id)
}

// LinkSpec names a connection for batch application.
type LinkSpec struct {
	OriginID   int
	OriginSlot int
	TargetID   int
	TargetSlot int
}

// LinkBatch is a set of link removals and additions applied together.
type LinkBatch struct {
	Remove []int
	Add    []LinkSpec
}

// ApplyBatch validates the whole batch against the current graph and then
// applies removals followed by additions. Validation failures reject the
// batch with no partial mutation. Additions may target occupied inputs; those
// follow the same replace-on-reconnect rule as Connect.
func (t *Graph) ApplyBatch(b LinkBatch) ([]*Link, error) {
	// collapse duplicate removal ids so a repeated entry cannot pass
	// validation and then fail mid-apply after its first removal
	removals := make([]int, 0, len(b.Remove))
	seen := make(map[int]bool, len(b.Remove))
	for _, id := range b.Remove {
		if seen[id] {
			continue
		}
		seen[id] = true
		if _, ok := t.Links[id]; !ok {
			return nil, fmt.Errorf("remove %d: %w", id, ErrLinkNotFound)
		}
		removals = append(removals, id)
	}
	for _, spec := range b.Add {
		origin, ok := t.nodesByID[spec.OriginID]
		if !ok {
			return nil, fmt.Errorf("add origin %d: %w", spec.OriginID, ErrNodeNotFound)
		}
		if _, err := origin.OutputSlot(spec.OriginSlot); err != nil {
			return nil, fmt.Errorf("add origin %d output %d: %w", spec.OriginID, spec.OriginSlot, err)
		}
		target, ok := t.nodesByID[spec.TargetID]
		if !ok {
			return nil, fmt.Errorf("add target %d: %w", spec.TargetID, ErrNodeNotFound)
		}
		if _, err := target.InputSlot(spec.TargetSlot); err != nil {
			return nil, fmt.Errorf("add target %d input %d: %w", spec.TargetID, spec.TargetSlot, err)
		}
	}

	for _, id := range removals {
		if err := t.RemoveLink(id); err != nil {
			return nil, err
		}
	}
	added := make([]*Link, 0, len(b.Add))
	for _, spec := range b.Add {
		l, err := t.Connect(spec.OriginID, spec.OriginSlot, spec.TargetID, spec.TargetSlot)
		if err != nil {
			return added, err
		}
		added = append(added, l)
	}
	return added, nil
}
