package graph

import (
	"encoding/json"
	"errors"
)

// Link is a directed edge from one node's output slot to another node's
// input slot.
type Link struct {
	ID         int
	OriginID   int
	OriginSlot int
	TargetID   int
	TargetSlot int
	Type       string

	// objectForm tracks which wire format the link came from so a document
	// round-trips byte-compatibly: top-level links are 6-tuples, links inside
	// subgraph definitions are objects.
	objectForm bool
}

type linkObject struct {
	ID         int    `json:"id"`
	OriginID   int    `json:"origin_id"`
	OriginSlot int    `json:"origin_slot"`
	TargetID   int    `json:"target_id"`
	TargetSlot int    `json:"target_slot"`
	Type       string `json:"type"`
}

func (l *Link) UnmarshalJSON(b []byte) error {
	var tuple []interface{}
	if err := json.Unmarshal(b, &tuple); err == nil {
		if len(tuple) != 6 {
			return errors.New("link tuple must have 6 fields")
		}
		l.ID = asInt(tuple[0])
		l.OriginID = asInt(tuple[1])
		l.OriginSlot = asInt(tuple[2])
		l.TargetID = asInt(tuple[3])
		l.TargetSlot = asInt(tuple[4])
		l.Type, _ = tuple[5].(string)
		l.objectForm = false
		return nil
	}

	var obj linkObject
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	l.ID = obj.ID
	l.OriginID = obj.OriginID
	l.OriginSlot = obj.OriginSlot
	l.TargetID = obj.TargetID
	l.TargetSlot = obj.TargetSlot
	l.Type = obj.Type
	l.objectForm = true
	return nil
}

func (l *Link) MarshalJSON() ([]byte, error) {
	if l.objectForm {
		return json.Marshal(linkObject{
			ID:         l.ID,
			OriginID:   l.OriginID,
			OriginSlot: l.OriginSlot,
			TargetID:   l.TargetID,
			TargetSlot: l.TargetSlot,
			Type:       l.Type,
		})
	}
	return json.Marshal([]interface{}{l.ID, l.OriginID, l.OriginSlot, l.TargetID, l.TargetSlot, l.Type})
}

func asInt(v interface{}) int {
	f, _ := v.(float64)
	return int(f)
}
