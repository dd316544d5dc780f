package tree

import (
	"encoding/json"
	"fmt"
)

// Direction selects one of the two branches of a node.
type Direction string

const (
	Yes Direction = "yes"
	No  Direction = "no"
)

// Directions lists both branches in the order they are walked.
var Directions = [2]Direction{Yes, No}

// ParseDirection accepts "yes" or "no".
func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case Yes, No:
		return Direction(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidDirection, s)
}

// Decision is one branch of a node. It points at a child node, a band,
// or nothing yet. Both fields are weak references resolved through the Store.
type Decision struct {
	NodeID string `yaml:"nodeId,omitempty"`
	BandID string `yaml:"bandId,omitempty"`
}

// HasChild reports whether the branch leads to another node.
func (d Decision) HasChild() bool { return d.NodeID != "" }

// HasBand reports whether the branch carries a band assignment.
func (d Decision) HasBand() bool { return d.BandID != "" }

// Resolved reports whether exactly one of child or band is set.
func (d Decision) Resolved() bool { return d.HasChild() != d.HasBand() }

// decisionJSON writes absent references as null so exports match the
// interchange shape {nodeId, bandId}.
type decisionJSON struct {
	NodeID *string `json:"nodeId"`
	BandID *string `json:"bandId"`
}

func (d Decision) MarshalJSON() ([]byte, error) {
	var out decisionJSON
	if d.NodeID != "" {
		out.NodeID = &d.NodeID
	}
	if d.BandID != "" {
		out.BandID = &d.BandID
	}
	return json.Marshal(out)
}

func (d *Decision) UnmarshalJSON(data []byte) error {
	var in decisionJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*d = Decision{}
	if in.NodeID != nil {
		d.NodeID = *in.NodeID
	}
	if in.BandID != nil {
		d.BandID = *in.BandID
	}
	return nil
}

// Node is a question point with a yes and a no branch.
type Node struct {
	ID       string   `json:"id" yaml:"id"`
	Question string   `json:"question" yaml:"question"`
	IsRoot   bool     `json:"isRoot" yaml:"isRoot"`
	Yes      Decision `json:"yes" yaml:"yes"`
	No       Decision `json:"no" yaml:"no"`
}

// Branch returns the decision for dir.
func (n *Node) Branch(dir Direction) Decision {
	if dir == No {
		return n.No
	}
	return n.Yes
}

func (n *Node) branch(dir Direction) *Decision {
	if dir == No {
		return &n.No
	}
	return &n.Yes
}

// IsLeaf reports whether neither branch leads to a child node. A leaf may
// still carry bands.
func (n *Node) IsLeaf() bool {
	return !n.Yes.HasChild() && !n.No.HasChild()
}
