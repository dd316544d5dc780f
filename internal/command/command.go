// Package command defines the edits a view layer sends to a banding tree.
package command

import (
	"errors"
	"fmt"

	"github.com/gyaneshwarpardhi/bandtree/internal/tree"
)

// Kind discriminates commands.
type Kind string

const (
	AddChild      Kind = "add_child"      // node, direction
	SetBand       Kind = "set_band"       // node, direction, band ("" clears)
	SetQuestion   Kind = "set_question"   // node, text
	DraftQuestion Kind = "draft_question" // node, text; committed after the debounce period
	Detach        Kind = "detach"         // node, direction; drops the child subtree on that branch
	DeleteSubtree Kind = "delete_subtree" // node
)

// ErrInvalid marks a command that is missing fields or names an unknown kind.
var ErrInvalid = errors.New("invalid command")

// Command is the canonical input model for all tree edits.
type Command struct {
	ID        string         `json:"id"`
	Kind      Kind           `json:"kind"`
	NodeID    string         `json:"node_id"`
	Direction tree.Direction `json:"direction,omitempty"`
	BandID    string         `json:"band_id,omitempty"`
	Text      string         `json:"text,omitempty"`
}

// Check verifies that the fields c.Kind needs are present. It does not look
// at the tree.
func (c *Command) Check() error {
	if c.NodeID == "" {
		return fmt.Errorf("%w %s: node_id is required", ErrInvalid, c.Kind)
	}
	switch c.Kind {
	case AddChild, SetBand, Detach:
		if _, err := tree.ParseDirection(string(c.Direction)); err != nil {
			return fmt.Errorf("%w %s: %w", ErrInvalid, c.Kind, err)
		}
	case SetQuestion, DraftQuestion, DeleteSubtree:
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalid, c.Kind)
	}
	return nil
}

// Mutates reports whether applying c changes the tree immediately.
func (c *Command) Mutates() bool {
	return c.Kind != DraftQuestion
}
