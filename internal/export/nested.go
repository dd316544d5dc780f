package export

import (
	"fmt"

	"github.com/gyaneshwarpardhi/bandtree/internal/tree"
)

// DocumentID and DocumentVersion identify nested documents.
const (
	DocumentID      = "banding_decision_tree"
	DocumentVersion = "1.0"
)

// Document is the nested form of a tree: each branch embeds its child node
// or names its band. Node ids are not kept.
type Document struct {
	ID       string            `json:"_id"`
	Version  string            `json:"version"`
	Root     *Branch           `json:"root"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Branch is a nested node or a band terminal. A branch whose child was set
// and which also kept a band carries both. An object with no fields at all is
// a blank child node.
type Branch struct {
	Question string  `json:"question,omitempty"`
	Yes      *Branch `json:"yes,omitempty"`
	No       *Branch `json:"no,omitempty"`
	BandID   string  `json:"bandId,omitempty"`
}

// BuildDocument nests the tree under its root.
func BuildDocument(src Source) (*Document, error) {
	root, ok := src.Root()
	if !ok {
		return nil, fmt.Errorf("%w: no root node", tree.ErrMalformed)
	}
	visited := make(map[string]struct{})
	b, err := nest(src, root, visited)
	if err != nil {
		return nil, err
	}
	return &Document{ID: DocumentID, Version: DocumentVersion, Root: b}, nil
}

func nest(src Source, n tree.Node, visited map[string]struct{}) (*Branch, error) {
	if _, seen := visited[n.ID]; seen {
		return nil, fmt.Errorf("%w: node %s reached twice", tree.ErrMalformed, n.ID)
	}
	visited[n.ID] = struct{}{}

	out := &Branch{Question: n.Question}
	for _, dir := range tree.Directions {
		d := n.Branch(dir)
		if !d.HasChild() && !d.HasBand() {
			continue
		}
		var b *Branch
		if d.HasChild() {
			child, err := src.Find(d.NodeID)
			if err != nil {
				return nil, err
			}
			if b, err = nest(src, child, visited); err != nil {
				return nil, err
			}
		} else {
			b = &Branch{}
		}
		b.BandID = d.BandID
		if dir == tree.Yes {
			out.Yes = b
		} else {
			out.No = b
		}
	}
	return out, nil
}

// isNode reports whether b describes a node rather than a bare band. A blank
// childless node that also kept a band reads back as the band alone.
func (b *Branch) isNode() bool {
	return b.BandID == "" || b.Question != "" || b.Yes != nil || b.No != nil
}

// Store rebuilds a flat store from the document with freshly generated ids.
func (d *Document) Store(opts ...tree.Option) (*tree.Store, error) {
	if d.Root == nil {
		return nil, fmt.Errorf("%w: document has no root", tree.ErrMalformed)
	}
	s := tree.NewStore(opts...)
	root, err := s.CreateRoot()
	if err != nil {
		return nil, err
	}
	if err := s.SetQuestion(root.ID, d.Root.Question); err != nil {
		return nil, err
	}
	if err := unnest(s, root.ID, d.Root); err != nil {
		return nil, err
	}
	return s, nil
}

func unnest(s *tree.Store, parentID string, b *Branch) error {
	for _, dir := range tree.Directions {
		sub := b.Yes
		if dir == tree.No {
			sub = b.No
		}
		if sub == nil {
			continue
		}
		if sub.isNode() {
			child, err := s.AddChild(parentID, dir)
			if err != nil {
				return err
			}
			if err := s.SetQuestion(child.ID, sub.Question); err != nil {
				return err
			}
			if err := unnest(s, child.ID, sub); err != nil {
				return err
			}
		}
		if sub.BandID != "" {
			if err := s.SetBand(parentID, dir, sub.BandID); err != nil {
				return err
			}
		}
	}
	return nil
}
