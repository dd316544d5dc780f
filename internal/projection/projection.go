// Package projection walks a banding tree breadth-first from its root and
// produces the level-tagged node and edge lists a view renders.
package projection

import (
	"fmt"
	"strings"

	"github.com/gyaneshwarpardhi/bandtree/internal/tree"
)

// DefaultBlankLabel stands in for a blank question so labels are never empty.
const DefaultBlankLabel = " "

// Source is the read side of a tree store.
type Source interface {
	Root() (tree.Node, bool)
	Find(id string) (tree.Node, error)
}

// Node is one projected tree node.
type Node struct {
	ID      string `json:"id"`
	Label   string `json:"label"`
	Level   int    `json:"level"`
	Invalid bool   `json:"isInvalid"`
}

// Edge is a directed yes/no link from a parent to a child.
type Edge struct {
	ID        string         `json:"id"`
	Source    string         `json:"source"`
	Target    string         `json:"target"`
	Direction tree.Direction `json:"direction"`
}

// Projection is the renderable view of a tree.
type Projection struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Depth returns the number of levels in the projection.
func (p *Projection) Depth() int {
	depth := 0
	for _, n := range p.Nodes {
		if n.Level+1 > depth {
			depth = n.Level + 1
		}
	}
	return depth
}

type options struct {
	blankLabel string
}

// Option tunes a projection.
type Option func(*options)

// WithBlankLabel sets the label used for nodes whose question is blank.
func WithBlankLabel(label string) Option {
	return func(o *options) {
		if label != "" {
			o.blankLabel = label
		}
	}
}

type item struct {
	id    string
	level int
}

// Project runs the breadth-first walk. A tree without a root projects to
// empty lists. A node is expanded once however often it is enqueued, so each
// node and edge appears at most once; references to missing nodes are
// skipped, and a cycle is cut at the first revisit.
func Project(src Source, opts ...Option) *Projection {
	o := options{blankLabel: DefaultBlankLabel}
	for _, fn := range opts {
		fn(&o)
	}

	p := &Projection{Nodes: []Node{}, Edges: []Edge{}}
	root, ok := src.Root()
	if !ok {
		return p
	}

	visited := make(map[string]struct{})
	queue := []item{{id: root.ID, level: 0}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if _, seen := visited[cur.id]; seen {
			continue
		}
		visited[cur.id] = struct{}{}

		n, err := src.Find(cur.id)
		if err != nil {
			continue
		}

		blank := strings.TrimSpace(n.Question) == ""
		label := n.Question
		if blank {
			label = o.blankLabel
		}
		p.Nodes = append(p.Nodes, Node{ID: n.ID, Label: label, Level: cur.level, Invalid: blank})

		for _, dir := range tree.Directions {
			child := n.Branch(dir).NodeID
			if child == "" {
				continue
			}
			p.Edges = append(p.Edges, Edge{
				ID:        fmt.Sprintf("edge-%s-%s-%s", n.ID, dir, child),
				Source:    n.ID,
				Target:    child,
				Direction: dir,
			})
			if _, seen := visited[child]; !seen {
				queue = append(queue, item{id: child, level: cur.level + 1})
			}
		}
	}
	return p
}
