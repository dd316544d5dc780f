package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/gyaneshwarpardhi/bandtree/internal/tree"
)

// BandNamer resolves a band id to a display name.
type BandNamer interface {
	Name(id string) string
}

// Outline writes the tree as an indented text outline:
//
//	Managing People a Focus?
//	├── yes: Manage Professionals/Managers?
//	│   ├── yes → Band A
//	│   └── no: (open)
//	└── no → Band B
func Outline(w io.Writer, src Source, bands BandNamer) error {
	root, ok := src.Root()
	if !ok {
		_, err := fmt.Fprintln(w, "(empty tree)")
		return err
	}
	lines := []string{question(root)}
	visited := map[string]struct{}{root.ID: {}}
	lines = outline(src, bands, root, "", visited, lines)
	_, err := io.WriteString(w, strings.Join(lines, "\n")+"\n")
	return err
}

func outline(src Source, bands BandNamer, n tree.Node, prefix string, visited map[string]struct{}, lines []string) []string {
	for i, dir := range tree.Directions {
		last := i == len(tree.Directions)-1
		marker, next := "├── ", prefix+"│   "
		if last {
			marker, next = "└── ", prefix+"    "
		}

		d := n.Branch(dir)
		var line strings.Builder
		line.WriteString(prefix + marker + string(dir))

		var child *tree.Node
		if d.HasChild() {
			c, err := src.Find(d.NodeID)
			if err != nil {
				line.WriteString(": (missing " + d.NodeID + ")")
			} else if _, seen := visited[c.ID]; seen {
				line.WriteString(": (cycle " + c.ID + ")")
			} else {
				visited[c.ID] = struct{}{}
				child = &c
				line.WriteString(": " + question(c))
			}
		}
		if d.HasBand() {
			name := d.BandID
			if bands != nil {
				name = bands.Name(d.BandID)
			}
			if d.HasChild() {
				line.WriteString(" [band " + name + "]")
			} else {
				line.WriteString(" → " + name)
			}
		}
		if !d.HasChild() && !d.HasBand() {
			line.WriteString(": (open)")
		}
		lines = append(lines, line.String())

		if child != nil {
			lines = outline(src, bands, *child, next, visited, lines)
		}
	}
	return lines
}

func question(n tree.Node) string {
	if strings.TrimSpace(n.Question) == "" {
		return "(no question)"
	}
	return n.Question
}
