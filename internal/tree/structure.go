package tree

import (
	"fmt"
	"strings"
)

// CheckStructure verifies that nodes form one binary tree:
//   - ids are non-empty and unique
//   - exactly one node is the root
//   - every child reference resolves
//   - each node is referenced by at most one branch and the root by none,
//     which together with reachability rules out cycles
//   - every node is reachable from the root
//
// Bands are not checked; they are completeness, not structure.
func CheckStructure(nodes []Node) error {
	var errs []string
	byID := make(map[string]*Node, len(nodes))
	var roots []string

	for i := range nodes {
		n := &nodes[i]
		if n.ID == "" {
			errs = append(errs, fmt.Sprintf("nodes[%d]: id is required", i))
			continue
		}
		if _, dup := byID[n.ID]; dup {
			errs = append(errs, fmt.Sprintf("duplicate id %q", n.ID))
			continue
		}
		byID[n.ID] = n
		if n.IsRoot {
			roots = append(roots, n.ID)
		}
	}

	switch len(roots) {
	case 0:
		errs = append(errs, "no root node")
	case 1:
	default:
		errs = append(errs, fmt.Sprintf("%d root nodes (%s)", len(roots), strings.Join(roots, ", ")))
	}

	parents := make(map[string]string, len(nodes))
	for i := range nodes {
		n := &nodes[i]
		for _, dir := range Directions {
			child := n.Branch(dir).NodeID
			if child == "" {
				continue
			}
			target, ok := byID[child]
			if !ok {
				errs = append(errs, fmt.Sprintf("node %s: %s branch references missing node %q", n.ID, dir, child))
				continue
			}
			if target.IsRoot {
				errs = append(errs, fmt.Sprintf("node %s: %s branch references the root", n.ID, dir))
				continue
			}
			if prev, seen := parents[child]; seen {
				errs = append(errs, fmt.Sprintf("node %q has two parents (%s, %s)", child, prev, n.ID))
				continue
			}
			parents[child] = n.ID
		}
	}

	if len(errs) == 0 {
		reached := reachable(byID, roots[0])
		for i := range nodes {
			if _, ok := reached[nodes[i].ID]; !ok {
				errs = append(errs, fmt.Sprintf("node %s is not reachable from the root", nodes[i].ID))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w:\n  - %s", ErrMalformed, strings.Join(errs, "\n  - "))
	}
	return nil
}

func reachable(byID map[string]*Node, start string) map[string]struct{} {
	seen := map[string]struct{}{start: {}}
	queue := []string{start}
	for i := 0; i < len(queue); i++ {
		n := byID[queue[i]]
		for _, dir := range Directions {
			child := n.Branch(dir).NodeID
			if child == "" {
				continue
			}
			if _, ok := seen[child]; !ok {
				seen[child] = struct{}{}
				queue = append(queue, child)
			}
		}
	}
	return seen
}
