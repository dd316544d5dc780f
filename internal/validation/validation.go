// Package validation checks a banding tree for completeness before export.
package validation

import (
	"strings"

	"github.com/gyaneshwarpardhi/bandtree/internal/tree"
)

// Kind names a single rule a node can break.
type Kind string

const (
	EmptyQuestion Kind = "EmptyQuestion"
	UnbandedLeaf  Kind = "UnbandedLeaf"
)

// Summary messages, one per kind, in the order they are reported.
const (
	MsgEmptyQuestion = "All nodes must have a question!"
	MsgUnbandedLeaf  = "All leaf nodes must have at least one band selected!"
)

// Source is the read side of a tree store the checks need.
type Source interface {
	Nodes() []tree.Node
}

// Result is the full violation set of one validation run.
type Result struct {
	Valid      bool              `json:"valid"`
	Violations map[string][]Kind `json:"violations"`
	Message    string            `json:"message,omitempty"`
}

// Has reports whether node id broke rule k.
func (r *Result) Has(id string, k Kind) bool {
	for _, v := range r.Violations[id] {
		if v == k {
			return true
		}
	}
	return false
}

// Count returns how many nodes broke rule k.
func (r *Result) Count(k Kind) int {
	n := 0
	for id := range r.Violations {
		if r.Has(id, k) {
			n++
		}
	}
	return n
}

// Validate runs both rules over every node:
//   - EmptyQuestion: the trimmed question is empty.
//   - UnbandedLeaf: a leaf (no child on either branch) has no band on either
//     branch. Nodes with at least one child are not checked for bands, even
//     if their other branch is unresolved.
//
// Message carries the first failing rule's summary, empty questions first.
func Validate(src Source) *Result {
	res := &Result{Violations: make(map[string][]Kind)}
	for _, n := range src.Nodes() {
		if strings.TrimSpace(n.Question) == "" {
			res.Violations[n.ID] = append(res.Violations[n.ID], EmptyQuestion)
		}
		if n.IsLeaf() && !n.Yes.HasBand() && !n.No.HasBand() {
			res.Violations[n.ID] = append(res.Violations[n.ID], UnbandedLeaf)
		}
	}

	res.Valid = len(res.Violations) == 0
	switch {
	case res.Count(EmptyQuestion) > 0:
		res.Message = MsgEmptyQuestion
	case res.Count(UnbandedLeaf) > 0:
		res.Message = MsgUnbandedLeaf
	}
	return res
}
