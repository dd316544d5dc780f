package tree

import "fmt"

// Store owns the flat node collection of one tree. Edges are id references
// between records; nothing outside the store holds a node pointer.
//
// A Store is not safe for concurrent use. Callers serialise access (the
// editor runs each tree on a single lane).
type Store struct {
	nodes []*Node          // insertion order
	byID  map[string]*Node // id → node
	ids   IDSource
}

// Option configures a Store.
type Option func(*Store)

// WithIDSource replaces the random UUID source used for new node ids.
func WithIDSource(src IDSource) Option {
	return func(s *Store) { s.ids = src }
}

// NewStore returns an empty store. Call CreateRoot to initialise it.
func NewStore(opts ...Option) *Store {
	s := &Store{byID: make(map[string]*Node)}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Restore builds a store from a node list, keeping its order. The list must
// describe a single tree: unique non-empty ids, exactly one root, no dangling
// child references, no cycles, every node reachable from the root.
func Restore(nodes []Node, opts ...Option) (*Store, error) {
	if err := CheckStructure(nodes); err != nil {
		return nil, err
	}
	s := NewStore(opts...)
	for i := range nodes {
		n := nodes[i]
		s.append(&n)
	}
	return s, nil
}

// CreateRoot adds the root node: empty question, both branches unresolved.
func (s *Store) CreateRoot() (Node, error) {
	if _, ok := s.root(); ok {
		return Node{}, ErrRootExists
	}
	n := &Node{ID: GenerateID(s.idSet(), s.ids), IsRoot: true}
	s.append(n)
	return *n, nil
}

// AddChild creates a node under parentID on branch dir. The branch now points
// at the child and any band previously assigned to it is cleared.
func (s *Store) AddChild(parentID string, dir Direction) (Node, error) {
	if _, err := ParseDirection(string(dir)); err != nil {
		return Node{}, err
	}
	parent, err := s.lookup(parentID)
	if err != nil {
		return Node{}, err
	}
	child := &Node{ID: GenerateID(s.idSet(), s.ids)}
	s.append(child)

	b := parent.branch(dir)
	b.NodeID = child.ID
	b.BandID = ""
	return *child, nil
}

// SetBand assigns bandID to branch dir; an empty bandID clears it. A child
// already on that branch is left in place: detach it first to turn the branch
// into a terminal band.
func (s *Store) SetBand(nodeID string, dir Direction, bandID string) error {
	if _, err := ParseDirection(string(dir)); err != nil {
		return err
	}
	n, err := s.lookup(nodeID)
	if err != nil {
		return err
	}
	n.branch(dir).BandID = bandID
	return nil
}

// SetQuestion stores text verbatim, blank included.
func (s *Store) SetQuestion(nodeID, text string) error {
	n, err := s.lookup(nodeID)
	if err != nil {
		return err
	}
	n.Question = text
	return nil
}

// DetachChild clears the child reference on branch dir and returns the id it
// held ("" if none). The former child stays in the store; follow up with
// DeleteSubtree to drop it.
func (s *Store) DetachChild(nodeID string, dir Direction) (string, error) {
	if _, err := ParseDirection(string(dir)); err != nil {
		return "", err
	}
	n, err := s.lookup(nodeID)
	if err != nil {
		return "", err
	}
	b := n.branch(dir)
	prev := b.NodeID
	b.NodeID = ""
	return prev, nil
}

// DeleteSubtree removes id and every node reachable from it through child
// references, then clears surviving references into the removed set. It
// returns the removed ids in collection order. The root is not protected
// here.
func (s *Store) DeleteSubtree(id string) ([]string, error) {
	if _, err := s.lookup(id); err != nil {
		return nil, err
	}

	marked := map[string]struct{}{id: {}}
	queue := []string{id}
	for i := 0; i < len(queue); i++ {
		n, ok := s.byID[queue[i]]
		if !ok {
			continue
		}
		for _, dir := range Directions {
			child := n.Branch(dir).NodeID
			if child == "" {
				continue
			}
			if _, seen := marked[child]; !seen {
				marked[child] = struct{}{}
				queue = append(queue, child)
			}
		}
	}

	var removed []string
	kept := s.nodes[:0]
	for _, n := range s.nodes {
		if _, gone := marked[n.ID]; gone {
			delete(s.byID, n.ID)
			removed = append(removed, n.ID)
			continue
		}
		kept = append(kept, n)
	}
	for i := len(kept); i < len(s.nodes); i++ {
		s.nodes[i] = nil
	}
	s.nodes = kept

	for _, n := range s.nodes {
		for _, dir := range Directions {
			b := n.branch(dir)
			if _, gone := marked[b.NodeID]; gone {
				b.NodeID = ""
			}
		}
	}
	return removed, nil
}

// Find returns a copy of the node with the given id.
func (s *Store) Find(id string) (Node, error) {
	n, err := s.lookup(id)
	if err != nil {
		return Node{}, err
	}
	return *n, nil
}

// Root returns the root node, if one has been created.
func (s *Store) Root() (Node, bool) {
	n, ok := s.root()
	if !ok {
		return Node{}, false
	}
	return *n, true
}

// Leaves returns nodes with no child on either branch, in collection order.
func (s *Store) Leaves() []Node {
	var out []Node
	for _, n := range s.nodes {
		if n.IsLeaf() {
			out = append(out, *n)
		}
	}
	return out
}

// Nodes returns a copy of the collection in insertion order.
func (s *Store) Nodes() []Node {
	out := make([]Node, len(s.nodes))
	for i, n := range s.nodes {
		out[i] = *n
	}
	return out
}

// Len returns the number of nodes.
func (s *Store) Len() int { return len(s.nodes) }

// HasChild reports whether branch dir of nodeID leads to a node.
func (s *Store) HasChild(nodeID string, dir Direction) bool {
	n, ok := s.byID[nodeID]
	return ok && n.Branch(dir).HasChild()
}

// BandID returns the band on branch dir of nodeID, or "".
func (s *Store) BandID(nodeID string, dir Direction) string {
	n, ok := s.byID[nodeID]
	if !ok {
		return ""
	}
	return n.Branch(dir).BandID
}

// QuestionText returns the node's question, or "(Not Found)" for an unknown
// id or a blank question.
func (s *Store) QuestionText(nodeID string) string {
	n, ok := s.byID[nodeID]
	if !ok || n.Question == "" {
		return "(Not Found)"
	}
	return n.Question
}

func (s *Store) lookup(id string) (*Node, error) {
	n, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return n, nil
}

func (s *Store) root() (*Node, bool) {
	for _, n := range s.nodes {
		if n.IsRoot {
			return n, true
		}
	}
	return nil, false
}

func (s *Store) append(n *Node) {
	s.nodes = append(s.nodes, n)
	s.byID[n.ID] = n
}

func (s *Store) idSet() map[string]struct{} {
	set := make(map[string]struct{}, len(s.nodes))
	for _, n := range s.nodes {
		set[n.ID] = struct{}{}
	}
	return set
}
