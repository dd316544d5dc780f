package editor

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/gyaneshwarpardhi/bandtree/internal/catalog"
	"github.com/gyaneshwarpardhi/bandtree/internal/config"
	"github.com/gyaneshwarpardhi/bandtree/internal/metrics"
	"github.com/gyaneshwarpardhi/bandtree/internal/tree"
)

// Editor owns the open tree sessions and the band catalog they assign from.
type Editor struct {
	ctx     context.Context
	conf    config.EditorConf
	catalog atomic.Pointer[catalog.Catalog]

	mu       sync.RWMutex
	sessions map[string]*Session
}

// New creates an Editor. Sessions stop when ctx is cancelled.
func New(ctx context.Context, cat *catalog.Catalog, conf config.EditorConf) *Editor {
	e := &Editor{
		ctx:      ctx,
		conf:     conf,
		sessions: make(map[string]*Session),
	}
	e.catalog.Store(cat)
	return e
}

// SwapCatalog atomically replaces the band catalog (used on hot-reload).
// Bands already assigned in open trees are kept even if no longer listed;
// validation for export does not look at the catalog.
func (e *Editor) SwapCatalog(c *catalog.Catalog) {
	e.catalog.Store(c)
}

// Catalog returns the current band catalog.
func (e *Editor) Catalog() *catalog.Catalog {
	return e.catalog.Load()
}

// Open starts a session on a new tree whose root carries the configured
// default question.
func (e *Editor) Open() (*Session, error) {
	s := tree.NewStore()
	root, err := s.CreateRoot()
	if err != nil {
		return nil, err
	}
	if err := s.SetQuestion(root.ID, e.conf.RootQuestion); err != nil {
		return nil, err
	}
	metrics.NodesCreated.Inc()
	return e.register(s)
}

// OpenStore starts a session on an existing store, e.g. an imported tree.
func (e *Editor) OpenStore(s *tree.Store) (*Session, error) {
	if _, ok := s.Root(); !ok {
		return nil, fmt.Errorf("%w: no root node", tree.ErrMalformed)
	}
	metrics.NodesCreated.Add(float64(s.Len()))
	return e.register(s)
}

func (e *Editor) register(s *tree.Store) (*Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.conf.MaxTrees > 0 && len(e.sessions) >= e.conf.MaxTrees {
		return nil, fmt.Errorf("%w (limit %d)", ErrTooManyTrees, e.conf.MaxTrees)
	}
	sess := newSession(e, uuid.NewString(), s)
	e.sessions[sess.id] = sess
	metrics.TreesOpen.Inc()
	slog.Debug("tree opened", "tree", sess.id, "nodes", s.Len())
	return sess, nil
}

// Session returns the open session with the given id.
func (e *Editor) Session(id string) (*Session, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s, ok := e.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrSessionNotFound, id)
	}
	return s, nil
}

// IDs returns the ids of all open sessions, sorted.
func (e *Editor) IDs() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]string, 0, len(e.sessions))
	for id := range e.sessions {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Close stops a session and forgets its tree. Pending question drafts are
// dropped.
func (e *Editor) Close(id string) error {
	e.mu.Lock()
	s, ok := e.sessions[id]
	if ok {
		delete(e.sessions, id)
	}
	e.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrSessionNotFound, id)
	}
	s.close()
	metrics.TreesOpen.Dec()
	slog.Debug("tree closed", "tree", id)
	return nil
}

// Load returns queued commands over total queue capacity across sessions (0–1).
func (e *Editor) Load() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	used, capacity := 0, 0
	for _, s := range e.sessions {
		used += s.lane.QueueLen()
		capacity += s.lane.QueueCap()
	}
	if capacity == 0 {
		return 0
	}
	return float64(used) / float64(capacity)
}

// Shutdown closes every session.
func (e *Editor) Shutdown() {
	for _, id := range e.IDs() {
		_ = e.Close(id)
	}
}
