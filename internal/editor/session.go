package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gyaneshwarpardhi/bandtree/internal/command"
	"github.com/gyaneshwarpardhi/bandtree/internal/debounce"
	"github.com/gyaneshwarpardhi/bandtree/internal/export"
	"github.com/gyaneshwarpardhi/bandtree/internal/metrics"
	"github.com/gyaneshwarpardhi/bandtree/internal/projection"
	"github.com/gyaneshwarpardhi/bandtree/internal/tree"
	"github.com/gyaneshwarpardhi/bandtree/internal/validation"
)

// Snapshot is the view of a tree after a mutation.
type Snapshot struct {
	TreeID     string                 `json:"tree_id"`
	Revision   uint64                 `json:"revision"`
	Projection *projection.Projection `json:"projection"`
	Validation *validation.Result     `json:"validation"`
}

// Outcome is the result of applying one command.
type Outcome struct {
	Command  command.Command `json:"command"`
	Node     *tree.Node      `json:"node,omitempty"`    // node created by add_child
	Removed  []string        `json:"removed,omitempty"` // ids dropped by delete_subtree or detach
	Snapshot *Snapshot       `json:"snapshot"`
}

// BatchError reports the command a batch stopped at. Earlier commands stay
// applied.
type BatchError struct {
	Index int
	Err   error
}

func (e *BatchError) Error() string { return fmt.Sprintf("command %d: %v", e.Index, e.Err) }
func (e *BatchError) Unwrap() error { return e.Err }

// Session is one tree being edited. All store access happens on the
// session's single-worker lane, so commands apply one at a time in arrival
// order and no store locking is needed.
type Session struct {
	id     string
	editor *Editor
	store  *tree.Store // lane only

	lane   *workerPool[*job]
	drafts *debounce.Debouncer

	rev  uint64 // lane only
	last atomic.Pointer[Snapshot]

	subsMu sync.Mutex
	subs   map[chan *Snapshot]struct{}
	closed bool
}

// Job states. A queued job is either started by the lane or abandoned by its
// caller, never both.
const (
	jobQueued int32 = iota
	jobStarted
	jobAbandoned
)

type job struct {
	run   func(*tree.Store) (any, bool, error) // value, mutated, err
	done  chan jobResult
	state atomic.Int32
}

type jobResult struct {
	value any
	snap  *Snapshot
	err   error
}

func newSession(e *Editor, id string, store *tree.Store) *Session {
	s := &Session{
		id:     id,
		editor: e,
		store:  store,
		subs:   make(map[chan *Snapshot]struct{}),
	}
	s.lane = newWorkerPool[*job](e.ctx, 1, e.conf.QueueDepth, s.process)
	s.drafts = debounce.New(e.conf.Debounce(), s.commitDraft)
	s.last.Store(s.snapshot())
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Snapshot returns the latest projection and validation without queueing.
func (s *Session) Snapshot() *Snapshot { return s.last.Load() }

func (s *Session) process(_ context.Context, j *job) {
	if !j.state.CompareAndSwap(jobQueued, jobStarted) {
		return
	}
	v, mutated, err := j.run(s.store)
	snap := s.last.Load()
	if mutated {
		snap = s.refresh()
	}
	if j.done != nil {
		j.done <- jobResult{value: v, snap: snap, err: err}
	}
}

// refresh re-projects the tree after a mutation and notifies subscribers.
func (s *Session) refresh() *Snapshot {
	s.rev++
	snap := s.snapshot()
	s.last.Store(snap)
	s.publish(snap)
	return snap
}

func (s *Session) snapshot() *Snapshot {
	start := time.Now()
	p := projection.Project(s.store, projection.WithBlankLabel(s.editor.conf.BlankLabel))
	v := validation.Validate(s.store)
	metrics.ProjectionDuration.Observe(float64(time.Since(start).Microseconds()) / 1000)
	return &Snapshot{TreeID: s.id, Revision: s.rev, Projection: p, Validation: v}
}

// do runs fn on the lane and waits for it. If ctx ends or the command
// timeout passes before the lane picks the job up, the job is abandoned and
// never runs. Once started, it is always waited for, so an error return
// means the tree was not changed by fn.
func (s *Session) do(ctx context.Context, fn func(*tree.Store) (any, bool, error)) (any, *Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	j := &job{run: fn, done: make(chan jobResult, 1)}
	if !s.lane.Submit(j) {
		if s.isClosed() {
			return nil, nil, ErrClosed
		}
		return nil, nil, fmt.Errorf("%w (capacity %d)", ErrQueueFull, s.lane.QueueCap())
	}

	timeout := s.editor.conf.CommandTimeout()
	var timer <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timer = t.C
	}
	var abandonErr error
	select {
	case r := <-j.done:
		return r.value, r.snap, r.err
	case <-timer:
		abandonErr = fmt.Errorf("%w after %v", ErrTimeout, timeout)
	case <-ctx.Done():
		abandonErr = ctx.Err()
	}
	if j.state.CompareAndSwap(jobQueued, jobAbandoned) {
		return nil, nil, abandonErr
	}
	r := <-j.done
	return r.value, r.snap, r.err
}

// Apply executes one command and returns the refreshed view.
func (s *Session) Apply(ctx context.Context, cmd command.Command) (*Outcome, error) {
	if err := cmd.Check(); err != nil {
		metrics.CommandsApplied.WithLabelValues(string(cmd.Kind), "invalid").Inc()
		return nil, err
	}
	v, snap, err := s.do(ctx, func(st *tree.Store) (any, bool, error) {
		out, err := s.apply(st, cmd)
		return out, err == nil && cmd.Mutates(), err
	})
	countRejected(err)
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.CommandsApplied.WithLabelValues(string(cmd.Kind), status).Inc()
	if err != nil {
		return nil, err
	}
	out := v.(*Outcome)
	out.Snapshot = snap
	return out, nil
}

// ApplyBatch executes cmds in order as one lane job, so no other command
// interleaves. It stops at the first failure and returns a *BatchError; the
// commands before it remain applied.
func (s *Session) ApplyBatch(ctx context.Context, cmds []command.Command) ([]*Outcome, *Snapshot, error) {
	v, snap, err := s.do(ctx, func(st *tree.Store) (any, bool, error) {
		outs := make([]*Outcome, 0, len(cmds))
		mutated := false
		for i, cmd := range cmds {
			if err := cmd.Check(); err != nil {
				metrics.CommandsApplied.WithLabelValues(string(cmd.Kind), "invalid").Inc()
				return outs, mutated, &BatchError{Index: i, Err: err}
			}
			out, err := s.apply(st, cmd)
			if err != nil {
				metrics.CommandsApplied.WithLabelValues(string(cmd.Kind), "error").Inc()
				return outs, mutated, &BatchError{Index: i, Err: err}
			}
			metrics.CommandsApplied.WithLabelValues(string(cmd.Kind), "success").Inc()
			mutated = mutated || cmd.Mutates()
			outs = append(outs, out)
		}
		return outs, mutated, nil
	})
	countRejected(err)
	outs, _ := v.([]*Outcome)
	return outs, snap, err
}

func countRejected(err error) {
	if errors.Is(err, ErrQueueFull) {
		metrics.CommandsRejected.Inc()
	}
}

// apply runs on the lane. Every precondition is checked before the first
// write so a failed command leaves the tree unchanged.
func (s *Session) apply(st *tree.Store, cmd command.Command) (*Outcome, error) {
	out := &Outcome{Command: cmd}
	switch cmd.Kind {
	case command.AddChild:
		// Replacing a child would orphan its subtree; detach it first.
		if st.HasChild(cmd.NodeID, cmd.Direction) {
			return nil, fmt.Errorf("%w: %s/%s", ErrBranchTaken, cmd.NodeID, cmd.Direction)
		}
		n, err := st.AddChild(cmd.NodeID, cmd.Direction)
		if err != nil {
			return nil, err
		}
		metrics.NodesCreated.Inc()
		out.Node = &n

	case command.SetBand:
		if cmd.BandID != "" && !s.editor.Catalog().Contains(cmd.BandID) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownBand, cmd.BandID)
		}
		if err := st.SetBand(cmd.NodeID, cmd.Direction, cmd.BandID); err != nil {
			return nil, err
		}

	case command.SetQuestion:
		if err := st.SetQuestion(cmd.NodeID, cmd.Text); err != nil {
			return nil, err
		}
		s.drafts.Cancel(cmd.NodeID)

	case command.DraftQuestion:
		if _, err := st.Find(cmd.NodeID); err != nil {
			return nil, err
		}
		s.drafts.Push(cmd.NodeID, cmd.Text)

	case command.Detach:
		if _, err := st.Find(cmd.NodeID); err != nil {
			return nil, err
		}
		prev, err := st.DetachChild(cmd.NodeID, cmd.Direction)
		if err != nil {
			return nil, err
		}
		if prev != "" {
			removed, err := st.DeleteSubtree(prev)
			if err != nil && !errors.Is(err, tree.ErrNotFound) {
				return nil, err
			}
			out.Removed = removed
			s.dropDrafts(removed)
		}

	case command.DeleteSubtree:
		n, err := st.Find(cmd.NodeID)
		if err != nil {
			return nil, err
		}
		if n.IsRoot {
			return nil, ErrRootDelete
		}
		removed, err := st.DeleteSubtree(cmd.NodeID)
		if err != nil {
			return nil, err
		}
		out.Removed = removed
		s.dropDrafts(removed)

	default:
		return nil, fmt.Errorf("unknown command kind %q", cmd.Kind)
	}
	return out, nil
}

func (s *Session) dropDrafts(ids []string) {
	for _, id := range ids {
		s.drafts.Cancel(id)
	}
	metrics.NodesDeleted.Add(float64(len(ids)))
}

// commitDraft runs on a debouncer timer and queues the question write.
func (s *Session) commitDraft(nodeID, text string) {
	ctx, cancel := context.WithCancel(s.editor.ctx)
	defer cancel()
	_, _, err := s.do(ctx, func(st *tree.Store) (any, bool, error) {
		err := st.SetQuestion(nodeID, text)
		return nil, err == nil, err
	})
	if err != nil {
		slog.Warn("question draft not committed", "tree", s.id, "node", nodeID, "err", err)
		return
	}
	metrics.DraftsCommitted.Inc()
}

// FlushDraft commits a pending question draft for nodeID immediately.
func (s *Session) FlushDraft(nodeID string) bool {
	return s.drafts.Flush(nodeID)
}

// Nodes returns the canonical node list.
func (s *Session) Nodes(ctx context.Context) ([]tree.Node, error) {
	v, _, err := s.do(ctx, func(st *tree.Store) (any, bool, error) {
		return st.Nodes(), false, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]tree.Node), nil
}

// Leaves returns the leaf nodes in collection order.
func (s *Session) Leaves(ctx context.Context) ([]tree.Node, error) {
	v, _, err := s.do(ctx, func(st *tree.Store) (any, bool, error) {
		return st.Leaves(), false, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]tree.Node), nil
}

// Validate re-runs validation on the current tree.
func (s *Session) Validate(ctx context.Context) (*validation.Result, error) {
	v, _, err := s.do(ctx, func(st *tree.Store) (any, bool, error) {
		return validation.Validate(st), false, nil
	})
	if err != nil {
		return nil, err
	}
	res := v.(*validation.Result)
	label := "valid"
	if !res.Valid {
		label = "invalid"
	}
	metrics.ValidationRuns.WithLabelValues(label).Inc()
	return res, nil
}

// Export is an encoded tree together with its content fingerprint.
type Export struct {
	Data        []byte
	Fingerprint string
	Format      export.Format
}

// Export encodes the tree in format f. With requireValid set, an incomplete
// tree is refused with its validation result.
func (s *Session) Export(ctx context.Context, f export.Format, requireValid bool) (*Export, *validation.Result, error) {
	type result struct {
		exp *Export
		res *validation.Result
	}
	v, _, err := s.do(ctx, func(st *tree.Store) (any, bool, error) {
		res := validation.Validate(st)
		if requireValid && !res.Valid {
			return result{res: res}, false, nil
		}
		data, err := export.Encode(st, f)
		if err != nil {
			return nil, false, err
		}
		fp, err := export.Fingerprint(st.Nodes())
		if err != nil {
			return nil, false, err
		}
		return result{exp: &Export{Data: data, Fingerprint: fp, Format: f}, res: res}, false, nil
	})
	if err != nil {
		return nil, nil, err
	}
	r := v.(result)
	return r.exp, r.res, nil
}

// Subscribe returns a channel that receives a snapshot after every mutation,
// starting with the current one. A subscriber that falls behind misses
// intermediate snapshots. Call cancel to unsubscribe.
func (s *Session) Subscribe() (<-chan *Snapshot, func()) {
	ch := make(chan *Snapshot, 8)
	ch <- s.last.Load()

	s.subsMu.Lock()
	if s.closed {
		s.subsMu.Unlock()
		close(ch)
		return ch, func() {}
	}
	s.subs[ch] = struct{}{}
	s.subsMu.Unlock()
	metrics.StreamSubscribers.Inc()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subsMu.Lock()
			if _, ok := s.subs[ch]; ok {
				delete(s.subs, ch)
				close(ch)
				metrics.StreamSubscribers.Dec()
			}
			s.subsMu.Unlock()
		})
	}
}

func (s *Session) publish(snap *Snapshot) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for ch := range s.subs {
		select {
		case ch <- snap:
		default:
		}
	}
}

func (s *Session) isClosed() bool {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	return s.closed
}

func (s *Session) close() {
	s.drafts.Stop()
	s.subsMu.Lock()
	s.closed = true
	for ch := range s.subs {
		delete(s.subs, ch)
		close(ch)
		metrics.StreamSubscribers.Dec()
	}
	s.subsMu.Unlock()
	s.lane.Drain()
}
