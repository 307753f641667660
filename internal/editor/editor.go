// Package editor is the engine entry point used by the CLI, the TUI and the HTTP API.
//
// Every mutation runs under one mutex, is applied to the in-memory store immediately and is
// then handed to a persistence queue. Readers always see the applied state; durable writes
// catch up asynchronously and report failures on Failures.
package editor

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"pagetree-cli/internal/model"
	"pagetree-cli/internal/mutate"
	"pagetree-cli/internal/persist"
	"pagetree-cli/internal/registry"
	"pagetree-cli/internal/store"
	"pagetree-cli/internal/tree"

	"github.com/charmbracelet/log"
)

type Options struct {
	Registry  registry.Registry
	Persister persist.Persister
	Logger    *log.Logger

	DuplicateInheritsLock bool
	DefaultRemovePolicy   mutate.RemovePolicy
}

type Editor struct {
	mu     sync.Mutex
	db     *store.DB
	reg    registry.Registry
	queue  *persist.Queue
	logger *log.Logger
	opts   Options
}

// New takes ownership of db. Callers must not touch db directly afterwards.
func New(db *store.DB, opts Options) *Editor {
	if db == nil {
		db = &store.DB{Version: 1}
	}
	if opts.Registry == nil {
		opts.Registry = registry.NewStatic(registry.Builtin()...)
	}
	if opts.Persister == nil {
		opts.Persister = persist.Null{}
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.DefaultRemovePolicy == "" {
		opts.DefaultRemovePolicy = mutate.RemoveReject
	}
	return &Editor{
		db:     db,
		reg:    opts.Registry,
		queue:  persist.NewQueue(opts.Persister, opts.Logger, 0),
		logger: opts.Logger,
		opts:   opts,
	}
}

// Failures delivers durable writes that failed after the in-memory change was applied.
// The in-memory state is not rolled back; callers may Restore a snapshot.
func (e *Editor) Failures() <-chan *persist.Error { return e.queue.Failures() }

// Close waits for queued writes to finish.
func (e *Editor) Close() { e.queue.Close() }

func (e *Editor) Insert(node model.Node, pos mutate.Position) (mutate.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	res, err := mutate.Insert(e.db, e.reg, node, pos)
	if err != nil {
		return res, err
	}
	e.logger.Debug("insert", "id", res.Node.ID, "parent", res.Node.ParentKey(), "order", res.Node.Order)
	ops := []persist.Op{{Kind: persist.KindInsert, Node: res.Node}}
	ops = append(ops, e.reorderOp(res.ReorderedIDs())...)
	e.enqueue(ops...)
	return res, nil
}

// Remove uses the configured default policy when policy is empty.
func (e *Editor) Remove(id string, policy mutate.RemovePolicy) (mutate.RemoveResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if policy == "" {
		policy = e.opts.DefaultRemovePolicy
	}
	res, err := mutate.Remove(e.db, id, policy)
	if err != nil {
		return res, err
	}
	e.logger.Debug("remove", "id", res.Node.ID, "policy", policy, "removed", len(res.RemovedIDs))
	ops := []persist.Op{{Kind: persist.KindRemove, IDs: append([]string(nil), res.RemovedIDs...)}}
	ops = append(ops, e.reorderOp(res.ReorderedIDs())...)
	e.enqueue(ops...)
	return res, nil
}

func (e *Editor) Update(id string, patch mutate.Patch) (mutate.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	res, err := mutate.Update(e.db, e.reg, id, patch)
	if err != nil || !res.Changed {
		return res, err
	}
	e.logger.Debug("update", "id", res.Node.ID)
	e.enqueue(persist.Op{Kind: persist.KindUpdate, Node: res.Node})
	return res, nil
}

func (e *Editor) Duplicate(id string) (mutate.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	res, err := mutate.Duplicate(e.db, id, mutate.DuplicateOpts{InheritLock: e.opts.DuplicateInheritsLock})
	if err != nil {
		return res, err
	}
	e.logger.Debug("duplicate", "source", id, "id", res.Node.ID)
	e.enqueue(persist.Op{Kind: persist.KindInsert, Node: res.Node})
	return res, nil
}

func (e *Editor) Move(id string, parentID *string, index int) (mutate.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	res, err := mutate.Move(e.db, e.reg, id, parentID, index)
	if err != nil || !res.Changed {
		return res, err
	}
	e.logger.Debug("move", "id", res.Node.ID, "parent", res.Node.ParentKey(), "order", res.Node.Order)
	ids := append([]string{res.Node.ID}, res.ReorderedIDs()...)
	e.enqueue(e.reorderOp(ids)...)
	return res, nil
}

// Snapshot returns a structural copy of the whole collection for a history collaborator.
func (e *Editor) Snapshot() store.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.db.Snapshot()
}

// Restore replaces the node collection with snap and persists the difference. Pages and the
// current page are not editor state: the live values are kept and snap's are ignored.
func (e *Editor) Restore(snap store.Snapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()

	before := map[string]model.Node{}
	for _, n := range e.db.Nodes {
		before[n.ID] = n
	}
	snap.Pages = e.db.Pages
	snap.CurrentPageID = e.db.CurrentPageID
	e.db.Restore(snap)

	var changed []model.Node
	for _, n := range e.db.Nodes {
		old, ok := before[n.ID]
		delete(before, n.ID)
		if ok && reflect.DeepEqual(old, n) {
			continue
		}
		changed = append(changed, n.Clone())
	}
	var removed []string
	for id := range before {
		removed = append(removed, id)
	}
	e.logger.Debug("restore", "changed", len(changed), "removed", len(removed))
	if len(removed) > 0 {
		e.enqueue(persist.Op{Kind: persist.KindRemove, IDs: removed})
	}
	if len(changed) > 0 {
		e.enqueue(persist.Op{Kind: persist.KindReorder, Nodes: changed})
	}
}

// Forest is the read-only tree view of a page.
func (e *Editor) Forest(pageID string) []*tree.Branch {
	e.mu.Lock()
	defer e.mu.Unlock()
	return tree.Build(cloneAll(e.db.NodesOnPage(pageID)))
}

// Nodes returns copies of every node on the page.
func (e *Editor) Nodes(pageID string) []model.Node {
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneAll(e.db.NodesOnPage(pageID))
}

func (e *Editor) Node(id string) (model.Node, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	n, ok := e.db.FindNode(id)
	if !ok {
		return model.Node{}, false
	}
	return n.Clone(), true
}

// Siblings returns copies of the sibling group, sorted by order.
func (e *Editor) Siblings(pageID string, parentID *string) []model.Node {
	e.mu.Lock()
	defer e.mu.Unlock()
	sibs := e.db.Siblings(pageID, parentID)
	out := make([]model.Node, 0, len(sibs))
	for _, n := range sibs {
		out = append(out, n.Clone())
	}
	return out
}

func (e *Editor) Pages() []model.Page {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]model.Page(nil), e.db.Pages...)
}

func (e *Editor) Definition(id string) (model.Definition, bool) {
	return e.reg.Definition(id)
}

// CheckDefinitions reports whether defs can replace the registry without stranding placed
// nodes: every definition in use must still exist, and every node with children must still
// accept them.
func (e *Editor) CheckDefinitions(defs []model.Definition) error {
	byID := make(map[string]model.Definition, len(defs))
	for _, d := range defs {
		byID[strings.TrimSpace(d.ID)] = d
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, n := range e.db.Nodes {
		if _, ok := byID[n.DefinitionID]; !ok {
			return fmt.Errorf("definition %q is still used by node %s", n.DefinitionID, n.ID)
		}
	}
	for _, n := range e.db.Nodes {
		if n.ParentID == nil {
			continue
		}
		parent, ok := e.db.FindNode(*n.ParentID)
		if !ok {
			continue
		}
		if !byID[parent.DefinitionID].AcceptsChildren {
			return fmt.Errorf("definition %q must accept children: node %s has child %s", parent.DefinitionID, parent.ID, n.ID)
		}
	}
	return nil
}

func (e *Editor) reorderOp(ids []string) []persist.Op {
	if len(ids) == 0 {
		return nil
	}
	nodes := make([]model.Node, 0, len(ids))
	for _, id := range ids {
		if n, ok := e.db.FindNode(id); ok {
			nodes = append(nodes, n.Clone())
		}
	}
	if len(nodes) == 0 {
		return nil
	}
	return []persist.Op{{Kind: persist.KindReorder, Nodes: nodes}}
}

func (e *Editor) enqueue(ops ...persist.Op) {
	if err := e.queue.Enqueue(ops...); err != nil {
		e.logger.Error("enqueue after close", "err", err)
	}
}

func cloneAll(nodes []model.Node) []model.Node {
	out := make([]model.Node, len(nodes))
	for i := range nodes {
		out[i] = nodes[i].Clone()
	}
	return out
}
