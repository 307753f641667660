package persist

import (
	"context"
	"sort"
	"sync"

	"pagetree-cli/internal/model"
)

// Null discards every write. It backs `persistence = "none"` (dry runs).
type Null struct{}

func (Null) PersistInsert(context.Context, model.Node) error { return nil }
func (Null) PersistUpdate(context.Context, model.Node) error { return nil }
func (Null) PersistRemove(context.Context, []string) error { return nil }
func (Null) PersistReorder(context.Context, []model.Node) error { return nil }

// Memory keeps a copy of every persisted node and a log of applied ops.
type Memory struct {
	mu    sync.Mutex
	nodes map[string]model.Node
	log   []Kind

	// FailWith, when set, is called before each write; a non-nil result fails the write.
	FailWith func(op Kind, id string) error
}

func NewMemory() *Memory {
	return &Memory{nodes: map[string]model.Node{}}
}

func (m *Memory) fail(k Kind, id string) error {
	if m.FailWith == nil {
		return nil
	}
	return m.FailWith(k, id)
}

func (m *Memory) PersistInsert(_ context.Context, n model.Node) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(KindInsert, n.ID); err != nil {
		return err
	}
	m.nodes[n.ID] = n.Clone()
	m.log = append(m.log, KindInsert)
	return nil
}

func (m *Memory) PersistUpdate(_ context.Context, n model.Node) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(KindUpdate, n.ID); err != nil {
		return err
	}
	m.nodes[n.ID] = n.Clone()
	m.log = append(m.log, KindUpdate)
	return nil
}

func (m *Memory) PersistRemove(_ context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	first := ""
	if len(ids) > 0 {
		first = ids[0]
	}
	if err := m.fail(KindRemove, first); err != nil {
		return err
	}
	for _, id := range ids {
		delete(m.nodes, id)
	}
	m.log = append(m.log, KindRemove)
	return nil
}

func (m *Memory) PersistReorder(_ context.Context, nodes []model.Node) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	first := ""
	if len(nodes) > 0 {
		first = nodes[0].ID
	}
	if err := m.fail(KindReorder, first); err != nil {
		return err
	}
	for _, n := range nodes {
		m.nodes[n.ID] = n.Clone()
	}
	m.log = append(m.log, KindReorder)
	return nil
}

// Nodes returns the persisted nodes sorted by id.
func (m *Memory) Nodes() []model.Node {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Node, 0, len(m.nodes))
	for _, n := range m.nodes {
		out = append(out, n.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *Memory) Node(id string) (model.Node, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.nodes[id]
	return n.Clone(), ok
}

// Log returns the kinds of successfully applied ops, in order.
func (m *Memory) Log() []Kind {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Kind(nil), m.log...)
}
