// Package persist carries in-memory mutations to durable storage. Writes are queued and
// applied by a single worker in issue order; the caller never blocks on them.
package persist

import (
	"context"
	"fmt"

	"pagetree-cli/internal/model"
	"pagetree-cli/internal/mutate"
)

// Persister is implemented by every durable backend (store.Store for SQLite, Mongo, ...).
type Persister interface {
	PersistInsert(ctx context.Context, n model.Node) error
	PersistUpdate(ctx context.Context, n model.Node) error
	PersistRemove(ctx context.Context, ids []string) error
	PersistReorder(ctx context.Context, nodes []model.Node) error
}

type Kind string

const (
	KindInsert  Kind = "insert"
	KindUpdate  Kind = "update"
	KindRemove  Kind = "remove"
	KindReorder Kind = "reorder"
)

// Op is one queued durable write. Nodes are value copies taken at enqueue time.
type Op struct {
	Kind  Kind
	Node  model.Node
	Nodes []model.Node
	IDs   []string
}

func (op Op) apply(ctx context.Context, p Persister) error {
	switch op.Kind {
	case KindInsert:
		return p.PersistInsert(ctx, op.Node)
	case KindUpdate:
		return p.PersistUpdate(ctx, op.Node)
	case KindRemove:
		return p.PersistRemove(ctx, op.IDs)
	case KindReorder:
		return p.PersistReorder(ctx, op.Nodes)
	default:
		return fmt.Errorf("unknown op kind %q", op.Kind)
	}
}

// Subject returns the id the op is about, for logs and errors.
func (op Op) Subject() string {
	switch {
	case op.Node.ID != "":
		return op.Node.ID
	case len(op.IDs) > 0:
		return op.IDs[0]
	case len(op.Nodes) > 0:
		return op.Nodes[0].ID
	default:
		return ""
	}
}

// Error reports a durable write that failed after the in-memory change was applied.
type Error struct {
	Op  Op
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("persistence failed (%s %s): %v", e.Op.Kind, e.Op.Subject(), e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (*Error) ErrorCode() mutate.Code { return mutate.CodePersistenceFailed }
