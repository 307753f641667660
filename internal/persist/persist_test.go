package persist

import (
	"context"
	"errors"
	"io"
	"reflect"
	"testing"
	"time"

	"pagetree-cli/internal/model"
	"pagetree-cli/internal/mutate"

	"github.com/charmbracelet/log"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func quietLogger() *log.Logger {
	return log.New(io.Discard)
}

func TestQueue_AppliesInIssueOrder(t *testing.T) {
	t.Parallel()

	mem := NewMemory()
	q := NewQueue(mem, quietLogger(), 0)
	a := model.Node{ID: "a", Order: 0}
	b := model.Node{ID: "b", Order: 1}
	if err := q.Enqueue(Op{Kind: KindInsert, Node: a}, Op{Kind: KindInsert, Node: b}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := q.Enqueue(Op{Kind: KindReorder, Nodes: []model.Node{{ID: "b", Order: 0}, {ID: "a", Order: 1}}}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := q.Enqueue(Op{Kind: KindRemove, IDs: []string{"a"}}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	q.Close()

	want := []Kind{KindInsert, KindInsert, KindReorder, KindRemove}
	if got := mem.Log(); !reflect.DeepEqual(got, want) {
		t.Fatalf("log: got %v want %v", got, want)
	}
	nodes := mem.Nodes()
	if len(nodes) != 1 || nodes[0].ID != "b" || nodes[0].Order != 0 {
		t.Fatalf("unexpected persisted nodes: %+v", nodes)
	}
}

func TestQueue_SurfacesFailuresWithoutStopping(t *testing.T) {
	t.Parallel()

	boom := errors.New("disk full")
	mem := NewMemory()
	mem.FailWith = func(op Kind, id string) error {
		if op == KindUpdate && id == "x" {
			return boom
		}
		return nil
	}
	q := NewQueue(mem, quietLogger(), 4)
	_ = q.Enqueue(
		Op{Kind: KindUpdate, Node: model.Node{ID: "x"}},
		Op{Kind: KindInsert, Node: model.Node{ID: "y"}},
	)

	select {
	case f := <-q.Failures():
		if !errors.Is(f, boom) {
			t.Fatalf("expected wrapped cause, got %v", f)
		}
		if f.Op.Subject() != "x" || f.Op.Kind != KindUpdate {
			t.Fatalf("unexpected failed op: %+v", f.Op)
		}
		if mutate.CodeOf(f) != mutate.CodePersistenceFailed {
			t.Fatalf("expected PERSISTENCE_FAILED, got %s", mutate.CodeOf(f))
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for failure")
	}

	q.Close()
	if _, ok := mem.Node("y"); !ok {
		t.Fatalf("queue stopped after a failure")
	}
	if _, ok := <-q.Failures(); ok {
		t.Fatalf("expected failures channel closed after Close")
	}
}

func TestQueue_DropsOldestFailureWhenFull(t *testing.T) {
	t.Parallel()

	mem := NewMemory()
	mem.FailWith = func(Kind, string) error { return errors.New("nope") }
	q := NewQueue(mem, quietLogger(), 1)
	_ = q.Enqueue(
		Op{Kind: KindInsert, Node: model.Node{ID: "first"}},
		Op{Kind: KindInsert, Node: model.Node{ID: "second"}},
	)
	q.Close()

	var got []string
	for f := range q.Failures() {
		got = append(got, f.Op.Subject())
	}
	if !reflect.DeepEqual(got, []string{"second"}) {
		t.Fatalf("expected only the newest failure, got %v", got)
	}
}

func TestQueue_EnqueueAfterClose(t *testing.T) {
	t.Parallel()

	q := NewQueue(Null{}, quietLogger(), 0)
	q.Close()
	q.Close()
	if err := q.Enqueue(Op{Kind: KindInsert}); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestFanout_AttemptsAllBackends(t *testing.T) {
	t.Parallel()

	bad := NewMemory()
	bad.FailWith = func(Kind, string) error { return errors.New("bad backend") }
	good := NewMemory()

	err := Fanout{bad, nil, good}.PersistInsert(context.Background(), model.Node{ID: "n"})
	if err == nil {
		t.Fatalf("expected error from failing backend")
	}
	if _, ok := good.Node("n"); !ok {
		t.Fatalf("expected good backend to receive the write")
	}
}

func TestMongoDoc_RoundTrip(t *testing.T) {
	t.Parallel()

	parent := "sec"
	label := "Hero"
	ts := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	n := model.Node{
		ID: "n1", PageID: "p", ParentID: &parent, Order: 3, DefinitionID: "heading",
		Properties: map[string]any{"text": "hi"},
		Locked:     true, Label: &label, CreatedAt: ts, UpdatedAt: ts,
	}
	if got := toDoc(n).node(); !reflect.DeepEqual(got, n) {
		t.Fatalf("got %+v want %+v", got, n)
	}
}

func TestFromBSON_ConvertsEmbeddedDocuments(t *testing.T) {
	t.Parallel()

	in := bson.D{
		{Key: "style", Value: bson.D{{Key: "color", Value: "red"}}},
		{Key: "items", Value: bson.A{"a", bson.M{"k": "v"}}},
	}
	want := map[string]any{
		"style": map[string]any{"color": "red"},
		"items": []any{"a", map[string]any{"k": "v"}},
	}
	if got := fromBSON(in); !reflect.DeepEqual(got, want) {
		t.Fatalf("got %#v want %#v", got, want)
	}
}
