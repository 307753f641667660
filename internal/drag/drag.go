// Package drag interprets one interactive drag gesture as a finite state machine:
//
//	Idle --Start--> Active --Over*--> Active --End|Cancel--> Idle
//
// Over never mutates anything. End classifies the drop, computes the insertion index from
// the full (unfiltered) sibling groups by target identity, and dispatches exactly one
// insert or move.
package drag

import (
	"errors"
	"fmt"
	"strings"

	"pagetree-cli/internal/model"
	"pagetree-cli/internal/mutate"
	"pagetree-cli/internal/order"
	"pagetree-cli/internal/tree"
)

// Reader is the read side the session needs. editor.Editor implements it.
type Reader interface {
	Node(id string) (model.Node, bool)
	Nodes(pageID string) []model.Node
	Siblings(pageID string, parentID *string) []model.Node
	Definition(id string) (model.Definition, bool)
}

// Dispatcher applies the classified drop. editor.Editor implements it.
type Dispatcher interface {
	Insert(node model.Node, pos mutate.Position) (mutate.Result, error)
	Move(id string, parentID *string, index int) (mutate.Result, error)
}

type State int

const (
	Idle State = iota
	Active
)

func (s State) String() string {
	if s == Active {
		return "active"
	}
	return "idle"
}

type ItemKind string

const (
	KindPalette ItemKind = "palette"
	KindPlaced  ItemKind = "placed"
)

// Item is what is being dragged: a palette definition or a placed node.
type Item struct {
	Kind         ItemKind `json:"kind"`
	DefinitionID string   `json:"definitionRef,omitempty"`
	NodeID       string   `json:"nodeId,omitempty"`
}

func PaletteItem(definitionID string) Item { return Item{Kind: KindPalette, DefinitionID: definitionID} }
func PlacedItem(nodeID string) Item        { return Item{Kind: KindPlaced, NodeID: nodeID} }

// Target is what the pointer is over. The zero Target means "nothing".
type Target struct {
	NodeID string `json:"nodeId,omitempty"`
	Canvas bool   `json:"canvas,omitempty"`
	// Inside asks to drop into the target container rather than next to it.
	Inside bool `json:"inside,omitempty"`
}

func NodeTarget(id string) Target   { return Target{NodeID: id} }
func InsideTarget(id string) Target { return Target{NodeID: id, Inside: true} }
func CanvasTarget() Target          { return Target{Canvas: true} }

func (t Target) IsZero() bool { return !t.Canvas && strings.TrimSpace(t.NodeID) == "" }

type Gesture string

const (
	GestureNone       Gesture = "none"
	GestureInsert     Gesture = "insert-from-palette"
	GestureReorder    Gesture = "sibling-reorder"
	GestureReparent   Gesture = "reparent-into-container"
	GestureCrossLevel Gesture = "cross-level-move"
)

// Feedback is the live drop indication for the current Over target.
type Feedback struct {
	Target  Target  `json:"target"`
	Gesture Gesture `json:"gesture"`
	Accepts bool    `json:"accepts"`
}

// Outcome describes what End dispatched.
type Outcome struct {
	Gesture    Gesture       `json:"gesture"`
	Dispatched bool          `json:"dispatched"`
	ParentID   *string       `json:"parentId,omitempty"`
	Index      int           `json:"index"`
	Result     mutate.Result `json:"-"`
	Node       *model.Node   `json:"node,omitempty"`
}

var (
	ErrDisabled  = errors.New("drag disabled")
	ErrNotIdle   = errors.New("drag session already active")
	ErrNotActive = errors.New("no active drag session")
)

// Session tracks one gesture on one page. It is not safe for concurrent use; the HTTP API
// guards each session with its own lock.
type Session struct {
	pageID string
	r      Reader
	d      Dispatcher

	state    State
	item     Item
	feedback Feedback
}

func NewSession(pageID string, r Reader, d Dispatcher) *Session {
	return &Session{pageID: pageID, r: r, d: d}
}

func (s *Session) State() State { return s.state }

func (s *Session) Item() (Item, bool) { return s.item, s.state == Active }

// Feedback returns the indication computed by the last Over.
func (s *Session) Feedback() Feedback { return s.feedback }

// Start begins a gesture. Dragging a locked or unknown node disables the gesture: the
// session stays Idle and the error says why.
func (s *Session) Start(item Item) error {
	if s.state != Idle {
		return ErrNotIdle
	}
	switch item.Kind {
	case KindPalette:
		id := strings.TrimSpace(item.DefinitionID)
		if _, ok := s.r.Definition(id); !ok {
			return fmt.Errorf("%w: %w", ErrDisabled, mutate.NotFoundError{Kind: "definition", ID: id})
		}
		item.DefinitionID = id
	case KindPlaced:
		id := strings.TrimSpace(item.NodeID)
		n, ok := s.r.Node(id)
		if !ok || n.PageID != s.pageID {
			return fmt.Errorf("%w: %w", ErrDisabled, mutate.NotFoundError{Kind: "node", ID: id})
		}
		if n.Locked {
			return fmt.Errorf("%w: %w", ErrDisabled, mutate.LockedError{NodeID: id})
		}
		item.NodeID = id
	default:
		return fmt.Errorf("%w: unknown item kind %q", ErrDisabled, item.Kind)
	}
	s.item = item
	s.feedback = Feedback{Gesture: GestureNone}
	s.state = Active
	return nil
}

// Over recomputes the candidate drop for target without mutating anything.
func (s *Session) Over(target Target) (Feedback, error) {
	if s.state != Active {
		return Feedback{}, ErrNotActive
	}
	p := s.classify(target)
	s.feedback = Feedback{Target: target, Gesture: p.gesture, Accepts: p.accepts}
	return s.feedback, nil
}

// Cancel abandons the gesture. It never mutates anything.
func (s *Session) Cancel() {
	s.reset()
}

// End finishes the gesture over target and dispatches at most one operation. The session is
// Idle afterwards whether or not the operation succeeded.
func (s *Session) End(target Target) (Outcome, error) {
	if s.state != Active {
		return Outcome{}, ErrNotActive
	}
	item := s.item
	defer s.reset()

	if target.IsZero() {
		return Outcome{Gesture: GestureNone}, nil
	}
	p := s.classify(target)
	out := Outcome{Gesture: p.gesture, ParentID: p.parentID, Index: p.index}
	if p.gesture == GestureNone {
		return out, nil
	}

	var (
		res mutate.Result
		err error
	)
	if item.Kind == KindPalette {
		pos := mutate.AppendToRoot()
		if p.parentID != nil {
			pos = mutate.AppendTo(*p.parentID)
		}
		res, err = s.d.Insert(model.Node{PageID: s.pageID, DefinitionID: item.DefinitionID}, pos)
	} else {
		res, err = s.d.Move(item.NodeID, p.parentID, p.index)
	}
	if err != nil {
		return out, err
	}
	out.Dispatched = true
	out.Result = res
	node := res.Node
	out.Node = &node
	out.Index = node.Order
	return out, nil
}

func (s *Session) reset() {
	s.state = Idle
	s.item = Item{}
	s.feedback = Feedback{}
}

type plan struct {
	gesture  Gesture
	parentID *string
	index    int
	accepts  bool
}

func (s *Session) acceptsChildren(n model.Node) bool {
	d, ok := s.r.Definition(n.DefinitionID)
	return ok && d.AcceptsChildren
}

func (s *Session) group(parentID *string) []*model.Node {
	sibs := s.r.Siblings(s.pageID, parentID)
	out := make([]*model.Node, len(sibs))
	for i := range sibs {
		out[i] = &sibs[i]
	}
	return out
}

func (s *Session) classify(target Target) plan {
	if target.IsZero() {
		return plan{gesture: GestureNone}
	}
	if s.item.Kind == KindPalette {
		return s.classifyPalette(target)
	}
	return s.classifyPlaced(target)
}

func (s *Session) classifyPalette(target Target) plan {
	if target.Canvas {
		return plan{gesture: GestureInsert, index: order.NextOrder(s.group(nil)), accepts: true}
	}
	t, ok := s.r.Node(target.NodeID)
	if !ok || t.PageID != s.pageID {
		return plan{gesture: GestureNone}
	}
	if s.acceptsChildren(t) {
		pid := t.ID
		return plan{gesture: GestureInsert, parentID: &pid, index: order.NextOrder(s.group(&pid)), accepts: true}
	}
	return plan{gesture: GestureInsert, parentID: t.ParentID, index: order.NextOrder(s.group(t.ParentID)), accepts: true}
}

func (s *Session) classifyPlaced(target Target) plan {
	n, ok := s.r.Node(s.item.NodeID)
	if !ok {
		return plan{gesture: GestureNone}
	}
	if target.Canvas {
		roots := s.group(nil)
		g := GestureCrossLevel
		if n.ParentID == nil {
			g = GestureReorder
		}
		return plan{gesture: g, index: order.AppendIndex(roots, n.ID), accepts: true}
	}

	t, ok := s.r.Node(target.NodeID)
	if !ok || t.PageID != s.pageID || t.ID == n.ID {
		return plan{gesture: GestureNone}
	}
	nodes := s.r.Nodes(s.pageID)

	if s.acceptsChildren(t) && (target.Inside || !model.SameParent(t.ParentID, n.ParentID)) {
		pid := t.ID
		return plan{
			gesture:  GestureReparent,
			parentID: &pid,
			index:    order.AppendIndex(s.group(&pid), n.ID),
			accepts:  !tree.IsDescendant(nodes, n.ID, t.ID),
		}
	}

	if model.SameParent(t.ParentID, n.ParentID) {
		return plan{
			gesture:  GestureReorder,
			parentID: t.ParentID,
			index:    order.IndexOf(s.group(t.ParentID), t.ID),
			accepts:  true,
		}
	}

	accepts := t.ParentID == nil || (*t.ParentID != n.ID && !tree.IsDescendant(nodes, n.ID, *t.ParentID))
	return plan{
		gesture:  GestureCrossLevel,
		parentID: t.ParentID,
		index:    order.AfterIndex(s.group(t.ParentID), t.ID, n.ID),
		accepts:  accepts,
	}
}
