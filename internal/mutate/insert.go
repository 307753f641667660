package mutate

import (
	"strings"

	"pagetree-cli/internal/model"
	"pagetree-cli/internal/order"
	"pagetree-cli/internal/registry"
	"pagetree-cli/internal/store"
)

// Position says where Insert places a new node. A nil ParentID means the page root.
// A nil Index appends after the existing siblings.
type Position struct {
	ParentID *string
	Index    *int
}

func AppendToRoot() Position { return Position{} }

func AppendTo(parentID string) Position { return Position{ParentID: &parentID} }

func At(parentID *string, index int) Position { return Position{ParentID: parentID, Index: &index} }

// Insert adds node to db at pos. node.PageID and node.DefinitionID are required; an empty
// node.ID is assigned. ParentID and Order on node are ignored in favour of pos.
func Insert(db *store.DB, reg registry.Registry, node model.Node, pos Position) (Result, error) {
	node = node.Clone()
	node.ID = strings.TrimSpace(node.ID)
	node.PageID = strings.TrimSpace(node.PageID)
	node.DefinitionID = strings.TrimSpace(node.DefinitionID)

	if _, ok := db.FindPage(node.PageID); !ok {
		return Result{}, NotFoundError{Kind: "page", ID: node.PageID}
	}
	def, ok := reg.Definition(node.DefinitionID)
	if !ok {
		return Result{}, NotFoundError{Kind: "definition", ID: node.DefinitionID}
	}
	if node.ID == "" {
		node.ID = store.NewUniqueNodeID(db)
	} else if _, exists := db.FindNode(node.ID); exists {
		return Result{}, InvalidTargetError{NodeID: node.ID, Reason: "node id already in use"}
	}
	for name := range node.Properties {
		if !def.DeclaresProperty(name) {
			return Result{}, InvalidPropertyError{NodeID: node.ID, DefinitionID: def.ID, Name: name}
		}
	}
	parentID, err := validateParent(db, reg, node.ID, node.PageID, pos.ParentID)
	if err != nil {
		return Result{}, err
	}

	sibs := db.Siblings(node.PageID, parentID)
	var shifted map[string]int
	if pos.Index == nil {
		node.Order = order.NextOrder(sibs)
	} else {
		node.Order, shifted = order.PlanInsert(sibs, *pos.Index)
	}
	node.ParentID = parentID
	ts := now()
	if node.CreatedAt.IsZero() {
		node.CreatedAt = ts
	}
	node.UpdatedAt = ts

	applyOrders(db, shifted)
	db.Nodes = append(db.Nodes, node)

	return Result{
		Node:      node.Clone(),
		Changed:   true,
		OrderByID: shifted,
		EventPayload: map[string]any{
			"pageId":        node.PageID,
			"parentId":      parentValue(node.ParentID),
			"order":         node.Order,
			"definitionRef": node.DefinitionID,
		},
	}, nil
}
