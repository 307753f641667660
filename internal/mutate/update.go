package mutate

import (
	"reflect"
	"sort"
	"strings"

	"pagetree-cli/internal/model"
	"pagetree-cli/internal/registry"
	"pagetree-cli/internal/store"
)

// Patch is a partial change to a node. Nil fields are left alone.
type Patch struct {
	// Properties is merged into the node's properties. A nil value deletes the key.
	Properties map[string]any

	Locked *bool
	Hidden *bool

	// Label sets the display label; a pointer to "" clears it.
	Label *string
}

func (p Patch) IsEmpty() bool {
	return len(p.Properties) == 0 && p.Locked == nil && p.Hidden == nil && p.Label == nil
}

// Update applies patch to node id. It never touches ParentID or Order, so it is
// permitted on locked nodes (including toggling the lock itself).
//
// Property names being set must be declared by the node's definition. Deleting an
// undeclared key is allowed so stale data can be cleaned up.
func Update(db *store.DB, reg registry.Registry, id string, patch Patch) (Result, error) {
	id = strings.TrimSpace(id)
	n, ok := db.FindNode(id)
	if !ok {
		return Result{}, NotFoundError{Kind: "node", ID: id}
	}
	if len(patch.Properties) > 0 && reg != nil {
		if def, ok := reg.Definition(n.DefinitionID); ok {
			names := make([]string, 0, len(patch.Properties))
			for name := range patch.Properties {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				if patch.Properties[name] != nil && !def.DeclaresProperty(name) {
					return Result{}, InvalidPropertyError{NodeID: n.ID, DefinitionID: def.ID, Name: name}
				}
			}
		}
	}

	payload := map[string]any{}
	changed := false

	for name, v := range patch.Properties {
		cur, exists := n.Properties[name]
		if v == nil {
			if exists {
				delete(n.Properties, name)
				payload["properties."+name] = nil
				changed = true
			}
			continue
		}
		if exists && reflect.DeepEqual(cur, v) {
			continue
		}
		if n.Properties == nil {
			n.Properties = map[string]any{}
		}
		n.Properties[name] = model.CloneValue(v)
		payload["properties."+name] = v
		changed = true
	}
	if patch.Locked != nil && n.Locked != *patch.Locked {
		n.Locked = *patch.Locked
		payload["isLocked"] = n.Locked
		changed = true
	}
	if patch.Hidden != nil && n.Hidden != *patch.Hidden {
		n.Hidden = *patch.Hidden
		payload["isHidden"] = n.Hidden
		changed = true
	}
	if patch.Label != nil {
		label := strings.TrimSpace(*patch.Label)
		cur := ""
		if n.Label != nil {
			cur = *n.Label
		}
		if label != cur {
			if label == "" {
				n.Label = nil
				payload["displayLabel"] = nil
			} else {
				n.Label = &label
				payload["displayLabel"] = label
			}
			changed = true
		}
	}

	if !changed {
		return Result{Node: n.Clone(), Changed: false}, nil
	}
	n.UpdatedAt = now()
	return Result{Node: n.Clone(), Changed: true, EventPayload: payload}, nil
}

// SetLocked and SetHidden are the flag toggles used by the layer list.
func SetLocked(db *store.DB, id string, locked bool) (Result, error) {
	return Update(db, nil, id, Patch{Locked: &locked})
}

func SetHidden(db *store.DB, id string, hidden bool) (Result, error) {
	return Update(db, nil, id, Patch{Hidden: &hidden})
}
