package model

import "time"

type Page struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// Definition describes a component that can be placed on a page.
// The engine only cares whether it accepts children and which property names it declares.
type Definition struct {
	ID              string   `json:"id" toml:"id"`
	Name            string   `json:"name" toml:"name"`
	Category        string   `json:"category,omitempty" toml:"category"`
	AcceptsChildren bool     `json:"acceptsChildren" toml:"accepts_children"`
	Properties      []string `json:"declaredProperties" toml:"properties"`
}

// DeclaresProperty reports whether name is one of the definition's property names.
func (d Definition) DeclaresProperty(name string) bool {
	for _, p := range d.Properties {
		if p == name {
			return true
		}
	}
	return false
}

// Node is a placed instance of a component definition on a page.
type Node struct {
	ID     string `json:"id"`
	PageID string `json:"pageId"`

	ParentID *string `json:"parentId,omitempty"`
	Order    int     `json:"order"`

	DefinitionID string         `json:"definitionRef"`
	Properties   map[string]any `json:"properties,omitempty"`

	Locked bool    `json:"isLocked"`
	Hidden bool    `json:"isHidden"`
	Label  *string `json:"displayLabel,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Clone returns a structural copy of n. Property maps and slices are copied recursively,
// so mutating the clone never affects n.
func (n Node) Clone() Node {
	out := n
	if n.ParentID != nil {
		pid := *n.ParentID
		out.ParentID = &pid
	}
	if n.Label != nil {
		l := *n.Label
		out.Label = &l
	}
	out.Properties = CloneProperties(n.Properties)
	return out
}

// ParentKey returns the parent id or "" for top-level nodes.
func (n Node) ParentKey() string {
	if n.ParentID == nil {
		return ""
	}
	return *n.ParentID
}

// DisplayName returns the label override when set, falling back to the definition id.
func (n Node) DisplayName() string {
	if n.Label != nil && *n.Label != "" {
		return *n.Label
	}
	return n.DefinitionID
}

func CloneProperties(props map[string]any) map[string]any {
	if props == nil {
		return nil
	}
	out := make(map[string]any, len(props))
	for k, v := range props {
		out[k] = CloneValue(v)
	}
	return out
}

// CloneValue deep-copies a property value.
func CloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return CloneProperties(t)
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = CloneValue(t[i])
		}
		return out
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}

// SameParent reports whether two optional parent references point at the same parent.
func SameParent(a, b *string) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return *a == *b
}

type Event struct {
	ID       string    `json:"id"`
	TS       time.Time `json:"ts"`
	Type     string    `json:"type"`
	EntityID string    `json:"entityId"`
	Payload  any       `json:"payload"`
}
