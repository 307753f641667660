// Package registry answers questions about component definitions: whether a definition
// exists, whether it accepts children, and which property names it declares.
package registry

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"pagetree-cli/internal/model"

	"github.com/BurntSushi/toml"
)

// Registry is the read side consumed by the engine.
type Registry interface {
	Definition(id string) (model.Definition, bool)
}

// AcceptsChildren reports whether the definition id exists and accepts children.
func AcceptsChildren(r Registry, id string) bool {
	if r == nil {
		return false
	}
	d, ok := r.Definition(id)
	return ok && d.AcceptsChildren
}

// Static is an in-memory registry. It is safe for concurrent use; Replace swaps the whole
// definition set atomically (used by file reloads).
type Static struct {
	mu   sync.RWMutex
	defs map[string]model.Definition
}

func NewStatic(defs ...model.Definition) *Static {
	s := &Static{}
	s.Replace(defs)
	return s
}

func (s *Static) Definition(id string) (model.Definition, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.defs[strings.TrimSpace(id)]
	return d, ok
}

// List returns all definitions sorted by category, then id.
func (s *Static) List() []model.Definition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Definition, 0, len(s.defs))
	for _, d := range s.defs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *Static) Replace(defs []model.Definition) {
	m := make(map[string]model.Definition, len(defs))
	for _, d := range defs {
		d.ID = strings.TrimSpace(d.ID)
		if d.ID == "" {
			continue
		}
		m[d.ID] = d
	}
	s.mu.Lock()
	s.defs = m
	s.mu.Unlock()
}

// Builtin returns the default palette used when no components file is configured.
func Builtin() []model.Definition {
	return []model.Definition{
		{ID: "section", Name: "Section", Category: "layout", AcceptsChildren: true, Properties: []string{"padding", "background", "anchor"}},
		{ID: "container", Name: "Container", Category: "layout", AcceptsChildren: true, Properties: []string{"maxWidth", "padding"}},
		{ID: "row", Name: "Row", Category: "layout", AcceptsChildren: true, Properties: []string{"gap", "align"}},
		{ID: "column", Name: "Column", Category: "layout", AcceptsChildren: true, Properties: []string{"span", "gap"}},
		{ID: "heading", Name: "Heading", Category: "content", Properties: []string{"text", "level"}},
		{ID: "text", Name: "Text", Category: "content", Properties: []string{"text"}},
		{ID: "image", Name: "Image", Category: "media", Properties: []string{"src", "alt", "width", "height"}},
		{ID: "button", Name: "Button", Category: "content", Properties: []string{"text", "href", "variant"}},
	}
}

type componentsFile struct {
	Components []model.Definition `toml:"component"`
}

// Parse decodes a components file:
//
//	[[component]]
//	id = "section"
//	name = "Section"
//	accepts_children = true
//	properties = ["padding"]
func Parse(data string) ([]model.Definition, error) {
	var f componentsFile
	md, err := toml.Decode(data, &f)
	if err != nil {
		return nil, fmt.Errorf("parse components: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("parse components: unknown keys %v", undecoded)
	}
	seen := map[string]bool{}
	for _, d := range f.Components {
		id := strings.TrimSpace(d.ID)
		if id == "" {
			return nil, errors.New("parse components: component with empty id")
		}
		if seen[id] {
			return nil, fmt.Errorf("parse components: duplicate id %q", id)
		}
		seen[id] = true
	}
	return f.Components, nil
}

// LoadFile reads a components file into a new Static registry.
func LoadFile(path string) (*Static, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	defs, err := Parse(string(b))
	if err != nil {
		return nil, err
	}
	return NewStatic(defs...), nil
}

// Load returns the registry from path when set, or the builtin palette.
func Load(path string) (*Static, error) {
	if strings.TrimSpace(path) == "" {
		return NewStatic(Builtin()...), nil
	}
	return LoadFile(path)
}
