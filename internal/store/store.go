package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"pagetree-cli/internal/model"
	"pagetree-cli/internal/order"
)

const (
	dirName        = ".pagetree"
	sqliteFileName = "pagetree.sqlite"
)

// DB is the in-memory node arena for a workspace. Hierarchy is never stored as object
// references: every view of the tree is derived from the flat Nodes slice.
type DB struct {
	Version       int          `json:"version"`
	CurrentPageID string       `json:"currentPageId,omitempty"`
	Pages         []model.Page `json:"pages"`
	Nodes         []model.Node `json:"nodes"`
}

type Store struct {
	Dir string
}

func DiscoverDir(start string) (string, bool) {
	dir := start
	for {
		candidate := filepath.Join(dir, dirName)
		if st, err := os.Stat(candidate); err == nil && st.IsDir() {
			return candidate, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

func DefaultDir() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	if found, ok := DiscoverDir(cwd); ok {
		return found, nil
	}
	return filepath.Join(cwd, dirName), nil
}

func (s Store) Ensure() error {
	return os.MkdirAll(s.Dir, 0o755)
}

func (s Store) SQLitePath() string {
	return filepath.Join(s.Dir, sqliteFileName)
}

func (s Store) Load() (*DB, error) {
	if err := s.Ensure(); err != nil {
		return nil, err
	}
	return s.LoadSQLite(context.Background())
}

func (s Store) Save(db *DB) error {
	if err := s.Ensure(); err != nil {
		return err
	}
	return s.SaveSQLite(context.Background(), db)
}

func (db *DB) FindPage(id string) (*model.Page, bool) {
	for i := range db.Pages {
		if db.Pages[i].ID == id {
			return &db.Pages[i], true
		}
	}
	return nil, false
}

// FindNode returns a pointer into the arena. The pointer is invalidated by any
// operation that appends to or removes from db.Nodes.
func (db *DB) FindNode(id string) (*model.Node, bool) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, false
	}
	for i := range db.Nodes {
		if db.Nodes[i].ID == id {
			return &db.Nodes[i], true
		}
	}
	return nil, false
}

// NodesOnPage returns value copies of the page's nodes in arena order.
func (db *DB) NodesOnPage(pageID string) []model.Node {
	out := []model.Node{}
	for _, n := range db.Nodes {
		if n.PageID == pageID {
			out = append(out, n)
		}
	}
	return out
}

// Siblings returns the sibling group for (pageID, parentID), sorted by order.
// The returned pointers alias the arena.
func (db *DB) Siblings(pageID string, parentID *string) []*model.Node {
	var out []*model.Node
	for i := range db.Nodes {
		n := &db.Nodes[i]
		if n.PageID != pageID || !model.SameParent(n.ParentID, parentID) {
			continue
		}
		out = append(out, n)
	}
	order.Sort(out)
	return out
}

func (db *DB) ChildrenOf(parentID string) []*model.Node {
	p, ok := db.FindNode(parentID)
	if !ok {
		return nil
	}
	pid := p.ID
	return db.Siblings(p.PageID, &pid)
}

// RemoveNodes drops every node whose id is in ids. It returns the number removed.
func (db *DB) RemoveNodes(ids map[string]bool) int {
	kept := db.Nodes[:0]
	removed := 0
	for _, n := range db.Nodes {
		if ids[n.ID] {
			removed++
			continue
		}
		kept = append(kept, n)
	}
	// Zero the tail so dropped property maps are not retained by the backing array.
	for i := len(kept); i < len(db.Nodes); i++ {
		db.Nodes[i] = model.Node{}
	}
	db.Nodes = kept
	return removed
}
