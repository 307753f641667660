package store

import "pagetree-cli/internal/model"

// Snapshot is a structural copy of the whole node collection. It shares no mutable
// state (property maps, parent/label pointers) with the DB it was taken from.
type Snapshot struct {
	CurrentPageID string
	Pages         []model.Page
	Nodes         []model.Node
}

func (db *DB) Snapshot() Snapshot {
	snap := Snapshot{
		CurrentPageID: db.CurrentPageID,
		Pages:         append([]model.Page(nil), db.Pages...),
		Nodes:         make([]model.Node, len(db.Nodes)),
	}
	for i := range db.Nodes {
		snap.Nodes[i] = db.Nodes[i].Clone()
	}
	return snap
}

// Restore replaces the live collection with a copy of snap. The snapshot stays reusable:
// restoring it twice yields two independent collections.
func (db *DB) Restore(snap Snapshot) {
	db.CurrentPageID = snap.CurrentPageID
	db.Pages = append([]model.Page(nil), snap.Pages...)
	db.Nodes = make([]model.Node, len(snap.Nodes))
	for i := range snap.Nodes {
		db.Nodes[i] = snap.Nodes[i].Clone()
	}
}

// Clone returns an independent copy of db.
func (db *DB) Clone() *DB {
	out := &DB{Version: db.Version}
	out.Restore(db.Snapshot())
	return out
}
