package store

import (
	"strings"

	"github.com/google/uuid"
)

// newID returns prefix-<8 hex chars> taken from a random UUID.
func newID(prefix string) string {
	raw := strings.ReplaceAll(uuid.New().String(), "-", "")
	return prefix + "-" + raw[:8]
}

func NewNodeID() string  { return newID("node") }
func NewPageID() string  { return newID("page") }
func NewEventID() string { return uuid.New().String() }

// NewUniqueNodeID returns a node id that is not already used in db.
func NewUniqueNodeID(db *DB) string {
	for {
		id := NewNodeID()
		if _, exists := db.FindNode(id); !exists {
			return id
		}
	}
}

func NewUniquePageID(db *DB) string {
	for {
		id := NewPageID()
		if _, exists := db.FindPage(id); !exists {
			return id
		}
	}
}
