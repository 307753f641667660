package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"pagetree-cli/internal/model"
)

// Event types written to the events table.
const (
	EventNodeInsert  = "node.insert"
	EventNodeUpdate  = "node.update"
	EventNodeRemove  = "node.remove"
	EventNodeReorder = "node.reorder"
)

// ReorderEntry is the event payload for one node whose placement changed.
type ReorderEntry struct {
	ID       string  `json:"id"`
	ParentID *string `json:"parentId,omitempty"`
	Order    int     `json:"order"`
}

// PersistInsert writes a new node row and records a node.insert event.
func (s Store) PersistInsert(ctx context.Context, n model.Node) error {
	return s.writeTx(ctx, func(tx *sql.Tx, nowMs int64) error {
		if err := upsertNode(ctx, tx, n, nowMs); err != nil {
			return err
		}
		return appendEvent(ctx, tx, EventNodeInsert, n.ID, n, nowMs)
	})
}

// PersistUpdate overwrites a node row and records a node.update event.
func (s Store) PersistUpdate(ctx context.Context, n model.Node) error {
	return s.writeTx(ctx, func(tx *sql.Tx, nowMs int64) error {
		if err := upsertNode(ctx, tx, n, nowMs); err != nil {
			return err
		}
		return appendEvent(ctx, tx, EventNodeUpdate, n.ID, n, nowMs)
	})
}

// PersistRemove deletes node rows. Unknown ids are ignored.
func (s Store) PersistRemove(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return s.writeTx(ctx, func(tx *sql.Tx, nowMs int64) error {
		for _, id := range ids {
			if _, err := tx.ExecContext(ctx, `DELETE FROM nodes WHERE id = ?`, id); err != nil {
				return err
			}
		}
		return appendEvent(ctx, tx, EventNodeRemove, ids[0], map[string]any{"ids": ids}, nowMs)
	})
}

// PersistReorder writes the new parent and order of every node in nodes as one event.
func (s Store) PersistReorder(ctx context.Context, nodes []model.Node) error {
	if len(nodes) == 0 {
		return nil
	}
	return s.writeTx(ctx, func(tx *sql.Tx, nowMs int64) error {
		entries := make([]ReorderEntry, 0, len(nodes))
		for _, n := range nodes {
			if err := upsertNode(ctx, tx, n, nowMs); err != nil {
				return err
			}
			entries = append(entries, ReorderEntry{ID: n.ID, ParentID: n.ParentID, Order: n.Order})
		}
		return appendEvent(ctx, tx, EventNodeReorder, nodes[0].ID, entries, nowMs)
	})
}

func (s Store) writeTx(ctx context.Context, fn func(tx *sql.Tx, nowMs int64) error) error {
	db, err := s.openSQLite(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx, time.Now().UTC().UnixMilli()); err != nil {
		return err
	}
	return tx.Commit()
}

func appendEvent(ctx context.Context, tx *sql.Tx, typ, entityID string, payload any, nowMs int64) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO events(id, type, entity_id, payload_json, issued_at_unixms) VALUES(?, ?, ?, ?, ?)`,
		NewEventID(), typ, entityID, string(raw), nowMs)
	return err
}

// ReadEvents returns events oldest first. A non-empty entityID restricts the result to that
// entity; limit <= 0 means no limit (the newest limit events are kept).
func (s Store) ReadEvents(ctx context.Context, entityID string, limit int) ([]model.Event, error) {
	db, err := s.openSQLite(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	q := `SELECT id, type, entity_id, payload_json, issued_at_unixms FROM events`
	var args []any
	if id := strings.TrimSpace(entityID); id != "" {
		q += ` WHERE entity_id = ?`
		args = append(args, id)
	}
	q += ` ORDER BY seq DESC`
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Event
	for rows.Next() {
		var (
			ev      model.Event
			payload string
			ms      int64
		)
		if err := rows.Scan(&ev.ID, &ev.Type, &ev.EntityID, &payload, &ms); err != nil {
			return nil, err
		}
		ev.TS = time.UnixMilli(ms).UTC()
		if payload != "" {
			var v any
			if err := json.Unmarshal([]byte(payload), &v); err != nil {
				return nil, errors.New("corrupt event payload: " + ev.ID)
			}
			ev.Payload = v
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	if out == nil {
		out = []model.Event{}
	}
	return out, nil
}
