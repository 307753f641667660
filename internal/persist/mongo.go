package persist

import (
	"context"
	"fmt"
	"time"

	"pagetree-cli/internal/model"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Mongo persists nodes into a MongoDB database: one document per node in "nodes" and an
// append-only "events" collection mirroring the SQLite event log.
type Mongo struct {
	client *mongo.Client
	nodes  *mongo.Collection
	events *mongo.Collection
}

type nodeDoc struct {
	ID            string         `bson:"_id"`
	PageID        string         `bson:"pageId"`
	ParentID      *string        `bson:"parentId"`
	Order         int            `bson:"order"`
	DefinitionRef string         `bson:"definitionRef"`
	Properties    map[string]any `bson:"properties,omitempty"`
	IsLocked      bool           `bson:"isLocked"`
	IsHidden      bool           `bson:"isHidden"`
	DisplayLabel  *string        `bson:"displayLabel,omitempty"`
	CreatedAt     time.Time      `bson:"createdAt"`
	UpdatedAt     time.Time      `bson:"updatedAt"`
}

type eventDoc struct {
	ID       string    `bson:"_id"`
	Type     string    `bson:"type"`
	EntityID string    `bson:"entityId"`
	NodeIDs  []string  `bson:"nodeIds"`
	IssuedAt time.Time `bson:"issuedAt"`
}

func toDoc(n model.Node) nodeDoc {
	n = n.Clone()
	return nodeDoc{
		ID:            n.ID,
		PageID:        n.PageID,
		ParentID:      n.ParentID,
		Order:         n.Order,
		DefinitionRef: n.DefinitionID,
		Properties:    n.Properties,
		IsLocked:      n.Locked,
		IsHidden:      n.Hidden,
		DisplayLabel:  n.Label,
		CreatedAt:     n.CreatedAt,
		UpdatedAt:     n.UpdatedAt,
	}
}

func (d nodeDoc) node() model.Node {
	props := map[string]any(nil)
	if d.Properties != nil {
		props = make(map[string]any, len(d.Properties))
		for k, v := range d.Properties {
			props[k] = fromBSON(v)
		}
	}
	return model.Node{
		ID:           d.ID,
		PageID:       d.PageID,
		ParentID:     d.ParentID,
		Order:        d.Order,
		DefinitionID: d.DefinitionRef,
		Properties:   props,
		Locked:       d.IsLocked,
		Hidden:       d.IsHidden,
		Label:        d.DisplayLabel,
		CreatedAt:    d.CreatedAt.UTC(),
		UpdatedAt:    d.UpdatedAt.UTC(),
	}
}

// fromBSON turns decoded embedded documents and arrays back into plain maps and slices.
func fromBSON(v any) any {
	switch t := v.(type) {
	case bson.D:
		m := make(map[string]any, len(t))
		for _, e := range t {
			m[e.Key] = fromBSON(e.Value)
		}
		return m
	case bson.M:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[k] = fromBSON(e)
		}
		return m
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[k] = fromBSON(e)
		}
		return m
	case bson.A:
		out := make([]any, len(t))
		for i := range t {
			out[i] = fromBSON(t[i])
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = fromBSON(t[i])
		}
		return out
	default:
		return v
	}
}

// NewMongo connects, pings and makes sure the sibling-group index exists.
func NewMongo(ctx context.Context, uri, database string) (*Mongo, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	db := client.Database(database)
	m := &Mongo{
		client: client,
		nodes:  db.Collection("nodes"),
		events: db.Collection("events"),
	}
	_, err = m.nodes.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "pageId", Value: 1}, {Key: "parentId", Value: 1}, {Key: "order", Value: 1}},
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("create mongo index: %w", err)
	}
	return m, nil
}

func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

func (m *Mongo) PersistInsert(ctx context.Context, n model.Node) error {
	return m.replace(ctx, "node.insert", []model.Node{n})
}

func (m *Mongo) PersistUpdate(ctx context.Context, n model.Node) error {
	return m.replace(ctx, "node.update", []model.Node{n})
}

func (m *Mongo) PersistReorder(ctx context.Context, nodes []model.Node) error {
	if len(nodes) == 0 {
		return nil
	}
	return m.replace(ctx, "node.reorder", nodes)
}

func (m *Mongo) PersistRemove(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := m.nodes.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}}); err != nil {
		return fmt.Errorf("mongo delete nodes: %w", err)
	}
	return m.appendEvent(ctx, "node.remove", ids)
}

func (m *Mongo) replace(ctx context.Context, typ string, nodes []model.Node) error {
	models := make([]mongo.WriteModel, 0, len(nodes))
	ids := make([]string, 0, len(nodes))
	for _, n := range nodes {
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": n.ID}).
			SetReplacement(toDoc(n)).
			SetUpsert(true))
		ids = append(ids, n.ID)
	}
	if _, err := m.nodes.BulkWrite(ctx, models); err != nil {
		return fmt.Errorf("mongo upsert nodes: %w", err)
	}
	return m.appendEvent(ctx, typ, ids)
}

func (m *Mongo) appendEvent(ctx context.Context, typ string, ids []string) error {
	_, err := m.events.InsertOne(ctx, eventDoc{
		ID:       uuid.New().String(),
		Type:     typ,
		EntityID: ids[0],
		NodeIDs:  ids,
		IssuedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("mongo append event: %w", err)
	}
	return nil
}

// LoadPage returns the stored nodes of a page sorted by parent and order.
func (m *Mongo) LoadPage(ctx context.Context, pageID string) ([]model.Node, error) {
	opts := options.Find().SetSort(bson.D{{Key: "parentId", Value: 1}, {Key: "order", Value: 1}})
	cur, err := m.nodes.Find(ctx, bson.M{"pageId": pageID}, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo find nodes: %w", err)
	}
	var docs []nodeDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo decode nodes: %w", err)
	}
	out := make([]model.Node, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.node())
	}
	return out, nil
}
