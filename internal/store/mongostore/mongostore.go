// Package mongostore implements the store gateway on MongoDB. Array-membership
// mutations map to $addToSet/$pull so concurrent admins can modify membership
// without read-modify-write races; subscriptions map to change streams.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"kollektiv/internal/observability"
	"kollektiv/internal/store"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// Store is a MongoDB-backed document store.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

var _ store.Store = (*Store)(nil)

// Connect establishes a client and pings the primary before returning.
func Connect(ctx context.Context, uri, dbName string) (*Store, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetServerAPIOptions(options.ServerAPI(options.ServerAPIVersion1))

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return &Store{client: client, db: client.Database(dbName)}, nil
}

// Close disconnects the underlying client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Get implements store.Store.
func (s *Store) Get(ctx context.Context, collection, id string, out any) error {
	err := s.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return store.ErrNotFound
	}
	return err
}

// Query implements store.Store.
func (s *Store) Query(ctx context.Context, collection string, q store.Query, out any) error {
	opts := options.Find()
	if q.OrderField != "" {
		dir := 1
		if q.OrderDesc {
			dir = -1
		}
		opts = opts.SetSort(bson.D{{Key: q.OrderField, Value: dir}})
	}
	if q.Limit > 0 {
		opts = opts.SetLimit(int64(q.Limit))
	}

	cursor, err := s.db.Collection(collection).Find(ctx, filterFor(q.Predicates), opts)
	if err != nil {
		return err
	}
	return cursor.All(ctx, out)
}

// Create implements store.Store.
func (s *Store) Create(ctx context.Context, collection string, doc any) (string, error) {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}
	var m bson.M
	if err := bson.Unmarshal(raw, &m); err != nil {
		return "", fmt.Errorf("decode document: %w", err)
	}
	id, _ := m["_id"].(string)
	if id == "" {
		id = uuid.NewString()
		m["_id"] = id
	}
	if _, err := s.db.Collection(collection).InsertOne(ctx, m); err != nil {
		observability.NewStoreLogger(collection).LogError(ctx, "create", err)
		return "", err
	}
	observability.NewStoreLogger(collection).LogWrite(ctx, "create", id)
	return id, nil
}

// Update implements store.Store. Nil field values translate to $unset.
func (s *Store) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	set := bson.M{}
	unset := bson.M{}
	for k, v := range fields {
		if v == nil {
			unset[k] = ""
			continue
		}
		set[k] = v
	}
	update := bson.M{}
	if len(set) > 0 {
		update["$set"] = set
	}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	if len(update) == 0 {
		return nil
	}

	res, err := s.db.Collection(collection).UpdateByID(ctx, id, update)
	if err != nil {
		observability.NewStoreLogger(collection).LogError(ctx, "update", err)
		return err
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	observability.NewStoreLogger(collection).LogWrite(ctx, "update", id)
	return nil
}

// Delete implements store.Store.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	if _, err := s.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		observability.NewStoreLogger(collection).LogError(ctx, "delete", err)
		return err
	}
	observability.NewStoreLogger(collection).LogWrite(ctx, "delete", id)
	return nil
}

// ArrayUnion implements store.Store.
func (s *Store) ArrayUnion(ctx context.Context, collection, id, field string, values ...any) error {
	res, err := s.db.Collection(collection).UpdateByID(ctx, id, bson.M{
		"$addToSet": bson.M{field: bson.M{"$each": values}},
	})
	if err != nil {
		observability.NewStoreLogger(collection).LogError(ctx, "arrayUnion", err)
		return err
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	observability.NewStoreLogger(collection).LogWrite(ctx, "arrayUnion", id)
	return nil
}

// ArrayRemove implements store.Store.
func (s *Store) ArrayRemove(ctx context.Context, collection, id, field string, values ...any) error {
	res, err := s.db.Collection(collection).UpdateByID(ctx, id, bson.M{
		"$pull": bson.M{field: bson.M{"$in": values}},
	})
	if err != nil {
		observability.NewStoreLogger(collection).LogError(ctx, "arrayRemove", err)
		return err
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	observability.NewStoreLogger(collection).LogWrite(ctx, "arrayRemove", id)
	return nil
}

// Count implements store.Store.
func (s *Store) Count(ctx context.Context, collection string, preds ...store.Predicate) (int64, error) {
	return s.db.Collection(collection).CountDocuments(ctx, filterFor(preds))
}

// Subscribe implements store.Store via a change stream on the collection.
func (s *Store) Subscribe(ctx context.Context, collection string, preds []store.Predicate, fn func(store.Event)) (store.CancelFunc, error) {
	match := bson.M{}
	for field, cond := range filterFor(preds) {
		match["fullDocument."+field] = cond
	}
	pipeline := mongo.Pipeline{}
	if len(match) > 0 {
		// Deletions carry no fullDocument; let them through and filter on
		// the consumer side if needed.
		pipeline = append(pipeline, bson.D{{Key: "$match", Value: bson.M{
			"$or": bson.A{match, bson.M{"operationType": "delete"}},
		}}})
	}

	streamCtx, cancel := context.WithCancel(ctx)
	stream, err := s.db.Collection(collection).Watch(streamCtx, pipeline,
		options.ChangeStream().SetFullDocument(options.UpdateLookup))
	if err != nil {
		cancel()
		return nil, err
	}

	go func() {
		defer func() {
			if err := stream.Close(context.Background()); err != nil {
				slog.Warn("closing change stream", "collection", collection, "err", err)
			}
		}()
		for stream.Next(streamCtx) {
			var change struct {
				OperationType string `bson:"operationType"`
				FullDocument  bson.M `bson:"fullDocument"`
				DocumentKey   struct {
					ID string `bson:"_id"`
				} `bson:"documentKey"`
			}
			if err := stream.Decode(&change); err != nil {
				slog.Warn("decoding change event", "collection", collection, "err", err)
				continue
			}
			ev := store.Event{
				Collection: collection,
				ID:         change.DocumentKey.ID,
				Doc:        change.FullDocument,
			}
			switch change.OperationType {
			case "insert":
				ev.Type = store.EventCreated
			case "delete":
				ev.Type = store.EventDeleted
				ev.Doc = nil
			default:
				ev.Type = store.EventUpdated
			}
			fn(ev)
		}
	}()

	return store.CancelFunc(cancel), nil
}

func filterFor(preds []store.Predicate) bson.M {
	filter := bson.M{}
	for _, p := range preds {
		switch p.Op {
		case store.OpEq, store.OpArrayContains:
			// Equality against an array field matches membership, which is
			// exactly the array-contains contract.
			filter[p.Field] = p.Value
		case store.OpLt:
			filter[p.Field] = mergeCond(filter[p.Field], "$lt", p.Value)
		case store.OpLte:
			filter[p.Field] = mergeCond(filter[p.Field], "$lte", p.Value)
		case store.OpGt:
			filter[p.Field] = mergeCond(filter[p.Field], "$gt", p.Value)
		case store.OpGte:
			filter[p.Field] = mergeCond(filter[p.Field], "$gte", p.Value)
		}
	}
	return filter
}

func mergeCond(existing any, op string, value any) bson.M {
	cond, ok := existing.(bson.M)
	if !ok {
		cond = bson.M{}
	}
	cond[op] = value
	return cond
}
